package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ordertalk/tagflow/internal/config"
	"github.com/ordertalk/tagflow/internal/engine"
	"github.com/ordertalk/tagflow/internal/llm"
	"github.com/ordertalk/tagflow/internal/report"
	"github.com/ordertalk/tagflow/internal/source"
	"github.com/ordertalk/tagflow/internal/storage"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <transcript-directory>",
		Short: "Annotate transcripts and aggregate tag statistics",
		Long: `Annotate every transcript in the directory with an LLM, batch by batch,
checkpointing after each batch so an interrupted run resumes where it left
off. When all documents are settled the cumulative results are aggregated
into tag frequencies and categorized recommendations.

Examples:
  tagflow analyze ./transcripts
  tagflow analyze ./transcripts --batch-size 20 --workers 8
  tagflow analyze ./transcripts --no-resume   # ignore prior checkpoint
  tagflow analyze ./transcripts --output report.json`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().IntP("batch-size", "b", 10, "documents per checkpointed batch")
	cmd.Flags().IntP("workers", "w", 5, "max concurrent annotation calls")
	cmd.Flags().StringP("output", "o", "tag_analysis.json", "output file for the report")
	cmd.Flags().Bool("no-resume", false, "discard any existing checkpoint and start fresh")
	cmd.Flags().String("checkpoint", "", "checkpoint database path")
	cmd.Flags().Int("retry-attempts", 3, "attempt ceiling per document for recoverable errors")
	cmd.Flags().Duration("retry-delay", time.Second, "initial retry backoff delay")

	_ = viper.BindPFlag("analyze.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("analyze.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("analyze.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("analyze.no_resume", cmd.Flags().Lookup("no-resume"))
	_ = viper.BindPFlag("analyze.checkpoint", cmd.Flags().Lookup("checkpoint"))
	_ = viper.BindPFlag("retry.attempts", cmd.Flags().Lookup("retry-attempts"))
	_ = viper.BindPFlag("retry.delay", cmd.Flags().Lookup("retry-delay"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dbPath := viper.GetString("analyze.checkpoint")
	if dbPath == "" {
		dbPath = config.DefaultCheckpointPath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close checkpoint store", "error", closeErr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate checkpoint store: %w", err)
	}

	annotator, err := createAnnotator()
	if err != nil {
		return err
	}
	defer func() { _ = annotator.Close() }()

	bar := newProgressBar()
	eng := engine.New(
		source.NewDirectorySource(args[0]),
		annotator,
		store,
		report.NewJSONWriter(viper.GetString("analyze.output")),
		engine.Config{
			BatchSize:  viper.GetInt("analyze.batch_size"),
			MaxWorkers: viper.GetInt("analyze.workers"),
			Resume:     !viper.GetBool("analyze.no_resume"),
			ProgressFunc: func(settled, total int) {
				bar.ChangeMax(total)
				_ = bar.Set(settled)
			},
		},
	)

	rpt, err := eng.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Run interrupted; committed batches are safe")
			slog.Info("Re-run the same command to resume where you left off")
			return nil
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	_ = bar.Finish()
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, report.RenderSummary(rpt))
	slog.Info("Report written", "path", viper.GetString("analyze.output"))

	return nil
}

func createAnnotator() (*llm.Annotator, error) {
	apiKey := viper.GetString("openai.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return llm.NewAnnotator(llm.Config{
		Provider:    viper.GetString("openai.provider"),
		APIKey:      apiKey,
		Model:       viper.GetString("openai.model"),
		Temperature: viper.GetFloat64("openai.temperature"),
		MaxTokens:   viper.GetInt("openai.max_tokens"),
		RateLimit:   viper.GetInt("openai.rate_limit"),
		MaxRetries:  viper.GetInt("retry.attempts"),
		RetryDelay:  viper.GetDuration("retry.delay"),
		MaxDelay:    viper.GetDuration("retry.max_delay"),
	}, slog.Default())
}

func newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Annotating transcripts...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
