package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ordertalk/tagflow/internal/fetch"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <call-ids.csv>",
		Short: "Download call transcripts from the call platform",
		Long: `Fetch the chat history for every call ID listed in the CSV export and save
each one as a plain-text transcript. Transcripts that already exist on disk
are skipped, so an interrupted fetch can simply be re-run.

Authentication comes from the platform session: set TAGFLOW_FETCH_AUTH_TOKEN
(or fetch.auth_token in the config file) to the bearer token, or
TAGFLOW_FETCH_COOKIE to the session cookie.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	cmd.Flags().StringP("dir", "d", "transcripts", "directory to save transcripts in")
	cmd.Flags().String("base-url", "", "call platform API base URL")
	cmd.Flags().Duration("delay", 500*time.Millisecond, "pause between API calls")

	_ = viper.BindPFlag("fetch.dir", cmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("fetch.base_url", cmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("fetch.delay", cmd.Flags().Lookup("delay"))

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	baseURL := viper.GetString("fetch.base_url")
	if baseURL == "" {
		return fmt.Errorf("no API base URL configured (set --base-url or fetch.base_url)")
	}

	if viper.GetString("fetch.auth_token") == "" && viper.GetString("fetch.cookie") == "" {
		slog.Warn("No authentication configured; requests may be rejected",
			"hint", "set TAGFLOW_FETCH_AUTH_TOKEN or TAGFLOW_FETCH_COOKIE")
	}

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:   baseURL,
		AuthToken: viper.GetString("fetch.auth_token"),
		Cookie:    viper.GetString("fetch.cookie"),
		OutputDir: viper.GetString("fetch.dir"),
		Delay:     viper.GetDuration("fetch.delay"),
	})
	if err != nil {
		return fmt.Errorf("failed to create fetch client: %w", err)
	}

	stats, err := client.FetchAll(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	slog.Info("Fetch complete",
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	return nil
}
