package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ordertalk/tagflow/internal/config"
	"github.com/ordertalk/tagflow/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset annotation progress",
	}

	cmd.PersistentFlags().String("checkpoint", "", "checkpoint database path")
	_ = viper.BindPFlag("analyze.checkpoint", cmd.PersistentFlags().Lookup("checkpoint"))

	cmd.AddCommand(checkpointShowCmd())
	cmd.AddCommand(checkpointResetCmd())

	return cmd
}

func checkpointShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show settled document counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCheckpointStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			annotated, failed, err := store.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read checkpoint: %w", err)
			}

			fmt.Printf("Annotated:           %d\n", annotated)
			fmt.Printf("Permanently failed:  %d\n", failed)
			fmt.Printf("Total settled:       %d\n", annotated+failed)
			return nil
		},
	}
}

func checkpointResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard all recorded progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCheckpointStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset checkpoint: %w", err)
			}

			slog.Info("Checkpoint reset; the next run starts fresh")
			return nil
		},
	}
}

func openCheckpointStore(cmd *cobra.Command) (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("analyze.checkpoint")
	if dbPath == "" {
		dbPath = config.DefaultCheckpointPath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	if err := store.Migrate(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate checkpoint store: %w", err)
	}

	return store, nil
}
