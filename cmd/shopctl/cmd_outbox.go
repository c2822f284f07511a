package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/simpleshop/internal/storage/postgres"
)

type outboxStatsView struct {
	Pending          int        `json:"pending"`
	OldestPendingAt  *time.Time `json:"oldest_pending_at,omitempty"`
	OldestAgeSeconds float64    `json:"oldest_age_seconds"`
}

func newOutboxCmd(getenv func(string) string) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the transactional outbox",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show pending outbox backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = envDefault(getenv, envPostgresDSN, "")
			}
			if dsn == "" {
				return errors.New(envPostgresDSN + " (or --dsn) is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
			defer cancel()
			store, err := postgres.Open(ctx, dsn)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			defer store.Close()

			raw, err := postgres.NewOutboxRepository(store).Stats()
			if err != nil {
				return err
			}
			view := outboxStatsView{Pending: raw.PendingCount}
			if !raw.OldestPendingAt.IsZero() {
				oldest := raw.OldestPendingAt
				view.OldestPendingAt = &oldest
				view.OldestAgeSeconds = time.Since(oldest).Seconds()
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.AddCommand(stats)
	return cmd
}
