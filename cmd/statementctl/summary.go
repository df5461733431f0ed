package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
)

func newSummaryCmd(f *flags) *cobra.Command {
	var (
		days int
		asOf string
	)

	cmd := &cobra.Command{
		Use:   "summary FILE...",
		Short: "Print the spending snapshot of statement files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if asOf != "" {
				t, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
				now = t
			}

			s, err := newSession(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := s.ingest(cmd.Context(), args, cmd.ErrOrStderr()); err != nil {
				return err
			}

			txs, err := s.transactions(cmd.Context())
			if err != nil {
				return err
			}

			snap := analytics.Compute(txs, analytics.NormalizeDays(days, analytics.DefaultWindowDays), now)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", analytics.DefaultWindowDays, "window length in days")
	cmd.Flags().StringVar(&asOf, "as-of", "", "last day of the window (YYYY-MM-DD), defaults to today")
	return cmd
}
