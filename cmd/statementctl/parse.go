package main

import (
	"encoding/json"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
)

type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Merchant    string `csv:"merchant"`
	Category    string `csv:"category"`
	Direction   string `csv:"direction"`
	Amount      string `csv:"amount"`
	Source      string `csv:"source"`
}

func newParseCmd(f *flags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Print the deduplicated transactions found in statement files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			switch format {
			case "csv":
				return gocsv.Marshal(toCSVRows(txs), cmd.OutOrStdout())
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(txs)
			default:
				return fmt.Errorf("unknown format %q, use csv or json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	return cmd
}

func toCSVRows(txs []ledger.Transaction) []csvRow {
	rows := make([]csvRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, csvRow{
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Merchant:    tx.Merchant,
			Category:    string(tx.Category),
			Direction:   string(tx.Direction),
			Amount:      tx.Amount.StringFixed(2),
			Source:      tx.Source,
		})
	}
	return rows
}
