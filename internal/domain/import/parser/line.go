// Package parser extracts raw transaction rows from statement text laid out as
// positional lines. PDF pages, CSV files and spreadsheets are all reduced to
// []Line first; a StatementLayout then locates the transaction table and reads
// its rows lazily.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoTable means no transaction table header was found.
	ErrNoTable = errors.New("no transaction table found")
	// ErrNoRows means a table was found but no row could be parsed.
	ErrNoRows = errors.New("transaction table has no parseable rows")
)

// Cell is one run of text at a horizontal position. For tabular input X is the
// column index and W is zero.
type Cell struct {
	X    float64
	W    float64
	Text string
}

// Line is one visual row of a page or one record of a tabular file.
type Line struct {
	Page  int
	Y     float64
	Cells []Cell
}

// Text joins the cells with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Cells))
	for _, c := range l.Cells {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Direction of money movement relative to the account holder.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// RawRow is one transaction as printed on the statement. Amount is signed:
// negative for debits.
type RawRow struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	Balance     decimal.Decimal
	HasBalance  bool
}

// RowError describes a table line that could not be read as a transaction.
type RowError struct {
	Line    int
	Column  string
	Message string
	Raw     string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %s (%q)", e.Line, e.Column, e.Message, e.Raw)
}
