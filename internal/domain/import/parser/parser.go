package parser

import (
	"iter"
	"strings"

	"github.com/shopspring/decimal"
)

// Options tune parsing of one document.
type Options struct {
	// BankHint selects an issuer layout directly when it names one.
	BankHint string
	// European reads amounts as 1.234,56.
	European bool
}

// Statement is a document whose transaction table has been located.
type Statement struct {
	Layout StatementLayout
	Table  *Table
	lines  []Line
}

// Parse selects a layout and locates the transaction table. It returns
// ErrNoTable when neither the selected layout nor the generic fallback finds one.
func Parse(lines []Line, opts Options) (*Statement, error) {
	if len(lines) == 0 {
		return nil, ErrNoTable
	}

	layout := SelectLayout(lines, opts.BankHint)
	table, ok := layout.LocateTable(lines)
	if !ok && layout.Name() != Generic.Name() {
		layout = Generic
		table, ok = layout.LocateTable(lines)
	}
	if !ok {
		return nil, ErrNoTable
	}

	table.European = opts.European
	return &Statement{Layout: layout, Table: table, lines: lines}, nil
}

// Rows yields the table's transactions lazily. A row that cannot be read is
// yielded as a *RowError and iteration continues. Description-only lines
// extend the previous row's description.
func (s *Statement) Rows() iter.Seq2[RawRow, error] {
	return func(yield func(RawRow, error) bool) {
		var (
			pending     *RawRow
			orphan      bool
			prevBalance decimal.Decimal
			hasPrev     bool
		)

		flush := func() bool {
			if pending == nil {
				return true
			}
			row := *pending
			pending = nil
			return yield(row, nil)
		}

		for i := s.Table.Start; i < s.Table.End; i++ {
			line := s.lines[i]
			if len(line.Cells) == 0 || s.Table.isHeaderRepeat(line) {
				continue
			}

			values, extra := s.Table.assign(line)
			if strings.TrimSpace(values[RoleDate]) == "" {
				if isNoise(line) {
					continue
				}
				if !extra && values[RoleDescription] != "" {
					if pending != nil {
						pending.Description = cleanDescription(pending.Description + " " + values[RoleDescription])
						continue
					}
					if orphan {
						continue
					}
				}
			}

			row, err := s.Layout.ParseRow(s.Table, line)
			if err != nil {
				if isNoise(line) {
					continue
				}
				if re, ok := err.(*RowError); ok {
					re.Line = i
				}
				if !flush() {
					return
				}
				orphan = true
				if !yield(RawRow{Line: i}, err) {
					return
				}
				continue
			}

			row.Line = i
			resolveDirection(&row, prevBalance, hasPrev)
			if row.HasBalance {
				prevBalance, hasPrev = row.Balance, true
			}

			if !flush() {
				return
			}
			orphan = false
			pending = &row
		}

		flush()
	}
}

// resolveDirection settles unsigned amounts: the running balance delta when it
// matches the amount, otherwise the sign (positive is a credit).
func resolveDirection(row *RawRow, prevBalance decimal.Decimal, hasPrev bool) {
	if row.Direction != "" {
		return
	}

	if row.HasBalance && hasPrev {
		delta := row.Balance.Sub(prevBalance)
		abs := row.Amount.Abs()
		switch {
		case delta.Equal(abs.Neg()):
			row.Amount = abs.Neg()
			row.Direction = Debit
			return
		case delta.Equal(abs):
			row.Amount = abs
			row.Direction = Credit
			return
		}
	}

	if row.Amount.IsNegative() {
		row.Direction = Debit
	} else {
		row.Direction = Credit
	}
}

// Collect drains rows, counting skipped ones. It returns ErrNoRows when the
// table produced nothing usable.
func Collect(rows iter.Seq2[RawRow, error]) ([]RawRow, int, error) {
	var (
		out     []RawRow
		skipped int
	)
	for row, err := range rows {
		if err != nil {
			skipped++
			continue
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, skipped, ErrNoRows
	}
	return out, skipped, nil
}
