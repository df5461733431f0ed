package parser

import (
	"strings"
)

// parseColumnRow reads a table line whose cells have been mapped to roles.
// Direction is left empty when the amount is unsigned and carries no marker;
// the row iterator resolves it from the running balance.
func parseColumnRow(t *Table, line Line) (RawRow, error) {
	values, _ := t.assign(line)

	dateStr := values[RoleDate]
	date, err := parseDate(dateStr)
	if err != nil {
		return RawRow{}, &RowError{Column: "date", Message: err.Error(), Raw: dateStr}
	}

	desc := cleanDescription(values[RoleDescription])
	if desc == "" {
		return RawRow{}, &RowError{Column: "description", Message: "missing description", Raw: line.Text()}
	}

	row := RawRow{Date: date, Description: desc}

	debit, credit := values[RoleDebit], values[RoleCredit]
	switch {
	case !isBlankAmount(debit):
		d, _, err := parseAmount(debit, t.European)
		if err != nil {
			return RawRow{}, &RowError{Column: "debit", Message: err.Error(), Raw: debit}
		}
		row.Amount = d.Abs().Neg()
		row.Direction = Debit

	case !isBlankAmount(credit):
		d, _, err := parseAmount(credit, t.European)
		if err != nil {
			return RawRow{}, &RowError{Column: "credit", Message: err.Error(), Raw: credit}
		}
		row.Amount = d.Abs()
		row.Direction = Credit

	default:
		raw := values[RoleAmount]
		if strings.TrimSpace(raw) == "" {
			return RawRow{}, &RowError{Column: "amount", Message: "missing amount", Raw: line.Text()}
		}
		d, marker, err := parseAmount(raw, t.European)
		if err != nil {
			return RawRow{}, &RowError{Column: "amount", Message: err.Error(), Raw: raw}
		}
		if marker == "" {
			marker = parseMarker(values[RoleMarker])
		}
		switch {
		case marker == Debit:
			row.Amount = d.Abs().Neg()
			row.Direction = Debit
		case marker == Credit:
			row.Amount = d.Abs()
			row.Direction = Credit
		case d.IsNegative():
			row.Amount = d
			row.Direction = Debit
		default:
			row.Amount = d
		}
	}

	if row.Amount.IsZero() {
		return RawRow{}, &RowError{Column: "amount", Message: "zero amount", Raw: line.Text()}
	}

	row.Balance, row.HasBalance = parseBalance(values[RoleBalance], t.European)
	return row, nil
}
