package parser

import (
	"sort"
	"strings"
	"unicode"
)

// Role is what a table column holds.
type Role int

const (
	RoleIgnore Role = iota
	RoleDate
	RoleDescription
	RoleDebit
	RoleCredit
	RoleAmount
	RoleMarker
	RoleBalance
)

func (r Role) String() string {
	switch r {
	case RoleDate:
		return "date"
	case RoleDescription:
		return "description"
	case RoleDebit:
		return "debit"
	case RoleCredit:
		return "credit"
	case RoleAmount:
		return "amount"
	case RoleMarker:
		return "dr/cr"
	case RoleBalance:
		return "balance"
	}
	return "ignore"
}

type roleSynonyms struct {
	role     Role
	synonyms []string
}

// headerSynonyms is checked in order; the first match wins, so the more
// specific names (value date, withdrawal amount) come before the generic ones.
var headerSynonyms = []roleSynonyms{
	{RoleIgnore, []string{"value date", "value dt", "chq", "cheque", "ref", "s no", "sl no", "sr no", "serial", "init br", "branch", "tran id", "transaction id"}},
	{RoleDate, []string{"date", "txn date", "tran date", "transaction date", "trans date", "posting date", "post date"}},
	{RoleDescription, []string{"narration", "description", "particulars", "transaction remarks", "remarks", "details", "transaction details", "transaction description", "beneficiary"}},
	{RoleDebit, []string{"withdrawal", "withdrawals", "debit", "debits", "dr amount", "paid out", "money out"}},
	{RoleCredit, []string{"deposit", "deposits", "credit", "credits", "cr amount", "paid in", "money in"}},
	{RoleBalance, []string{"balance", "closing balance", "available balance", "running balance"}},
	{RoleAmount, []string{"amount", "transaction amount", "txn amount"}},
	{RoleMarker, []string{"dr cr", "cr dr", "dr", "cr", "type"}},
}

// normalizeHeader lower-cases and reduces punctuation to single spaces so that
// "Chq./Ref.No." and "chq ref no" compare equal.
func normalizeHeader(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// roleOf classifies a header cell. ok is false when the text is not a known header.
func roleOf(header string) (Role, bool) {
	h := normalizeHeader(header)
	if h == "" {
		return RoleIgnore, false
	}
	for _, rs := range headerSynonyms {
		for _, syn := range rs.synonyms {
			if h == syn || strings.HasPrefix(h, syn+" ") {
				return rs.role, true
			}
		}
	}
	return RoleIgnore, false
}

// Column is one header cell and the role it was classified as.
type Column struct {
	Role   Role
	Header string
	X      float64
	W      float64
}

// Table is a located transaction table: its header and the line range holding rows.
type Table struct {
	Layout     string
	HeaderLine int
	Start      int
	End        int
	Columns    []Column
	European   bool
	// Tolerance is how far left of a header a cell may start and still belong to it.
	Tolerance float64
	header    string
}

// Has reports whether any column carries the role.
func (t *Table) Has(role Role) bool {
	for _, c := range t.Columns {
		if c.Role == role {
			return true
		}
	}
	return false
}

// columnFor returns the column a cell falls into. Text is left-aligned under
// its caption, so it goes to the right-most column starting at or before it.
// On positional pages numbers are right-aligned, so they go to the column whose
// right edge is closest.
func (t *Table) columnFor(cell Cell) Column {
	if t.Tolerance > 1 && looksNumeric(cell.Text) {
		right := cell.X + cell.W
		chosen, best := t.Columns[0], -1.0
		for _, c := range t.Columns {
			d := right - (c.X + c.W)
			if d < 0 {
				d = -d
			}
			if best < 0 || d < best {
				chosen, best = c, d
			}
		}
		return chosen
	}

	chosen := t.Columns[0]
	for _, c := range t.Columns {
		if c.X <= cell.X+t.Tolerance {
			chosen = c
		}
	}
	return chosen
}

// looksNumeric reports whether text is an amount such as "1,23,456.78 Dr".
func looksNumeric(text string) bool {
	s := strings.TrimSpace(drCrSuffix.ReplaceAllString(text, ""))
	// 01-04-2024 is a date, not an amount.
	if strings.Contains(strings.Trim(s, "-+ "), "-") {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(",.-+() ₹", r):
		default:
			return false
		}
	}
	return digits > 0
}

// assign maps a line's cells to roles. extra reports cells outside the
// description column.
func (t *Table) assign(line Line) (values map[Role]string, extra bool) {
	values = make(map[Role]string, len(t.Columns))
	for _, cell := range line.Cells {
		text := strings.TrimSpace(cell.Text)
		if text == "" {
			continue
		}
		col := t.columnFor(cell)
		if col.Role != RoleDescription {
			extra = true
		}
		if prev, ok := values[col.Role]; ok && prev != "" {
			values[col.Role] = prev + " " + text
		} else {
			values[col.Role] = text
		}
	}
	return values, extra
}

// isHeaderRepeat reports whether line is the table header printed again, as
// happens at the top of every PDF page.
func (t *Table) isHeaderRepeat(line Line) bool {
	return normalizeHeader(line.Text()) == t.header
}

// newTable builds a table whose header is lines[idx].
func newTable(layout string, lines []Line, idx int, tolerance float64) *Table {
	header := lines[idx]
	cols := make([]Column, 0, len(header.Cells))
	for _, cell := range header.Cells {
		role, _ := roleOf(cell.Text)
		cols = append(cols, Column{Role: role, Header: strings.TrimSpace(cell.Text), X: cell.X, W: cell.W})
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].X < cols[j].X })

	end := len(lines)
	for i := idx + 1; i < len(lines); i++ {
		if isTableEnd(lines[i]) {
			end = i
			break
		}
	}

	return &Table{
		Layout:     layout,
		HeaderLine: idx,
		Start:      idx + 1,
		End:        end,
		Columns:    cols,
		Tolerance:  tolerance,
		header:     normalizeHeader(header.Text()),
	}
}

// headerRoles summarizes the roles present on a candidate header line.
func headerRoles(line Line) (roles map[Role]bool, known int) {
	roles = make(map[Role]bool)
	for _, cell := range line.Cells {
		if role, ok := roleOf(cell.Text); ok {
			roles[role] = true
			known++
		}
	}
	return roles, known
}

func hasMoneyRole(roles map[Role]bool) bool {
	return roles[RoleDebit] || roles[RoleCredit] || roles[RoleAmount]
}

var tableEndMarkers = []string{
	"statement summary",
	"end of statement",
	"end of the statement",
	"account summary",
}

func isTableEnd(line Line) bool {
	text := strings.ToLower(line.Text())
	for _, m := range tableEndMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

var noiseMarkers = []string{
	"opening balance",
	"closing balance",
	"brought forward",
	"carried forward",
	"b/f",
	"c/f",
	"page ",
	"computer generated",
	"continued",
}

// isNoise reports lines inside the table region that are neither rows nor
// continuations: page footers and balance carry-over lines.
func isNoise(line Line) bool {
	text := strings.ToLower(strings.TrimSpace(line.Text()))
	if text == "" {
		return true
	}
	for _, m := range noiseMarkers {
		if strings.HasPrefix(text, m) || (len(m) > 6 && strings.Contains(text, m)) {
			return true
		}
	}
	return false
}
