package parser

import "strings"

// StatementLayout reads one family of statement formats.
type StatementLayout interface {
	// Name identifies the layout (issuer code or "GENERIC").
	Name() string
	// Detect reports whether the document looks like this layout's issuer.
	Detect(lines []Line) bool
	// LocateTable finds the transaction table header.
	LocateTable(lines []Line) (*Table, bool)
	// ParseRow reads one table line as a transaction.
	ParseRow(t *Table, line Line) (RawRow, error)
}

const (
	// detectWindow is how many leading lines issuer detection looks at.
	detectWindow = 80
	// headerWindow bounds the search for a table header.
	headerWindow = 400
)

// issuerLayout recognizes a bank by printed markers (name, IFSC prefix) and its
// table by the exact header captions the bank prints.
type issuerLayout struct {
	name         string
	markers      []string
	signature    []string
	minSignature int
}

func (l issuerLayout) Name() string { return l.name }

func (l issuerLayout) Detect(lines []Line) bool {
	for i, line := range lines {
		if i >= detectWindow {
			break
		}
		text := strings.ToLower(line.Text())
		for _, m := range l.markers {
			if strings.Contains(text, m) {
				return true
			}
		}
	}
	return false
}

func (l issuerLayout) LocateTable(lines []Line) (*Table, bool) {
	want := make(map[string]bool, len(l.signature))
	for _, s := range l.signature {
		want[s] = true
	}

	for i, line := range lines {
		if i >= headerWindow {
			break
		}
		matched := 0
		for _, cell := range line.Cells {
			if want[normalizeHeader(cell.Text)] {
				matched++
			}
		}
		if matched < l.minSignature {
			continue
		}
		roles, _ := headerRoles(line)
		if !roles[RoleDate] || !hasMoneyRole(roles) {
			continue
		}
		return newTable(l.name, lines, i, positionalTolerance(lines)), true
	}
	return nil, false
}

func (l issuerLayout) ParseRow(t *Table, line Line) (RawRow, error) {
	return parseColumnRow(t, line)
}

// genericLayout accepts any header line carrying a date, a description and an
// amount-like column under one of the known synonyms.
type genericLayout struct{}

func (genericLayout) Name() string { return "GENERIC" }

func (genericLayout) Detect([]Line) bool { return true }

func (genericLayout) LocateTable(lines []Line) (*Table, bool) {
	best, bestKnown := -1, 0
	for i, line := range lines {
		if i >= headerWindow {
			break
		}
		roles, known := headerRoles(line)
		if !roles[RoleDate] || !roles[RoleDescription] || !hasMoneyRole(roles) {
			continue
		}
		if known > bestKnown {
			best, bestKnown = i, known
		}
		// The first complete header wins unless a richer one follows right after.
		if best >= 0 && i > best+5 {
			break
		}
	}
	if best < 0 {
		return nil, false
	}
	return newTable("GENERIC", lines, best, positionalTolerance(lines)), true
}

func (genericLayout) ParseRow(t *Table, line Line) (RawRow, error) {
	return parseColumnRow(t, line)
}

// Issuer layouts for the banks whose statements are most common.
var (
	HDFC = issuerLayout{
		name:         "HDFC",
		markers:      []string{"hdfc bank", "hdfcbank", "hdfc0"},
		signature:    []string{"date", "narration", "chq ref no", "value dt", "withdrawal amt", "deposit amt", "closing balance"},
		minSignature: 4,
	}
	ICICI = issuerLayout{
		name:         "ICICI",
		markers:      []string{"icici bank", "icicibank", "icic0"},
		signature:    []string{"s no", "value date", "transaction date", "cheque number", "transaction remarks", "withdrawal amount inr", "deposit amount inr", "balance inr"},
		minSignature: 4,
	}
	SBI = issuerLayout{
		name:         "SBI",
		markers:      []string{"state bank of india", "sbin0", "onlinesbi"},
		signature:    []string{"txn date", "value date", "description", "ref no cheque no", "debit", "credit", "balance"},
		minSignature: 4,
	}
	AXIS = issuerLayout{
		name:         "AXIS",
		markers:      []string{"axis bank", "axisbank", "utib0"},
		signature:    []string{"tran date", "chq no", "particulars", "debit", "credit", "balance", "init br"},
		minSignature: 4,
	}
	KOTAK = issuerLayout{
		name:         "KOTAK",
		markers:      []string{"kotak mahindra", "kotak bank", "kkbk0"},
		signature:    []string{"date", "narration", "chq ref no", "withdrawal dr", "deposit cr", "balance", "amount", "dr cr"},
		minSignature: 4,
	}
	Generic StatementLayout = genericLayout{}
)

// Layouts lists the issuer layouts in detection order.
var Layouts = []StatementLayout{HDFC, ICICI, SBI, AXIS, KOTAK}

// SelectLayout picks the layout for a document: the bank hint when it names a
// known issuer, otherwise the first issuer whose markers appear, otherwise Generic.
func SelectLayout(lines []Line, bankHint string) StatementLayout {
	if bankHint != "" {
		for _, l := range Layouts {
			if strings.EqualFold(l.Name(), bankHint) {
				return l
			}
		}
	}
	for _, l := range Layouts {
		if l.Detect(lines) {
			return l
		}
	}
	return Generic
}

// positionalTolerance is zero for tabular input (integral X) and a few points
// for PDF text, where amounts are right-aligned under their captions.
func positionalTolerance(lines []Line) float64 {
	for _, line := range lines {
		for _, c := range line.Cells {
			if c.X != float64(int64(c.X)) || c.X > 64 {
				return 12
			}
		}
	}
	return 0.25
}
