package acquirer

import "strings"

const (
	BankICICI    = "ICICI"
	BankHDFC     = "HDFC"
	BankAxis     = "AXIS"
	BankSBI      = "SBI"
	BankKotak    = "KOTAK"
	BankYes      = "YES"
	BankIndusInd = "INDUSIND"
	BankBOB      = "BOB"
	BankPNB      = "PNB"
	BankCanara   = "CANARA"
	BankUnion    = "UNION"
	BankIDBI     = "IDBI"
	BankUnknown  = "UNKNOWN"
)

type bankKeywords struct {
	bank     string
	keywords []string
}

// bankTable is checked in order; the first keyword found wins.
var bankTable = []bankKeywords{
	{BankICICI, []string{"icici", "icicibank"}},
	{BankHDFC, []string{"hdfc", "hdfcbank"}},
	{BankAxis, []string{"axis", "axisbank"}},
	{BankSBI, []string{"sbi", "onlinesbi", "statebankofindia"}},
	{BankKotak, []string{"kotak", "kotakbank"}},
	{BankYes, []string{"yesbank", "yes bank"}},
	{BankIndusInd, []string{"indusind"}},
	{BankBOB, []string{"bankofbaroda", "bob"}},
	{BankPNB, []string{"pnb", "pnbindia"}},
	{BankCanara, []string{"canara", "canarabank"}},
	{BankUnion, []string{"unionbank"}},
	{BankIDBI, []string{"idbi", "idbibank"}},
}

// statementKeywords form the subject allow-list for statement mails.
var statementKeywords = []string{
	"statement",
	"e-statement",
	"estatement",
	"account statement",
	"bank statement",
	"monthly statement",
}

// DetectBank finds the issuing bank from sender and subject.
func DetectBank(from, subject string) string {
	haystack := strings.ToLower(from + " " + subject)
	for _, entry := range bankTable {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				return entry.bank
			}
		}
	}
	return BankUnknown
}

// NormalizeBank maps a user-supplied bank name onto the table codes.
func NormalizeBank(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, entry := range bankTable {
		if n == entry.bank {
			return n
		}
	}
	return DetectBank(name, "")
}

// LooksLikeStatement reports whether a message's sender or subject is on the
// statement allow-list. bankHint, when set, also matches.
func LooksLikeStatement(from, subject, bankHint string) bool {
	s := strings.ToLower(subject)
	for _, kw := range statementKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	if bankHint != "" && strings.Contains(strings.ToLower(from+" "+subject), strings.ToLower(bankHint)) {
		return true
	}
	return false
}
