// Package password recovers the password of an encrypted statement from the
// hints a user gave (date of birth, mobile, account, PAN) and the conventions
// of the issuing bank.
package password

import (
	"strings"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
)

// convention is a bank-specific password shape.
type convention int

const (
	dobDDMMMYYYYLower convention = iota
	dobDDMMYY
	panLast4
	mobileLast4
	accountLast4
	panFull
)

// bankConventions lists what each issuer is known to use beyond the common
// DOB/mobile/account/PAN forms.
var bankConventions = map[string][]convention{
	acquirer.BankICICI:    {dobDDMMMYYYYLower},
	acquirer.BankHDFC:     {panLast4},
	acquirer.BankAxis:     {mobileLast4},
	acquirer.BankSBI:      {accountLast4},
	acquirer.BankKotak:    {dobDDMMYY, mobileLast4},
	acquirer.BankIndusInd: {panFull},
}

// Candidates returns the passwords to try, in order, without duplicates:
// the custom password, DOB as DDMMYYYY then DDMMYY, mobile last 4, account
// last 4, PAN, case variants, bank conventions, loose variants and finally
// the empty password.
func Candidates(h credentials.PasswordHints, bank string) []string {
	var c candidateList

	c.add(h.CustomPassword)

	var derived []string
	if !h.DateOfBirth.IsZero() {
		derived = append(derived, h.DateOfBirth.Format("02012006"), h.DateOfBirth.Format("020106"))
	}
	derived = append(derived, last4(h.MobileNumber), last4(h.AccountNumber), h.PAN)
	for _, d := range derived {
		c.add(d)
	}
	for _, d := range derived {
		c.add(strings.ToUpper(d))
		c.add(strings.ToLower(d))
	}

	for _, conv := range bankConventions[bank] {
		c.add(apply(conv, h))
	}

	// Shapes seen across smaller issuers.
	if !h.DateOfBirth.IsZero() {
		c.add(strings.ToLower(h.DateOfBirth.Format("02Jan2006")))
		c.add(strings.ToUpper(h.DateOfBirth.Format("02Jan2006")))
		c.add(h.DateOfBirth.Format("2006"))
	}
	c.add(h.MobileNumber)
	c.add(last4(h.PAN))

	c.list = append(c.list, "")
	return c.list
}

func apply(conv convention, h credentials.PasswordHints) string {
	switch conv {
	case dobDDMMMYYYYLower:
		if h.DateOfBirth.IsZero() {
			return ""
		}
		return strings.ToLower(h.DateOfBirth.Format("02Jan2006"))
	case dobDDMMYY:
		if h.DateOfBirth.IsZero() {
			return ""
		}
		return h.DateOfBirth.Format("020106")
	case panLast4:
		return last4(h.PAN)
	case mobileLast4:
		return last4(h.MobileNumber)
	case accountLast4:
		return last4(h.AccountNumber)
	case panFull:
		return h.PAN
	}
	return ""
}

// candidateList keeps first-occurrence order and drops empties and repeats.
type candidateList struct {
	list []string
	seen map[string]bool
}

func (c *candidateList) add(s string) {
	if s == "" {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	c.list = append(c.list, s)
}

func last4(s string) string {
	if len(s) < 4 {
		return s
	}
	return s[len(s)-4:]
}
