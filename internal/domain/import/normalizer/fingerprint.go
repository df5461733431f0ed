package normalizer

import (
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies a transaction for deduplication: BLAKE2b-256 over
// owner, posting date, signed amount at two decimals and the normalized
// description.
func Fingerprint(ownerID uuid.UUID, date time.Time, amount decimal.Decimal, description string) string {
	key := strings.Join([]string{
		ownerID.String(),
		date.Format("2006-01-02"),
		amount.StringFixed(2),
		NormalizeDescription(description),
	}, "|")

	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// NormalizeDescription upper-cases, drops everything that is not a letter or
// digit and collapses whitespace.
func NormalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
