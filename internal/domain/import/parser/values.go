package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennywise/pkg/money"
)

// dateFormats are the accepted statement date layouts, day first.
var dateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/06",
	"02-01-06",
	"02 Jan 2006",
	"02-Jan-2006",
	"02 Jan 06",
	"02-Jan-06",
	"2006-01-02",
	"02.01.2006",
	"2/1/2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"02 January 2006",
}

// parseDate reads a date cell. Trailing time components are ignored.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	candidates := []string{s}
	fields := strings.Fields(s)
	if len(fields) > 1 {
		candidates = append(candidates, fields[0])
	}
	if len(fields) > 3 {
		candidates = append(candidates, strings.Join(fields[:3], " "))
	}

	for _, c := range candidates {
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, c); err == nil {
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %s", s)
}

var drCrSuffix = regexp.MustCompile(`(?i)\s*(dr|cr)\.?\s*$`)

// parseAmount reads an amount cell, honoring grouping, currency symbols, signs,
// parentheses and a trailing Dr/Cr marker. The marker, if any, is returned
// separately and the amount keeps its printed sign.
func parseAmount(s string, european bool) (decimal.Decimal, Direction, error) {
	s = strings.TrimSpace(s)

	var marker Direction
	if m := drCrSuffix.FindStringSubmatch(s); m != nil {
		if strings.EqualFold(m[1], "dr") {
			marker = Debit
		} else {
			marker = Credit
		}
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	d, err := money.ParseDecimal(s, european)
	if err != nil {
		return decimal.Zero, "", err
	}
	return d, marker, nil
}

// parseMarker reads a separate Dr/Cr column.
func parseMarker(s string) Direction {
	switch strings.ToUpper(strings.Trim(strings.TrimSpace(s), ".")) {
	case "DR", "D", "DEBIT", "WITHDRAWAL":
		return Debit
	case "CR", "C", "CREDIT", "DEPOSIT":
		return Credit
	}
	return ""
}

// parseBalance reads a running balance; a Dr marker means overdrawn.
func parseBalance(s string, european bool) (decimal.Decimal, bool) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, false
	}
	d, marker, err := parseAmount(s, european)
	if err != nil {
		return decimal.Zero, false
	}
	if marker == Debit && d.IsPositive() {
		d = d.Neg()
	}
	return d, true
}

// cleanDescription normalizes whitespace in a transaction description
func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isBlankAmount treats dashes and zeroes as an empty debit/credit cell.
func isBlankAmount(s string) bool {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "--", "0", "0.00", "0,00", "NIL", "nil":
		return true
	}
	return false
}
