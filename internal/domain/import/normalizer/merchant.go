// Package normalizer turns parsed statement rows into ledger transactions:
// merchant cleanup, fingerprinting and keyword categorization.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
)

// MerchantInfo contains normalized merchant information
type MerchantInfo struct {
	OriginalName   string `json:"original_name"`
	NormalizedName string `json:"normalized_name"`
	Known          bool   `json:"known"`
}

// MerchantPattern maps a raw spelling onto a canonical merchant name.
type MerchantPattern struct {
	Pattern *regexp.Regexp
	Name    string
}

// MerchantSanitizer normalizes merchant names
type MerchantSanitizer struct {
	patterns []MerchantPattern
}

// NewMerchantSanitizer creates a new sanitizer with common merchant patterns
func NewMerchantSanitizer() *MerchantSanitizer {
	return &MerchantSanitizer{
		patterns: defaultMerchantPatterns(),
	}
}

// Sanitize extracts the merchant from a raw statement description.
func (s *MerchantSanitizer) Sanitize(rawDescription string) MerchantInfo {
	result := MerchantInfo{
		OriginalName:   rawDescription,
		NormalizedName: rawDescription,
	}

	cleaned := cleanMerchantName(rawDescription)

	// Known merchants are matched against the whole description too, since
	// a UPI handle like swiggy@icici may be the only place the name appears.
	for _, pattern := range s.patterns {
		if pattern.Pattern.MatchString(cleaned) || pattern.Pattern.MatchString(strings.ToUpper(rawDescription)) {
			result.NormalizedName = pattern.Name
			result.Known = true
			return result
		}
	}

	result.NormalizedName = titleCase(cleaned)
	return result
}

// AddPattern adds a custom merchant pattern
func (s *MerchantSanitizer) AddPattern(pattern string, name string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, MerchantPattern{Pattern: re, Name: name})
	return nil
}

// railPrefixes are payment rails and channel markers banks prepend to the
// counterparty.
var railPrefixes = map[string]bool{
	"UPI": true, "NEFT": true, "IMPS": true, "RTGS": true, "POS": true,
	"ACH": true, "NACH": true, "ECS": true, "ATM": true, "MMT": true,
	"INB": true, "MB": true, "BIL": true, "TRF": true, "TO": true,
	"BY": true, "P2M": true, "P2A": true, "DR": true, "CR": true,
}

// noiseTokens never carry the merchant name.
var noiseTokens = map[string]bool{
	"TXN": true, "REF": true, "NO": true, "UPI": true, "NEFT": true,
	"IMPS": true, "RTGS": true, "POS": true, "PAYMENT": true, "FROM": true,
	"PHONE": true, "TRANSFER": true,
}

var (
	ifscPattern     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	trailingDigits  = regexp.MustCompile(`\s+\d+$`)
	spacePattern    = regexp.MustCompile(`\s+`)
	segmentSplitter = regexp.MustCompile(`[/\-|:*]+`)
)

// cleanMerchantName strips rail prefixes, UPI handles, IFSC codes and
// reference numbers and returns the upper-cased remainder.
func cleanMerchantName(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	segments := segmentSplitter.Split(upper, -1)

	// "UPI/1234/SWIGGY/swiggy@icici/Payment": the merchant is the first
	// meaningful segment after the rail.
	if len(segments) > 1 && railPrefixes[strings.TrimSpace(segments[0])] {
		for _, seg := range segments[1:] {
			if name := cleanTokens(seg); name != "" {
				return name
			}
		}
	}

	return cleanTokens(strings.Join(segments, " "))
}

func cleanTokens(s string) string {
	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(kept) == 0 && railPrefixes[tok] {
			continue
		}
		if noiseTokens[tok] || isReference(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	result := strings.Join(kept, " ")
	result = trailingDigits.ReplaceAllString(result, "")
	result = spacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// isReference reports tokens that are transaction references, UPI handles or
// IFSC codes rather than names.
func isReference(tok string) bool {
	if strings.Contains(tok, "@") || ifscPattern.MatchString(tok) {
		return true
	}
	digits, letters := 0, 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return true
	}
	return digits >= 4
}

// titleCase converts a string to title case
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}

// defaultMerchantPatterns returns common merchant spellings seen on Indian statements
func defaultMerchantPatterns() []MerchantPattern {
	patterns := []MerchantPattern{
		// Food delivery and restaurants
		{regexp.MustCompile(`SWIGGY|BUNDL TECHNOLOGIES`), "Swiggy"},
		{regexp.MustCompile(`ZOMATO`), "Zomato"},
		{regexp.MustCompile(`DOMINO`), "Domino's"},
		{regexp.MustCompile(`MC\s*DONALD`), "McDonald's"},
		{regexp.MustCompile(`STARBUCKS`), "Starbucks"},

		// Groceries
		{regexp.MustCompile(`BIG\s*BASKET|SUPERMARKET GROCERY SUPPLIES`), "BigBasket"},
		{regexp.MustCompile(`BLINKIT|GROFERS`), "Blinkit"},
		{regexp.MustCompile(`ZEPTO|KIRANAKART`), "Zepto"},
		{regexp.MustCompile(`D\s*MART|AVENUE SUPERMARTS`), "DMart"},

		// Transport (UBER EATS does not operate in India; plain UBER is rides)
		{regexp.MustCompile(`\bUBER\b`), "Uber"},
		{regexp.MustCompile(`\bOLA\b|OLACABS|ANI TECHNOLOGIES`), "Ola"},
		{regexp.MustCompile(`RAPIDO|ROPPEN`), "Rapido"},
		{regexp.MustCompile(`IRCTC`), "IRCTC"},
		{regexp.MustCompile(`MAKE\s*MY\s*TRIP`), "MakeMyTrip"},

		// Shopping
		{regexp.MustCompile(`AMAZON|AMZN`), "Amazon"},
		{regexp.MustCompile(`FLIPKART`), "Flipkart"},
		{regexp.MustCompile(`MYNTRA`), "Myntra"},
		{regexp.MustCompile(`NYKAA`), "Nykaa"},

		// Telecom and utilities
		{regexp.MustCompile(`RELIANCE\s*JIO|\bJIO\b`), "Jio"},
		{regexp.MustCompile(`AIRTEL`), "Airtel"},
		{regexp.MustCompile(`TATA\s*POWER`), "Tata Power"},
		{regexp.MustCompile(`BESCOM`), "BESCOM"},

		// Subscriptions and entertainment
		{regexp.MustCompile(`NETFLIX`), "Netflix"},
		{regexp.MustCompile(`SPOTIFY`), "Spotify"},
		{regexp.MustCompile(`HOTSTAR|DISNEY`), "Disney+ Hotstar"},
		{regexp.MustCompile(`YOUTUBE`), "YouTube"},
		{regexp.MustCompile(`BOOK\s*MY\s*SHOW`), "BookMyShow"},

		// Health
		{regexp.MustCompile(`APOLLO`), "Apollo"},
		{regexp.MustCompile(`PRACTO`), "Practo"},

		// Wallets
		{regexp.MustCompile(`PHONEPE`), "PhonePe"},
		{regexp.MustCompile(`PAYTM`), "Paytm"},
	}
	return patterns
}
