// Package sniffer detects the layout of delimited statement exports: the
// delimiter, how many preamble lines precede the header, and whether amounts
// use European separators.
package sniffer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// headerKeywords are captions Indian banks print on their CSV and XLS exports.
var headerKeywords = []string{
	"date", "txn date", "value date", "tran date",
	"narration", "description", "particulars", "remarks", "details",
	"withdrawal", "deposit", "debit", "credit", "amount",
	"balance", "chq", "cheque", "ref no", "dr/cr",
}

// FileConfig holds the detected configuration for a delimited file.
type FileConfig struct {
	Delimiter  rune       // ',', ';', '\t' or '|'
	SkipLines  int        // preamble lines before the header (account details, address)
	Headers    []string   // header captions, trimmed
	SampleRows [][]string // first data rows, for dialect probing
}

// DetectOptions overrides detection.
type DetectOptions struct {
	// HeaderRowIndex is the 0-based header row. -1 auto-detects.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// maxPreamble bounds the header search; bank exports carry up to ~20 lines of
// account details first.
const maxPreamble = 30

// DetectConfig analyzes a delimited file and returns its configuration.
func DetectConfig(data []byte) (*FileConfig, error) {
	return DetectConfigWithOptions(data, nil)
}

// DetectConfigWithOptions analyzes a delimited file with optional overrides.
func DetectConfigWithOptions(data []byte, opts *DetectOptions) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")

	var (
		delimiter rune
		skipLines int
		err       error
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		delimiter = opts.Delimiter
		if delimiter == 0 {
			delimiter, _ = detectDelimiter(cleanLine(lines[skipLines], skipLines == 0))
			if delimiter == 0 {
				return nil, ErrInvalidDelimiter
			}
		}
	} else {
		delimiter, skipLines, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
		if opts != nil && opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		}
	}

	reader := csv.NewReader(strings.NewReader(cleanLine(lines[skipLines], skipLines == 0)))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:  delimiter,
		SkipLines:  skipLines,
		Headers:    headers,
		SampleRows: ReadRecords(data, delimiter, skipLines+1, 10),
	}, nil
}

// ReadRecords reads up to max records (all when max <= 0) beginning at line
// startLine of data. Malformed records are skipped.
func ReadRecords(data []byte, delimiter rune, startLine, max int) [][]string {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	for i := 0; i < startLine; i++ {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
		if max > 0 && len(rows) >= max {
			break
		}
	}
	return rows
}

// findHeaderRow locates the header row and its delimiter. Lines carrying
// header keywords win over lines that merely have many fields.
func findHeaderRow(lines []string) (rune, int, error) {
	keywordIndex, keywordDelimiter, keywordScore := -1, rune(0), 0
	fallbackIndex, fallbackDelimiter, fallbackCount := -1, rune(0), 0

	for i, line := range lines {
		if i > maxPreamble {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		lower := strings.ToLower(line)
		matches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}

		if matches >= 2 {
			score := count*10 + matches
			if score > keywordScore {
				keywordIndex, keywordDelimiter, keywordScore = i, delimiter, score
			}
			continue
		}
		if count > fallbackCount {
			fallbackIndex, fallbackDelimiter, fallbackCount = i, delimiter, count
		}
	}

	if keywordIndex >= 0 {
		return keywordDelimiter, keywordIndex, nil
	}
	if fallbackIndex >= 0 && fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIndex, nil
	}
	return 0, 0, ErrNoHeadersFound
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

// detectDelimiter counts separators outside quoted sections.
func detectDelimiter(line string) (rune, int) {
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ',' || r == ';' || r == '\t' || r == '|'):
			counts[r]++
		}
	}

	best, bestCount := rune(0), 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best, bestCount
}

// Dialect is the inferred number formatting of a file.
type Dialect struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
	European           bool
	// Confidence is the share of amount samples that agreed, 0.5 when none decided.
	Confidence float64
}

// ProbeDialect inspects every cell of the sample rows that looks like an
// amount and votes on the decimal separator.
func ProbeDialect(sampleRows [][]string) Dialect {
	dialect := Dialect{DecimalSeparator: '.', ThousandsSeparator: ',', Confidence: 0.5}

	european, us := 0, 0
	for _, row := range sampleRows {
		for _, cell := range row {
			if !isAmountLike(cell) {
				continue
			}
			switch hint := analyzeAmountFormat(cell); {
			case hint > 0:
				european++
			case hint < 0:
				us++
			}
			if strings.Contains(cell, "€") {
				european++
			}
		}
	}

	if european > us {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.European = true
	}
	if total := european + us; total > 0 {
		winner := max(european, us)
		dialect.Confidence = float64(winner) / float64(total)
	}
	return dialect
}

// isAmountLike skips dates, references and text when probing.
func isAmountLike(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" || strings.ContainsAny(s, "/:") {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(",.-+ ₹€$£()", r):
		case r == 'R' || r == 's' || r == 'D' || r == 'r' || r == 'C':
		default:
			return false
		}
	}
	return digits > 0 && strings.ContainsAny(s, ",.")
}

// analyzeAmountFormat returns >0 for European, <0 for US/Indian, 0 when ambiguous.
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			return 1
		}
		return -1
	case comma >= 0:
		if len(cleaned)-comma-1 <= 2 {
			return 1
		}
		return 0
	case dot >= 0:
		if len(cleaned)-dot-1 <= 2 {
			return -1
		}
		return 0
	}
	return 0
}
