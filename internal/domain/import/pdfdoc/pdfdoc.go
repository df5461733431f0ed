// Package pdfdoc opens statement PDFs. pdfcpu checks passwords and removes the
// encryption (RC4, AES-128 and AES-256); ledongthuc/pdf reads positional text
// lines from the decrypted bytes.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/FACorreiaa/pennywise/internal/domain/import/parser"
)

var (
	// ErrMalformed means the bytes are not a readable PDF.
	ErrMalformed = errors.New("malformed pdf")
	// ErrWrongPassword means the password did not decrypt the document.
	ErrWrongPassword = errors.New("wrong pdf password")
)

var configOnce sync.Once

// configuration returns a pdfcpu configuration that never touches the user
// config directory and writes classic xref tables, which ledongthuc/pdf reads
// most reliably.
func configuration(password string) *model.Configuration {
	configOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Reader is the PDF backend used by the import pipeline. It is stateless.
type Reader struct{}

// Probe reports whether the document needs a password. A document whose user
// password is empty counts as unencrypted.
func (Reader) Probe(data []byte) (encrypted bool, err error) {
	_, err = read(data, "")
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrWrongPassword):
		return true, nil
	default:
		return false, err
	}
}

// Unlock checks a single password candidate.
func (Reader) Unlock(data []byte, password string) error {
	_, err := read(data, password)
	return err
}

// Lines extracts the text of every page as positional lines, top to bottom.
func (Reader) Lines(data []byte, password string) (lines []parser.Line, err error) {
	plain, err := decrypt(data, password)
	if err != nil {
		return nil, err
	}

	// ledongthuc/pdf panics on some damaged content streams.
	defer func() {
		if p := recover(); p != nil {
			lines, err = nil, fmt.Errorf("%w: %v", ErrMalformed, p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(plain), int64(len(plain)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrMalformed, i, err)
		}
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })

		for _, row := range rows {
			cells := mergeFragments(row.Content)
			if len(cells) == 0 {
				continue
			}
			lines = append(lines, parser.Line{Page: i, Y: float64(row.Position), Cells: cells})
		}
	}
	return lines, nil
}

// read parses the document with exactly one password.
func read(data []byte, password string) (*model.Context, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), configuration(password))
	if err != nil {
		return nil, classify(err)
	}
	return ctx, nil
}

// decrypt returns an unencrypted copy of the document. Plain documents are
// returned as they are.
func decrypt(data []byte, password string) ([]byte, error) {
	ctx, err := read(data, password)
	if err != nil {
		return nil, err
	}
	if ctx.Encrypt == nil {
		return data, nil
	}

	var buf bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &buf, configuration(password)); err != nil {
		return nil, classify(err)
	}
	return buf.Bytes(), nil
}

func classify(err error) error {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return ErrWrongPassword
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// mergeFragments joins glyph runs into cells. Runs closer than a quarter of
// the font size are one word; up to about one em they are words of the same
// cell; wider gaps start a new cell.
func mergeFragments(texts pdf.TextHorizontal) []parser.Cell {
	sorted := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].X < sorted[b].X })

	var (
		cells []parser.Cell
		sb    strings.Builder
		start float64
		end   float64
	)
	flush := func() {
		if text := strings.TrimSpace(sb.String()); text != "" {
			cells = append(cells, parser.Cell{X: start, W: end - start, Text: text})
		}
		sb.Reset()
	}

	for i, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = 8
		}
		gap := t.X - end
		switch {
		case i == 0:
			start = t.X
		case gap > size*1.2:
			flush()
			start = t.X
		case gap > size*0.25:
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		if e := t.X + t.W; e > end || i == 0 {
			end = e
		}
	}
	flush()
	return cells
}
