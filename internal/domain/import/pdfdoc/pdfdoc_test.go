package pdfdoc

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
	"github.com/FACorreiaa/pennywise/internal/domain/import/parser"
	"github.com/FACorreiaa/pennywise/internal/domain/import/password"
)

const statementPassword = "15081990"

func loadStatement(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "statement.pdf"))
	require.NoError(t, err)
	return data
}

// encryptStatement protects the plain fixture the way issuers do: a user
// password for opening and a separate owner password.
func encryptStatement(t *testing.T, plain []byte, aes bool, keyLength int) []byte {
	t.Helper()
	conf := configuration("")
	conf.UserPW = statementPassword
	conf.OwnerPW = "issuer-owner-secret"
	conf.EncryptUsingAES = aes
	conf.EncryptKeyLength = keyLength

	var buf bytes.Buffer
	require.NoError(t, api.Encrypt(bytes.NewReader(plain), &buf, conf))
	return buf.Bytes()
}

func assertStatementRows(t *testing.T, lines []parser.Line) {
	t.Helper()
	stmt, err := parser.Parse(lines, parser.Options{})
	require.NoError(t, err)

	rows, skipped, err := parser.Collect(stmt.Rows())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 3)

	want := []struct {
		date   string
		amount string
		dir    parser.Direction
	}{
		{"2024-04-01", "-450", parser.Debit},
		{"2024-04-02", "85000", parser.Credit},
		{"2024-04-03", "-1299", parser.Debit},
	}
	for i, w := range want {
		assert.Equal(t, w.date, rows[i].Date.Format("2006-01-02"))
		assert.True(t, decimal.RequireFromString(w.amount).Equal(rows[i].Amount), "row %d amount %s", i, rows[i].Amount)
		assert.Equal(t, w.dir, rows[i].Direction)
	}
	assert.Equal(t, "SALARY APRIL 2024", rows[1].Description)
}

func TestProbe_Garbage(t *testing.T) {
	var r Reader

	_, err := r.Probe([]byte("this is not a pdf at all"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = r.Probe(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	assert.ErrorIs(t, r.Unlock([]byte("%PDF-1.4\ngarbage"), "secret"), ErrMalformed)

	_, err = r.Lines([]byte("junk"), "")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReader_PlainStatement(t *testing.T) {
	var r Reader
	data := loadStatement(t)

	encrypted, err := r.Probe(data)
	require.NoError(t, err)
	assert.False(t, encrypted)

	lines, err := r.Lines(data, "")
	require.NoError(t, err)
	assertStatementRows(t, lines)
}

func TestReader_EncryptedStatements(t *testing.T) {
	plain := loadStatement(t)

	tests := []struct {
		name      string
		aes       bool
		keyLength int
	}{
		{"rc4 128", false, 128},
		{"aes 128", true, 128},
		{"aes 256", true, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reader
			data := encryptStatement(t, plain, tt.aes, tt.keyLength)

			encrypted, err := r.Probe(data)
			require.NoError(t, err)
			assert.True(t, encrypted)

			assert.ErrorIs(t, r.Unlock(data, "wrong"), ErrWrongPassword)
			require.NoError(t, r.Unlock(data, statementPassword))

			_, err = r.Lines(data, "wrong")
			assert.ErrorIs(t, err, ErrWrongPassword)

			lines, err := r.Lines(data, statementPassword)
			require.NoError(t, err)
			assertStatementRows(t, lines)
		})
	}
}

func TestResolver_UnlocksWithDateOfBirth(t *testing.T) {
	data := encryptStatement(t, loadStatement(t), true, 256)

	var r Reader
	encrypted, err := r.Probe(data)
	require.NoError(t, err)

	doc := &acquirer.Document{Name: "april.pdf", Kind: acquirer.KindPDF, Data: data, Encrypted: encrypted}
	hints := credentials.PasswordHints{
		DateOfBirth: time.Date(1990, time.August, 15, 0, 0, 0, 0, time.UTC),
		PAN:         "ABCDE1234F",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, password.NewResolver(r, logger).Resolve(context.Background(), doc, hints))
	assert.Equal(t, statementPassword, doc.Password)
	assert.Equal(t, acquirer.StatusUnlocked, doc.Status)

	lines, err := r.Lines(doc.Data, doc.Password)
	require.NoError(t, err)
	assertStatementRows(t, lines)
}

func TestResolver_ExhaustedOnRealDocument(t *testing.T) {
	data := encryptStatement(t, loadStatement(t), false, 128)
	doc := &acquirer.Document{Name: "may.pdf", Kind: acquirer.KindPDF, Data: data, Encrypted: true}
	hints := credentials.PasswordHints{MobileNumber: "9876543210"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := password.NewResolver(Reader{}, logger).Resolve(context.Background(), doc, hints)
	assert.ErrorIs(t, err, password.ErrPasswordExhausted)
	assert.Empty(t, doc.Password)
}

func TestMergeFragments(t *testing.T) {
	row := pdf.TextHorizontal{
		{FontSize: 8, X: 40, W: 5, S: "0"},
		{FontSize: 8, X: 45, W: 5, S: "1"},
		{FontSize: 8, X: 110, W: 20, S: "UPI"},
		{FontSize: 8, X: 133, W: 30, S: "ZOMATO"},
		{FontSize: 8, X: 320, W: 40, S: "450.00"},
		{FontSize: 8, X: 200, W: 0, S: ""},
	}

	cells := mergeFragments(row)
	require.Len(t, cells, 3)

	assert.Equal(t, "01", cells[0].Text)
	assert.Equal(t, 40.0, cells[0].X)
	assert.Equal(t, 10.0, cells[0].W)
	assert.Equal(t, "UPI ZOMATO", cells[1].Text)
	assert.Equal(t, 53.0, cells[1].W)
	assert.Equal(t, "450.00", cells[2].Text)
	assert.Equal(t, 360.0, cells[2].X+cells[2].W)
}
