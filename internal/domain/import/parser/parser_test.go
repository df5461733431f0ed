package parser

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func parseCSV(t *testing.T, data string, hint string) (*Statement, []RawRow, int, error) {
	t.Helper()
	lines, european, err := FromCSV([]byte(data))
	require.NoError(t, err)

	stmt, err := Parse(lines, Options{BankHint: hint, European: european})
	require.NoError(t, err)

	rows, skipped, err := Collect(stmt.Rows())
	return stmt, rows, skipped, err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertRow(t *testing.T, row RawRow, date, desc, amount string, dir Direction) {
	t.Helper()
	assert.Equal(t, date, row.Date.Format("2006-01-02"))
	assert.Equal(t, desc, row.Description)
	assert.True(t, dec(amount).Equal(row.Amount), "amount: got %s want %s", row.Amount, amount)
	assert.Equal(t, dir, row.Direction)
}

func TestParse_HDFCExport(t *testing.T) {
	data := "HDFC BANK Ltd.\n" +
		"Statement of account\n" +
		"Date,Narration,Chq./Ref.No.,Value Dt,Withdrawal Amt.,Deposit Amt.,Closing Balance\n" +
		"01/04/24,UPI-SWIGGY-1234567890-swiggy@icici,0000412345,01/04/24,450.00,,10550.00\n" +
		"02/04/24,SALARY APRIL 2024,0000412346,02/04/24,,\"85,000.00\",\"95,550.00\"\n" +
		"03/04/24,POS 4321XXXXXX1234 AMAZON,0000412347,03/04/24,\"1,299.00\",,\"94,251.00\"\n"

	stmt, rows, skipped, err := parseCSV(t, data, "")
	require.NoError(t, err)

	assert.Equal(t, "HDFC", stmt.Layout.Name())
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 3)

	assertRow(t, rows[0], "2024-04-01", "UPI-SWIGGY-1234567890-swiggy@icici", "-450", Debit)
	assert.True(t, rows[0].HasBalance)
	assert.True(t, dec("10550").Equal(rows[0].Balance))
	assertRow(t, rows[1], "2024-04-02", "SALARY APRIL 2024", "85000", Credit)
	assertRow(t, rows[2], "2024-04-03", "POS 4321XXXXXX1234 AMAZON", "-1299", Debit)
}

func TestParse_MarkerContinuationAndBalanceDelta(t *testing.T) {
	data := "Date,Description,Amount,Dr/Cr,Balance\n" +
		"05/04/2024,NEFT CR-ACME CORP,\"50,000.00\",CR,\"60,000.00\"\n" +
		"06/04/2024,UPI/SWIGGY/ORDER,250.00,DR,\"59,750.00\"\n" +
		",FOOD ORDER 991,,,\n" +
		"07/04/2024,ATM WDL,\"2,000.00\",,\"57,750.00\"\n" +
		"08/04/2024,INTEREST,12.50,,\"57,762.50\"\n"

	stmt, rows, skipped, err := parseCSV(t, data, "")
	require.NoError(t, err)

	assert.Equal(t, "GENERIC", stmt.Layout.Name())
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 4)

	assertRow(t, rows[0], "2024-04-05", "NEFT CR-ACME CORP", "50000", Credit)
	assertRow(t, rows[1], "2024-04-06", "UPI/SWIGGY/ORDER FOOD ORDER 991", "-250", Debit)
	assertRow(t, rows[2], "2024-04-07", "ATM WDL", "-2000", Debit)
	assertRow(t, rows[3], "2024-04-08", "INTEREST", "12.5", Credit)
}

func TestParse_MalformedRowsAreSkipped(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for i := 1; i <= 50; i++ {
		date := fmt.Sprintf("%02d/05/2024", i%28+1)
		amount := fmt.Sprintf("-%d.00", 100+i)
		switch i {
		case 10:
			date = "31/13/2024"
		case 20:
			amount = "abc"
		}
		fmt.Fprintf(&b, "%s,Payment %d,%s\n", date, i, amount)
	}

	_, rows, skipped, err := parseCSV(t, b.String(), "")
	require.NoError(t, err)

	assert.Len(t, rows, 48)
	assert.Equal(t, 2, skipped)
	for _, r := range rows {
		assert.Equal(t, Debit, r.Direction)
	}
}

func TestParse_RowErrorsCarryLine(t *testing.T) {
	data := "Date,Description,Amount\n01/04/2024,Tea,12.00\nnot-a-date,Coffee,15.00\n"
	lines, _, err := FromCSV([]byte(data))
	require.NoError(t, err)

	stmt, err := Parse(lines, Options{})
	require.NoError(t, err)

	var rowErr *RowError
	for _, err := range stmt.Rows() {
		if err != nil {
			require.ErrorAs(t, err, &rowErr)
		}
	}
	require.NotNil(t, rowErr)
	assert.Equal(t, 2, rowErr.Line)
	assert.Equal(t, "date", rowErr.Column)
}

func TestParse_NoTable(t *testing.T) {
	_, err := Parse(nil, Options{})
	assert.ErrorIs(t, err, ErrNoTable)

	lines := []Line{
		{Cells: []Cell{{X: 0, Text: "Dear customer"}}},
		{Cells: []Cell{{X: 0, Text: "Your statement is attached"}}},
	}
	_, err = Parse(lines, Options{})
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestParse_NoRows(t *testing.T) {
	data := "Date,Description,Amount\nsoon,Nothing,n/a\nlater,Still nothing,n/a\n"

	_, rows, skipped, err := parseCSV(t, data, "")
	assert.ErrorIs(t, err, ErrNoRows)
	assert.Empty(t, rows)
	assert.Equal(t, 2, skipped)
}

func TestParse_EuropeanCSV(t *testing.T) {
	data := "Date;Description;Amount\n01.04.2024;Rent;-1.200,00\n02.04.2024;Salary;3.400,50\n"

	_, rows, _, err := parseCSV(t, data, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assertRow(t, rows[0], "2024-04-01", "Rent", "-1200", Debit)
	assertRow(t, rows[1], "2024-04-02", "Salary", "3400.5", Credit)
}

func TestParse_PositionalPage(t *testing.T) {
	header := Line{Page: 1, Cells: []Cell{
		{X: 40, W: 20, Text: "Date"},
		{X: 110, W: 45, Text: "Narration"},
		{X: 300, W: 60, Text: "Withdrawal Amt."},
		{X: 380, W: 50, Text: "Deposit Amt."},
		{X: 450, W: 70, Text: "Closing Balance"},
	}}
	lines := []Line{
		{Page: 1, Cells: []Cell{{X: 40, W: 120, Text: "HDFC BANK LIMITED"}}},
		header,
		{Page: 1, Cells: []Cell{
			{X: 40, W: 40, Text: "01/04/24"},
			{X: 110, W: 120, Text: "UPI-ZOMATO-ORDER"},
			{X: 320, W: 40, Text: "450.00"},
			{X: 470, W: 50, Text: "10,550.00"},
		}},
		{Page: 1, Cells: []Cell{{X: 110, W: 80, Text: "REF 99812"}}},
		{Page: 1, Cells: []Cell{{X: 250, W: 60, Text: "Page 1 of 2"}}},
		header,
		{Page: 2, Cells: []Cell{
			{X: 40, W: 40, Text: "02/04/24"},
			{X: 110, W: 60, Text: "SALARY"},
			{X: 395, W: 35, Text: "85,000.00"},
			{X: 470, W: 50, Text: "95,550.00"},
		}},
	}

	stmt, err := Parse(lines, Options{})
	require.NoError(t, err)
	assert.Equal(t, "HDFC", stmt.Layout.Name())

	rows, skipped, err := Collect(stmt.Rows())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 2)

	assertRow(t, rows[0], "2024-04-01", "UPI-ZOMATO-ORDER REF 99812", "-450", Debit)
	assertRow(t, rows[1], "2024-04-02", "SALARY", "85000", Credit)
	assert.True(t, dec("95550").Equal(rows[1].Balance))
}

func TestParse_BankHintSelectsLayout(t *testing.T) {
	data := "Tran Date,Chq No,Particulars,Debit,Credit,Balance,Init. Br\n" +
		"01-04-2024,,UPI/P2M/OLA,180.00,,820.00,001\n"

	stmt, rows, _, err := parseCSV(t, data, "axis")
	require.NoError(t, err)
	assert.Equal(t, "AXIS", stmt.Layout.Name())
	require.Len(t, rows, 1)
	assertRow(t, rows[0], "2024-04-01", "UPI/P2M/OLA", "-180", Debit)
}

func TestParse_StopsAtSummary(t *testing.T) {
	data := "Date,Description,Amount\n" +
		"01/04/2024,Tea,-12.00\n" +
		"STATEMENT SUMMARY,,\n" +
		"01/04/2024,Should not be read,-99.00\n"

	_, rows, _, err := parseCSV(t, data, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tea", rows[0].Description)
}

func TestRows_StopsWhenConsumerBreaks(t *testing.T) {
	data := "Date,Description,Amount\n01/04/2024,A,-1\n02/04/2024,B,-2\n03/04/2024,C,-3\n"
	lines, _, err := FromCSV([]byte(data))
	require.NoError(t, err)
	stmt, err := Parse(lines, Options{})
	require.NoError(t, err)

	var seen []string
	for row, err := range stmt.Rows() {
		require.NoError(t, err)
		seen = append(seen, row.Description)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestFromXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Date", "Narration", "Debit", "Credit", "Balance"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"01/04/2024", "UPI-UBER-TRIP", "250.00", "", "9750.00"}))
	require.NoError(t, f.SetSheetRow(sheet, "B3", &[]any{"SALARY", "", "50000", "59750"}))
	require.NoError(t, f.SetCellValue(sheet, "A3", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	lines, err := FromXLSX(buf.Bytes())
	require.NoError(t, err)

	stmt, err := Parse(lines, Options{})
	require.NoError(t, err)
	rows, _, err := Collect(stmt.Rows())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assertRow(t, rows[0], "2024-04-01", "UPI-UBER-TRIP", "-250", Debit)
	assertRow(t, rows[1], "2024-04-02", "SALARY", "50000", Credit)
}

func TestFromXLSX_Invalid(t *testing.T) {
	_, err := FromXLSX([]byte("not a workbook"))
	assert.Error(t, err)
}
