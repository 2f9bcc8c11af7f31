package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

var generated = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleSnapshot() books.Snapshot {
	d := decimal.RequireFromString
	return books.Snapshot{
		Groups: []books.AccountGroup{
			{ID: 1, Name: "Cash-in-Hand", Nature: books.NatureAssets},
			{ID: 2, Name: "Capital Account", Nature: books.NatureLiabilities},
		},
		Ledgers: []books.Ledger{
			{ID: 10, Name: "Cash", GroupID: 1, GroupName: "Cash-in-Hand", OpeningBalance: d("1500")},
			{ID: 20, Name: "Owner, Capital", GroupID: 2, GroupName: "Capital Account", OpeningBalance: d("-1000")},
		},
		Vouchers: []books.Voucher{{
			ID: 1, Date: generated, Type: "Journal", Number: "JRN-1", Narration: "Top up",
			Entries: []books.VoucherEntry{
				{LedgerID: 10, LedgerName: "Cash", Debit: d("250"), Credit: d("0")},
				{LedgerID: 20, LedgerName: "Owner, Capital", Debit: d("0"), Credit: d("250")},
			},
		}},
	}
}

func TestWriteTrialBalanceCSV(t *testing.T) {
	report := books.BuildTrialBalance(sampleSnapshot(), books.DefaultTolerance)

	var buf bytes.Buffer
	require.NoError(t, WriteTrialBalanceCSV(&buf, report, generated))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Report: Trial Balance\r\n# Generated: 2024-05-01T09:00:00Z\r\n"))
	assert.Contains(t, out, "Group,Ledger ID,Ledger,Debit,Credit\r\n")
	assert.Contains(t, out, `Capital Account,20,"Owner, Capital",0.00,1250.00`)
	assert.Contains(t, out, "Totals,,Total,1750.00,1250.00\r\n")
	assert.Contains(t, out, "Totals,,Difference,500.00,\r\n")
	assert.Contains(t, out, "Totals,,Status,NOT BALANCED,\r\n")
}

func TestWriteDayBookCSV(t *testing.T) {
	book := books.BuildDayBook(sampleSnapshot().Vouchers, books.DayBookFilter{})

	var buf bytes.Buffer
	require.NoError(t, WriteDayBookCSV(&buf, book, generated))
	out := buf.String()

	assert.Contains(t, out, "2024-05-01,JRN-1,Journal,Top up,Cash,250.00,0.00\r\n")
	assert.Contains(t, out, "2024-05-01,JRN-1,Journal,,Voucher total,250.00,250.00\r\n")
	assert.True(t, strings.HasSuffix(out, ",,,,Total,250.00,250.00\r\n"))
}

func TestWriteTrialBalanceXLSX(t *testing.T) {
	report := books.BuildTrialBalance(sampleSnapshot(), books.DefaultTolerance)

	var buf bytes.Buffer
	require.NoError(t, WriteTrialBalanceXLSX(&buf, report, generated))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	title, err := f.GetCellValue(trialBalanceSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Trial Balance", title)

	rows, err := f.GetRows(trialBalanceSheet)
	require.NoError(t, err)
	var labels []string
	for _, r := range rows {
		if len(r) > 1 {
			labels = append(labels, r[1])
		}
	}
	assert.Contains(t, labels, "Total")
	assert.Contains(t, labels, "Status")

	status, err := f.GetCellValue(trialBalanceSheet, "C"+itoa(len(rows)))
	require.NoError(t, err)
	assert.Equal(t, "Not balanced", status)
}

func itoa(n int) string {
	return decimal.NewFromInt(int64(n)).String()
}

func TestFormatterAmount(t *testing.T) {
	en := NewFormatter("en")
	assert.Equal(t, "1,234,567.89", en.Amount(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "-1,000.00", en.Amount(decimal.RequireFromString("-1000")))
	assert.Equal(t, "0.50", en.Amount(decimal.RequireFromString("0.5")))

	de := NewFormatter("de")
	assert.Equal(t, "1.234.567,89", de.Amount(decimal.RequireFromString("1234567.89")))

	fallback := NewFormatter("not a tag!")
	assert.Equal(t, "12.00", fallback.Amount(decimal.NewFromInt(12)))
}
