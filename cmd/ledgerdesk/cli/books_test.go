package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

type stubBooks struct {
	snapshot books.Snapshot
	err      error
	filter   books.DayBookFilter
}

func (s *stubBooks) TrialBalance(context.Context) (books.TrialBalanceReport, error) {
	if s.err != nil {
		return books.TrialBalanceReport{}, s.err
	}
	return books.BuildTrialBalance(s.snapshot, books.DefaultTolerance), nil
}

func (s *stubBooks) DayBook(_ context.Context, filter books.DayBookFilter) (books.DayBook, error) {
	s.filter = filter
	if s.err != nil {
		return books.DayBook{}, s.err
	}
	return books.BuildDayBook(s.snapshot.Vouchers, filter), nil
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func balancedSnapshot() books.Snapshot {
	return books.Snapshot{
		Groups: []books.AccountGroup{
			{ID: 1, Name: "Current Assets", Nature: books.NatureAssets},
			{ID: 2, Name: "Capital", Nature: books.NatureLiabilities},
		},
		Ledgers: []books.Ledger{
			{ID: 10, Name: "Cash", GroupID: 1, OpeningBalance: decimal.Zero},
			{ID: 20, Name: "Owner Capital", GroupID: 2, OpeningBalance: decimal.Zero},
		},
		Vouchers: []books.Voucher{{
			ID: 1, Number: "JRN-0001", Type: "Journal", Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			Entries: []books.VoucherEntry{
				{LedgerID: 10, Debit: amt(1250000), Credit: decimal.Zero},
				{LedgerID: 20, Debit: decimal.Zero, Credit: amt(1250000)},
			},
		}},
	}
}

func TestTrialBalanceCommandHuman(t *testing.T) {
	cli, err := NewBooksCLI(&stubBooks{snapshot: balancedSnapshot()})
	require.NoError(t, err)

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), ReportOptions{Locale: "en", Stdout: stdout, Stderr: stderr})
	require.Zero(t, code)
	require.Empty(t, stderr.String())
	require.Contains(t, stdout.String(), "1,250,000.00")
	require.Contains(t, stdout.String(), "Trial balance tallies.")
}

func TestTrialBalanceCommandImbalanceExitCode(t *testing.T) {
	snap := balancedSnapshot()
	snap.Ledgers[0].OpeningBalance = amt(1000)
	cli, err := NewBooksCLI(&stubBooks{snapshot: snap})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), ReportOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, code)

	var report books.TrialBalanceReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.False(t, report.Result.IsBalanced)
	require.True(t, report.Result.Difference.Equal(amt(1000)))
}

func TestTrialBalanceCommandSourceError(t *testing.T) {
	cli, err := NewBooksCLI(&stubBooks{err: errors.New("connection refused")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	code := cli.TrialBalanceCommand(context.Background(), ReportOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "connection refused")
}

func TestDayBookCommandFilters(t *testing.T) {
	stub := &stubBooks{snapshot: balancedSnapshot()}
	cli, err := NewBooksCLI(stub)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.DayBookCommand(context.Background(), ReportOptions{From: "2024-04-01", To: "2024-04-30", Type: "Journal", CSVOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)
	require.Equal(t, "Journal", stub.filter.VoucherType)
	require.Equal(t, 30, stub.filter.To.Day())
	require.True(t, strings.Contains(stdout.String(), "JRN-0001"))
}

func TestDayBookCommandRejectsBadRange(t *testing.T) {
	cli, err := NewBooksCLI(&stubBooks{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	code := cli.DayBookCommand(context.Background(), ReportOptions{From: "2024-05-01", To: "2024-04-01", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "before")

	code = cli.DayBookCommand(context.Background(), ReportOptions{From: "01/05/2024", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
}

func TestNewBooksCLIRequiresService(t *testing.T) {
	_, err := NewBooksCLI(nil)
	require.Error(t, err)
}
