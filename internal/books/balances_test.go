package books

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(ledger int64, debit, credit string) VoucherEntry {
	return VoucherEntry{LedgerID: ledger, Debit: d(debit), Credit: d(credit)}
}

func TestComputeBalancesTransferScenario(t *testing.T) {
	ledgers := []Ledger{
		{ID: 1, Name: "A", OpeningBalance: d("1000")},
		{ID: 2, Name: "B", OpeningBalance: d("0")},
	}
	vouchers := []Voucher{{
		ID:     1,
		Number: "V1",
		Entries: []VoucherEntry{
			entry(1, "0", "500"),
			entry(2, "500", "0"),
		},
	}}

	balances := ComputeBalances(ledgers, vouchers)
	require.Len(t, balances, 2)
	assert.True(t, balances[1].Equal(d("500")), "balance(A) = %s", balances[1])
	assert.True(t, balances[2].Equal(d("500")), "balance(B) = %s", balances[2])

	result := ValidateTrialBalance(balances.Active(ledgers), DefaultTolerance)
	assert.True(t, result.TotalDebit.Equal(d("1000")))
	assert.True(t, result.TotalCredit.IsZero())
	assert.True(t, result.Difference.Equal(d("1000")))
	assert.False(t, result.IsBalanced)
}

func TestComputeBalancesSkipsUnknownLedger(t *testing.T) {
	ledgers := []Ledger{
		{ID: 1, Name: "Cash", OpeningBalance: d("100")},
		{ID: 2, Name: "Sales", OpeningBalance: d("-100")},
	}
	vouchers := []Voucher{{
		ID: 7,
		Entries: []VoucherEntry{
			entry(999, "40", "0"),
			entry(2, "0", "40"),
		},
	}}

	balances := ComputeBalances(ledgers, vouchers)
	_, present := balances[999]
	assert.False(t, present, "unknown ledger must not appear in output")
	assert.True(t, balances[1].Equal(d("100")), "cash untouched by unknown reference")
	assert.True(t, balances[2].Equal(d("-140")))
	assert.Equal(t, []int64{999}, UnknownReferences(ledgers, vouchers))
}

func TestOpeningBalancePassThrough(t *testing.T) {
	ledgers := []Ledger{
		{ID: 1, Name: "Untouched", OpeningBalance: d("1234.56")},
		{ID: 2, Name: "Busy", OpeningBalance: d("0")},
		{ID: 3, Name: "Other", OpeningBalance: d("0")},
	}
	vouchers := []Voucher{{ID: 1, Entries: []VoucherEntry{entry(2, "10", "0"), entry(3, "0", "10")}}}

	balances := ComputeBalances(ledgers, vouchers)
	assert.True(t, balances[1].Equal(d("1234.56")))
	assert.Equal(t, "1234.56", balances[1].String())
}

func TestActiveFiltersAllZeroLedgers(t *testing.T) {
	ledgers := []Ledger{
		{ID: 1, Name: "Dormant", OpeningBalance: d("0")},
		{ID: 2, Name: "Opening only", OpeningBalance: d("50")},
		{ID: 3, Name: "Moved", OpeningBalance: d("0")},
		{ID: 4, Name: "Round trip", OpeningBalance: d("25")},
	}
	vouchers := []Voucher{
		{ID: 1, Entries: []VoucherEntry{entry(3, "10", "0"), entry(4, "0", "10")}},
		{ID: 2, Entries: []VoucherEntry{entry(4, "0", "15"), entry(3, "15", "0")}},
	}

	balances := ComputeBalances(ledgers, vouchers)
	require.True(t, balances[4].IsZero())

	active := balances.Active(ledgers)
	assert.NotContains(t, active, int64(1))
	assert.Contains(t, active, int64(2))
	assert.Contains(t, active, int64(3))
	assert.Contains(t, active, int64(4), "zero balance with non-zero opening stays active")
}

func TestLedgerBalancesPreservesOrderAndSide(t *testing.T) {
	ledgers := []Ledger{
		{ID: 5, Name: "Capital", OpeningBalance: d("-300"), CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Cash", OpeningBalance: d("300")},
		{ID: 9, Name: "Empty", OpeningBalance: d("0")},
	}

	rows := LedgerBalances(ledgers, ComputeBalances(ledgers, nil))
	require.Len(t, rows, 3)
	assert.Equal(t, int64(5), rows[0].ID)
	assert.Equal(t, SideCredit, rows[0].Side)
	assert.Equal(t, SideDebit, rows[1].Side)
	assert.Equal(t, SideNone, rows[2].Side)
	assert.False(t, rows[2].Active)
}
