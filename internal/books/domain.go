package books

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Nature classifies an account group on the chart of accounts.
type Nature string

const (
	NatureAssets      Nature = "ASSETS"
	NatureLiabilities Nature = "LIABILITIES"
	NatureIncome      Nature = "INCOME"
	NatureExpenses    Nature = "EXPENSES"
)

// Valid reports whether n is one of the four known natures.
func (n Nature) Valid() bool {
	return n.NormalSide() != SideNone
}

// NormalSide reports which side increases accounts of this nature.
func (n Nature) NormalSide() Side {
	switch n {
	case NatureAssets, NatureExpenses:
		return SideDebit
	case NatureLiabilities, NatureIncome:
		return SideCredit
	default:
		return SideNone
	}
}

// Side marks a balance as net debit or net credit.
type Side string

const (
	SideDebit  Side = "DR"
	SideCredit Side = "CR"
	SideNone   Side = ""
)

// SideOf classifies a signed balance. Zero belongs to neither side.
func SideOf(balance decimal.Decimal) Side {
	switch balance.Sign() {
	case 1:
		return SideDebit
	case -1:
		return SideCredit
	default:
		return SideNone
	}
}

// AccountGroup is a node of the chart of accounts.
type AccountGroup struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Nature   Nature `json:"nature"`
	ParentID *int64 `json:"parent,omitempty"`
}

// Ledger is a single account that vouchers post to.
type Ledger struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	GroupID        int64           `json:"group"`
	GroupName      string          `json:"group_name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

// VoucherEntry posts a debit or a credit to one ledger.
type VoucherEntry struct {
	LedgerID   int64           `json:"ledger"`
	LedgerName string          `json:"ledger_name"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
}

// Net returns debit minus credit.
func (e VoucherEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Voucher is a recorded transaction made of two or more entries.
type Voucher struct {
	ID        int64          `json:"id"`
	Date      time.Time      `json:"date"`
	Type      string         `json:"voucher_type"`
	Number    string         `json:"number"`
	Narration string         `json:"narration"`
	Entries   []VoucherEntry `json:"entries"`
}

// Totals sums the debit and credit columns of the voucher.
func (v Voucher) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range v.Entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// Snapshot is a consistent read of the books taken at request time.
type Snapshot struct {
	Groups   []AccountGroup
	Ledgers  []Ledger
	Vouchers []Voucher
}

// groupIndex maps group ids to groups for nature lookups.
func (s Snapshot) groupIndex() map[int64]AccountGroup {
	idx := make(map[int64]AccountGroup, len(s.Groups))
	for _, g := range s.Groups {
		idx[g.ID] = g
	}
	return idx
}

var (
	// ErrSnapshotUnavailable indicates ledgers or vouchers could not be loaded in full.
	ErrSnapshotUnavailable = errors.New("books: snapshot unavailable")
	// ErrInvalidRecord indicates a payload record is missing required fields.
	ErrInvalidRecord = errors.New("books: invalid record")
	// ErrMalformedAmount indicates a debit, credit or opening balance is not a number.
	ErrMalformedAmount = errors.New("books: malformed amount")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("books: negative amount")
	// ErrUnbalancedVoucher indicates a voucher whose own debits and credits differ.
	ErrUnbalancedVoucher = errors.New("books: voucher debits and credits differ")
	// ErrLedgerNotFound indicates a ledger id outside the loaded snapshot.
	ErrLedgerNotFound = errors.New("books: ledger not found")
)
