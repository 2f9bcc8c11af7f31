package books

import "github.com/shopspring/decimal"

// Balances maps ledger ids to their signed net balance. Positive is a net
// debit, negative a net credit.
type Balances map[int64]decimal.Decimal

// ComputeBalances seeds every ledger with its opening balance and posts each
// voucher entry against it. Entries referencing ledgers outside the set are
// skipped.
func ComputeBalances(ledgers []Ledger, vouchers []Voucher) Balances {
	balances := make(Balances, len(ledgers))
	for _, l := range ledgers {
		balances[l.ID] = l.OpeningBalance
	}
	for _, v := range vouchers {
		for _, e := range v.Entries {
			current, ok := balances[e.LedgerID]
			if !ok {
				continue
			}
			balances[e.LedgerID] = current.Add(e.Net())
		}
	}
	return balances
}

// UnknownReferences lists ledger ids referenced by entries but absent from
// ledgers, in first-seen order.
func UnknownReferences(ledgers []Ledger, vouchers []Voucher) []int64 {
	known := make(map[int64]struct{}, len(ledgers))
	for _, l := range ledgers {
		known[l.ID] = struct{}{}
	}
	seen := make(map[int64]struct{})
	var missing []int64
	for _, v := range vouchers {
		for _, e := range v.Entries {
			if _, ok := known[e.LedgerID]; ok {
				continue
			}
			if _, ok := seen[e.LedgerID]; ok {
				continue
			}
			seen[e.LedgerID] = struct{}{}
			missing = append(missing, e.LedgerID)
		}
	}
	return missing
}

// IsActive reports whether a ledger belongs on balance reports: it either
// carries a derived balance or started with a non-zero opening balance.
func IsActive(l Ledger, balance decimal.Decimal) bool {
	return !balance.IsZero() || !l.OpeningBalance.IsZero()
}

// Active restricts balances to the ledgers that appear on balance reports.
func (b Balances) Active(ledgers []Ledger) Balances {
	active := make(Balances)
	for _, l := range ledgers {
		balance, ok := b[l.ID]
		if !ok {
			continue
		}
		if IsActive(l, balance) {
			active[l.ID] = balance
		}
	}
	return active
}

// LedgerBalance pairs a ledger with its derived balance.
type LedgerBalance struct {
	Ledger
	Balance decimal.Decimal `json:"balance"`
	Side    Side            `json:"side"`
	Active  bool            `json:"active"`
}

// LedgerBalances lists every ledger in input order with its derived balance.
func LedgerBalances(ledgers []Ledger, balances Balances) []LedgerBalance {
	out := make([]LedgerBalance, 0, len(ledgers))
	for _, l := range ledgers {
		balance := balances[l.ID]
		out = append(out, LedgerBalance{
			Ledger:  l,
			Balance: balance,
			Side:    SideOf(balance),
			Active:  IsActive(l, balance),
		})
	}
	return out
}
