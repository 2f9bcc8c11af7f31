package books

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the largest debit/credit discrepancy still reported as
// balanced: one hundredth of the base currency unit.
var DefaultTolerance = decimal.New(1, -2)

// TrialBalanceResult is the outcome of checking total debits against total credits.
type TrialBalanceResult struct {
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	IsBalanced  bool            `json:"is_balanced"`
	Difference  decimal.Decimal `json:"difference"`
}

// ValidateTrialBalance sums debit and credit balances separately and reports
// whether they agree within tolerance. A non-positive tolerance falls back to
// DefaultTolerance.
func ValidateTrialBalance(balances Balances, tolerance decimal.Decimal) TrialBalanceResult {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, balance := range balances {
		switch balance.Sign() {
		case 1:
			debit = debit.Add(balance)
		case -1:
			credit = credit.Add(balance.Abs())
		}
	}
	diff := debit.Sub(credit).Abs()
	return TrialBalanceResult{
		TotalDebit:  debit,
		TotalCredit: credit,
		IsBalanced:  diff.LessThan(tolerance),
		Difference:  diff,
	}
}

// TrialBalanceRow is one active ledger on the trial balance.
type TrialBalanceRow struct {
	LedgerID  int64           `json:"ledger_id"`
	Name      string          `json:"name"`
	GroupName string          `json:"group_name"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	// Abnormal is set when the balance sits on the side opposite to the
	// group's nature, e.g. a credit balance on an asset.
	Abnormal bool `json:"abnormal"`
}

// TrialBalanceGroup aggregates rows belonging to one account group.
type TrialBalanceGroup struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Nature Nature            `json:"nature,omitempty"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalanceReport is the structure rendered by the trial balance views and exports.
type TrialBalanceReport struct {
	Groups []TrialBalanceGroup `json:"groups"`
	Result TrialBalanceResult  `json:"result"`
	// UnknownLedgers lists ledger ids referenced by vouchers but not loaded.
	UnknownLedgers []int64 `json:"unknown_ledgers,omitempty"`
}

// BuildTrialBalance derives balances from the snapshot, keeps active ledgers
// and groups them by account group.
func BuildTrialBalance(snap Snapshot, tolerance decimal.Decimal) TrialBalanceReport {
	balances := ComputeBalances(snap.Ledgers, snap.Vouchers)
	active := balances.Active(snap.Ledgers)
	groupsByID := snap.groupIndex()

	groups := make(map[int64]*TrialBalanceGroup)
	for _, l := range snap.Ledgers {
		balance, ok := active[l.ID]
		if !ok {
			continue
		}
		grp, exists := groups[l.GroupID]
		if !exists {
			grp = &TrialBalanceGroup{ID: l.GroupID, Name: l.GroupName, Debit: decimal.Zero, Credit: decimal.Zero}
			if g, found := groupsByID[l.GroupID]; found {
				grp.Nature = g.Nature
				if grp.Name == "" {
					grp.Name = g.Name
				}
			}
			groups[l.GroupID] = grp
		}
		row := TrialBalanceRow{
			LedgerID:  l.ID,
			Name:      l.Name,
			GroupName: l.GroupName,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}
		side := SideOf(balance)
		switch side {
		case SideDebit:
			row.Debit = balance
		case SideCredit:
			row.Credit = balance.Abs()
		}
		if normal := grp.Nature.NormalSide(); normal != SideNone && side != SideNone && side != normal {
			row.Abnormal = true
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	report := TrialBalanceReport{
		Groups:         make([]TrialBalanceGroup, 0, len(groups)),
		Result:         ValidateTrialBalance(active, tolerance),
		UnknownLedgers: UnknownReferences(snap.Ledgers, snap.Vouchers),
	}
	for _, grp := range groups {
		sort.SliceStable(grp.Rows, func(i, j int) bool {
			return grp.Rows[i].Name < grp.Rows[j].Name
		})
		report.Groups = append(report.Groups, *grp)
	}
	sort.Slice(report.Groups, func(i, j int) bool {
		if report.Groups[i].Name != report.Groups[j].Name {
			return report.Groups[i].Name < report.Groups[j].Name
		}
		return report.Groups[i].ID < report.Groups[j].ID
	})
	return report
}
