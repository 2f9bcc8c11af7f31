package books

import (
	"encoding/json"
	"testing"
)

func TestValidateTrialBalanceToleranceBoundary(t *testing.T) {
	cases := []struct {
		name     string
		debit    string
		balanced bool
	}{
		{name: "just under tolerance", debit: "100.009999", balanced: true},
		{name: "exact", debit: "100", balanced: true},
		{name: "two cents", debit: "100.02", balanced: false},
		{name: "at tolerance", debit: "100.01", balanced: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateTrialBalance(Balances{1: d(tc.debit), 2: d("-100")}, DefaultTolerance)
			if result.IsBalanced != tc.balanced {
				t.Fatalf("expected balanced=%v, got %v (difference %s)", tc.balanced, result.IsBalanced, result.Difference)
			}
		})
	}
}

func TestValidateTrialBalanceSignClassification(t *testing.T) {
	result := ValidateTrialBalance(Balances{
		1: d("250"),
		2: d("-75.5"),
		3: d("0"),
		4: d("-24.5"),
	}, DefaultTolerance)
	if !result.TotalDebit.Equal(d("250")) {
		t.Fatalf("unexpected total debit: %s", result.TotalDebit)
	}
	if !result.TotalCredit.Equal(d("100")) {
		t.Fatalf("unexpected total credit: %s", result.TotalCredit)
	}
	if !result.Difference.Equal(d("150")) {
		t.Fatalf("unexpected difference: %s", result.Difference)
	}
}

func TestValidateTrialBalanceFallsBackToDefaultTolerance(t *testing.T) {
	result := ValidateTrialBalance(Balances{1: d("10.005"), 2: d("-10")}, d("0"))
	if !result.IsBalanced {
		t.Fatalf("expected default tolerance to apply")
	}
}

func balancedSnapshot() Snapshot {
	return Snapshot{
		Groups: []AccountGroup{
			{ID: 1, Name: "Cash-in-Hand", Nature: NatureAssets},
			{ID: 2, Name: "Capital Account", Nature: NatureLiabilities},
			{ID: 3, Name: "Sales Accounts", Nature: NatureIncome},
		},
		Ledgers: []Ledger{
			{ID: 10, Name: "Cash", GroupID: 1, GroupName: "Cash-in-Hand", OpeningBalance: d("1000")},
			{ID: 20, Name: "Owner Capital", GroupID: 2, GroupName: "Capital Account", OpeningBalance: d("-1000")},
			{ID: 30, Name: "Sales", GroupID: 3, GroupName: "Sales Accounts", OpeningBalance: d("0")},
			{ID: 40, Name: "Unused", GroupID: 3, GroupName: "Sales Accounts", OpeningBalance: d("0")},
		},
	}
}

func TestBalancedVoucherKeepsTrialBalanceBalanced(t *testing.T) {
	snap := balancedSnapshot()
	before := BuildTrialBalance(snap, DefaultTolerance)
	if !before.Result.IsBalanced {
		t.Fatalf("fixture must start balanced, difference %s", before.Result.Difference)
	}

	snap.Vouchers = append(snap.Vouchers, Voucher{
		ID:     1,
		Type:   "Sales",
		Number: "SAL-1",
		Entries: []VoucherEntry{
			entry(10, "250.75", "0"),
			entry(30, "0", "250.75"),
		},
	})
	after := BuildTrialBalance(snap, DefaultTolerance)
	if !after.Result.IsBalanced {
		t.Fatalf("balanced voucher broke the trial balance: difference %s", after.Result.Difference)
	}
	if !after.Result.TotalDebit.Equal(d("1250.75")) {
		t.Fatalf("unexpected total debit %s", after.Result.TotalDebit)
	}
}

func TestBuildTrialBalanceGroupsActiveLedgers(t *testing.T) {
	snap := balancedSnapshot()
	snap.Vouchers = []Voucher{{
		ID: 1,
		Entries: []VoucherEntry{
			entry(30, "1200", "0"),
			entry(10, "0", "1200"),
		},
	}}

	report := BuildTrialBalance(snap, DefaultTolerance)
	if len(report.Groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(report.Groups))
	}
	if report.Groups[0].Name != "Capital Account" || report.Groups[2].Name != "Sales Accounts" {
		t.Fatalf("groups not sorted by name: %+v", report.Groups)
	}
	sales := report.Groups[2]
	if len(sales.Rows) != 1 {
		t.Fatalf("unused ledger must be omitted, got %d rows", len(sales.Rows))
	}
	if !sales.Rows[0].Abnormal {
		t.Fatalf("debit balance on an income ledger must be flagged")
	}
	cash := report.Groups[1].Rows[0]
	if !cash.Credit.Equal(d("200")) || !cash.Abnormal {
		t.Fatalf("cash should carry an abnormal 200 credit, got %+v", cash)
	}
	if !report.Result.IsBalanced {
		t.Fatalf("expected balanced report, difference %s", report.Result.Difference)
	}
}

func TestTrialBalanceIsIdempotent(t *testing.T) {
	snap := balancedSnapshot()
	snap.Vouchers = []Voucher{
		{ID: 1, Entries: []VoucherEntry{entry(10, "19.99", "0"), entry(30, "0", "19.99")}},
		{ID: 2, Entries: []VoucherEntry{entry(999, "5", "0"), entry(30, "0", "5")}},
	}

	first, err := json.Marshal(BuildTrialBalance(snap, DefaultTolerance))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(BuildTrialBalance(snap, DefaultTolerance))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected identical output\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestBuildTrialBalanceKeepsSameNamedGroupsApart(t *testing.T) {
	snap := Snapshot{
		Groups: []AccountGroup{
			{ID: 1, Name: "Misc", Nature: NatureAssets},
			{ID: 2, Name: "Misc", Nature: NatureLiabilities},
		},
		Ledgers: []Ledger{
			{ID: 10, Name: "Petty Cash", GroupID: 1, GroupName: "Misc", OpeningBalance: d("500")},
			{ID: 20, Name: "Accrued Fees", GroupID: 2, GroupName: "Misc", OpeningBalance: d("-500")},
		},
	}

	report := BuildTrialBalance(snap, DefaultTolerance)
	if len(report.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(report.Groups), report.Groups)
	}
	for _, grp := range report.Groups {
		if len(grp.Rows) != 1 {
			t.Fatalf("group %d must hold one row, got %d", grp.ID, len(grp.Rows))
		}
		if grp.Rows[0].Abnormal {
			t.Fatalf("%s sits on its group's normal side, got abnormal", grp.Rows[0].Name)
		}
	}
	if report.Groups[0].ID != 1 || report.Groups[0].Nature != NatureAssets {
		t.Fatalf("unexpected first group %+v", report.Groups[0])
	}
	if report.Groups[1].ID != 2 || report.Groups[1].Nature != NatureLiabilities {
		t.Fatalf("unexpected second group %+v", report.Groups[1])
	}
}
