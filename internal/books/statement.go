package books

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one posting to the ledger with the balance after it.
type StatementLine struct {
	VoucherID int64           `json:"voucher_id"`
	Date      time.Time       `json:"date"`
	Type      string          `json:"voucher_type"`
	Number    string          `json:"number"`
	Narration string          `json:"narration"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// LedgerStatement is the running account of a single ledger.
type LedgerStatement struct {
	Ledger  Ledger          `json:"ledger"`
	Opening decimal.Decimal `json:"opening"`
	Lines   []StatementLine `json:"lines"`
	Closing decimal.Decimal `json:"closing"`
	Side    Side            `json:"side"`
}

// BuildLedgerStatement walks vouchers in order and accumulates the postings to
// ledger. The closing balance equals what ComputeBalances derives for it.
func BuildLedgerStatement(ledger Ledger, vouchers []Voucher) LedgerStatement {
	running := ledger.OpeningBalance
	stmt := LedgerStatement{
		Ledger:  ledger,
		Opening: ledger.OpeningBalance,
		Lines:   make([]StatementLine, 0),
	}
	for _, v := range vouchers {
		for _, e := range v.Entries {
			if e.LedgerID != ledger.ID {
				continue
			}
			running = running.Add(e.Net())
			stmt.Lines = append(stmt.Lines, StatementLine{
				VoucherID: v.ID,
				Date:      v.Date,
				Type:      v.Type,
				Number:    v.Number,
				Narration: v.Narration,
				Debit:     e.Debit,
				Credit:    e.Credit,
				Balance:   running,
			})
		}
	}
	stmt.Closing = running
	stmt.Side = SideOf(running)
	return stmt
}

// FindLedger looks a ledger up by id.
func FindLedger(ledgers []Ledger, id int64) (Ledger, bool) {
	for _, l := range ledgers {
		if l.ID == id {
			return l, true
		}
	}
	return Ledger{}, false
}
