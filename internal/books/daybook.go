package books

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayBookFilter narrows the vouchers shown on the day book. Zero values
// disable the corresponding filter; From and To are inclusive dates.
type DayBookFilter struct {
	From        time.Time
	To          time.Time
	VoucherType string
}

func (f DayBookFilter) match(v Voucher) bool {
	day := truncateDay(v.Date)
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	if f.VoucherType != "" && !strings.EqualFold(f.VoucherType, v.Type) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBookLine is one entry line of a voucher section.
type DayBookLine struct {
	LedgerID   int64           `json:"ledger"`
	LedgerName string          `json:"ledger_name"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
}

// DayBookSection groups the entries of one voucher.
type DayBookSection struct {
	VoucherID   int64           `json:"voucher_id"`
	Date        time.Time       `json:"date"`
	Type        string          `json:"voucher_type"`
	Number      string          `json:"number"`
	Narration   string          `json:"narration"`
	Lines       []DayBookLine   `json:"lines"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// DayBook is the chronological record of vouchers as returned upstream.
type DayBook struct {
	Sections    []DayBookSection `json:"sections"`
	TotalDebit  decimal.Decimal  `json:"total_debit"`
	TotalCredit decimal.Decimal  `json:"total_credit"`
}

// BuildDayBook partitions entries by voucher. Voucher order and entry order
// are preserved since numbering belongs to the source system.
func BuildDayBook(vouchers []Voucher, filter DayBookFilter) DayBook {
	book := DayBook{
		Sections:    make([]DayBookSection, 0, len(vouchers)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, v := range vouchers {
		if !filter.match(v) {
			continue
		}
		section := DayBookSection{
			VoucherID: v.ID,
			Date:      v.Date,
			Type:      v.Type,
			Number:    v.Number,
			Narration: v.Narration,
			Lines:     make([]DayBookLine, 0, len(v.Entries)),
		}
		for _, e := range v.Entries {
			section.Lines = append(section.Lines, DayBookLine{
				LedgerID:   e.LedgerID,
				LedgerName: e.LedgerName,
				Debit:      e.Debit,
				Credit:     e.Credit,
			})
		}
		section.TotalDebit, section.TotalCredit = v.Totals()
		book.TotalDebit = book.TotalDebit.Add(section.TotalDebit)
		book.TotalCredit = book.TotalCredit.Add(section.TotalCredit)
		book.Sections = append(book.Sections, section)
	}
	return book
}
