package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	"github.com/ledgerdesk/ledgerdesk/internal/books/export"
)

// BooksReader is the subset of the books service the CLI needs.
type BooksReader interface {
	TrialBalance(ctx context.Context) (books.TrialBalanceReport, error)
	DayBook(ctx context.Context, filter books.DayBookFilter) (books.DayBook, error)
}

// BooksCLI prints books reports to a terminal.
type BooksCLI struct {
	service BooksReader
}

// NewBooksCLI constructs the helper.
func NewBooksCLI(service BooksReader) (*BooksCLI, error) {
	if service == nil {
		return nil, errors.New("books cli: service required")
	}
	return &BooksCLI{service: service}, nil
}

// ReportOptions are the flags shared by the books commands.
type ReportOptions struct {
	JSONOutput bool
	CSVOutput  bool
	Locale     string
	From       string
	To         string
	Type       string
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *ReportOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// TrialBalanceCommand prints the trial balance. It exits 10 when the books do
// not tally so scripts can alert on it.
func (c *BooksCLI) TrialBalanceCommand(ctx context.Context, opts ReportOptions) int {
	opts.defaults()
	report, err := c.service.TrialBalance(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: %v\n", err)
		return 1
	}
	switch {
	case opts.JSONOutput:
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: encode json: %v\n", err)
			return 1
		}
	case opts.CSVOutput:
		if err := export.WriteTrialBalanceCSV(opts.Stdout, report, time.Now()); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "trial-balance: write csv: %v\n", err)
			return 1
		}
	default:
		renderTrialBalance(opts.Stdout, report, export.NewFormatter(opts.Locale))
	}
	if !report.Result.IsBalanced {
		return 10
	}
	return 0
}

// DayBookCommand prints vouchers grouped with their entries.
func (c *BooksCLI) DayBookCommand(ctx context.Context, opts ReportOptions) int {
	opts.defaults()
	filter, err := parseFilter(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "daybook: %v\n", err)
		return 1
	}
	book, err := c.service.DayBook(ctx, filter)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "daybook: %v\n", err)
		return 1
	}
	switch {
	case opts.JSONOutput:
		if err := json.NewEncoder(opts.Stdout).Encode(book); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "daybook: encode json: %v\n", err)
			return 1
		}
	case opts.CSVOutput:
		if err := export.WriteDayBookCSV(opts.Stdout, book, time.Now()); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "daybook: write csv: %v\n", err)
			return 1
		}
	default:
		renderDayBook(opts.Stdout, book, export.NewFormatter(opts.Locale))
	}
	return 0
}

func parseFilter(opts ReportOptions) (books.DayBookFilter, error) {
	filter := books.DayBookFilter{VoucherType: strings.TrimSpace(opts.Type)}
	var err error
	if raw := strings.TrimSpace(opts.From); raw != "" {
		if filter.From, err = books.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("invalid --from %q (expected YYYY-MM-DD)", raw)
		}
	}
	if raw := strings.TrimSpace(opts.To); raw != "" {
		if filter.To, err = books.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("invalid --to %q (expected YYYY-MM-DD)", raw)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("--to is before --from")
	}
	return filter, nil
}

func renderTrialBalance(out io.Writer, report books.TrialBalanceReport, f export.Formatter) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Ledger\tDebit\tCredit\t")
	for _, group := range report.Groups {
		_, _ = fmt.Fprintf(tw, "%s\t\t\t\n", group.Name)
		for _, row := range group.Rows {
			name := "  " + row.Name
			if row.Abnormal {
				name += " (!)"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t\n", name, blankZero(f, row.Debit), blankZero(f, row.Credit))
		}
	}
	result := report.Result
	_, _ = fmt.Fprintf(tw, "Total\t%s\t%s\t\n", f.Amount(result.TotalDebit), f.Amount(result.TotalCredit))
	_ = tw.Flush()

	if result.IsBalanced {
		_, _ = fmt.Fprintln(out, "Trial balance tallies.")
	} else {
		_, _ = fmt.Fprintf(out, "Trial balance does NOT tally: difference %s\n", f.Amount(result.Difference))
	}
	if len(report.UnknownLedgers) > 0 {
		ids := make([]string, len(report.UnknownLedgers))
		for i, id := range report.UnknownLedgers {
			ids[i] = fmt.Sprint(id)
		}
		_, _ = fmt.Fprintf(out, "Skipped entries for unknown ledgers: %s\n", strings.Join(ids, ", "))
	}
}

func renderDayBook(out io.Writer, book books.DayBook, f export.Formatter) {
	if len(book.Sections) == 0 {
		_, _ = fmt.Fprintln(out, "No vouchers in range.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, section := range book.Sections {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", section.Date.Format("2006-01-02"), section.Number, section.Type, section.Narration)
		for _, line := range section.Lines {
			_, _ = fmt.Fprintf(tw, "\t  %s\t%s\t%s\t\n", line.LedgerName, blankZero(f, line.Debit), blankZero(f, line.Credit))
		}
	}
	_, _ = fmt.Fprintf(tw, "\tTotal\t%s\t%s\t\n", f.Amount(book.TotalDebit), f.Amount(book.TotalCredit))
	_ = tw.Flush()
}

func blankZero(f export.Formatter, d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return f.Amount(d)
}
