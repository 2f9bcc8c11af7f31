package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n") + "\r\n"
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row ...string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteTrialBalanceCSV streams the trial balance grouped by account group,
// followed by the totals and the validator verdict.
func WriteTrialBalanceCSV(w io.Writer, report books.TrialBalanceReport, generated time.Time) error {
	s := newCSVStreamer(w)
	if err := writeMetadata(s, "Trial Balance", generated); err != nil {
		return err
	}
	if err := s.writeRow("Group", "Ledger ID", "Ledger", "Debit", "Credit"); err != nil {
		return err
	}
	for _, group := range report.Groups {
		for _, row := range group.Rows {
			if err := s.writeRow(
				group.Name,
				strconv.FormatInt(row.LedgerID, 10),
				row.Name,
				plain(row.Debit),
				plain(row.Credit),
			); err != nil {
				return err
			}
		}
		if err := s.writeRow(group.Name, "", "Group total", plain(group.Debit), plain(group.Credit)); err != nil {
			return err
		}
	}
	result := report.Result
	status := "BALANCED"
	if !result.IsBalanced {
		status = "NOT BALANCED"
	}
	for _, row := range [][]string{
		{"", "", "", "", ""},
		{"Totals", "", "Total", plain(result.TotalDebit), plain(result.TotalCredit)},
		{"Totals", "", "Difference", plain(result.Difference), ""},
		{"Totals", "", "Status", status, ""},
	} {
		if err := s.writeRow(row...); err != nil {
			return err
		}
	}
	return s.Flush()
}

// WriteDayBookCSV streams one block per voucher with a subtotal line.
func WriteDayBookCSV(w io.Writer, book books.DayBook, generated time.Time) error {
	s := newCSVStreamer(w)
	if err := writeMetadata(s, "Day Book", generated); err != nil {
		return err
	}
	if err := s.writeRow("Date", "Voucher No", "Type", "Narration", "Ledger", "Debit", "Credit"); err != nil {
		return err
	}
	for _, section := range book.Sections {
		date := section.Date.Format("2006-01-02")
		for _, line := range section.Lines {
			name := line.LedgerName
			if name == "" {
				name = "#" + strconv.FormatInt(line.LedgerID, 10)
			}
			if err := s.writeRow(date, section.Number, section.Type, section.Narration, name, plain(line.Debit), plain(line.Credit)); err != nil {
				return err
			}
		}
		if err := s.writeRow(date, section.Number, section.Type, "", "Voucher total", plain(section.TotalDebit), plain(section.TotalCredit)); err != nil {
			return err
		}
	}
	if err := s.writeRow("", "", "", "", "Total", plain(book.TotalDebit), plain(book.TotalCredit)); err != nil {
		return err
	}
	return s.Flush()
}

func writeMetadata(s *csvStreamer, name string, generated time.Time) error {
	if err := s.writeComment("# Report: " + name); err != nil {
		return err
	}
	return s.writeComment("# Generated: " + generated.UTC().Format(time.RFC3339))
}
