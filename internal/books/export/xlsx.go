package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

const trialBalanceSheet = "Trial Balance"

// WriteTrialBalanceXLSX renders the trial balance as a workbook with numeric
// amount cells.
func WriteTrialBalanceXLSX(w io.Writer, report books.TrialBalanceReport, generated time.Time) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName("Sheet1", trialBalanceSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amountFmt := "#,##0.00"
	amount, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return err
	}
	boldAmount, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &amountFmt})
	if err != nil {
		return err
	}

	sheet := trialBalanceSheet
	set := func(cell string, value any) {
		if err == nil {
			err = f.SetCellValue(sheet, cell, value)
		}
	}
	style := func(from, to string, id int) {
		if err == nil {
			err = f.SetCellStyle(sheet, from, to, id)
		}
	}

	set("A1", "Trial Balance")
	set("A2", "Generated "+generated.UTC().Format(time.RFC3339))
	style("A1", "A1", bold)

	row := 4
	for i, h := range []string{"Group", "Ledger", "Debit", "Credit"} {
		set(cellName(i+1, row), h)
	}
	style("A4", "D4", bold)
	row++

	for _, group := range report.Groups {
		for _, line := range group.Rows {
			set(cellName(1, row), group.Name)
			set(cellName(2, row), line.Name)
			set(cellName(3, row), line.Debit.InexactFloat64())
			set(cellName(4, row), line.Credit.InexactFloat64())
			style(cellName(3, row), cellName(4, row), amount)
			row++
		}
	}

	row++
	result := report.Result
	set(cellName(2, row), "Total")
	set(cellName(3, row), result.TotalDebit.InexactFloat64())
	set(cellName(4, row), result.TotalCredit.InexactFloat64())
	style(cellName(2, row), cellName(2, row), bold)
	style(cellName(3, row), cellName(4, row), boldAmount)
	row++
	set(cellName(2, row), "Difference")
	set(cellName(3, row), result.Difference.InexactFloat64())
	style(cellName(3, row), cellName(3, row), amount)
	row++
	status := "Balanced"
	if !result.IsBalanced {
		status = "Not balanced"
	}
	set(cellName(2, row), "Status")
	set(cellName(3, row), status)

	if err == nil {
		err = f.SetColWidth(sheet, "A", "B", 32)
	}
	if err == nil {
		err = f.SetColWidth(sheet, "C", "D", 16)
	}
	if err != nil {
		return fmt.Errorf("export: build trial balance sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}
