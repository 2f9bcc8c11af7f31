// Package export renders books reports as CSV and XLSX documents.
package export

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for human readers with locale digit grouping.
type Formatter struct {
	printer *message.Printer
	decimal string
}

// NewFormatter builds a Formatter for tag. An unparseable tag falls back to English.
func NewFormatter(tag string) Formatter {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.English
	}
	p := message.NewPrinter(lang)
	// Derive the decimal separator from the locale itself.
	sep := "."
	if probe := p.Sprintf("%.1f", 1.5); len(probe) == 3 {
		sep = probe[1:2]
	}
	return Formatter{printer: p, decimal: sep}
}

// Amount formats d with two decimals and grouped thousands. Formatting goes
// through big.Int so large balances keep every digit.
func (f Formatter) Amount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return sign + fixed
	}
	var grouped string
	if n.IsInt64() {
		grouped = f.printer.Sprintf("%d", n.Int64())
	} else {
		grouped = n.String()
	}
	return sign + grouped + f.decimal + frac
}

// plain renders amounts for machine-readable exports.
func plain(d decimal.Decimal) string {
	return d.StringFixed(2)
}
