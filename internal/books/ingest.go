package books

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// VoucherPolicy decides what happens to a voucher whose own entries do not balance.
type VoucherPolicy string

const (
	// VoucherPolicyStrict rejects unbalanced vouchers at ingestion.
	VoucherPolicyStrict VoucherPolicy = "strict"
	// VoucherPolicyTrust accepts whatever the upstream system recorded.
	VoucherPolicyTrust VoucherPolicy = "trust"
)

// ParseVoucherPolicy converts a configuration value into a policy.
func ParseVoucherPolicy(raw string) (VoucherPolicy, error) {
	switch VoucherPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VoucherPolicyStrict:
		return VoucherPolicyStrict, nil
	case VoucherPolicyTrust:
		return VoucherPolicyTrust, nil
	default:
		return "", fmt.Errorf("books: unknown voucher policy %q", raw)
	}
}

// DecodeOptions tunes ingestion checks.
type DecodeOptions struct {
	Policy    VoucherPolicy
	Tolerance decimal.Decimal
}

func (o DecodeOptions) tolerance() decimal.Decimal {
	if o.Tolerance.IsPositive() {
		return o.Tolerance
	}
	return DefaultTolerance
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type groupRecord struct {
	ID     *int64 `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Nature string `json:"nature" validate:"required,oneof=ASSETS LIABILITIES INCOME EXPENSES"`
	Parent *int64 `json:"parent"`
}

type ledgerRecord struct {
	ID             *int64          `json:"id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Group          *int64          `json:"group" validate:"required"`
	GroupName      string          `json:"group_name"`
	OpeningBalance json.RawMessage `json:"opening_balance"`
	CreatedAt      *time.Time      `json:"created_at"`
}

type entryRecord struct {
	Ledger     *int64          `json:"ledger" validate:"required"`
	LedgerName string          `json:"ledger_name"`
	Debit      json.RawMessage `json:"debit"`
	Credit     json.RawMessage `json:"credit"`
}

type voucherRecord struct {
	ID          *int64        `json:"id" validate:"required"`
	Date        string        `json:"date" validate:"required"`
	VoucherType string        `json:"voucher_type" validate:"required"`
	Number      string        `json:"number"`
	Narration   string        `json:"narration"`
	Entries     []entryRecord `json:"entries" validate:"required,dive"`
}

// DecodeAccountGroups parses an account-group collection.
func DecodeAccountGroups(payload []byte) ([]AccountGroup, error) {
	var records []groupRecord
	if err := decodeList(payload, &records); err != nil {
		return nil, err
	}
	groups := make([]AccountGroup, 0, len(records))
	for i, rec := range records {
		rec.Nature = strings.ToUpper(strings.TrimSpace(rec.Nature))
		if err := validateRecord("account group", i, rec); err != nil {
			return nil, err
		}
		groups = append(groups, AccountGroup{
			ID:       *rec.ID,
			Name:     rec.Name,
			Nature:   Nature(rec.Nature),
			ParentID: rec.Parent,
		})
	}
	return groups, nil
}

// DecodeLedgers parses a ledger collection. A missing or non-numeric opening
// balance fails the whole payload.
func DecodeLedgers(payload []byte) ([]Ledger, error) {
	var records []ledgerRecord
	if err := decodeList(payload, &records); err != nil {
		return nil, err
	}
	ledgers := make([]Ledger, 0, len(records))
	for i, rec := range records {
		if err := validateRecord("ledger", i, rec); err != nil {
			return nil, err
		}
		opening, err := parseAmountJSON(rec.OpeningBalance)
		if err != nil {
			return nil, fmt.Errorf("ledger %d opening_balance: %w", *rec.ID, err)
		}
		l := Ledger{
			ID:             *rec.ID,
			Name:           rec.Name,
			GroupID:        *rec.Group,
			GroupName:      rec.GroupName,
			OpeningBalance: opening,
		}
		if rec.CreatedAt != nil {
			l.CreatedAt = *rec.CreatedAt
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

// DecodeVouchers parses a voucher collection and applies the voucher checks.
func DecodeVouchers(payload []byte, opts DecodeOptions) ([]Voucher, error) {
	var records []voucherRecord
	if err := decodeList(payload, &records); err != nil {
		return nil, err
	}
	vouchers := make([]Voucher, 0, len(records))
	for i, rec := range records {
		if err := validateRecord("voucher", i, rec); err != nil {
			return nil, err
		}
		date, err := ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: voucher %d date: %v", ErrInvalidRecord, *rec.ID, err)
		}
		v := Voucher{
			ID:        *rec.ID,
			Date:      date,
			Type:      rec.VoucherType,
			Number:    rec.Number,
			Narration: rec.Narration,
			Entries:   make([]VoucherEntry, 0, len(rec.Entries)),
		}
		for j, er := range rec.Entries {
			debit, err := parseAmountJSON(er.Debit)
			if err != nil {
				return nil, fmt.Errorf("voucher %d entry %d debit: %w", v.ID, j, err)
			}
			credit, err := parseAmountJSON(er.Credit)
			if err != nil {
				return nil, fmt.Errorf("voucher %d entry %d credit: %w", v.ID, j, err)
			}
			v.Entries = append(v.Entries, VoucherEntry{
				LedgerID:   *er.Ledger,
				LedgerName: er.LedgerName,
				Debit:      debit,
				Credit:     credit,
			})
		}
		if err := CheckVoucher(v, opts); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

// CheckVoucher rejects negative amounts and, under the strict policy,
// vouchers whose debits and credits differ by the tolerance or more.
func CheckVoucher(v Voucher, opts DecodeOptions) error {
	for i, e := range v.Entries {
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return fmt.Errorf("%w: voucher %d entry %d", ErrNegativeAmount, v.ID, i)
		}
	}
	if opts.Policy == VoucherPolicyTrust {
		return nil
	}
	debit, credit := v.Totals()
	if diff := debit.Sub(credit).Abs(); !diff.LessThan(opts.tolerance()) {
		return fmt.Errorf("%w: voucher %d (%s) debit %s credit %s",
			ErrUnbalancedVoucher, v.ID, v.Number, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

var amountPattern = regexp.MustCompile(`^-?(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)

// ParseAmount parses a decimal amount. Surrounding spaces are trimmed and
// comma thousands grouping is accepted only in canonical three-digit groups.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrMalformedAmount)
	}
	if !amountPattern.MatchString(trimmed) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(trimmed, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	return d, nil
}

// ParseDate accepts calendar dates and RFC3339 timestamps.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// parseAmountJSON accepts amounts encoded either as JSON strings or numbers.
func parseAmountJSON(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: missing value", ErrMalformedAmount)
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedAmount, err)
		}
		return ParseAmount(s)
	}
	d, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMalformedAmount, trimmed)
	}
	return d, nil
}

// decodeList decodes either a bare JSON array or a paginated envelope with a
// results field.
func decodeList(payload []byte, dest any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		if envelope.Results == nil {
			return fmt.Errorf("%w: object payload without results", ErrInvalidRecord)
		}
		trimmed = envelope.Results
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

func validateRecord(kind string, index int, rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s #%d: %s failed %q", ErrInvalidRecord, kind, index, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %s #%d: %v", ErrInvalidRecord, kind, index, err)
}
