package pgsource

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("expected %d columns, got %d", len(row), len(dest))
	}
	for i, value := range row {
		target := reflect.ValueOf(dest[i]).Elem()
		if value == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(value)
		if target.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
			ptr := reflect.New(target.Type().Elem())
			ptr.Elem().Set(v)
			v = ptr
		}
		target.Set(v)
	}
	return nil
}

type fakeQuerier map[string][][]any

func (f fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	for marker, data := range f {
		if strings.Contains(sql, marker) {
			return &fakeRows{data: data}, nil
		}
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func str(s string) *string { return &s }

func TestListLedgersParsesTextAmounts(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	q := fakeQuerier{"FROM ledgers": {
		{int64(1), "Cash", int64(3), "Cash-in-Hand", str("1500.2500"), &created},
		{int64(2), "Capital", int64(2), "Capital Account", str("-1500.25"), nil},
	}}

	ledgers, err := listLedgers(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.True(t, ledgers[0].OpeningBalance.Equal(ledgers[1].OpeningBalance.Neg()))
	assert.Equal(t, created, ledgers[0].CreatedAt)
	assert.True(t, ledgers[1].CreatedAt.IsZero())
}

func TestListLedgersRejectsNullOpening(t *testing.T) {
	q := fakeQuerier{"FROM ledgers": {{int64(1), "Cash", int64(3), "", nil, nil}}}
	_, err := listLedgers(context.Background(), q)
	assert.ErrorIs(t, err, books.ErrMalformedAmount)
}

func TestListGroupsValidatesNature(t *testing.T) {
	parent := int64(1)
	q := fakeQuerier{"FROM account_groups": {
		{int64(1), "Assets", "assets", nil},
		{int64(4), "Bank Accounts", "ASSETS", &parent},
	}}
	groups, err := listGroups(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, books.NatureAssets, groups[0].Nature)
	require.NotNil(t, groups[1].ParentID)
	assert.Equal(t, int64(1), *groups[1].ParentID)

	_, err = listGroups(context.Background(), fakeQuerier{"FROM account_groups": {{int64(9), "Odd", "equity", nil}}})
	assert.ErrorIs(t, err, books.ErrInvalidRecord)
}

func TestListVouchersAttachesEntries(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	q := fakeQuerier{
		"FROM vouchers": {
			{int64(7), day, "Payment", "PAY-7", "Rent"},
			{int64(8), day, "Journal", "JRN-8", ""},
		},
		"FROM voucher_entries": {
			{int64(7), int64(5), "Rent", str("900.00"), str("0.00")},
			{int64(7), int64(1), "Bank", str("0.00"), str("900.00")},
			{int64(8), int64(1), "Bank", str("10"), str("0")},
			{int64(8), int64(2), "Cash", str("0"), str("10")},
			{int64(99), int64(2), "Cash", str("0"), str("10")},
		},
	}

	vouchers, err := listVouchers(context.Background(), q, books.DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, vouchers, 2)
	require.Len(t, vouchers[0].Entries, 2)
	assert.Equal(t, int64(5), vouchers[0].Entries[0].LedgerID)
	assert.Len(t, vouchers[1].Entries, 2)
}

func TestListVouchersAppliesPolicy(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	q := fakeQuerier{
		"FROM vouchers":        {{int64(7), day, "Payment", "PAY-7", ""}},
		"FROM voucher_entries": {{int64(7), int64(5), "Rent", str("900"), str("0")}},
	}

	_, err := listVouchers(context.Background(), q, books.DecodeOptions{Policy: books.VoucherPolicyStrict})
	assert.ErrorIs(t, err, books.ErrUnbalancedVoucher)

	vouchers, err := listVouchers(context.Background(), q, books.DecodeOptions{Policy: books.VoucherPolicyTrust})
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}
