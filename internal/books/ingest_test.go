package books

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLedgersAcceptsStringAndNumberAmounts(t *testing.T) {
	payload := []byte(`[
		{"id": 1, "name": "Cash", "group": 4, "group_name": "Cash-in-Hand", "opening_balance": "1500.50", "created_at": "2024-01-02T10:00:00Z"},
		{"id": 2, "name": "Capital", "group": 2, "group_name": "Capital Account", "opening_balance": -1500.5}
	]`)

	ledgers, err := DecodeLedgers(payload)
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.True(t, ledgers[0].OpeningBalance.Equal(d("1500.50")))
	assert.Equal(t, 2024, ledgers[0].CreatedAt.Year())
	assert.True(t, ledgers[1].OpeningBalance.Equal(d("-1500.5")))
	assert.Equal(t, int64(2), ledgers[1].GroupID)
}

func TestDecodeLedgersRejectsMalformedOpeningBalance(t *testing.T) {
	for name, payload := range map[string]string{
		"text":    `[{"id": 1, "name": "Cash", "group": 4, "opening_balance": "abc"}]`,
		"missing": `[{"id": 1, "name": "Cash", "group": 4}]`,
		"null":    `[{"id": 1, "name": "Cash", "group": 4, "opening_balance": null}]`,
		"bool":    `[{"id": 1, "name": "Cash", "group": 4, "opening_balance": true}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeLedgers([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAmount)
		})
	}
}

func TestDecodeLedgersRequiresFields(t *testing.T) {
	_, err := DecodeLedgers([]byte(`[{"id": 1, "group": 4, "opening_balance": "0"}]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "name")
}

func TestDecodeVouchers(t *testing.T) {
	payload := []byte(`{"count": 1, "results": [{
		"id": 11, "date": "2024-03-05", "voucher_type": "Receipt", "number": "RCT-0011", "narration": "Customer payment",
		"entries": [
			{"ledger": 1, "ledger_name": "Cash", "debit": "1,250.00", "credit": "0.00"},
			{"ledger": 9, "ledger_name": "Customer: Acme", "debit": "0.00", "credit": "1250.00"}
		]
	}]}`)

	vouchers, err := DecodeVouchers(payload, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	v := vouchers[0]
	assert.Equal(t, "RCT-0011", v.Number)
	assert.Equal(t, 5, v.Date.Day())
	require.Len(t, v.Entries, 2)
	assert.True(t, v.Entries[0].Debit.Equal(d("1250")))
	assert.Equal(t, "Customer: Acme", v.Entries[1].LedgerName)
}

func TestDecodeVouchersRejectsBadAmounts(t *testing.T) {
	_, err := DecodeVouchers([]byte(`[{"id": 1, "date": "2024-03-05", "voucher_type": "Journal",
		"entries": [{"ledger": 1, "debit": "ten", "credit": "0"}, {"ledger": 2, "debit": "0", "credit": "10"}]}]`), DecodeOptions{})
	assert.ErrorIs(t, err, ErrMalformedAmount)

	_, err = DecodeVouchers([]byte(`[{"id": 1, "date": "2024-03-05", "voucher_type": "Journal",
		"entries": [{"ledger": 1, "debit": "-10", "credit": "0"}, {"ledger": 2, "debit": "0", "credit": "-10"}]}]`), DecodeOptions{})
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = DecodeVouchers([]byte(`[{"id": 1, "date": "2024-03-05", "voucher_type": "Journal",
		"entries": [{"ledger": 1, "debit": "1,5", "credit": "0"}, {"ledger": 2, "debit": "0", "credit": "15"}]}]`), DecodeOptions{Policy: VoucherPolicyStrict})
	assert.ErrorIs(t, err, ErrMalformedAmount)
}

func TestParseAmount(t *testing.T) {
	for _, raw := range []string{"1,5", "1,2,3,4", ",100,", "1,0000", "12,345.", "1e3", " "} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrMalformedAmount, raw)
	}
	for raw, want := range map[string]string{
		"1250":          "1250",
		" 1,250.00 ":    "1250",
		"-1,234,567.89": "-1234567.89",
		"0.5":           "0.5",
	} {
		got, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s parsed as %s", raw, got)
	}
}

func TestDecodeVouchersPolicy(t *testing.T) {
	payload := []byte(`[{"id": 4, "date": "2024-03-05", "voucher_type": "Journal", "number": "JRN-4",
		"entries": [{"ledger": 1, "debit": "100", "credit": "0"}, {"ledger": 2, "debit": "0", "credit": "90"}]}]`)

	_, err := DecodeVouchers(payload, DecodeOptions{Policy: VoucherPolicyStrict})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnbalancedVoucher))
	assert.Contains(t, err.Error(), "JRN-4")

	vouchers, err := DecodeVouchers(payload, DecodeOptions{Policy: VoucherPolicyTrust})
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}

func TestDecodeVouchersRejectsBadDate(t *testing.T) {
	_, err := DecodeVouchers([]byte(`[{"id": 1, "date": "05/03/2024", "voucher_type": "Journal", "entries": []}]`), DecodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestDecodeAccountGroupsNormalisesNature(t *testing.T) {
	groups, err := DecodeAccountGroups([]byte(`[
		{"id": 1, "name": "Assets", "nature": "assets", "parent": null},
		{"id": 5, "name": "Current Assets", "nature": "ASSETS", "parent": 1}
	]`))
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, NatureAssets, groups[0].Nature)
	assert.Nil(t, groups[0].ParentID)
	require.NotNil(t, groups[1].ParentID)
	assert.Equal(t, int64(1), *groups[1].ParentID)

	_, err = DecodeAccountGroups([]byte(`[{"id": 2, "name": "Odd", "nature": "EQUITYISH"}]`))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestParseVoucherPolicy(t *testing.T) {
	p, err := ParseVoucherPolicy("")
	require.NoError(t, err)
	assert.Equal(t, VoucherPolicyStrict, p)

	p, err = ParseVoucherPolicy(" Trust ")
	require.NoError(t, err)
	assert.Equal(t, VoucherPolicyTrust, p)

	_, err = ParseVoucherPolicy("lenient")
	assert.Error(t, err)
}
