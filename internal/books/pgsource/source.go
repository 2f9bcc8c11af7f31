// Package pgsource reads books collections directly from the accounting
// database. Expected tables:
//
//	account_groups(id, name, nature, parent_id)
//	ledgers(id, name, group_id, opening_balance, created_at)
//	vouchers(id, date, voucher_type, number, narration)
//	voucher_entries(id, voucher_id, ledger_id, debit, credit)
package pgsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
)

// Querier is the read surface shared by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source satisfies books.Source and books.SnapshotLoader.
type Source struct {
	conn   db.Beginner
	decode books.DecodeOptions
}

// New constructs Source over a pool or connection.
func New(conn db.Beginner, decode books.DecodeOptions) *Source {
	return &Source{conn: conn, decode: decode}
}

// LoadSnapshot reads every collection inside one read-only transaction.
func (s *Source) LoadSnapshot(ctx context.Context) (books.Snapshot, error) {
	var snap books.Snapshot
	err := db.WithReadTx(ctx, s.conn, func(tx pgx.Tx) error {
		var err error
		if snap.Groups, err = listGroups(ctx, tx); err != nil {
			return err
		}
		if snap.Ledgers, err = listLedgers(ctx, tx); err != nil {
			return err
		}
		snap.Vouchers, err = listVouchers(ctx, tx, s.decode)
		return err
	})
	if err != nil {
		return books.Snapshot{}, err
	}
	return snap, nil
}

// AccountGroups lists account groups.
func (s *Source) AccountGroups(ctx context.Context) ([]books.AccountGroup, error) {
	var groups []books.AccountGroup
	err := db.WithReadTx(ctx, s.conn, func(tx pgx.Tx) error {
		var err error
		groups, err = listGroups(ctx, tx)
		return err
	})
	return groups, err
}

// Ledgers lists ledgers.
func (s *Source) Ledgers(ctx context.Context) ([]books.Ledger, error) {
	var ledgers []books.Ledger
	err := db.WithReadTx(ctx, s.conn, func(tx pgx.Tx) error {
		var err error
		ledgers, err = listLedgers(ctx, tx)
		return err
	})
	return ledgers, err
}

// Vouchers lists vouchers with their entries.
func (s *Source) Vouchers(ctx context.Context) ([]books.Voucher, error) {
	var vouchers []books.Voucher
	err := db.WithReadTx(ctx, s.conn, func(tx pgx.Tx) error {
		var err error
		vouchers, err = listVouchers(ctx, tx, s.decode)
		return err
	})
	return vouchers, err
}

func listGroups(ctx context.Context, q Querier) ([]books.AccountGroup, error) {
	rows, err := q.Query(ctx, `SELECT id, name, nature, parent_id FROM account_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query account groups: %w", err)
	}
	defer rows.Close()
	var groups []books.AccountGroup
	for rows.Next() {
		var (
			g      books.AccountGroup
			nature string
		)
		if err := rows.Scan(&g.ID, &g.Name, &nature, &g.ParentID); err != nil {
			return nil, fmt.Errorf("pgsource: scan account group: %w", err)
		}
		g.Nature = books.Nature(strings.ToUpper(strings.TrimSpace(nature)))
		if !g.Nature.Valid() {
			return nil, fmt.Errorf("%w: account group %d nature %q", books.ErrInvalidRecord, g.ID, nature)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func listLedgers(ctx context.Context, q Querier) ([]books.Ledger, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.name, l.group_id, COALESCE(g.name, ''), l.opening_balance::text, l.created_at
FROM ledgers l LEFT JOIN account_groups g ON g.id = l.group_id
ORDER BY l.id`)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query ledgers: %w", err)
	}
	defer rows.Close()
	var ledgers []books.Ledger
	for rows.Next() {
		var (
			l       books.Ledger
			opening *string
			created *time.Time
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.GroupID, &l.GroupName, &opening, &created); err != nil {
			return nil, fmt.Errorf("pgsource: scan ledger: %w", err)
		}
		if opening == nil {
			return nil, fmt.Errorf("ledger %d opening_balance: %w: missing value", l.ID, books.ErrMalformedAmount)
		}
		if l.OpeningBalance, err = books.ParseAmount(*opening); err != nil {
			return nil, fmt.Errorf("ledger %d opening_balance: %w", l.ID, err)
		}
		if created != nil {
			l.CreatedAt = *created
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func listVouchers(ctx context.Context, q Querier, opts books.DecodeOptions) ([]books.Voucher, error) {
	rows, err := q.Query(ctx, `SELECT id, date, voucher_type, COALESCE(number, ''), COALESCE(narration, '')
FROM vouchers ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query vouchers: %w", err)
	}
	var vouchers []books.Voucher
	index := make(map[int64]int)
	for rows.Next() {
		var v books.Voucher
		if err := rows.Scan(&v.ID, &v.Date, &v.Type, &v.Number, &v.Narration); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pgsource: scan voucher: %w", err)
		}
		index[v.ID] = len(vouchers)
		vouchers = append(vouchers, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgsource: vouchers: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT e.voucher_id, e.ledger_id, COALESCE(l.name, ''), e.debit::text, e.credit::text
FROM voucher_entries e LEFT JOIN ledgers l ON l.id = e.ledger_id
ORDER BY e.voucher_id, e.id`)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query voucher entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			voucherID     int64
			e             books.VoucherEntry
			debit, credit *string
		)
		if err := rows.Scan(&voucherID, &e.LedgerID, &e.LedgerName, &debit, &credit); err != nil {
			return nil, fmt.Errorf("pgsource: scan voucher entry: %w", err)
		}
		pos, ok := index[voucherID]
		if !ok {
			continue
		}
		if e.Debit, err = amount(debit); err != nil {
			return nil, fmt.Errorf("voucher %d debit: %w", voucherID, err)
		}
		if e.Credit, err = amount(credit); err != nil {
			return nil, fmt.Errorf("voucher %d credit: %w", voucherID, err)
		}
		vouchers[pos].Entries = append(vouchers[pos].Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgsource: voucher entries: %w", err)
	}

	for _, v := range vouchers {
		if err := books.CheckVoucher(v, opts); err != nil {
			return nil, err
		}
	}
	return vouchers, nil
}

func amount(raw *string) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, fmt.Errorf("%w: missing value", books.ErrMalformedAmount)
	}
	return books.ParseAmount(*raw)
}
