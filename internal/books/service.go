package books

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source supplies read-only collections from the accounting system.
type Source interface {
	AccountGroups(ctx context.Context) ([]AccountGroup, error)
	Ledgers(ctx context.Context) ([]Ledger, error)
	Vouchers(ctx context.Context) ([]Voucher, error)
}

// SnapshotLoader is implemented by sources that can read every collection
// from one consistent point in time. Service prefers it over parallel fetches.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// ServiceConfig tunes derived computations.
type ServiceConfig struct {
	Tolerance decimal.Decimal
	// FlightKey partitions concurrent snapshot fetches. Callers that resolve
	// to the same key share one in-flight fetch. Nil shares across everyone.
	FlightKey func(ctx context.Context) string
	// FetchTimeout bounds a shared fetch. It runs detached from the first
	// caller's cancellation so followers are not failed by it.
	FetchTimeout time.Duration
}

// DefaultFetchTimeout bounds shared snapshot fetches when none is configured.
const DefaultFetchTimeout = 30 * time.Second

// Service takes snapshots from a Source and derives the books views from them.
type Service struct {
	source Source
	cfg    ServiceConfig
	logger *slog.Logger
	flight singleflight.Group
}

// NewService constructs a Service.
func NewService(source Source, cfg ServiceConfig, logger *slog.Logger) *Service {
	if !cfg.Tolerance.IsPositive() {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cfg: cfg, logger: logger}
}

// Tolerance exposes the configured trial balance tolerance.
func (s *Service) Tolerance() decimal.Decimal {
	return s.cfg.Tolerance
}

// Snapshot fetches groups, ledgers and vouchers concurrently and returns only
// once all three are complete. Any failure discards the partial data.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	key := "snapshot"
	if s.cfg.FlightKey != nil {
		key += ":" + s.cfg.FlightKey(ctx)
	}
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx)
	})
	var (
		snap Snapshot
		err  error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		err = res.Err
		if err == nil {
			snap = res.Val.(Snapshot)
		}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	if missing := UnknownReferences(snap.Ledgers, snap.Vouchers); len(missing) > 0 {
		s.logger.Warn("vouchers reference ledgers outside snapshot",
			slog.Int("count", len(missing)), slog.Any("ledger_ids", missing))
	}
	return snap, nil
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	if loader, ok := s.source.(SnapshotLoader); ok {
		return loader.LoadSnapshot(ctx)
	}
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groups, err := s.source.AccountGroups(gctx)
		if err != nil {
			return fmt.Errorf("account groups: %w", err)
		}
		snap.Groups = groups
		return nil
	})
	g.Go(func() error {
		ledgers, err := s.source.Ledgers(gctx)
		if err != nil {
			return fmt.Errorf("ledgers: %w", err)
		}
		snap.Ledgers = ledgers
		return nil
	})
	g.Go(func() error {
		vouchers, err := s.source.Vouchers(gctx)
		if err != nil {
			return fmt.Errorf("vouchers: %w", err)
		}
		snap.Vouchers = vouchers
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LedgerBalances returns every ledger with its derived balance.
func (s *Service) LedgerBalances(ctx context.Context) ([]LedgerBalance, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return LedgerBalances(snap.Ledgers, ComputeBalances(snap.Ledgers, snap.Vouchers)), nil
}

// TrialBalance builds the trial balance report from a fresh snapshot.
func (s *Service) TrialBalance(ctx context.Context) (TrialBalanceReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return TrialBalanceReport{}, err
	}
	report := BuildTrialBalance(snap, s.cfg.Tolerance)
	if !report.Result.IsBalanced {
		s.logger.Warn("trial balance does not tally",
			slog.String("total_debit", report.Result.TotalDebit.StringFixed(2)),
			slog.String("total_credit", report.Result.TotalCredit.StringFixed(2)),
			slog.String("difference", report.Result.Difference.StringFixed(2)))
	}
	return report, nil
}

// DayBook builds the day book from a fresh snapshot.
func (s *Service) DayBook(ctx context.Context, filter DayBookFilter) (DayBook, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return DayBook{}, err
	}
	return BuildDayBook(snap.Vouchers, filter), nil
}

// Statement builds the running statement for one ledger.
func (s *Service) Statement(ctx context.Context, ledgerID int64) (LedgerStatement, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return LedgerStatement{}, err
	}
	ledger, ok := FindLedger(snap.Ledgers, ledgerID)
	if !ok {
		return LedgerStatement{}, fmt.Errorf("%w: %d", ErrLedgerNotFound, ledgerID)
	}
	return BuildLedgerStatement(ledger, snap.Vouchers), nil
}
