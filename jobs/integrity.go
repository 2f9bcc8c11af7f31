package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	jobmetrics "github.com/ledgerdesk/ledgerdesk/internal/jobs"
)

// TrialBalancer produces the trial balance report for the integrity check.
type TrialBalancer interface {
	TrialBalance(ctx context.Context) (books.TrialBalanceReport, error)
}

// BalanceGauge receives the latest integrity outcome.
type BalanceGauge interface {
	ObserveTrialBalance(difference float64, balanced bool, at time.Time)
}

// AlertPublisher delivers imbalance alerts to downstream consumers.
type AlertPublisher interface {
	PublishImbalance(ctx context.Context, alert ImbalanceAlert) error
}

const integrityLockKey = "lock:" + TaskBooksIntegrityCheck

// IntegrityCheckJob validates that the books tally and reports when they don't.
type IntegrityCheckJob struct {
	Books   TrialBalancer
	Gauge   BalanceGauge
	Alerts  AlertPublisher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// Locker keeps runs from overlapping across workers. Optional.
	Locker  *redislock.Client
	LockTTL time.Duration
	clock   func() time.Time
}

// NewIntegrityCheckJob constructs the job handler. Gauge and alerts are optional.
func NewIntegrityCheckJob(balancer TrialBalancer, gauge BalanceGauge, alerts AlertPublisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityCheckJob {
	return &IntegrityCheckJob{
		Books:   balancer,
		Gauge:   gauge,
		Alerts:  alerts,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity check.
func (j *IntegrityCheckJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.Books == nil {
		return errors.New("books integrity: dependencies not configured")
	}
	var payload IntegrityCheckPayload
	if len(task.Payload()) > 0 {
		if uerr := json.Unmarshal(task.Payload(), &payload); uerr != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RequestedBy == "" {
		payload.RequestedBy = "scheduler"
	}
	if payload.RequestedAt.IsZero() {
		payload.RequestedAt = j.now()
	}

	tracker := j.Metrics.Track(TaskBooksIntegrityCheck)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.log().With(
		slog.String("requested_by", payload.RequestedBy),
		slog.Time("requested_at", payload.RequestedAt),
	)
	if j.Locker != nil {
		ttl := j.LockTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		lock, lerr := j.Locker.Obtain(ctx, integrityLockKey, ttl, nil)
		if errors.Is(lerr, redislock.ErrNotObtained) {
			logger.Info("integrity check already running, skipping")
			return nil
		}
		if lerr != nil {
			return lerr
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}
	start := j.now()
	_, err = j.Run(ctx, logger)
	if err != nil {
		return err
	}
	logger.Info("books integrity check completed", slog.Duration("duration", j.now().Sub(start)))
	return nil
}

// Run performs one check outside the queue. It is also used by the CLI.
func (j *IntegrityCheckJob) Run(ctx context.Context, logger *slog.Logger) (books.TrialBalanceResult, error) {
	if logger == nil {
		logger = j.log()
	}
	report, err := j.Books.TrialBalance(ctx)
	if err != nil {
		logger.Error("trial balance unavailable", slog.Any("error", err))
		return books.TrialBalanceResult{}, err
	}
	result := report.Result
	checkedAt := j.now()
	difference, _ := result.Difference.Float64()
	if j.Gauge != nil {
		j.Gauge.ObserveTrialBalance(difference, result.IsBalanced, checkedAt)
	}
	if len(report.UnknownLedgers) > 0 {
		logger.Warn("vouchers reference unknown ledgers", slog.Any("ledger_ids", report.UnknownLedgers))
	}
	if result.IsBalanced {
		logger.Info("trial balance tallies",
			slog.String("total_debit", result.TotalDebit.StringFixed(2)),
			slog.String("total_credit", result.TotalCredit.StringFixed(2)),
		)
		return result, nil
	}

	j.Metrics.AddImbalance()
	logger.Warn("trial balance does not tally",
		slog.String("total_debit", result.TotalDebit.StringFixed(2)),
		slog.String("total_credit", result.TotalCredit.StringFixed(2)),
		slog.String("difference", result.Difference.StringFixed(2)),
	)
	if j.Alerts == nil {
		return result, nil
	}
	alert := NewImbalanceAlert(result, report.UnknownLedgers, checkedAt)
	if perr := j.Alerts.PublishImbalance(ctx, alert); perr != nil {
		// Delivery failures never fail the run.
		j.Metrics.AddAlert("failed")
		logger.Error("publish imbalance alert", slog.String("alert_id", alert.ID), slog.Any("error", perr))
		return result, nil
	}
	j.Metrics.AddAlert("published")
	logger.Info("imbalance alert published", slog.String("alert_id", alert.ID))
	return result, nil
}

func (j *IntegrityCheckJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityCheckJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBooksIntegrityCheck))
	}
	return slog.Default().With(slog.String("job", TaskBooksIntegrityCheck))
}
