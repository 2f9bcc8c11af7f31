// Package bookshttp exposes the books views over HTTP.
package bookshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	"github.com/ledgerdesk/ledgerdesk/internal/books/export"
	"github.com/ledgerdesk/ledgerdesk/internal/books/upstream"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service is the read side the handler depends on.
type Service interface {
	LedgerBalances(ctx context.Context) ([]books.LedgerBalance, error)
	TrialBalance(ctx context.Context) (books.TrialBalanceReport, error)
	DayBook(ctx context.Context, filter books.DayBookFilter) (books.DayBook, error)
	Statement(ctx context.Context, ledgerID int64) (books.LedgerStatement, error)
}

// Enqueuer schedules an integrity check run and returns its task id.
type Enqueuer interface {
	EnqueueIntegrityCheck(ctx context.Context, requestedBy string) (string, error)
}

// Handler serves the /books routes.
type Handler struct {
	service  Service
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler constructs the books HTTP handler. enqueuer may be nil when no
// job queue is configured.
func NewHandler(service Service, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// MountRoutes registers books endpoints under the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(session.RequireRole(session.RoleViewer))
		r.Get("/ledgers", h.listLedgers)
		r.Get("/ledgers/{id}/statement", h.statement)
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/trial-balance.csv", h.trialBalanceCSV)
		r.Get("/trial-balance.xlsx", h.trialBalanceXLSX)
		r.Get("/daybook", h.dayBook)
		r.Get("/daybook.csv", h.dayBookCSV)
	})
	r.With(session.RequireRole(session.RoleEditor)).Post("/integrity-check", h.integrityCheck)
}

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LedgerBalances(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ledgers": rows})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: ledger id must be a positive integer", httpx.ErrValidation))
		return
	}
	stmt, err := h.service.Statement(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TrialBalance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) trialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TrialBalance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	httpx.Attachment(w, "text/csv; charset=utf-8", "trial-balance-"+now.Format("20060102")+".csv")
	if err := export.WriteTrialBalanceCSV(w, report, now); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) trialBalanceXLSX(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TrialBalance(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	httpx.Attachment(w, xlsxContentType, "trial-balance-"+now.Format("20060102")+".xlsx")
	if err := export.WriteTrialBalanceXLSX(w, report, now); err != nil {
		h.logger.Error("write trial balance xlsx", slog.Any("error", err))
	}
}

func (h *Handler) dayBook(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDayBookFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.DayBook(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) dayBookCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDayBookFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.DayBook(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	httpx.Attachment(w, "text/csv; charset=utf-8", "daybook-"+now.Format("20060102")+".csv")
	if err := export.WriteDayBookCSV(w, book, now); err != nil {
		h.logger.Error("write day book csv", slog.Any("error", err))
	}
}

func (h *Handler) integrityCheck(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background jobs are not configured")
		return
	}
	taskID, err := h.enqueuer.EnqueueIntegrityCheck(r.Context(), session.Username(r.Context()))
	if err != nil {
		h.logger.Error("enqueue integrity check", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue integrity check")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func parseDayBookFilter(r *http.Request) (books.DayBookFilter, error) {
	q := r.URL.Query()
	filter := books.DayBookFilter{VoucherType: q.Get("type")}
	var err error
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = books.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("%w: from: %v", httpx.ErrValidation, err)
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = books.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("%w: to: %v", httpx.ErrValidation, err)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, fmt.Errorf("%w: to precedes from", httpx.ErrValidation)
	}
	return filter, nil
}

// fail maps books errors onto problem responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, books.ErrLedgerNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, books.ErrMalformedAmount),
		errors.Is(err, books.ErrNegativeAmount),
		errors.Is(err, books.ErrUnbalancedVoucher),
		errors.Is(err, books.ErrInvalidRecord):
		h.logger.Warn("books data rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrInvalidData, err))
	case errors.Is(err, upstream.ErrUnauthorized):
		httpx.RespondError(w, fmt.Errorf("%w: upstream rejected the session token", httpx.ErrUnauthorized))
	case errors.Is(err, books.ErrSnapshotUnavailable):
		h.logger.Error("books snapshot unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: could not load ledgers and vouchers", httpx.ErrUnavailable))
	default:
		h.logger.Error("books request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
