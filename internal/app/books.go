package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	"github.com/ledgerdesk/ledgerdesk/internal/books/pgsource"
	"github.com/ledgerdesk/ledgerdesk/internal/books/upstream"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/session"
)

// BooksStack bundles the books service with the clients it was built from.
type BooksStack struct {
	Service  *books.Service
	Upstream *upstream.Client
	Pool     *pgxpool.Pool
}

// NewBooksStack builds the books service for the configured source. The
// upstream client is always built since sign-in goes through it. Requests
// carry the caller's session token and fall back to UPSTREAM_SERVICE_TOKEN.
func NewBooksStack(ctx context.Context, cfg *Config, logger *slog.Logger) (*BooksStack, error) {
	decode, err := cfg.DecodeOptions()
	if err != nil {
		return nil, err
	}
	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.UpstreamTimeout,
		Token:   upstream.FirstToken(session.AccessToken, upstream.StaticToken(cfg.UpstreamServiceToken)),
		Decode:  decode,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	stack := &BooksStack{Upstream: client}
	var source books.Source = client
	if cfg.BooksSource == SourcePostgres {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 8})
		if err != nil {
			return nil, fmt.Errorf("books source: %w", err)
		}
		stack.Pool = pool
		source = pgsource.New(pool, decode)
	}

	stack.Service = books.NewService(source, books.ServiceConfig{
		Tolerance: decode.Tolerance,
		FlightKey:    session.Username,
		FetchTimeout: 3 * cfg.UpstreamTimeout,
	}, logger)
	logger.Info("books source ready", slog.String("source", cfg.BooksSource), slog.String("voucher_policy", string(decode.Policy)))
	return stack, nil
}

// Ready reports whether the books source answers. A 401 from the accounting
// API still proves it is reachable.
func (s *BooksStack) Ready(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	if err := s.Upstream.Ping(ctx); err != nil && !errors.Is(err, upstream.ErrUnauthorized) {
		return err
	}
	return nil
}

// RefreshFunc adapts the upstream token refresh for the session store.
func (s *BooksStack) RefreshFunc() session.RefreshFunc {
	return func(ctx context.Context, refresh string) (string, string, error) {
		tokens, err := s.Upstream.Refresh(ctx, refresh)
		if err != nil {
			return "", "", err
		}
		return tokens.Access, tokens.Refresh, nil
	}
}

// Close releases the database pool when one was opened.
func (s *BooksStack) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}
