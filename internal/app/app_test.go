package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
	"github.com/ledgerdesk/ledgerdesk/internal/observability"
	_ "github.com/ledgerdesk/ledgerdesk/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("BOOKS_SOURCE", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.BooksSource)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0 * * * *", cfg.IntegrityCron)

	opts, err := cfg.DecodeOptions()
	require.NoError(t, err)
	assert.Equal(t, books.VoucherPolicyStrict, opts.Policy)
	assert.Equal(t, "0.01", opts.Tolerance.String())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	t.Setenv("BOOKS_SOURCE", "sqlite")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("BOOKS_SOURCE", "upstream")
	t.Setenv("BOOKS_TOLERANCE", "-1")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("BOOKS_TOLERANCE", "0.01")
	t.Setenv("BOOKS_VOUCHER_POLICY", "lenient")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "development"}, Metrics: metrics})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `ledgerdesk_http_requests_total{code="200",route="/healthz"} 1`)
	assert.NotContains(t, res.Body.String(), "ledgerdesk_trial_balance_balanced")
}

func TestRouterReadiness(t *testing.T) {
	router := NewRouter(RouterParams{Ready: func(*http.Request) error { return errors.New("down") }})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestBooksStackUpstreamSource(t *testing.T) {
	cfg := &Config{
		BooksSource:        SourceUpstream,
		BooksTolerance:     "0.05",
		BooksVoucherPolicy: "trust",
		UpstreamBaseURL:    "http://127.0.0.1:1/api",
	}
	stack, err := NewBooksStack(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer stack.Close()

	assert.Nil(t, stack.Pool)
	assert.NotNil(t, stack.Upstream)
	assert.Equal(t, "0.05", stack.Service.Tolerance().String())
}
