// Package upstream reads books collections from the accounting REST API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledgerdesk/ledgerdesk/internal/books"
)

const maxBody = 32 << 20

// ErrUnauthorized is returned when the upstream rejects the bearer token or credentials.
var ErrUnauthorized = errors.New("upstream: unauthorized")

// StatusError reports a non-2xx answer from the upstream API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream: %s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("upstream: %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 answers.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TokenFunc resolves the bearer token for an outgoing request.
type TokenFunc func(ctx context.Context) string

// StaticToken always answers with token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) string { return token }
}

// FirstToken tries each TokenFunc in order and returns the first non-empty token.
func FirstToken(funcs ...TokenFunc) TokenFunc {
	return func(ctx context.Context) string {
		for _, fn := range funcs {
			if fn == nil {
				continue
			}
			if token := fn(ctx); token != "" {
				return token
			}
		}
		return ""
	}
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenFunc
	Decode  books.DecodeOptions
	Logger  *slog.Logger
}

// Client wraps interactions with the accounting API. It satisfies books.Source.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	token      TokenFunc
	decode     books.DecodeOptions
	logger     *slog.Logger
}

// NewClient constructs a new client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("upstream: base url required")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		token:  cfg.Token,
		decode: cfg.Decode,
		logger: logger,
	}, nil
}

// AccountGroups fetches every account group.
func (c *Client) AccountGroups(ctx context.Context) ([]books.AccountGroup, error) {
	payload, err := c.list(ctx, "account-groups/")
	if err != nil {
		return nil, err
	}
	return books.DecodeAccountGroups(payload)
}

// Ledgers fetches every ledger.
func (c *Client) Ledgers(ctx context.Context) ([]books.Ledger, error) {
	payload, err := c.list(ctx, "ledgers/")
	if err != nil {
		return nil, err
	}
	return books.DecodeLedgers(payload)
}

// Vouchers fetches every voucher with its entries.
func (c *Client) Vouchers(ctx context.Context) ([]books.Voucher, error) {
	payload, err := c.list(ctx, "vouchers/")
	if err != nil {
		return nil, err
	}
	return books.DecodeVouchers(payload, c.decode)
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, c.base.ResolveReference(&url.URL{Path: "account-groups/"}).String())
	return err
}

// list fetches a collection, following paginated "next" links, and returns a
// single JSON array.
func (c *Client) list(ctx context.Context, path string) ([]byte, error) {
	next := c.base.ResolveReference(&url.URL{Path: path}).String()
	var merged []json.RawMessage
	for pages := 0; next != ""; pages++ {
		if pages >= 1000 {
			return nil, fmt.Errorf("upstream: %s: too many pages", path)
		}
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			if pages == 0 {
				return body, nil
			}
			return nil, fmt.Errorf("upstream: %s: unexpected page format", path)
		}
		var page struct {
			Next    *string           `json:"next"`
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", books.ErrInvalidRecord, path, err)
		}
		if page.Results == nil {
			return nil, fmt.Errorf("%w: %s: object payload without results", books.ErrInvalidRecord, path)
		}
		merged = append(merged, page.Results...)
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	if merged == nil {
		merged = []json.RawMessage{}
	}
	return json.Marshal(merged)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("upstream: read %s: %w", req.URL.Path, err)
	}
	c.logger.Debug("upstream request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}
	return body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
