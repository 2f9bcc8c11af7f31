package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Tokens is the pair issued by the token endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair. Rejected credentials yield ErrUnauthorized.
func (c *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	return c.postTokens(ctx, "token/", map[string]string{
		"username": username,
		"password": password,
	})
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// is carried over when the endpoint does not rotate it.
func (c *Client) Refresh(ctx context.Context, refresh string) (Tokens, error) {
	tokens, err := c.postTokens(ctx, "token/refresh/", map[string]string{"refresh": refresh})
	if err != nil {
		return Tokens{}, err
	}
	if tokens.Refresh == "" {
		tokens.Refresh = refresh
	}
	return tokens, nil
}

func (c *Client) postTokens(ctx context.Context, path string, payload any) (Tokens, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Tokens{}, err
	}
	target := c.base.ResolveReference(&url.URL{Path: path}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return Tokens{}, err
	}
	var tokens Tokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("upstream: decode tokens: %w", err)
	}
	if tokens.Access == "" {
		return Tokens{}, fmt.Errorf("upstream: %s answered without an access token", path)
	}
	return tokens, nil
}
