package auth

import (
	"context"
	"errors"

	"github.com/ledgerdesk/ledgerdesk/internal/books/upstream"
)

// ErrInvalidCredentials is returned when the token issuer rejects a login.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Authenticator exchanges credentials for upstream tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (upstream.Tokens, error)
}

// Me describes the current session for clients.
type Me struct {
	State    string `json:"state"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	CanEdit  bool   `json:"can_edit"`
	CanAdmin bool   `json:"can_admin"`
}
