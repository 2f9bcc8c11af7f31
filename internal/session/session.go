// Package session tracks who is signed in and which upstream tokens they carry.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors.
var (
	ErrInvalidToken = errors.New("session: invalid access token")
	ErrUnknownRole  = errors.New("session: unknown role")
)

// State is the lifecycle position of a session.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateLoggedOut     State = "logged_out"
)

// Role is the permission level granted by the accounting system.
type Role string

const (
	RoleViewer Role = "VIEWER"
	RoleEditor Role = "EDITOR"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Allows reports whether r includes the privileges of required.
func (r Role) Allows(required Role) bool {
	return r.rank() > 0 && r.rank() >= required.rank()
}

// ParseRole normalises a role claim. An empty claim means VIEWER.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if role == "" {
		return RoleViewer, nil
	}
	if role.rank() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// User is the signed-in principal.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Claims are the access token fields the service reads.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature. The
// token issuer verifies it on every upstream call.
func ParseClaims(token string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Username == "" {
		return Claims{}, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}
	return claims, nil
}

// Session holds per-request session data.
type Session struct {
	ID        string
	state     State
	user      User
	access    string
	refresh   string
	expiresAt time.Time
	isNew     bool
	dirty     bool
	destroyed bool
}

// New returns an anonymous session.
func New(id string) *Session {
	return &Session{ID: id, state: StateAnonymous, isNew: true, dirty: true}
}

// Login moves the session to Authenticated with the principal read from the
// access token claims.
func (s *Session) Login(access, refresh string) error {
	claims, err := ParseClaims(access)
	if err != nil {
		return err
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return err
	}
	s.state = StateAuthenticated
	s.user = User{Username: claims.Username, Role: role}
	s.access = access
	s.refresh = refresh
	s.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	s.dirty = true
	return nil
}

// Logout clears the principal and tokens.
func (s *Session) Logout() {
	s.state = StateLoggedOut
	s.user = User{}
	s.access = ""
	s.refresh = ""
	s.expiresAt = time.Time{}
	s.dirty = true
}

// Destroy marks the session for deletion on commit: the Redis key is removed
// and the cookie expired.
func (s *Session) Destroy() {
	if s == nil {
		return
	}
	s.destroyed = true
}

// Expired reports whether an authenticated session carries a lapsed access token.
func (s *Session) Expired(now time.Time) bool {
	return s.state == StateAuthenticated && !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

// expire drops an authenticated session back to anonymous.
func (s *Session) expire() {
	s.state = StateAnonymous
	s.user = User{}
	s.access = ""
	s.refresh = ""
	s.expiresAt = time.Time{}
	s.dirty = true
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// User returns the signed-in principal, zero when not authenticated.
func (s *Session) User() User { return s.user }

// AccessToken returns the upstream bearer token.
func (s *Session) AccessToken() string { return s.access }

// RefreshToken returns the upstream refresh token.
func (s *Session) RefreshToken() string { return s.refresh }

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s != nil && s.state == StateAuthenticated
}

// Has reports whether the session user holds at least role.
func (s *Session) Has(role Role) bool {
	return s.Authenticated() && s.user.Role.Allows(role)
}

func (s *Session) CanView() bool  { return s.Has(RoleViewer) }
func (s *Session) CanEdit() bool  { return s.Has(RoleEditor) }
func (s *Session) CanAdmin() bool { return s.Has(RoleAdmin) }
