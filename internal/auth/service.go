package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerdesk/ledgerdesk/internal/books/upstream"
	"github.com/ledgerdesk/ledgerdesk/internal/session"
)

// Service wraps authentication business rules.
type Service struct {
	authenticator Authenticator
}

// NewService constructs a new Service.
func NewService(authenticator Authenticator) *Service {
	return &Service{authenticator: authenticator}
}

// Login authenticates against the token issuer and signs sess in.
func (s *Service) Login(ctx context.Context, sess *session.Session, username, password string) error {
	tokens, err := s.authenticator.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("auth: login: %w", err)
	}
	if err := sess.Login(tokens.Access, tokens.Refresh); err != nil {
		return fmt.Errorf("auth: read token claims: %w", err)
	}
	return nil
}

// Describe reports who the session belongs to.
func (s *Service) Describe(sess *session.Session) Me {
	if sess == nil {
		return Me{State: string(session.StateAnonymous)}
	}
	me := Me{State: string(sess.State())}
	if sess.Authenticated() {
		user := sess.User()
		me.Username = user.Username
		me.Role = string(user.Role)
		me.CanEdit = sess.CanEdit()
		me.CanAdmin = sess.CanAdmin()
	}
	return me
}
