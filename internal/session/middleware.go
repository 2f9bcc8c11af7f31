package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

type contextKey struct{}

// WithSession stores the session in context.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext extracts the session from context.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}

// AccessToken returns the bearer token of the session in ctx, if any.
func AccessToken(ctx context.Context) string {
	sess := FromContext(ctx)
	if !sess.Authenticated() {
		return ""
	}
	return sess.AccessToken()
}

// Username returns the signed-in username in ctx, if any.
func Username(ctx context.Context) string {
	sess := FromContext(ctx)
	if !sess.Authenticated() {
		return ""
	}
	return sess.User().Username
}

type commitWriter struct {
	http.ResponseWriter
	store         *Store
	sess          *Session
	ctx           context.Context
	logger        *slog.Logger
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.store.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// Middleware loads the session before the handler runs and commits it right
// before the response header goes out.
func Middleware(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := store.Load(ctx, r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			ctx = WithSession(ctx, sess)
			wrapped := &commitWriter{ResponseWriter: w, store: store, sess: sess, ctx: ctx, logger: logger}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			if !wrapped.headerWritten {
				wrapped.WriteHeader(http.StatusOK)
			}
		})
	}
}

// RequireRole rejects requests without a signed-in user holding at least role.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := FromContext(r.Context())
			if !sess.Authenticated() {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !sess.Has(role) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "requires role "+string(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
