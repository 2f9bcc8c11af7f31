package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshFunc exchanges a refresh token for a fresh pair.
type RefreshFunc func(ctx context.Context, refresh string) (access, newRefresh string, err error)

// Options configures a Store.
type Options struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	Secure     bool
	Refresh    RefreshFunc
	Logger     *slog.Logger
	Now        func() time.Time
}

// Store keeps sessions in Redis behind a signed cookie.
type Store struct {
	client     redis.UniversalClient
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
	refresh    RefreshFunc
	logger     *slog.Logger
	now        func() time.Time
}

type payload struct {
	State     State     `json:"state"`
	User      User      `json:"user"`
	Access    string    `json:"access,omitempty"`
	Refresh   string    `json:"refresh,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewStore constructs a Store.
func NewStore(client redis.UniversalClient, opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = "ledgerdesk_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		client:     client,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		secret:     []byte(opts.Secret),
		refresh:    opts.Refresh,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// CookieName returns the cookie identifier used for sessions.
func (st *Store) CookieName() string { return st.cookieName }

// Load loads or creates a session for the request. A lapsed access token is
// refreshed when possible, otherwise the session becomes anonymous.
func (st *Store) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(st.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return New(st.newID()), nil
		}
		return nil, err
	}
	id, ok := st.verify(cookie.Value)
	if !ok {
		return New(st.newID()), nil
	}

	data, err := st.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return New(id), nil
		}
		return nil, err
	}
	var stored payload
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        id,
		state:     stored.State,
		user:      stored.User,
		access:    stored.Access,
		refresh:   stored.Refresh,
		expiresAt: stored.ExpiresAt,
	}
	if sess.state == "" {
		sess.state = StateAnonymous
	}
	if sess.Expired(st.now()) {
		st.renew(ctx, sess)
	}
	return sess, nil
}

func (st *Store) renew(ctx context.Context, sess *Session) {
	if st.refresh != nil && sess.refresh != "" {
		access, refresh, err := st.refresh(ctx, sess.refresh)
		if err == nil {
			if refresh == "" {
				refresh = sess.refresh
			}
			if err = sess.Login(access, refresh); err == nil && !sess.Expired(st.now()) {
				return
			}
		}
		st.logger.Info("session refresh failed", slog.String("user", sess.user.Username), slog.Any("error", err))
	}
	sess.expire()
}

// Commit persists the session and writes the cookie.
func (st *Store) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		if err := st.client.Del(ctx, redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     st.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   st.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}
	if sess.ID == "" {
		sess.ID = st.newID()
	}
	// Anonymous sessions nobody touched are not worth a Redis key.
	if sess.isNew && sess.state == StateAnonymous {
		return nil
	}
	if sess.dirty {
		data, err := json.Marshal(payload{
			State:     sess.state,
			User:      sess.user,
			Access:    sess.access,
			Refresh:   sess.refresh,
			ExpiresAt: sess.expiresAt,
		})
		if err != nil {
			return err
		}
		if err := st.client.Set(ctx, redisKey(sess.ID), data, st.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	} else if err := st.client.Expire(ctx, redisKey(sess.ID), st.ttl).Err(); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     st.cookieName,
		Value:    st.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  st.now().Add(st.ttl),
	})
	return nil
}

func (st *Store) sign(id string) string {
	if len(st.secret) == 0 {
		return id
	}
	mac := hmac.New(sha256.New, st.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (st *Store) verify(value string) (string, bool) {
	if len(st.secret) == 0 {
		return value, value != ""
	}
	id, _, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(st.sign(id)), []byte(value))
}

func (st *Store) newID() string {
	return uuid.NewString()
}

func redisKey(id string) string {
	return "session:" + id
}
