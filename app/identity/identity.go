// Package identity opens studio sessions from identity provider tokens and checks that
// privileged calls carry a fresh token of the signed-in user.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/keybox"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/go-chi/jwtauth/v5"
)

type ctxKey int

const sessionKey ctxKey = iota

const (
	claimAccountID   = "account_id"
	claimAccountType = "account_type"
	claimProfileID   = "profile_id"
	claimMethod      = "method"

	defaultCookieName = "studio_session"
	defaultTTL        = 14 * 24 * time.Hour
)

// Session is the signed-in state carried in the session cookie.
type Session struct {
	Subject     string              `json:"subject"`
	AccountID   string              `json:"account_id"`
	AccountType content.AccountType `json:"account_type"`
	ProfileID   string              `json:"profile_id"`
	Method      Method              `json:"method"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// Identity is a verified caller of a privileged operation.
type Identity struct {
	Token   string
	Session Session
	Account content.Account
}

// Accounts loads accounts for a subject.
type Accounts interface {
	Account(ctx context.Context, token, subject string) (*content.Account, error)
	InvalidateAccount(subject string)
}

type Authenticator struct {
	verifier   Verifier
	keyfob     *keybox.Keyfob
	validator  *keybox.Validator
	accounts   Accounts
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     logging.KVLogger
}

type Option func(*Authenticator)

func WithCookie(name string, ttl time.Duration, secure bool) Option {
	return func(a *Authenticator) {
		if name != "" {
			a.cookieName = name
		}
		if ttl > 0 {
			a.ttl = ttl
		}
		a.secure = secure
	}
}

func WithLogger(logger logging.KVLogger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

func New(v Verifier, kf *keybox.Keyfob, accounts Accounts, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:   v,
		keyfob:     kf,
		validator:  kf.Validator(),
		accounts:   accounts,
		cookieName: defaultCookieName,
		ttl:        defaultTTL,
		secure:     true,
		logger:     logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignIn verifies an identity provider token and issues a session for its account,
// acting as the account's default profile.
func (a *Authenticator) SignIn(ctx context.Context, rawIDToken string) (Session, *http.Cookie, error) {
	claims, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		metrics.AuthStale.Inc()
		return Session{}, nil, err
	}
	acc, err := a.accounts.Account(ctx, rawIDToken, claims.Subject)
	if err != nil {
		return Session{}, nil, err
	}
	s := Session{
		Subject:     claims.Subject,
		AccountID:   acc.ID,
		AccountType: acc.Type,
		Method:      claims.Method,
		ExpiresAt:   time.Now().Add(a.ttl).Truncate(time.Second),
	}
	if p, ok := acc.DefaultProfile(); ok {
		s.ProfileID = p.ID
	}
	c, err := a.issue(s)
	if err != nil {
		return Session{}, nil, err
	}
	a.logger.Info("signed in", "account_id", s.AccountID, "method", s.Method)
	return s, c, nil
}

// SwitchProfile reissues the session acting as another profile of the same account.
func (a *Authenticator) SwitchProfile(s Session, acc content.Account, profileID string) (Session, *http.Cookie, error) {
	if acc.ID != s.AccountID || !acc.Owns(profileID) {
		return Session{}, nil, errors.NotFound("profile %s not found", profileID)
	}
	s.ProfileID = profileID
	c, err := a.issue(s)
	return s, c, err
}

func (a *Authenticator) issue(s Session) (*http.Cookie, error) {
	token, err := a.keyfob.GenerateToken(
		s.Subject, s.ExpiresAt,
		claimAccountID, s.AccountID,
		claimAccountType, string(s.AccountType),
		claimProfileID, s.ProfileID,
		claimMethod, string(s.Method),
	)
	if err != nil {
		return nil, errors.Err(err)
	}
	return &http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// SignOut returns a cookie that removes the session.
func (a *Authenticator) SignOut(s Session) *http.Cookie {
	if s.Subject != "" {
		a.accounts.InvalidateAccount(s.Subject)
	}
	return &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Parse reads the session from a session token.
func (a *Authenticator) Parse(token string) (Session, error) {
	t, err := a.validator.ParseToken(token)
	if err != nil {
		return Session{}, errors.AuthStale("session invalid: %v", err)
	}
	return Session{
		Subject:     t.Subject(),
		AccountID:   keybox.StringClaim(t, claimAccountID),
		AccountType: content.AccountType(keybox.StringClaim(t, claimAccountType)),
		ProfileID:   keybox.StringClaim(t, claimProfileID),
		Method:      Method(keybox.StringClaim(t, claimMethod)),
		ExpiresAt:   t.Expiration(),
	}, nil
}

// Middleware attaches a valid session from the cookie to the request context.
// Requests without one pass through unchanged.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.cookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		s, err := a.Parse(c.Value)
		if err != nil {
			a.logger.Debug("dropping invalid session", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// Fresh returns the caller of a privileged request. It requires a session and an identity
// token of the same subject, sent as a bearer token or, for event streams, the jwt query
// parameter. Anything else is a stale identity.
func (a *Authenticator) Fresh(r *http.Request) (Identity, error) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		return Identity{}, a.stale("not signed in")
	}
	token := jwtauth.TokenFromHeader(r)
	if token == "" {
		token = jwtauth.TokenFromQuery(r)
	}
	if token == "" {
		return Identity{}, a.stale("identity token missing")
	}
	claims, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		metrics.AuthStale.Inc()
		return Identity{}, err
	}
	if claims.Subject != s.Subject {
		a.logger.Warn("identity token subject mismatch", "account_id", s.AccountID)
		return Identity{}, a.stale("identity token does not match session")
	}
	acc, err := a.accounts.Account(r.Context(), token, s.Subject)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Token: token, Session: s, Account: *acc}, nil
}

func (a *Authenticator) stale(msg string) error {
	metrics.AuthStale.Inc()
	return errors.AuthStale("%s", msg)
}
