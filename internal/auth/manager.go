package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/joshp123/godaikin/internal/logging"
)

// DefaultExpiryBuffer is subtracted from the token expiry before it is considered stale.
const DefaultExpiryBuffer = 5 * time.Minute

const idTokenKey = "id_token"

// Exchanger talks to the identity provider. Both calls return a complete
// credential record; the identity token travels as the "id_token" extra.
type Exchanger interface {
	InitiateAuth(ctx context.Context, username, password string) (*oauth2.Token, error)
	RefreshAuth(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Manager owns the bridge credential and hands out the current identity token.
type Manager struct {
	exchanger Exchanger
	username  string
	password  string
	buffer    time.Duration
	now       func() time.Time
	logger    *zap.Logger

	// mu is held across exchanges so concurrent callers share one refresh.
	mu    sync.Mutex
	token *oauth2.Token
}

func NewManager(exchanger Exchanger, username, password string, logger *zap.Logger) *Manager {
	return &Manager{
		exchanger: exchanger,
		username:  username,
		password:  password,
		buffer:    DefaultExpiryBuffer,
		now:       time.Now,
		logger:    logging.OrNop(logger).Named("auth"),
	}
}

// Token returns the identity token, logging in or refreshing first when needed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.token == nil:
		if err := m.initiate(ctx); err != nil {
			return "", err
		}
	case !m.token.Expiry.After(m.now().Add(m.buffer)):
		if err := m.refresh(ctx); err != nil {
			return "", err
		}
	}

	return IDToken(m.token), nil
}

// ExpiresAt reports the expiry of the held credential, zero when none is held.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return time.Time{}
	}
	return m.token.Expiry
}

func (m *Manager) initiate(ctx context.Context) error {
	tok, err := m.exchanger.InitiateAuth(ctx, m.username, m.password)
	if err == nil && IDToken(tok) == "" {
		err = errors.New("identity token missing from response")
	}
	if err != nil {
		return m.fail(OpInitiate, err)
	}
	m.store(OpInitiate, tok)
	m.logger.Info("authenticated", zap.Time("expires_at", tok.Expiry))
	return nil
}

func (m *Manager) refresh(ctx context.Context) error {
	tok, err := m.exchanger.RefreshAuth(ctx, m.token.RefreshToken)
	if err == nil && IDToken(tok) == "" {
		err = errors.New("identity token missing from response")
	}
	if err != nil {
		return m.fail(OpRefresh, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = m.token.RefreshToken
	}
	m.store(OpRefresh, tok)
	m.logger.Info("token refreshed", zap.Time("expires_at", tok.Expiry))
	return nil
}

func (m *Manager) store(op string, tok *oauth2.Token) {
	m.token = tok
	exchangeTotal.WithLabelValues(op, "success").Inc()
	tokenValid.Set(1)
	tokenExpiry.Set(float64(tok.Expiry.Unix()))
}

func (m *Manager) fail(op string, err error) error {
	exchangeTotal.WithLabelValues(op, "failure").Inc()
	tokenValid.Set(0)
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return &Error{Op: op, Err: err}
}

// IDToken extracts the identity token carried in the token extras.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	v, _ := tok.Extra(idTokenKey).(string)
	return v
}

// WithIDToken attaches an identity token to tok.
func WithIDToken(tok *oauth2.Token, idToken string) *oauth2.Token {
	return tok.WithExtra(map[string]any{idTokenKey: idToken})
}
