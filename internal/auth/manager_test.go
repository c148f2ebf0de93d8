package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	mu            sync.Mutex
	now           func() time.Time
	ttl           time.Duration
	initiateCalls int
	refreshCalls  int
	refreshTokens []string
	initiateErr   error
	refreshErr    error
	issueRefresh  bool
}

func (f *fakeExchanger) InitiateAuth(_ context.Context, username, password string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateCalls++
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	tok := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       f.now().Add(f.ttl),
	}
	return WithIDToken(tok, fmt.Sprintf("id-%s-1", username)), nil
}

func (f *fakeExchanger) RefreshAuth(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	tok := &oauth2.Token{
		AccessToken: fmt.Sprintf("access-%d", f.refreshCalls+1),
		Expiry:      f.now().Add(f.ttl),
	}
	if f.issueRefresh {
		tok.RefreshToken = fmt.Sprintf("refresh-%d", f.refreshCalls+1)
	}
	return WithIDToken(tok, fmt.Sprintf("id-refreshed-%d", f.refreshCalls)), nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *fakeExchanger, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ex := &fakeExchanger{now: clock.Now, ttl: time.Hour}
	m := NewManager(ex, "user", "pass", nil)
	m.now = clock.Now
	return m, ex, clock
}

func TestTokenInitialExchangeOnce(t *testing.T) {
	m, ex, _ := newTestManager(t)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "id-user-1" {
		t.Fatalf("token = %q", tok)
	}
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("second token: %v", err)
	}
	if ex.initiateCalls != 1 || ex.refreshCalls != 0 {
		t.Fatalf("initiate=%d refresh=%d, want 1/0", ex.initiateCalls, ex.refreshCalls)
	}
}

func TestTokenRefreshesInsideBuffer(t *testing.T) {
	m, ex, clock := newTestManager(t)

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}

	// Still outside the buffer: no exchange.
	clock.Advance(54 * time.Minute)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	if ex.refreshCalls != 0 {
		t.Fatalf("refreshed too early")
	}

	// Exactly at expiry minus buffer.
	clock.Advance(time.Minute)
	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "id-refreshed-1" {
		t.Fatalf("token = %q", tok)
	}
	if ex.initiateCalls != 1 || ex.refreshCalls != 1 {
		t.Fatalf("initiate=%d refresh=%d, want 1/1", ex.initiateCalls, ex.refreshCalls)
	}
	if ex.refreshTokens[0] != "refresh-1" {
		t.Fatalf("refresh used %q", ex.refreshTokens[0])
	}

	// The carried-over refresh token is reused on the next refresh.
	clock.Advance(time.Hour)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	if ex.refreshTokens[1] != "refresh-1" {
		t.Fatalf("second refresh used %q", ex.refreshTokens[1])
	}
}

func TestTokenRefreshAdoptsIssuedRefreshToken(t *testing.T) {
	m, ex, clock := newTestManager(t)
	ex.issueRefresh = true

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	if got := ex.refreshTokens[1]; got != "refresh-2" {
		t.Fatalf("second refresh used %q, want refresh-2", got)
	}
}

func TestTokenInitiateFailureIsAuthError(t *testing.T) {
	m, ex, _ := newTestManager(t)
	ex.initiateErr = errors.New("NotAuthorizedException")

	_, err := m.Token(context.Background())
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if authErr.Op != OpInitiate {
		t.Fatalf("op = %s", authErr.Op)
	}
}

func TestTokenRefreshFailureDoesNotFallBackToLogin(t *testing.T) {
	m, ex, clock := newTestManager(t)

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	ex.refreshErr = errors.New("refresh token revoked")
	clock.Advance(2 * time.Hour)

	_, err := m.Token(context.Background())
	var authErr *Error
	if !errors.As(err, &authErr) || authErr.Op != OpRefresh {
		t.Fatalf("expected refresh auth error, got %v", err)
	}
	if ex.initiateCalls != 1 {
		t.Fatalf("initiate calls = %d, want 1", ex.initiateCalls)
	}
}

func TestTokenConcurrentCallersShareOneExchange(t *testing.T) {
	m, ex, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Token(context.Background()); err != nil {
				t.Errorf("token: %v", err)
			}
		}()
	}
	wg.Wait()

	if ex.initiateCalls != 1 {
		t.Fatalf("initiate calls = %d, want 1", ex.initiateCalls)
	}
}

func TestTokenMissingIdentityToken(t *testing.T) {
	m := NewManager(exchangerFunc(func() (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}, nil
	}), "u", "p", nil)

	if _, err := m.Token(context.Background()); err == nil {
		t.Fatalf("expected error for missing identity token")
	}
}

type exchangerFunc func() (*oauth2.Token, error)

func (f exchangerFunc) InitiateAuth(context.Context, string, string) (*oauth2.Token, error) {
	return f()
}

func (f exchangerFunc) RefreshAuth(context.Context, string) (*oauth2.Token, error) {
	return f()
}
