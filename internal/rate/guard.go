package rate

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitError is returned when calls are blocked.
type RateLimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

// Guard enforces rate limits for a provider. The minute window paces callers,
// the day window rejects once spent.
type Guard struct {
	decl     Declaration
	limiters map[Window]*rate.Limiter
	now      func() time.Time

	mu         sync.Mutex
	cooldown   time.Time
	lastStatus int
}

// WrapHTTP wraps an http.Client with rate-limit enforcement.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	return NewGuard(decl).Wrap(base)
}

// Wrap returns a copy of base whose transport goes through the guard.
func (g *Guard) Wrap(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{
		base:  transport,
		guard: g,
	}
	return &client
}

func NewGuard(decl Declaration) *Guard {
	limiters := make(map[Window]*rate.Limiter, len(decl.Limits()))
	for window, limit := range decl.Limits() {
		if limit <= 0 {
			continue
		}
		every := window.Duration() / time.Duration(limit)
		limiters[window] = rate.NewLimiter(rate.Every(every), limit)
		remainingGauge.WithLabelValues(decl.ProviderName(), window.String()).Set(float64(limit))
	}
	return &Guard{
		decl:     decl,
		limiters: limiters,
		now:      time.Now,
	}
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.guard.Wait(req.Context()); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return resp, nil
}

// Wait blocks until the minute window admits a call, or fails fast when the
// provider asked us to back off or the daily budget is spent.
func (g *Guard) Wait(ctx context.Context) error {
	now := g.now()

	g.mu.Lock()
	cooldown := g.cooldown
	g.mu.Unlock()
	if !cooldown.IsZero() && now.Before(cooldown) {
		return g.limited("cooldown", cooldown)
	}

	if day, ok := g.limiters[Day]; ok && !day.AllowN(now, 1) {
		return g.limited("daily budget", now.Add(time.Duration(float64(time.Second)/float64(day.Limit()))))
	}

	if minute, ok := g.limiters[Minute]; ok {
		if err := minute.Wait(ctx); err != nil {
			return g.limited(fmt.Sprintf("minute budget: %v", err), time.Time{})
		}
	}
	return nil
}

func (g *Guard) limited(reason string, retryAt time.Time) error {
	blockedTotal.WithLabelValues(g.decl.ProviderName()).Inc()
	return RateLimitError{
		Provider: g.decl.ProviderName(),
		Reason:   reason,
		RetryAt:  retryAt,
	}
}

// RecordResponse updates cooldown and gauges from a provider response.
func (g *Guard) RecordResponse(status int, headers http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	provider := g.decl.ProviderName()
	g.lastStatus = status
	lastStatusGauge.WithLabelValues(provider).Set(float64(status))

	cfg := g.decl.Headers()
	if retryAfter := headerInt(headers, cfg.RetryAfter); retryAfter > 0 {
		g.cooldown = g.now().Add(time.Duration(retryAfter) * time.Second)
		retryAfterGauge.WithLabelValues(provider).Set(float64(retryAfter))
	} else if status == http.StatusTooManyRequests {
		g.cooldown = g.now().Add(time.Minute)
		retryAfterGauge.WithLabelValues(provider).Set(60)
	} else if status < 300 {
		g.cooldown = time.Time{}
		retryAfterGauge.WithLabelValues(provider).Set(0)
	}

	if remaining := headerInt(headers, cfg.RemainingMinute); remaining >= 0 {
		remainingGauge.WithLabelValues(provider, Minute.String()).Set(float64(remaining))
	}
	if remaining := headerInt(headers, cfg.RemainingDay); remaining >= 0 {
		remainingGauge.WithLabelValues(provider, Day.String()).Set(float64(remaining))
	}
}

// LastStatus is the most recent HTTP status seen by the guard.
func (g *Guard) LastStatus() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastStatus
}

func headerInt(h http.Header, key string) int {
	if key == "" {
		return -1
	}
	val := h.Get(key)
	if val == "" {
		return -1
	}
	out, err := strconv.Atoi(val)
	if err != nil {
		return -1
	}
	return out
}
