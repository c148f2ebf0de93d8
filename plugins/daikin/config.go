package daikin

import (
	"time"

	"github.com/joshp123/godaikin/internal/rate"
)

const (
	defaultBaseURL = "https://c7zkf7l933.execute-api.ap-southeast-1.amazonaws.com/prod/"
	providerName   = "daikin"
)

// Config defines runtime configuration for the Daikin client.
type Config struct {
	BaseURL        string
	Username       string
	RequestTimeout time.Duration
	RatePerMinute  int
	RatePerDay     int
}

// RateLimits declares the client-side budget for the cloud API.
func (c Config) RateLimits() rate.Declaration {
	decl := rate.Provider(providerName).ReadHeaders(rate.StandardHeaders())
	if c.RatePerMinute > 0 {
		decl = decl.MaxRequestsPer(rate.Minute, c.RatePerMinute)
	}
	if c.RatePerDay > 0 {
		decl = decl.MaxRequestsPer(rate.Day, c.RatePerDay)
	}
	return decl
}
