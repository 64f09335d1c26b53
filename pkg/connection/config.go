package connection

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/devqa/devqa.go/internal/codec"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/retry"
)

// Config is everything a [Connection] needs.
type Config struct {
	// BaseURL is the store endpoint including the base path, for example
	// https://api.airtable.com/v0/appXXXXXXXX.
	BaseURL string
	// APIKey is the static bearer credential.
	APIKey string

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
	Metrics     *metrics.Metrics

	HTTPClient *http.Client
	// Limiter throttles outgoing requests. Nil disables throttling.
	Limiter *rate.Limiter
	// RateLimitPolicy decides how long to back off after a 429.
	RateLimitPolicy retry.Policy
}

// NewConfig creates a Config for the store at u using the JSON codec, a
// text logger on stdout, the store's default request rate and exponential
// backoff on 429 responses.
func NewConfig(u *url.URL, apiKey string) *Config {
	c := codec.JSON()
	return &Config{
		BaseURL:     strings.TrimRight(u.String(), "/"),
		APIKey:      apiKey,
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.New(slog.NewTextHandler(os.Stdout, nil)),
		HTTPClient:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
		Limiter:     rate.NewLimiter(rate.Limit(constants.DefaultRequestsPerSecond), constants.DefaultRequestsPerSecond),
		RateLimitPolicy: retry.Policy{
			Retryer: &retry.ExponentialBackoffRetryer{
				InitialDelay: time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2,
				MaxRetries:   3,
				Jitter:       true,
				JitterFactor: 0.3,
			},
			Sleep: retry.Sleep,
		},
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return constants.ErrNoBaseURL
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if c.APIKey == "" {
		return constants.ErrNoAPIKey
	}
	return nil
}
