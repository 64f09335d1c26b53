// Package testenv wires engine components against an in-process fake
// store for tests.
package testenv

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/devqa/devqa.go/internal/fakestore"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/retry"
)

// APIKey is the credential the fake store accepts.
const APIKey = "test-api-key"

// Store is a fake store served over HTTP with a connection to it.
type Store struct {
	*fakestore.Server
	Conn *connection.HTTPConnection
	URL  string
}

// NewStore starts a fake store for the duration of the test.
func NewStore(t testing.TB) *Store {
	t.Helper()
	fake := fakestore.NewServer("")
	fake.APIKey = APIKey
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse fake store url: %v", err)
	}
	cfg := connection.NewConfig(u, APIKey)
	cfg.Logger = Logger()
	cfg.Limiter = nil
	cfg.RateLimitPolicy = retry.Policy{Sleep: NoSleep}
	con, err := connection.New(cfg)
	if err != nil {
		t.Fatalf("connect to fake store: %v", err)
	}
	return &Store{Server: fake, Conn: con, URL: ts.URL}
}

// Logger discards debug output and prints the rest deterministically.
func Logger() logger.Logger {
	return logger.New(NewLogHandler(WithIgnoreDebug()))
}

// Slog is [Logger] as a *slog.Logger.
func Slog() *slog.Logger {
	return slog.New(NewLogHandler(WithIgnoreDebug()))
}

// NoSleep is a retry.Sleeper that returns immediately.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// SleepRecorder is a retry.Sleeper that records requested delays without
// waiting.
type SleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *SleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
