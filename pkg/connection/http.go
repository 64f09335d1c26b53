package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devqa/devqa.go/internal/codec"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/retry"
)

type HTTPConnection struct {
	BaseURL     string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	apiKey     string
	httpClient *http.Client
	limiter    interface{ Wait(context.Context) error }
	rateLimit  retry.Policy
	logger     logger.Logger
	metrics    *metrics.Metrics
}

var _ Connection = (*HTTPConnection)(nil)

func New(p *Config) (*HTTPConnection, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	con := HTTPConnection{
		BaseURL:     p.BaseURL,
		Marshaler:   p.Marshaler,
		Unmarshaler: p.Unmarshaler,
		apiKey:      p.APIKey,
		httpClient:  p.HTTPClient,
		rateLimit:   p.RateLimitPolicy,
		logger:      p.Logger,
		metrics:     p.Metrics,
	}
	if p.Limiter != nil {
		con.limiter = p.Limiter
	}
	if con.Marshaler == nil || con.Unmarshaler == nil {
		c := codec.JSON()
		con.Marshaler, con.Unmarshaler = c, c
	}
	if con.httpClient == nil {
		con.httpClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	if con.logger == nil {
		con.logger = logger.Discard()
	}
	return &con, nil
}

func (h *HTTPConnection) SetTimeout(timeout time.Duration) *HTTPConnection {
	h.httpClient.Timeout = timeout
	return h
}

func (h *HTTPConnection) SetHTTPClient(client *http.Client) *HTTPConnection {
	h.httpClient = client
	return h
}

func (h *HTTPConnection) GetUnmarshaler() codec.Unmarshaler {
	return h.Unmarshaler
}

func (h *HTTPConnection) List(ctx context.Context, table string, q ListQuery) ([]byte, error) {
	if table == "" {
		return nil, constants.ErrNoTable
	}
	u := h.tableURL(table)
	if enc := q.Values().Encode(); enc != "" {
		u += "?" + enc
	}
	return h.do(ctx, "list", table, http.MethodGet, u, nil)
}

func (h *HTTPConnection) Get(ctx context.Context, table, id string) ([]byte, error) {
	if table == "" {
		return nil, constants.ErrNoTable
	}
	return h.do(ctx, "get", table, http.MethodGet, h.tableURL(table)+"/"+url.PathEscape(id), nil)
}

func (h *HTTPConnection) Create(ctx context.Context, table string, fields any) ([]byte, error) {
	if table == "" {
		return nil, constants.ErrNoTable
	}
	body, err := h.Marshaler.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return h.do(ctx, "create", table, http.MethodPost, h.tableURL(table), body)
}

func (h *HTTPConnection) Update(ctx context.Context, table, id string, fields any) ([]byte, error) {
	if table == "" {
		return nil, constants.ErrNoTable
	}
	body, err := h.Marshaler.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return h.do(ctx, "update", table, http.MethodPatch, h.tableURL(table)+"/"+url.PathEscape(id), body)
}

func (h *HTTPConnection) tableURL(table string) string {
	return h.BaseURL + "/" + url.PathEscape(table)
}

// do sends one logical request. A 429 answer is retried according to the
// rate limit policy; every other outcome is returned to the caller as is.
// A 429 that outlasts a configured policy is no longer transient, so callers
// with their own retry schedule do not back off a second time.
func (h *HTTPConnection) do(ctx context.Context, op, table, method, u string, body []byte) ([]byte, error) {
	policy := h.rateLimit
	policy.OnRetry = func(retry int, delay time.Duration, err error) {
		h.metrics.Retry("store_rate_limit")
		h.logger.Warn("store rate limited", "table", table, "op", op, "retry", retry+1, "delay", delay)
	}
	res, _, err := retry.Do(ctx, policy,
		func(ctx context.Context, _ int) ([]byte, error) {
			return h.send(ctx, op, table, method, u, body)
		},
		func(_ []byte, err error) bool {
			var se *StoreError
			return !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests
		})
	var se *StoreError
	if policy.Retryer != nil && errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		se.BackedOff = true
	}
	return res, err
}

func (h *HTTPConnection) send(ctx context.Context, op, table, method, u string, body []byte) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Accept", codec.ContentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", codec.ContentTypeJSON)
	}

	start := time.Now()
	data, status, err := h.MakeRequest(req)
	h.metrics.ObserveStoreRequest(table, op, statusLabel(status, err), time.Since(start))
	if err != nil {
		h.logger.Debug("store request failed", "table", table, "op", op, "status", status, "error", err)
		return nil, err
	}
	h.logger.Debug("store request", "table", table, "op", op, "status", status, "took", time.Since(start))
	return data, nil
}

// MakeRequest executes req and returns the body of a 2xx answer. Transport
// failures are wrapped in [constants.ErrTransientNetwork]; non-2xx answers
// come back as *[StoreError].
func (h *HTTPConnection) MakeRequest(req *http.Request) ([]byte, int, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("%w: error making HTTP request: %w", constants.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: reading response: %w", constants.ErrTransientNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBytes, resp.StatusCode, nil
	}
	return nil, resp.StatusCode, decodeStoreError(resp.StatusCode, respBytes)
}

func statusLabel(status int, err error) string {
	if status == 0 {
		if err != nil {
			return "transport_error"
		}
		return "unknown"
	}
	return strconv.Itoa(status)
}
