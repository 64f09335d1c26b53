package fakestore

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"time"
)

// FailureType is a kind of randomly injected failure.
type FailureType string

const (
	// FailureStatus answers with FailureConfig.Status instead of serving.
	FailureStatus FailureType = "status"
	// FailureDelay waits between MinDelay and MaxDelay before serving.
	FailureDelay FailureType = "delay"
	// FailureDropConnection closes the TCP connection without a response.
	FailureDropConnection FailureType = "drop_connection"
)

// FailureConfig injects one failure type with the given probability on
// every request.
type FailureConfig struct {
	Type        FailureType
	Probability float64
	Status      int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// SetGlobalFailures replaces the failures applied to every request.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = append([]FailureConfig(nil), failures...)
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		failures := s.globalFailures
		s.mu.Unlock()

		for _, f := range failures {
			if !shouldTriggerFailure(f.Probability) {
				continue
			}
			switch f.Type {
			case FailureStatus:
				s.writeError(w, f.Status, "INJECTED_FAILURE", http.StatusText(f.Status))
				return
			case FailureDelay:
				d := f.MinDelay
				if span := f.MaxDelay - f.MinDelay; span > 0 {
					d += time.Duration(cryptoRandInt64(int64(span)))
				}
				select {
				case <-time.After(d):
				case <-r.Context().Done():
					return
				}
			case FailureDropConnection:
				hj, ok := w.(http.Hijacker)
				if !ok {
					s.writeError(w, http.StatusServiceUnavailable, "INJECTED_FAILURE", "connection dropped")
					return
				}
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func shouldTriggerFailure(p float64) bool {
	return p > 0 && (p >= 1 || cryptoRandFloat64() < p)
}

// cryptoRandInt64 returns a random int64 in [0, max).
func cryptoRandInt64(rMax int64) int64 {
	if rMax <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(rMax))
	return n.Int64()
}

// cryptoRandFloat64 returns a random float64 in [0.0, 1.0).
func cryptoRandFloat64() float64 {
	return float64(cryptoRandInt64(1<<53)) / float64(1<<53)
}
