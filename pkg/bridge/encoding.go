package bridge

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/devqa/devqa.go/internal/codec"
	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/constants"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error" cbor:"error"`
}

// negotiate picks the response codec from the Accept header.
func (s *Server) negotiate(r *http.Request) codec.Codec {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == codec.ContentTypeCBOR {
			return s.cbor
		}
	}
	return s.json
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	c := s.negotiate(r)
	if v == nil {
		w.WriteHeader(status)
		return
	}
	body, err := c.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write response", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("bridge request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.respond(w, r, status, errorBody{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, constants.ErrInvalidInput),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return http.StatusBadRequest
	case errors.Is(err, constants.ErrIdentityUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, constants.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, constants.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, constants.ErrTransientNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, constants.ErrVoteFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads the request body with the codec named by Content-Type.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	c := s.json
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == codec.ContentTypeCBOR {
		c = s.cbor
	}
	if err := c.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %w", constants.ErrInvalidInput, err)
	}
	return nil
}
