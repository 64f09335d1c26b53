package connection

import (
	"fmt"
	"net/http"

	"github.com/buger/jsonparser"

	"github.com/devqa/devqa.go/pkg/constants"
)

// StoreError is a non-2xx answer from the store.
type StoreError struct {
	StatusCode int
	Type       string
	Message    string
	// BackedOff is set on a 429 once the connection's own rate limit
	// policy has run out of retries.
	BackedOff bool
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store error %d: %s", e.StatusCode, e.Type)
	}
	return fmt.Sprintf("store error %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

// Is maps status codes onto the engine's error taxonomy.
func (e *StoreError) Is(target error) bool {
	switch target {
	case constants.ErrTransientNetwork:
		if e.StatusCode == http.StatusTooManyRequests {
			return !e.BackedOff
		}
		return e.StatusCode >= 500
	case constants.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case constants.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// decodeStoreError reads the error envelope. The store sends either
// {"error":"NOT_FOUND"} or {"error":{"type":"...","message":"..."}}.
func decodeStoreError(status int, body []byte) *StoreError {
	e := &StoreError{StatusCode: status, Type: http.StatusText(status)}
	value, dataType, _, err := jsonparser.Get(body, "error")
	if err != nil {
		if len(body) > 0 && len(body) < 512 {
			e.Message = string(body)
		}
		return e
	}
	switch dataType {
	case jsonparser.String:
		e.Type = string(value)
	case jsonparser.Object:
		if t, err := jsonparser.GetString(value, "type"); err == nil {
			e.Type = t
		}
		if m, err := jsonparser.GetString(value, "message"); err == nil {
			e.Message = m
		}
	}
	return e
}
