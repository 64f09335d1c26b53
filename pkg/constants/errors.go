package constants

import "errors"

// Error taxonomy of the synchronization engine.
//
// Duplicate attempts (already voted, badge already held) are not errors;
// they are reported as outcomes by the components that detect them.
var (
	// ErrTransientNetwork marks failures that are worth retrying:
	// transport errors, 5xx responses and rate limiting the connection
	// has not already backed off from.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrRateLimited matches every 429 answer from the store.
	ErrRateLimited = errors.New("rate limited by store")
	// ErrReadAfterWriteLag is reported when a recount still reflects the
	// pre-write state after polling gave up.
	ErrReadAfterWriteLag = errors.New("store has not indexed the write yet")
	// ErrIdentityUnavailable aborts any mutation attempted without an email claim.
	ErrIdentityUnavailable = errors.New("identity unavailable: sign in again")
	ErrNotFound            = errors.New("record not found")
	// ErrDecoding is reported for malformed store responses. It is never retried.
	ErrDecoding     = errors.New("malformed store response")
	ErrVoteFailed   = errors.New("vote failed")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrNoBaseURL = errors.New("base url not set")
	ErrNoAPIKey  = errors.New("api key not set")
	ErrNoTable   = errors.New("table not set")
)
