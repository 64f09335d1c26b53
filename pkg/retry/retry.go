// Package retry is the bounded retry helper shared by feed loads, badge
// milestone polling and rate-limited store requests.
//
// A [Policy] pairs a [Retryer], which decides how long to wait before the
// next attempt and when to give up, with a [Sleeper] that performs the wait.
// [Do] runs an operation until a stop predicate accepts its result or the
// retryer is exhausted.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/devqa/devqa.go/pkg/constants"
)

// Retryer defines the interface for implementing retry strategies
type Retryer interface {
	// NextDelay returns the delay before the next retry attempt
	// attempt is 0-based (0 for first retry, 1 for second, etc.)
	// Returns the delay duration and whether to continue retrying
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
}

// ExponentialBackoffRetryer implements exponential backoff with optional jitter
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries is the maximum number of retry attempts (0 for infinite)
	MaxRetries int
	// Jitter adds randomness to the delay to avoid thundering herd
	Jitter       bool
	JitterFactor float64
}

// NewExponentialBackoffRetryer returns the 1s, 2s, 4s schedule used for
// feed loads and milestone polling: one initial attempt and three retries.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   3,
	}
}

// NextDelay implements Retryer
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		jitter := delay * r.JitterFactor * (2*rand.Float64() - 1)
		delay += jitter
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// SequenceRetryer waits Delays[i] before retry i and stops after the last one.
type SequenceRetryer struct {
	Delays []time.Duration
}

// NextDelay implements Retryer
func (r SequenceRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(r.Delays) {
		return 0, false
	}
	return r.Delays[attempt], true
}

// MilestoneDelays is the wait before each re-read of a count that should
// already include a fresh write.
var MilestoneDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// MilestonePolicy polls on [MilestoneDelays] using sleep, or in real time
// when sleep is nil.
func MilestonePolicy(sleep Sleeper) Policy {
	if sleep == nil {
		sleep = Sleep
	}
	return Policy{Retryer: SequenceRetryer{Delays: MilestoneDelays}, Sleep: sleep}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy configures [Do].
type Policy struct {
	Retryer Retryer
	Sleep   Sleeper
	// OnRetry, when set, is called before each wait with the 0-based retry
	// index, the delay and the error of the attempt that just failed.
	OnRetry func(retry int, delay time.Duration, err error)
}

// DefaultPolicy uses [NewExponentialBackoffRetryer] in real time.
func DefaultPolicy() Policy {
	return Policy{Retryer: NewExponentialBackoffRetryer(), Sleep: Sleep}
}

// Do calls op until done accepts its result, the retryer gives up, or ctx
// is cancelled. The first attempt runs immediately. It returns the last
// result, the number of attempts made and the last error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), done func(T, error) bool) (T, int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = op(ctx, attempt)
		if done(v, err) {
			return v, attempt + 1, err
		}
		if p.Retryer == nil {
			return v, attempt + 1, err
		}
		delay, ok := p.Retryer.NextDelay(attempt, err)
		if !ok {
			return v, attempt + 1, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			if err == nil {
				err = serr
			}
			return v, attempt + 1, err
		}
	}
}

// Retryable reports whether err is a transient failure worth another try.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, constants.ErrTransientNetwork)
}

// UntilSettled is the stop predicate for operations that should be retried
// only while they fail transiently.
func UntilSettled[T any](_ T, err error) bool {
	return !Retryable(err)
}
