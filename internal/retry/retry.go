// Package retry is the single retry policy shared by every transient i/o call site.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy retries a failing call up to MaxAttempts times in total, waiting a
// fixed Delay between attempts.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"-"`
	// DelaySeconds is the json form of Delay, used only when Delay is unset.
	DelaySeconds int `json:"delay_seconds"`
}

var Default = Policy{MaxAttempts: 5, Delay: 10 * time.Second}

func (p Policy) delay() time.Duration {
	if p.Delay > 0 {
		return p.Delay
	}
	return time.Duration(p.DelaySeconds) * time.Second
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, the attempts are used up or ctx is done.
// notify (which may be nil) is called after every failed attempt that will be retried.
// The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, notify func(attempt int, err error)) error {
	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.delay())
	b = backoff.WithMaxRetries(b, uint64(p.attempts()-1))
	b = backoff.WithContext(b, ctx)

	return backoff.RetryNotify(op, b, func(err error, _ time.Duration) {
		if notify != nil {
			notify(attempt, err)
		}
	})
}

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
