// pkg/provision/retry.go
package provision

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/ditto"
)

// RetryPolicy is a bounded, constant-delay retry. It is shared by the
// provisioner and the bootstrap wait so both retry the same way.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failed attempt may be repeated.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy is 5 attempts, 5s apart, retrying transport failures
// and 5xx responses only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 5 * time.Second, Retryable: ditto.IsRetryable}
}

// SingleAttempt tries once. It suits callers that already repeat on their
// own schedule, such as the sync loop provisioning at most once per tick.
func SingleAttempt() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Retryable: ditto.IsRetryable}
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempts are used up, or ctx is done. It returns op's last error, or
// ctx.Err() if cancelled while waiting.
func (p RetryPolicy) Do(ctx context.Context, log logrus.FieldLogger, name string, op func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if log == nil {
			return
		}
		log.WithFields(logrus.Fields{
			"op":      name,
			"attempt": attempt,
			"max":     attempts,
			"wait":    wait,
		}).WithError(err).Warn("attempt failed, retrying")
	}
	return backoff.RetryNotify(operation, b, notify)
}
