package intent

import (
	"context"
	"errors"
	"time"
)

// ErrFundingTimeout is returned when the funding transaction could not be
// correlated within the retry budget. The intent stays Pending; the
// transaction may still complete later and a subsequent Fund call will
// detect and reconcile it.
var ErrFundingTimeout = errors.New("funding not finalized within retry budget")

// RetryPolicy bounds the finalization polling loop: at most MaxAttempts
// polls, sleeping Backoff after the first and doubling up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy suits an embedded ledger where finalization is
// near-immediate but still modeled as asynchronous.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Backoff: 50 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

// sleep waits the backoff for the given zero-based attempt, honoring
// context cancellation.
func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	d := p.Backoff
	for i := 0; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
