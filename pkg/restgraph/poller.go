package restgraph

import (
	"context"
	"fmt"
	"time"
)

// PollState is where a wait loop ended up.
type PollState int

// Poll outcomes. A loop is RUNNING until its entity's failure predicate trips
// (FAILED), its completion predicate trips (SUCCEEDED), or the deadline
// passes (TIMED_OUT); the three end states are terminal.
const (
	PollRunning PollState = iota
	PollSucceeded
	PollFailed
	PollTimedOut
)

// String implements fmt.Stringer.
func (s PollState) String() string {
	switch s {
	case PollRunning:
		return "RUNNING"
	case PollSucceeded:
		return "SUCCEEDED"
	case PollFailed:
		return "FAILED"
	case PollTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("PollState(%d)", int(s))
	}
}

// poll drives the wait state machine: check the failure predicate, then the
// completion predicate, otherwise publish progress, sleep for interval, and
// refresh from the backing source, until the deadline passes. The poller is
// predicate-agnostic; the resource type supplies both checks.
func (n *Node) poll(ctx context.Context, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = n.typ.pollInterval()
	}

	if timeout <= 0 {
		timeout = n.typ.pollTimeout()
	}

	deadline := time.Now().Add(timeout)
	state := PollRunning

	defer func() {
		if n.client.logger != nil {
			n.client.logger.Debug("poll finished", map[string]interface{}{
				"type":  n.typ.Name,
				"id":    n.Identifier(),
				"state": state.String(),
			})
		}
	}()

	for time.Now().Before(deadline) {
		if n.typ.Failed != nil && n.typ.Failed(n) {
			state = PollFailed

			return &PolledOperationFailedError{Entity: n}
		}

		if n.typ.Finished(n) {
			state = PollSucceeded

			return nil
		}

		n.client.bus.Publish(n, "wait", PhaseProgress)

		err := sleepContext(ctx, interval)
		if err != nil {
			return err
		}

		err = n.refreshStep(ctx)
		if err != nil {
			return err
		}
	}

	state = PollTimedOut

	return &PollTimeoutError{Timeout: timeout}
}

// refreshStep reloads the entity between poll cycles. Types that opt in
// retry through transient not-found responses a bounded number of times;
// everything else surfaces the first error.
func (n *Node) refreshStep(ctx context.Context) error {
	if n.typ.NotFoundRetries <= 0 {
		return n.Refresh(ctx)
	}

	return n.withNotFoundRetry(ctx, n.Refresh)
}

// withNotFoundRetry runs op, retrying through not-found errors up to the
// type's bounded attempt count. New resources may not be immediately visible
// after creation; anything other than not-found aborts at once.
func (n *Node) withNotFoundRetry(ctx context.Context, op func(context.Context) error) error {
	attempts := n.typ.NotFoundRetries
	if attempts <= 0 {
		attempts = 1
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil || !IsNotFound(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		if n.client.logger != nil {
			n.client.logger.Debug("resource not yet visible, retrying", map[string]interface{}{
				"type":    n.typ.Name,
				"id":      n.Identifier(),
				"attempt": attempt,
			})
		}

		sleepErr := sleepContext(ctx, n.typ.notFoundDelay())
		if sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

// sleepContext suspends the calling goroutine for d, returning early if the
// context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
