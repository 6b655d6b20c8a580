package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/stack-tools/stackup/pkg/errors"
	"github.com/stack-tools/stackup/pkg/logging"
	"github.com/stack-tools/stackup/pkg/probe"
)

const DefaultPollInterval = 1 * time.Second

type WaitOptions struct {
	// Timeout is the total readiness budget. Zero still performs exactly
	// one probe before failing.
	Timeout time.Duration

	// PollInterval is the cadence between probes and must be positive.
	PollInterval time.Duration
}

// Waiter blocks until a service endpoint becomes ready or a deadline elapses
type Waiter interface {
	WaitUntilReady(ctx context.Context, host string, port int, options WaitOptions) (time.Duration, error)
}

type waiter struct {
	prober probe.Prober
	logger logging.Logger
}

func NewWaiter(prober probe.Prober, logger logging.Logger) Waiter {
	return &waiter{
		prober: prober,
		logger: logger,
	}
}

// WaitUntilReady polls the prober at the configured cadence and returns the
// elapsed time on success. It fails with a timeout error once the budget is
// exhausted, or a cancelled error when the context is done mid-wait. The wait
// yields between polls; it never busy-waits.
func (w *waiter) WaitUntilReady(ctx context.Context, host string, port int, options WaitOptions) (time.Duration, error) {
	if ctx == nil {
		return 0, errors.NewValidationError("context cannot be nil", nil)
	}
	if options.PollInterval <= 0 {
		return 0, errors.NewValidationError(
			fmt.Sprintf("poll interval must be positive, got: %s", options.PollInterval),
			nil,
		).WithContext("host", host).WithContext("port", port)
	}
	if options.Timeout < 0 {
		return 0, errors.NewValidationError(
			fmt.Sprintf("timeout cannot be negative, got: %s", options.Timeout),
			nil,
		).WithContext("host", host).WithContext("port", port)
	}

	w.logger.Infof("Waiting for readiness, host: %s, port: %d, timeout: %s, poll_interval: %s",
		host, port, options.Timeout, options.PollInterval)

	start := time.Now()

	// First probe happens immediately so that a zero timeout still attempts
	// exactly once.
	if w.prober.Probe(host, port) {
		elapsed := time.Since(start)
		w.logger.Infof("Readiness confirmed, host: %s, port: %d, elapsed: %s", host, port, elapsed)
		return elapsed, nil
	}

	deadline := time.NewTimer(options.Timeout - time.Since(start))
	defer deadline.Stop()

	ticker := time.NewTicker(options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			elapsed := time.Since(start)
			w.logger.Warnf("Readiness wait cancelled, host: %s, port: %d, elapsed: %s", host, port, elapsed)
			return elapsed, errors.NewCancelledError("readiness wait cancelled", ctx.Err()).
				WithContext("host", host).WithContext("port", port)

		case <-deadline.C:
			elapsed := time.Since(start)
			w.logger.Errorf("Readiness wait timed out, host: %s, port: %d, elapsed: %s", host, port, elapsed)
			return elapsed, errors.NewTimeoutError(
				fmt.Sprintf("service did not become ready within %s", options.Timeout),
				nil,
			).WithContext("host", host).WithContext("port", port)

		case <-ticker.C:
			if w.prober.Probe(host, port) {
				elapsed := time.Since(start)
				w.logger.Infof("Readiness confirmed, host: %s, port: %d, elapsed: %s", host, port, elapsed)
				return elapsed, nil
			}
			w.logger.Debugf("Not ready yet, host: %s, port: %d, retrying in %s", host, port, options.PollInterval)
		}
	}
}
