// Package retry provides a generic exponential-backoff executor for
// asynchronous operations off the interactive hot path (webhook delivery,
// email relay). It knows nothing about chat semantics: callers supply the
// operation, and failures are classified as retryable or terminal from
// error class and, for HTTP-shaped errors, status code.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"log/slog"
)

// Preset is a plain bundle of retry parameters.
type Preset struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// Named presets. These are configuration records, not behaviors.
var (
	Aggressive   = Preset{Name: "aggressive", MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, Multiplier: 1.5, MaxDelay: 2 * time.Second, Jitter: 100 * time.Millisecond}
	Standard     = Preset{Name: "standard", MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Second, Jitter: 250 * time.Millisecond}
	Conservative = Preset{Name: "conservative", MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second, Jitter: 500 * time.Millisecond}
	Persistent   = Preset{Name: "persistent", MaxAttempts: 10, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, Jitter: 500 * time.Millisecond}
)

// PresetByName resolves a configured preset name, defaulting to Standard.
func PresetByName(name string) Preset {
	switch name {
	case "aggressive":
		return Aggressive
	case "conservative":
		return Conservative
	case "persistent":
		return Persistent
	default:
		return Standard
	}
}

// ExhaustedError is raised when every attempt failed with a retryable
// error. It is the only way a caller learns all attempts were consumed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// StatusCoder is implemented by HTTP-shaped errors so the classifier can
// inspect the status code.
type StatusCoder interface {
	HTTPStatus() int
}

// HTTPError is a generic HTTP-shaped failure from a collaborator.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

// Retryable classifies err. Timeouts, connection failures, DNS errors, and
// HTTP 408/429/5xx are retryable; other HTTP 4xx and everything else is
// terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		switch {
		case status == 408 || status == 429:
			return true
		case status >= 500:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}

// errorLabel buckets err for the failure counters.
func errorLabel(err error) string {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return fmt.Sprintf("http_%d", sc.HTTPStatus())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return "other"
}

// Stats is a point-in-time read of executor activity.
type Stats struct {
	Attempts         uint64
	Successes        uint64
	RetriedSuccesses uint64
	FailuresByType   map[string]uint64
}

// Executor runs operations with backoff per its preset.
type Executor struct {
	preset Preset
	logger *slog.Logger

	mu               sync.Mutex
	attempts         uint64
	successes        uint64
	retriedSuccesses uint64
	failuresByType   map[string]uint64

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an executor. A nil logger uses slog.Default.
func New(preset Preset, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if preset.MaxAttempts <= 0 {
		preset.MaxAttempts = 1
	}
	if preset.Multiplier < 1 {
		preset.Multiplier = 1
	}
	return &Executor{
		preset:         preset,
		logger:         logger,
		failuresByType: make(map[string]uint64),
		sleep:          sleepCtx,
	}
}

// Execute runs op up to MaxAttempts times. Terminal errors are re-raised
// immediately; exhaustion returns an *ExhaustedError carrying the last
// underlying error and the attempt count.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= e.preset.MaxAttempts; attempt++ {
		attempts = attempt
		e.countAttempt()

		err := op(ctx)
		if err == nil {
			e.countSuccess(attempt > 1)
			if attempt > 1 {
				e.logger.Debug("retry succeeded",
					slog.String("preset", e.preset.Name),
					slog.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			e.countFailure(err)
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if attempt == e.preset.MaxAttempts {
			break
		}

		delay := e.delay(attempt)
		e.logger.Debug("retrying after failure",
			slog.String("preset", e.preset.Name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := e.sleep(ctx, delay); err != nil {
			break
		}
	}

	e.countFailure(lastErr)
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// delay computes min(base*multiplier^(attempt-1) + jitter, max).
func (e *Executor) delay(attempt int) time.Duration {
	d := time.Duration(float64(e.preset.BaseDelay) * math.Pow(e.preset.Multiplier, float64(attempt-1)))
	if e.preset.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.preset.Jitter)))
	}
	if e.preset.MaxDelay > 0 && d > e.preset.MaxDelay {
		d = e.preset.MaxDelay
	}
	return d
}

// Stats returns running totals.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	byType := make(map[string]uint64, len(e.failuresByType))
	for k, v := range e.failuresByType {
		byType[k] = v
	}
	return Stats{
		Attempts:         e.attempts,
		Successes:        e.successes,
		RetriedSuccesses: e.retriedSuccesses,
		FailuresByType:   byType,
	}
}

func (e *Executor) countAttempt() {
	e.mu.Lock()
	e.attempts++
	e.mu.Unlock()
}

func (e *Executor) countSuccess(retried bool) {
	e.mu.Lock()
	e.successes++
	if retried {
		e.retriedSuccesses++
	}
	e.mu.Unlock()
}

func (e *Executor) countFailure(err error) {
	e.mu.Lock()
	e.failuresByType[errorLabel(err)]++
	e.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
