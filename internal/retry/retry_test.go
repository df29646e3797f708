package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func newTestExecutor(preset Preset) (*Executor, *[]time.Duration) {
	e := New(preset, nil)
	delays := &[]time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return e, delays
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"503", &HTTPError{StatusCode: 503}, true},
		{"408", &HTTPError{StatusCode: 408}, true},
		{"403", &HTTPError{StatusCode: 403}, false},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"dns", &net.DNSError{IsTimeout: true}, true},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("%s: Retryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExecuteSucceedsAfterRetries(t *testing.T) {
	e, delays := newTestExecutor(Standard)

	calls := 0
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(*delays) != 2 {
		t.Errorf("expected 2 sleeps, got %d", len(*delays))
	}

	s := e.Stats()
	if s.RetriedSuccesses != 1 {
		t.Errorf("expected 1 retried success, got %d", s.RetriedSuccesses)
	}
}

func TestExecuteTerminalErrorReturnsImmediately(t *testing.T) {
	e, delays := newTestExecutor(Standard)

	calls := 0
	terminal := &HTTPError{StatusCode: 403}
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return terminal
	})
	if calls != 1 {
		t.Errorf("terminal error must not retry, got %d attempts", calls)
	}
	if !errors.Is(err, terminal) {
		t.Errorf("expected original error back, got %v", err)
	}
	if len(*delays) != 0 {
		t.Error("terminal error must not sleep")
	}
}

func TestExecuteExhaustion(t *testing.T) {
	e, _ := newTestExecutor(Persistent)

	calls := 0
	underlying := &HTTPError{StatusCode: 500}
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return underlying
	})

	if calls != Persistent.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", Persistent.MaxAttempts, calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if exhausted.Attempts != Persistent.MaxAttempts {
		t.Errorf("exhausted attempts = %d, want %d", exhausted.Attempts, Persistent.MaxAttempts)
	}
	if !errors.Is(err, underlying) {
		t.Error("ExhaustedError must unwrap to the last error")
	}
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	e := New(Standard, nil)
	e.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := e.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &HTTPError{StatusCode: 500}
	})
	if calls != 1 {
		t.Errorf("expected 1 attempt after cancel, got %d", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 1 {
		t.Errorf("exhausted attempts = %d, want 1 (only one attempt ran)", exhausted.Attempts)
	}
}

func TestDelayGrowthAndCap(t *testing.T) {
	e := New(Preset{
		Name:        "test",
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    300 * time.Millisecond,
	}, nil)

	if d := e.delay(1); d != 100*time.Millisecond {
		t.Errorf("delay(1) = %v", d)
	}
	if d := e.delay(2); d != 200*time.Millisecond {
		t.Errorf("delay(2) = %v", d)
	}
	if d := e.delay(4); d != 300*time.Millisecond {
		t.Errorf("delay(4) should cap at MaxDelay, got %v", d)
	}
}

func TestPresetByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"aggressive", Aggressive.Name},
		{"standard", Standard.Name},
		{"conservative", Conservative.Name},
		{"persistent", Persistent.Name},
		{"unknown", Standard.Name},
		{"", Standard.Name},
	}
	for _, tt := range tests {
		if got := PresetByName(tt.name); got.Name != tt.want {
			t.Errorf("PresetByName(%q) = %q, want %q", tt.name, got.Name, tt.want)
		}
	}
}

func TestStatsFailureBuckets(t *testing.T) {
	e, _ := newTestExecutor(Preset{Name: "once", MaxAttempts: 1})

	e.Execute(context.Background(), func(ctx context.Context) error {
		return &HTTPError{StatusCode: 502}
	})

	s := e.Stats()
	if s.FailuresByType["http_502"] != 1 {
		t.Errorf("expected http_502 bucket, got %v", s.FailuresByType)
	}
}
