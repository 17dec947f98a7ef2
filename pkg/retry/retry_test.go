package retry

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/vfskit/vfskit/pkg/errors"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := New(fastConfig()).Do(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := New(fastConfig()).Do(func() error {
		calls++
		if calls < 3 {
			return errors.IO(stderrors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil after recovery", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoDoesNotRetryNonTransientFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", errors.NotFound("p")},
		{"other", errors.Other("directory not empty")},
		{"plain error", stderrors.New("unclassified")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := New(fastConfig()).Do(func() error {
				calls++
				return tt.err
			})
			if err != tt.err {
				t.Errorf("Do returned %v, want the original error", err)
			}
			if calls != 1 {
				t.Errorf("fn called %d times, want 1", calls)
			}
		})
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	retries := 0
	config := fastConfig()
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries++
	}
	err := New(config).Do(func() error {
		calls++
		return errors.IO(stderrors.New("still down"))
	})
	if err == nil {
		t.Fatal("Do returned nil, want exhaustion error")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if retries != 2 {
		t.Errorf("OnRetry called %d times, want 2", retries)
	}
	if !errors.IsKind(err, errors.KindIO) {
		t.Error("exhaustion error should wrap the last transient failure")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	r := New(Config{})
	if r.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.config.MaxAttempts)
	}
	if r.config.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", r.config.InitialDelay)
	}
	if r.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", r.config.Multiplier)
	}
}

func TestCalculateDelayGrowsAndCaps(t *testing.T) {
	r := New(Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	})
	if d := r.calculateDelay(1); d != time.Millisecond {
		t.Errorf("delay(1) = %v, want 1ms", d)
	}
	if d := r.calculateDelay(2); d != 2*time.Millisecond {
		t.Errorf("delay(2) = %v, want 2ms", d)
	}
	if d := r.calculateDelay(10); d != 4*time.Millisecond {
		t.Errorf("delay(10) = %v, want the 4ms cap", d)
	}
}
