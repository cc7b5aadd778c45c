package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

var fast = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "publish", fast, func() error {
		calls++
		if calls < 3 {
			return errors.New("broker down")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry() = %v after %d calls", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), "publish", fast, func() error {
		calls++
		return errors.New("broker down")
	})
	if err == nil || calls != 3 {
		t.Errorf("exhausted Retry() = %v after %d calls", err, calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	for _, perm := range []error{Permanent(errors.New("bad schema")), apperrors.ErrInvalidInput} {
		calls := 0
		err := Retry(context.Background(), "registry", fast, func() error {
			calls++
			return perm
		})
		if calls != 1 || !errors.Is(err, perm) {
			t.Errorf("Retry(%v) = %v after %d calls", perm, err, calls)
		}
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func() error {
		return errors.New("broker down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "index build", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if err := WithTimeout(context.Background(), 0, "index build", func(context.Context) error { return nil }); err != nil {
		t.Errorf("no limit: %v", err)
	}
}

func TestCircuitBreaker(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }
	fail := func() error { return errors.New("timeout") }

	cb.Execute(fail)
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit err = %v", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("probe err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state after probe = %v", cb.State())
	}
	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestCircuitBreakerIgnoredErrors(t *testing.T) {
	miss := errors.New("miss")
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1})
	err := cb.ExecuteIgnoring(func() error { return miss }, func(err error) bool { return errors.Is(err, miss) })
	if !errors.Is(err, miss) || cb.State() != StateClosed {
		t.Errorf("err = %v state = %v", err, cb.State())
	}
}
