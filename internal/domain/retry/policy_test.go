package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/janhq/whatsapp-relay/internal/domain/retry"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		policy   retry.Policy
		attempt  int
		expected time.Duration
	}{
		{
			name:     "zero attempt",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: 100 * time.Millisecond},
			attempt:  0,
			expected: 0,
		},
		{
			name:     "fixed backoff",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt:  4,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "linear backoff",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt:  3,
			expected: 300 * time.Millisecond,
		},
		{
			name:     "exponential backoff",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second},
			attempt:  3,
			expected: 400 * time.Millisecond,
		},
		{
			name:     "capped by max delay",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: time.Second, MaxDelay: 2 * time.Second},
			attempt:  6,
			expected: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CalculateDelay(tt.attempt); got != tt.expected {
				t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestExecuteWithResult_RetriesUntilSuccess(t *testing.T) {
	policy := retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffStrategy: retry.BackoffFixed}

	calls := 0
	got, err := retry.ExecuteWithResult(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestExecute_StopsOnPermanent(t *testing.T) {
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond, BackoffStrategy: retry.BackoffFixed}

	calls := 0
	cause := errors.New("bad request")
	err := retry.Execute(context.Background(), policy, func(ctx context.Context, attempt int) error {
		calls++
		return retry.Permanent(cause)
	})

	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Execute(ctx, retry.DefaultPolicy(), func(ctx context.Context, attempt int) error {
		t.Fatal("function must not run on a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
