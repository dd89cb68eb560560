package llm

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/pkg/circuitbreaker"
	"context"
	"errors"
	"testing"
	"time"
)

func TestJSONIsland(t *testing.T) {
	text := "Sure! Here it is:\n```json\n{\"task_type\": \"todo\", \"confidence\": \"0.9\"}\n```"
	res, ok := JSONIsland(text)
	if !ok {
		t.Fatal("JSONIsland() did not find the object")
	}
	if res.Get("task_type").String() != "todo" {
		t.Errorf("task_type = %q", res.Get("task_type").String())
	}
	if res.Get("confidence").Float() != 0.9 {
		t.Errorf("confidence given as string should still parse, got %v", res.Get("confidence").Float())
	}
}

func TestJSONIsland_Invalid(t *testing.T) {
	for _, text := range []string{"", "no json here", "} backwards {", "{not: json}"} {
		if _, ok := JSONIsland(text); ok {
			t.Errorf("JSONIsland(%q) should fail", text)
		}
	}
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	calls := 0
	failing := Func(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("unreachable")
	})
	cfg := config.LLMConfig{
		TimeoutSeconds: 1,
		Breaker:        config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, SuccessThreshold: 1, OpenSeconds: 60},
	}
	g := NewGuarded(failing, cfg)

	for i := 0; i < 2; i++ {
		if _, err := g.Complete(context.Background(), "hi"); err == nil {
			t.Fatal("Complete() expected error")
		}
	}
	if _, err := g.Complete(context.Background(), "hi"); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("Complete() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("underlying calls = %d, want 2", calls)
	}
}

func TestGuardedAppliesTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, prompt string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	})
	g := NewGuarded(slow, config.LLMConfig{TimeoutSeconds: 1})

	start := time.Now()
	if _, err := g.Complete(context.Background(), "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Complete() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout was not applied")
	}
}
