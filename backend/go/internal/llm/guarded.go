package llm

import (
	"Friday/backend/go/internal/config"
	"Friday/backend/go/pkg/circuitbreaker"
	"context"
	"time"
)

// Guarded 给每次调用加上超时，并在连续失败后熔断，避免管道在不可用的服务上排队等待。
type Guarded struct {
	next    Completer
	timeout time.Duration
	breaker *circuitbreaker.Breaker
}

// NewGuarded 包装一个 Completer。熔断未启用时只做超时控制。
func NewGuarded(next Completer, cfg config.LLMConfig) *Guarded {
	g := &Guarded{next: next, timeout: cfg.CallTimeout()}
	if cfg.Breaker.Enabled {
		g.breaker = circuitbreaker.New(
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.SuccessThreshold,
			time.Duration(cfg.Breaker.OpenSeconds)*time.Second,
		)
	}
	return g
}

func (g *Guarded) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.breaker == nil {
		return g.next.Complete(ctx, prompt)
	}
	var out string
	err := g.breaker.Do(func() error {
		var callErr error
		out, callErr = g.next.Complete(ctx, prompt)
		return callErr
	})
	return out, err
}
