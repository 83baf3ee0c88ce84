// Package invoke calls language-model providers through an ordered fallback
// chain with bounded retry. Generate never panics or returns a Go error:
// exhaustion of every provider is reported as a typed failure Result, so
// callers treat it as a normal outcome.
package invoke

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inquest/internal/logging"
)

// ErrNoProviders is set on the Result when the chain is empty.
var ErrNoProviders = errors.New("invoke: no providers configured")

// Provider is one model backend. Generate performs a single call against the
// named model with no retry of its own; retry and fallback live in the
// Invoker.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error)
}

// Spec places a provider in the chain. FallbackModel, when set, is tried
// once within the provider after the first failed attempt before the chain
// moves on.
type Spec struct {
	Provider      Provider
	Model         string
	FallbackModel string
	MaxRetries    int // attempts per provider; defaults to 2
}

// Result is the typed outcome of Generate.
type Result struct {
	Text     string
	Provider string
	Elapsed  time.Duration
	Success  bool
	Err      error
}

// Stats counts attempts per provider. Calls increments on every attempt,
// Failures on every attempt that ends in error (a fallback-model try counts
// inside its attempt, not separately).
type Stats struct {
	Calls    int
	Failures int
}

// Invoker drives the fallback chain.
type Invoker struct {
	chain   []Spec
	backoff time.Duration

	mu    sync.Mutex
	stats map[string]*Stats

	log *slog.Logger
}

const defaultMaxRetries = 2

// New builds an invoker over the given chain. backoff is the base delay for
// exponential backoff between retry attempts; zero disables sleeping.
func New(backoff time.Duration, specs ...Spec) *Invoker {
	inv := &Invoker{
		chain:   specs,
		backoff: backoff,
		stats:   make(map[string]*Stats, len(specs)),
		log:     logging.New("invoke"),
	}
	for _, s := range specs {
		inv.stats[s.Provider.Name()] = &Stats{}
	}
	return inv
}

// Generate tries each provider in order. Within a provider: up to MaxRetries
// attempts with exponential backoff; after the first failed attempt the
// fallback model (if configured) is tried once before the retry counts on.
func (inv *Invoker) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) Result {
	if len(inv.chain) == 0 {
		return Result{Success: false, Err: ErrNoProviders}
	}

	var lastErr error
	for _, spec := range inv.chain {
		name := spec.Provider.Name()
		retries := spec.MaxRetries
		if retries <= 0 {
			retries = defaultMaxRetries
		}

		for attempt := 1; attempt <= retries; attempt++ {
			if attempt > 1 {
				if err := inv.sleep(ctx, attempt); err != nil {
					return Result{Success: false, Err: err}
				}
			}

			inv.record(name, func(s *Stats) { s.Calls++ })
			start := time.Now()

			text, err := spec.Provider.Generate(ctx, spec.Model, prompt, temperature, maxTokens)
			if err == nil {
				return Result{
					Text:     text,
					Provider: name,
					Elapsed:  time.Since(start),
					Success:  true,
				}
			}

			// One fallback-model try within the same attempt.
			if attempt == 1 && spec.FallbackModel != "" {
				text, ferr := spec.Provider.Generate(ctx, spec.FallbackModel, prompt, temperature, maxTokens)
				if ferr == nil {
					return Result{
						Text:     text,
						Provider: name,
						Elapsed:  time.Since(start),
						Success:  true,
					}
				}
				inv.log.Warn("fallback model failed", "provider", name, "model", spec.FallbackModel, "error", ferr)
			}

			lastErr = err
			inv.record(name, func(s *Stats) { s.Failures++ })
			inv.log.Warn("provider attempt failed",
				"provider", name, "attempt", attempt, "max_retries", retries, "error", err)

			if ctx.Err() != nil {
				return Result{Success: false, Err: ctx.Err()}
			}
		}
		inv.log.Warn("provider exhausted, moving down the chain", "provider", name)
	}

	inv.log.Error("all providers exhausted", "error", lastErr)
	return Result{Success: false, Err: lastErr}
}

// sleep waits for the exponential backoff delay (base, 2*base, 4*base...)
// or until the context is done.
func (inv *Invoker) sleep(ctx context.Context, attempt int) error {
	if inv.backoff <= 0 {
		return ctx.Err()
	}
	delay := inv.backoff * time.Duration(1<<uint(attempt-2))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (inv *Invoker) record(provider string, f func(*Stats)) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	s, ok := inv.stats[provider]
	if !ok {
		s = &Stats{}
		inv.stats[provider] = s
	}
	f(s)
}

// Stats returns a copy of the per-provider counters.
func (inv *Invoker) Stats() map[string]Stats {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make(map[string]Stats, len(inv.stats))
	for k, v := range inv.stats {
		out[k] = *v
	}
	return out
}

// Providers lists the chain in order.
func (inv *Invoker) Providers() []string {
	out := make([]string, len(inv.chain))
	for i, s := range inv.chain {
		out[i] = s.Provider.Name()
	}
	return out
}
