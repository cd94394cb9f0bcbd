package customfit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitState mirrors gobreaker's three states under the vocabulary used
// by §4 and §8's testable properties, so callers never need to import
// gobreaker directly.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

func fromGobreakerState(s gobreaker.State) CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// ErrCircuitOpen is returned by CircuitBreaker.Execute when the breaker is
// open and rejecting calls without attempting them.
var ErrCircuitOpen = errors.New("customfit: circuit breaker open")

// CircuitBreakerConfig configures one endpoint's breaker, per §3/§4's "one
// instance per endpoint key (settings/user-configs/events/summaries)"
// requirement.
type CircuitBreakerConfig struct {
	FailureThreshold   int
	ResetTimeoutMs     int
	HalfOpenMaxCalls   uint32
}

func defaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: DefaultCircuitBreakerFailureThreshold,
		ResetTimeoutMs:   DefaultCircuitBreakerResetTimeoutMs,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker wraps sony/gobreaker/v2 for one endpoint key, translating
// its generic result type down to the plain (T, error) shape the rest of
// the fetch path uses.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewCircuitBreaker builds a breaker named for endpoint (one of
// "settings", "user-configs", "events", "summaries" per §4), opening after
// cfg.FailureThreshold consecutive failures and allowing cfg.HalfOpenMaxCalls
// trial calls after ResetTimeoutMs.
func NewCircuitBreaker(endpoint string, cfg CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     time.Duration(cfg.ResetTimeoutMs) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}
	return &CircuitBreaker{
		name: endpoint,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Execute runs op through the breaker. When the breaker is open, op is
// never called and ErrCircuitOpen is returned, per the "OPEN rejects
// immediately" testable property in §8.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return nil, ErrCircuitOpen
	}
	return v, err
}

func (b *CircuitBreaker) State() CircuitState {
	return fromGobreakerState(b.cb.State())
}

// CircuitBreakerRegistry owns one CircuitBreaker per endpoint key, created
// lazily on first use.
type CircuitBreakerRegistry struct {
	cfg      CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewCircuitBreakerRegistry(cfg CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

func (r *CircuitBreakerRegistry) For(endpoint string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	b := NewCircuitBreaker(endpoint, r.cfg)
	r.breakers[endpoint] = b
	return b
}
