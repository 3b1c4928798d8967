package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Sentinel errors surfaced instead of the underlying gobreaker ones so
// callers never import gobreaker directly.
var (
	// ErrCircuitOpen indicates the breaker is open and rejecting calls
	// to give the remote service room to recover.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests indicates the breaker is half-open and the
	// probe budget is exhausted.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds the tunables for a circuit breaker.
type Config struct {
	// Name identifies the breaker in logs.
	Name string

	// Enabled gates the whole breaker. When false, New returns nil and
	// Execute passes calls straight through.
	Enabled bool

	// MaxRequests caps the probe requests allowed while half-open.
	// Zero means a single probe.
	MaxRequests uint

	// Interval is the closed-state period after which internal counts
	// reset. Zero keeps counts forever while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	// Zero defaults to 60 seconds.
	Timeout time.Duration

	// FailureThreshold is the consecutive-failure count that trips the
	// breaker from closed to open.
	FailureThreshold uint

	// OnStateChange, when set, is invoked on every state transition.
	OnStateChange func(name, from, to string)
}

// Breaker wraps gobreaker with type-safe execution and mapped errors.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a breaker from cfg, or nil when cfg.Enabled is false.
func New[T any](cfg Config) *Breaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Name returns the breaker's configured name.
func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}

// State reports the current breaker state as a string.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}

// Execute runs fn through the breaker. A nil breaker executes fn
// directly, so disabled configurations cost nothing at call sites.
func Execute[T any](b *Breaker[T], fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}

	result, err := b.cb.Execute(fn)
	if err != nil {
		var zero T

		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return zero, ErrCircuitOpen
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return zero, ErrTooManyRequests
		}

		return result, err
	}

	return result, nil
}
