// Package circuitbreaker wraps github.com/sony/gobreaker for outbound calls:
// one breaker per notification recipient plus one in front of the database.
package circuitbreaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpenState is returned by Execute while the breaker is open.
var ErrOpenState = gobreaker.ErrOpenState

// ErrTooManyRequests is returned in half-open state once MaxRequests is used up.
var ErrTooManyRequests = gobreaker.ErrTooManyRequests

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear success/failure counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// FailureThreshold is the failure ratio threshold to trip the circuit
	// For example, 0.6 means 60% failure rate
	FailureThreshold float64

	// MinRequests is the minimum number of requests before calculating failure ratio
	MinRequests uint32

	// OnStateChange, if set, is called after the transition is logged.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// TelegramChatConfig trips a recipient after 5 straight failed deliveries and
// half-opens it after 5 minutes. Each failed delivery already includes the
// inner retries, so the threshold is counted in whole sends.
func TelegramChatConfig(chatID string) Config {
	return Config{
		Name:             "telegram-chat:" + chatID,
		MaxRequests:      1,
		Interval:         10 * time.Minute,
		Timeout:          5 * time.Minute,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with additional functionality.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs the given function through the circuit breaker.
// If the circuit is open, it returns ErrOpenState immediately.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// Run is Execute for functions without a result.
func (cb *CircuitBreaker) Run(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// Group lazily creates one breaker per key.
type Group struct {
	mu       sync.Mutex
	newCfg   func(key string) Config
	breakers map[string]*CircuitBreaker
}

// NewGroup returns a Group that builds each breaker's config with newCfg.
func NewGroup(newCfg func(key string) Config) *Group {
	return &Group{
		newCfg:   newCfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group) Get(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = New(g.newCfg(key))
		g.breakers[key] = cb
	}
	return cb
}

// Reset replaces the breaker for key with a fresh closed one.
func (g *Group) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.breakers[key]; ok {
		g.breakers[key] = New(g.newCfg(key))
	}
}

// BreakerStatus is a point-in-time view of one breaker in a Group.
type BreakerStatus struct {
	Key   string `json:"key"`
	State string `json:"state"`
}

// Snapshot lists every breaker created so far, sorted by key.
func (g *Group) Snapshot() []BreakerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]BreakerStatus, 0, len(g.breakers))
	for key, cb := range g.breakers {
		out = append(out, BreakerStatus{Key: key, State: cb.State().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
