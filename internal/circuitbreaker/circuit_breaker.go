package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

const (
	defaultMaxFailures = 5
	defaultTimeout     = 30 * time.Second
	defaultMaxRequests = 1

	maxAllowedFailures = 1000
	maxAllowedTimeout  = 10 * time.Minute
	maxAllowedRequests = 100

	callbackTimeout = 5 * time.Second
)

type Config struct {
	Name          string
	MaxFailures   int
	Timeout       time.Duration
	MaxRequests   int
	OnStateChange func(name string, from State, to State)
}

// Snapshot is a point-in-time view of a breaker, safe to serialize.
type Snapshot struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	Requests        int       `json:"requests"`
	TotalRequests   int64     `json:"total_requests"`
	TotalFailures   int64     `json:"total_failures"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalRejected   int64     `json:"total_rejected"`
	StateChanges    int64     `json:"state_changes"`
	MaxFailures     int       `json:"max_failures"`
	TimeoutSeconds  float64   `json:"timeout_seconds"`
	MaxRequests     int       `json:"max_requests"`
	LastFailure     time.Time `json:"last_failure"`
	LastStateChange time.Time `json:"last_state_change"`
}

// CircuitBreaker guards calls to a single collaborator. A nil *CircuitBreaker
// is valid and runs every call unguarded.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	timeout       time.Duration
	maxRequests   int
	onStateChange func(name string, from State, to State)

	mutex        sync.RWMutex
	state        State
	failures     int
	requests     int
	lastFailTime time.Time

	totalRequests   int64
	totalFailures   int64
	totalSuccesses  int64
	totalRejected   int64
	stateChanges    int64
	lastStateChange time.Time

	logger *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *CircuitBreaker {
	config = sanitize(config, logger)

	return &CircuitBreaker{
		name:          config.Name,
		maxFailures:   config.MaxFailures,
		timeout:       config.Timeout,
		maxRequests:   config.MaxRequests,
		onStateChange: config.OnStateChange,
		state:         StateClosed,
		logger:        logger,
	}
}

func sanitize(config Config, logger *logrus.Logger) Config {
	if config.Name == "" {
		config.Name = "unnamed"
		logger.Warn("Circuit breaker created without name, using 'unnamed'")
	}

	warn := func(field string, invalid, replacement interface{}) {
		logger.WithFields(logrus.Fields{
			"circuit_breaker": config.Name,
			"field":           field,
			"invalid_value":   invalid,
			"used_value":      replacement,
		}).Warn("Invalid circuit breaker setting, adjusting")
	}

	switch {
	case config.MaxFailures <= 0:
		warn("max_failures", config.MaxFailures, defaultMaxFailures)
		config.MaxFailures = defaultMaxFailures
	case config.MaxFailures > maxAllowedFailures:
		warn("max_failures", config.MaxFailures, maxAllowedFailures)
		config.MaxFailures = maxAllowedFailures
	}

	switch {
	case config.Timeout <= 0:
		warn("timeout", config.Timeout.String(), defaultTimeout.String())
		config.Timeout = defaultTimeout
	case config.Timeout > maxAllowedTimeout:
		warn("timeout", config.Timeout.String(), maxAllowedTimeout.String())
		config.Timeout = maxAllowedTimeout
	}

	switch {
	case config.MaxRequests <= 0:
		warn("max_requests", config.MaxRequests, defaultMaxRequests)
		config.MaxRequests = defaultMaxRequests
	case config.MaxRequests > maxAllowedRequests:
		warn("max_requests", config.MaxRequests, maxAllowedRequests)
		config.MaxRequests = maxAllowedRequests
	}

	return config
}

// Do runs fn unless the breaker is open. Errors wrapped with Ignore are
// returned unwrapped and do not count as failures. If ctx ends before fn
// returns, Do returns ctx.Err() and fn keeps running in the background.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if cb == nil {
		return unwrapIgnored(fn(ctx))
	}

	if err := cb.admit(); err != nil {
		return err
	}

	resultChan := make(chan error, 1)
	go func() {
		resultChan <- fn(ctx)
	}()

	var err error
	select {
	case err = <-resultChan:
	case <-ctx.Done():
		err = ctx.Err()
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	var ignored *ignoredError
	switch {
	case err == nil:
		cb.onSuccess()
		cb.totalSuccesses++
	case errors.As(err, &ignored), errors.Is(err, context.Canceled):
		// the collaborator answered or the caller went away; neither is an outage
		cb.onSuccess()
		cb.totalSuccesses++
	default:
		cb.onFailure()
		cb.totalFailures++
	}

	return unwrapIgnored(err)
}

func (cb *CircuitBreaker) admit() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailTime) <= cb.timeout {
			cb.totalRejected++
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.name,
				"state":           cb.state.String(),
			}).Debug("Circuit breaker is open, rejecting request")
			return fmt.Errorf("%s: %w", cb.name, ErrCircuitBreakerOpen)
		}
		cb.setState(StateHalfOpen)
		cb.requests = 0
	}

	if cb.state == StateHalfOpen && cb.requests >= cb.maxRequests {
		cb.totalRejected++
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.name,
			"requests":        cb.requests,
			"max_requests":    cb.maxRequests,
		}).Debug("Circuit breaker half-open max requests reached")
		return fmt.Errorf("%s: %w", cb.name, ErrCircuitBreakerOpen)
	}

	cb.totalRequests++
	if cb.state == StateHalfOpen {
		cb.requests++
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures = 0

	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.requests = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.state == StateClosed && cb.failures >= cb.maxFailures {
		cb.setState(StateOpen)
		cb.requests = 0
	} else if cb.state == StateHalfOpen {
		cb.setState(StateOpen)
		cb.requests = 0
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.stateChanges++
	cb.lastStateChange = time.Now()

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from_state":      oldState.String(),
		"to_state":        newState.String(),
	}).Info("Circuit breaker state changed")

	if cb.onStateChange != nil {
		go cb.executeStateChangeCallback(cb.name, oldState, newState)
	}
}

func (cb *CircuitBreaker) executeStateChangeCallback(name string, from State, to State) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				cb.logger.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from_state":      from.String(),
					"to_state":        to.String(),
					"panic":           r,
				}).Error("Circuit breaker state change callback panicked")
			}
			close(done)
		}()

		cb.onStateChange(name, from, to)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cb.logger.WithFields(logrus.Fields{
			"circuit_breaker": name,
			"from_state":      from.String(),
			"to_state":        to.String(),
			"timeout":         callbackTimeout.String(),
		}).Warn("Circuit breaker state change callback timed out")
	}
}

func (cb *CircuitBreaker) Name() string {
	if cb == nil {
		return ""
	}
	return cb.name
}

func (cb *CircuitBreaker) State() State {
	if cb == nil {
		return StateClosed
	}
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return Snapshot{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		Requests:        cb.requests,
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		TotalSuccesses:  cb.totalSuccesses,
		TotalRejected:   cb.totalRejected,
		StateChanges:    cb.stateChanges,
		MaxFailures:     cb.maxFailures,
		TimeoutSeconds:  cb.timeout.Seconds(),
		MaxRequests:     cb.maxRequests,
		LastFailure:     cb.lastFailTime,
		LastStateChange: cb.lastStateChange,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.requests = 0
	cb.lastFailTime = time.Time{}
}

func (cb *CircuitBreaker) String() string {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return fmt.Sprintf("CircuitBreaker(name=%s, state=%s, failures=%d/%d)",
		cb.name, cb.state.String(), cb.failures, cb.maxFailures)
}

type ignoredError struct {
	err error
}

func (e *ignoredError) Error() string { return e.err.Error() }
func (e *ignoredError) Unwrap() error { return e.err }

// Ignore marks err as a definitive answer from the collaborator (bad input,
// duplicate key) rather than a sign that it is unhealthy.
func Ignore(err error) error {
	if err == nil {
		return nil
	}
	return &ignoredError{err: err}
}

func unwrapIgnored(err error) error {
	var ignored *ignoredError
	if errors.As(err, &ignored) {
		return ignored.err
	}
	return err
}
