package clients

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RetryConfig defines retry behavior for supplier API calls
type RetryConfig struct {
	MaxRetries     int           // retry budget after the first attempt
	InitialBackoff time.Duration // backoff before the first retry
	MaxBackoff     time.Duration
	BackoffFactor  float64 // exponential multiplier
	Jitter         float64 // random jitter factor in [0,1]
	RetryableCodes []int   // HTTP status codes worth retrying
}

// DefaultRetryConfig keeps the budget small: feed fetches degrade to
// "unknown" fields on exhaustion, so hammering a struggling supplier API
// buys nothing.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retrier retries HTTP operations with exponential backoff and jitter,
// honoring Retry-After when the upstream sends one.
type Retrier struct {
	config RetryConfig
}

// NewRetrier creates a Retrier
func NewRetrier(config RetryConfig) *Retrier {
	if config.BackoffFactor == 0 {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

func (r *Retrier) shouldRetry(statusCode int, err error) bool {
	if err != nil && statusCode == 0 {
		return true // network error
	}
	for _, code := range r.config.RetryableCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *Retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// parseRetryAfter extracts the Retry-After duration, if any
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}

// DoHTTP executes fn with the configured retry budget. The last response
// and error are returned on exhaustion; callers map them to the documented
// "unknown" fallbacks.
func (r *Retrier) DoHTTP(ctx context.Context, fn func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		resp, err := fn(ctx)
		lastResp, lastErr = resp, err

		statusCode := 0
		var retryAfter time.Duration
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			statusCode = resp.StatusCode
			retryAfter = parseRetryAfter(resp)
		}

		if !r.shouldRetry(statusCode, err) || attempt >= r.config.MaxRetries {
			return lastResp, lastErr
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return lastResp, ctx.Err()
		case <-time.After(r.backoff(attempt, retryAfter)):
		}
	}
	return lastResp, lastErr
}

// CircuitBreaker trips after consecutive supplier API failures so a dead
// upstream fails fast instead of burning every import on timeouts.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	successes    int
	state        circuitState
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        circuitClosed,
	}
}

// Allow reports whether a request may proceed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = circuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case circuitHalfOpen:
		return cb.successes < cb.halfOpenMax
	}
	return false
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = circuitClosed
			cb.failures = 0
		}
		return
	}
	cb.failures = 0
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.threshold {
		cb.state = circuitOpen
	}
}
