package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict is a classifier's decision about one failed attempt.
type Verdict struct {
	Retryable     bool
	RecordFailure bool
}

type Classifier func(err error) Verdict

// Config tunes retries and the per-operation circuit breaker used by remote adapters.
// Zero values fall back to the defaults below.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

const (
	defaultAttempts      = 3
	defaultBackoff       = 100 * time.Millisecond
	defaultMultiplier    = 2.0
	defaultMinRequests   = 5
	defaultFailureRatio  = 0.6
	defaultOpenTimeout   = 20 * time.Second
	defaultHalfOpenCalls = 1
)

func (c Config) normalized() Config {
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaultAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = defaultBackoff
	}
	c.RetryMaxBackoff = max(c.RetryMaxBackoff, c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = defaultMultiplier
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = defaultMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = defaultFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = defaultOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = defaultHalfOpenCalls
	}
	return c
}

// backoff is the wait after the given failed attempt (1-based), capped at RetryMaxBackoff.
func (c Config) backoff(attempt int) time.Duration {
	wait := float64(c.RetryInitialBackoff)
	for range attempt - 1 {
		wait *= c.RetryMultiplier
		if wait >= float64(c.RetryMaxBackoff) {
			return c.RetryMaxBackoff
		}
	}
	return min(time.Duration(wait), c.RetryMaxBackoff)
}

// trips opens the breaker once enough requests were seen and the failure ratio reaches the threshold.
func (c Config) trips(counts gobreaker.Counts) bool {
	if counts.Requests < c.BreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.BreakerFailureRatio
}
