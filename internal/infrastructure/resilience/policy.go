package resilience

import "time"

// RetryPolicy bounds how often and how fast a failed call is repeated.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the per-operation circuit breaker.
type BreakerPolicy struct {
	Enabled bool
	// MinRequests is the number of calls in a window before the failure
	// ratio is considered at all.
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig suits remote embedding, chat and store calls: a handful of
// quick retries, then fail fast for 30s once half the calls are failing.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// Delay returns the wait before retry number attempt (1-based), growing by
// Multiplier and capped at MaxBackoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	wait := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= p.Multiplier
		if time.Duration(wait) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(wait), p.MaxBackoff)
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.InitialBackoff)
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (p BreakerPolicy) normalize(def BreakerPolicy) BreakerPolicy {
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = def.OpenTimeout
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}

// normalize replaces unset or out-of-range values with defaults. Enabled is
// taken as given.
func (c Config) normalize() Config {
	def := DefaultConfig()
	return Config{
		Retry:   c.Retry.normalize(def.Retry),
		Breaker: c.Breaker.normalize(def.Breaker),
	}
}
