package llm

import (
	"math/rand"
	"time"
)

type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultBackoffConfig = BackoffConfig{
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  30 * time.Second,
}

// FullJitter returns a delay in [exp/2, exp) where exp doubles per attempt
// up to MaxDelay.
func FullJitter(attempt int, cfg BackoffConfig) time.Duration {
	exp := Exponential(attempt, cfg)
	if exp <= 1 {
		return exp
	}

	jitter := time.Duration(rand.Int63n(int64(exp / 2)))

	return exp/2 + jitter
}

func Exponential(attempt int, cfg BackoffConfig) time.Duration {
	if attempt <= 0 {
		return cfg.BaseDelay
	}
	if attempt > 30 {
		return cfg.MaxDelay
	}

	return min(cfg.BaseDelay*time.Duration(1<<attempt), cfg.MaxDelay)
}
