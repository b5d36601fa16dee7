package federation

import (
	"context"
	"math"
	"time"
)

// RetryConfig configures transfer retry behavior.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements exponential backoff for per-item transfers.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, filling unset fields with defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryPolicy{config: config}
}

// NextDelay calculates the backoff before the given attempt number.
func (p *RetryPolicy) NextDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// Do runs fn up to MaxAttempts times with backoff between attempts. The last
// error is returned; context cancellation stops retrying immediately.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.NextDelay(attempt)):
		}
	}
	return err
}
