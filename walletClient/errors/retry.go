package errors

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeNetwork,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// RetryWithConfig retries a function with custom configuration
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	op := &RetryOperation{Fn: fn, Config: config}
	return op.Execute(ctx)
}

func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	code := CodeOf(err)
	if code == "" {
		return false
	}
	for _, c := range retryableCodes {
		if c == code {
			return true
		}
	}
	return IsRetryable(err)
}

// RetryOperation represents an operation that can be retried
type RetryOperation struct {
	Name      string
	Fn        RetryFunc
	Config    *RetryConfig
	OnRetry   func(attempt int, err error)
	OnSuccess func()
	OnFailure func(err error)
}

// Execute runs the retry operation at least once. A non-retryable error is
// returned as is; exhausting the attempts returns the last error unchanged so
// its code survives.
func (op *RetryOperation) Execute(ctx context.Context) error {
	if op.Config == nil {
		op.Config = DefaultRetryConfig()
	}

	maxAttempts := op.Config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := op.Config.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			op.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		err := op.Fn()
		if err == nil {
			if op.OnSuccess != nil {
				op.OnSuccess()
			}
			return nil
		}
		lastErr = err

		if !isRetryableError(err, op.Config.RetryableErrors) {
			op.fail(err)
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if op.OnRetry != nil {
			op.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			op.fail(ctx.Err())
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * op.Config.Multiplier)
		if delay > op.Config.MaxDelay {
			delay = op.Config.MaxDelay
		}
	}

	op.fail(lastErr)
	return lastErr
}

func (op *RetryOperation) fail(err error) {
	if op.OnFailure != nil {
		op.OnFailure(err)
	}
}
