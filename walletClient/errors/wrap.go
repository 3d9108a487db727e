package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapSignerError wraps an error as a SignerError if it isn't already one.
// An existing SignerError keeps its code; a copy with the op filled in is
// returned when it has none, so the original is never modified.
func WrapSignerError(err error, code ErrorCode, op, message string) *SignerError {
	if err == nil {
		return nil
	}

	var signerErr *SignerError
	if errors.As(err, &signerErr) {
		if signerErr.Op != "" {
			return signerErr
		}
		cp := *signerErr
		cp.Op = op
		return &cp
	}

	return New(code, op, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of the first SignerError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var signerErr *SignerError
	if errors.As(err, &signerErr) {
		return signerErr.Code
	}
	return ""
}

// IsCode checks if an error is a SignerError with the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var signerErr *SignerError
	if errors.As(err, &signerErr) {
		return signerErr.IsRetryable()
	}
	return false
}
