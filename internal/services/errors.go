package services

import "fmt"

// ValidationError is a client input error. Message is safe to show to the
// caller.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// ProviderError wraps any failure of the generation provider. The wrapped
// error is for operators only and is never sent to the caller.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
