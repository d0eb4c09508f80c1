package llm

import "errors"

// Completion failures split into two classes: transient faults that may
// clear on retry (rate limits, upstream overload, timeouts) and fatal
// faults that will fail the same way every time (malformed request, bad
// credentials). The client retries and fails over on the first class only.

// TransientError marks a failure worth retrying.
type TransientError struct {
	err error
}

// FatalError marks a failure no retry can fix.
type FatalError struct {
	err error
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error { return &TransientError{err: err} }

// NewFatalError wraps err as permanent.
func NewFatalError(err error) error { return &FatalError{err: err} }

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// IsTransient reports whether any error in the chain is transient.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether any error in the chain is fatal.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
