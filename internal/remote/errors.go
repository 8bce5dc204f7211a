package remote

import (
	"errors"
	"fmt"
)

// ErrAuthMissing indicates there is no active session. Background sync is
// silently skipped when it sees this error; it is never surfaced to users.
var ErrAuthMissing = errors.New("no active session")

// TransientError wraps a network or server failure that is expected to clear
// on its own. The upload scheduler retries transient failures with backoff;
// nothing else does.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ArbitrationError means a server-arbitrated operation lost its race or was
// rejected outright. Retrying would not change the outcome, so callers
// surface it once and do not retry.
type ArbitrationError struct {
	Op      string
	Code    string
	Message string
}

func (e *ArbitrationError) Error() string {
	return fmt.Sprintf("%s rejected by server (%s): %s", e.Op, e.Code, e.Message)
}

// IsArbitrationRejected reports whether err is (or wraps) an ArbitrationError.
func IsArbitrationRejected(err error) bool {
	var ae *ArbitrationError
	return errors.As(err, &ae)
}
