package fetch

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// TransientError marks a failure that should end the current attempt early
// without consuming a strategy: the record is retried on a later run, not
// immediately.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a transient-network signal.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyNetError wraps timeouts and connection resets as transient;
// anything else passes through unchanged.
func classifyNetError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Reason: "timeout", Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return &TransientError{Reason: "connection failure", Err: err}
	}
	return err
}

// transientStatus reports whether an HTTP status is an explicit
// back-off-and-retry-later signal.
func transientStatus(code int) bool {
	return code == 429 || code == 503
}
