package femm

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetMissing indicates a motor's geometry file is absent; the motor
	// is skipped, not the batch.
	ErrAssetMissing = errors.New("femm: geometry asset not found")
)

// SessionError wraps a failure reported by the live solver session, tagged
// with the operation that produced it. An Op of "open" means no session was
// established and the whole motor is abandoned; any other Op costs only the
// current case.
type SessionError struct {
	Op      string
	Wrapped error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("femm: %s: %v", e.Op, e.Wrapped)
}

func (e *SessionError) Unwrap() error {
	return e.Wrapped
}

func sessionErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return err
	}
	return &SessionError{Op: op, Wrapped: err}
}
