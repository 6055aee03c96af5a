package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is the sentinel kind for degenerate geometry and transform inputs.
var ErrInvalidGeometry = errors.New("invalid geometry")

// InvalidGeometryError reports a degenerate shape or transform input.
// Subject names the zone or transform stage at fault.
type InvalidGeometryError struct {
	Subject string
	Reason  string
}

// Invalid builds an *InvalidGeometryError.
func Invalid(subject, reason string, args ...any) *InvalidGeometryError {
	return &InvalidGeometryError{Subject: subject, Reason: fmt.Sprintf(reason, args...)}
}

func (e *InvalidGeometryError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidGeometry, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidGeometry, e.Subject, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidGeometry).
func (e *InvalidGeometryError) Unwrap() error { return ErrInvalidGeometry }
