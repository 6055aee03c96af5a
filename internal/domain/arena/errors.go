package arena

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrUnknownPoint  = errors.New("unknown reference point")
	ErrUnknownZone   = errors.New("unknown zone")
)

// ConfigurationError identifies the zone and field that break an arena rule.
// ZoneID is empty for arena-wide settings such as calibration.
type ConfigurationError struct {
	ZoneID string
	Field  string
	Rule   string
	// Err is the underlying cause, if any (for example a *zonegraph.CycleError).
	Err error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConfiguration.Error())
	if e.ZoneID != "" {
		fmt.Fprintf(&b, ": zone %q", e.ZoneID)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Rule)
	return b.String()
}

// Unwrap exposes both ErrConfiguration and the cause.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

func configErr(zone, field, rule string, args ...any) *ConfigurationError {
	return &ConfigurationError{ZoneID: zone, Field: field, Rule: fmt.Sprintf(rule, args...)}
}

func fmtUnknown(kind error, name string) error {
	return fmt.Errorf("%w: %q", kind, name)
}
