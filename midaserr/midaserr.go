// Package midaserr defines the typed error kinds spec.md §7 names, so
// callers can distinguish "fatal, publish SHUTDOWN" from "non-fatal,
// report and keep running" with errors.Is/errors.As instead of string
// matching, following the teacher's fmt.Errorf("...: %w", err) wrapping
// convention throughout the rest of the codebase.
package midaserr

import "fmt"

// Kind is one of the error categories spec.md §7 defines.
type Kind string

const (
	// ConfigError marks a malformed or invalid configuration file.
	ConfigError Kind = "config_error"
	// DataSourceError marks a file I/O or HTTP failure reading market data.
	DataSourceError Kind = "data_source_error"
	// SchemaError marks an unknown record type or bad field mapping.
	SchemaError Kind = "schema_error"
	// BrokerError marks a rejected or timed-out order.
	BrokerError Kind = "broker_error"
	// StateError marks a broken invariant, e.g. negative cash after a
	// margined fill.
	StateError Kind = "state_error"
	// PluginError marks a missing plugin class or one missing the
	// required capability set.
	PluginError Kind = "plugin_error"
	// Shutdown marks a cooperative shutdown; it drives the run's terminal
	// transition and is not fatal.
	Shutdown Kind = "shutdown"
)

// Error wraps an underlying error with the Kind that classifies it,
// satisfying errors.Unwrap so callers can still inspect the original
// cause.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "config.Load"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, midaserr.New(midaserr.StateError, "", nil)) style checks
// work without comparing the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with kind and an operation label describing where it
// occurred.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatal reports whether an error kind demands a SHUTDOWN publish per
// spec.md §7's propagation policy (DataSourceError, SchemaError,
// StateError), as opposed to kinds handled locally (BrokerError
// rejection, PluginError at load time, or a quarantined strategy error
// that never reaches this package at all).
func Fatal(kind Kind) bool {
	switch kind {
	case DataSourceError, SchemaError, StateError:
		return true
	default:
		return false
	}
}
