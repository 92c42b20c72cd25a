// Package errors provides structured error types for the tox-bridge library.
//
// Errors are categorized by Phase (which bridge operation failed) and Kind (error category).
// The Error type carries the offending value, a human-readable detail and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCreate, errors.KindInvalidArgument).
//		Path("options", "proxy_port").
//		Value(70000).
//		Detail("port out of range").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseDrain, id)
//	err := errors.Killed(errors.PhaseInvoke, id)
//
// Callers usually only care about the Kind. The exported sentinels match any
// phase:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
