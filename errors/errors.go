package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which operation produced the error
type Phase string

const (
	PhaseCreate    Phase = "create"    // instance creation and option validation
	PhaseDrain     Phase = "drain"     // native iteration and log drain
	PhaseInvoke    Phase = "invoke"    // native action calls
	PhaseInject    Phase = "inject"    // externally injected events
	PhaseKill      Phase = "kill"      // native teardown
	PhaseFinalize  Phase = "finalize"  // table removal
	PhaseSnapshot  Phase = "snapshot"  // savedata extraction
	PhaseTranslate Phase = "translate" // native callback to event record
	PhaseLoad      Phase = "load"      // guest module loading
	PhaseStore     Phase = "store"     // snapshot persistence
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseServe     Phase = "serve"     // HTTP/websocket surface
	PhaseQuery     Phase = "query"     // session state and scheduling lookups
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation      Kind = "allocation"
	KindInvalidArgument Kind = "invalid_argument"
	KindInstanceMissing Kind = "instance_not_found"
	KindKilled          Kind = "instance_killed"
	KindStillActive     Kind = "instance_still_active"
	KindNative          Kind = "native"
	KindClosed          Kind = "closed"
	KindNotFound        Kind = "not_found"
	KindInvalidData     Kind = "invalid_data"
)

// Sentinels for errors.Is. A target without a Phase matches on Kind alone.
var (
	ErrAllocation      = &Error{Kind: KindAllocation}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrNotFound        = &Error{Kind: KindInstanceMissing}
	ErrKilled          = &Error{Kind: KindKilled}
	ErrStillActive     = &Error{Kind: KindStillActive}
	ErrNative          = &Error{Kind: KindNative}
	ErrClosed          = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library so callers need a single import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NotFound reports an unknown handle. The detail is the same whether the id
// was never allocated or has been finalized.
func NotFound(phase Phase, id uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInstanceMissing,
		Detail: fmt.Sprintf("instance %d not found", id),
		Value:  id,
	}
}

// Killed reports an operation that needs a live native handle.
func Killed(phase Phase, id uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindKilled,
		Detail: fmt.Sprintf("instance %d has been killed", id),
		Value:  id,
	}
}

// StillActive reports a finalize attempted before kill.
func StillActive(phase Phase, id uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStillActive,
		Detail: fmt.Sprintf("instance %d must be killed before it is finalized", id),
		Value:  id,
	}
}

// Allocation wraps a native factory failure. The cause is kept as is so
// callers can recover the native error code with errors.As.
func Allocation(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: "native instance could not be created",
		Cause:  cause,
	}
}

// InvalidArgument creates a caller error for a malformed or out-of-range field
func InvalidArgument(phase Phase, path []string, value any, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Path:   path,
		Detail: detail,
		Value:  value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Path:   path,
		Detail: fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:  value,
	}
}

// OutOfRange creates an error for a numeric field outside [lo, hi]
func OutOfRange(phase Phase, path []string, value, lo, hi int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Path:   path,
		Detail: fmt.Sprintf("value %d out of range [%d, %d]", value, lo, hi),
		Value:  value,
	}
}

// Native wraps an error returned by the native collaborator
func Native(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNative,
		Detail: what,
		Cause:  cause,
	}
}

// Closed reports use of a table or store after Close
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Missing creates a generic not-found error for named things other than instances
func Missing(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a guest module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
