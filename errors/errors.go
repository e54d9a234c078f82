package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which component produced the error
type Phase string

const (
	PhaseAttach   Phase = "attach"   // thread attachment
	PhaseProxy    Phase = "proxy"    // host to native
	PhaseWrapper  Phase = "wrapper"  // native to host
	PhaseRegistry Phase = "registry" // type registration and lookup
	PhaseHost     Phase = "host"     // host runtime primitives
	PhaseNative   Phase = "native"   // native heap
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation   Kind = "allocation"
	KindAttachment   Kind = "attachment"
	KindNotFound     Kind = "not_found"
	KindConsistency  Kind = "consistency"
	KindRegistration Kind = "registration"
	KindInvalidInput Kind = "invalid_input"
	KindClosed       Kind = "closed"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrAllocation   = &Error{Kind: KindAllocation}
	ErrAttachment   = &Error{Kind: KindAttachment}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConsistency  = &Error{Kind: KindConsistency}
	ErrRegistration = &Error{Kind: KindRegistration}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrClosed       = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Tag     string
	Detail  string
	Address uintptr
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Tag != "" {
		b.WriteString(" type ")
		b.WriteString(e.Tag)
	}

	if e.Address != 0 {
		fmt.Fprintf(&b, " at %#x", e.Address)
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

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
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

// Tag sets the type tag
func (b *Builder) Tag(tag string) *Builder {
	b.err.Tag = tag
	return b
}

// Address sets the native address
func (b *Builder) Address(addr uintptr) *Builder {
	b.err.Address = addr
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

// AllocationFailed reports that a proxy or wrapper could not be constructed
func AllocationFailed(phase Phase, tag string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Tag:    tag,
		Detail: "construction failed",
		Cause:  cause,
	}
}

// AttachmentFailed reports that the calling thread could not be attached
func AttachmentFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindAttachment,
		Detail: "attach current thread",
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Consistency reports a programmer error detected by a defensive check
func Consistency(phase Phase, addr uintptr, detail string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindConsistency,
		Address: addr,
		Detail:  detail,
	}
}

// Registration creates a type registration error
func Registration(tag string, detail string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindRegistration,
		Tag:    tag,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed reports use of a component after shutdown
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
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
