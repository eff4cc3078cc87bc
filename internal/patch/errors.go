package patch

import (
	"errors"
	"fmt"
)

// Kind classifies a patch failure.
type Kind int

const (
	// KindUnknown is the zero value and is never returned by this package.
	KindUnknown Kind = iota
	// KindValidation covers bad arguments detected before any I/O.
	KindValidation
	// KindNotFound means the target file does not exist.
	KindNotFound
	// KindFormat means the diff text does not follow its grammar.
	KindFormat
	// KindApply means the edit is well-formed but does not match the file.
	KindApply
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindFormat:
		return "format"
	case KindApply:
		return "apply"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrFormat     = &Error{Kind: KindFormat}
	ErrApply      = &Error{Kind: KindApply}
)

// Error is a structured patch failure.
type Error struct {
	Kind    Kind
	Message string
	// Line is the 1-based line in the target where a hunk failed to match, or 0.
	Line int
	// Path is the file the failure relates to, when known.
	Path string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, msg)
	}
	return msg
}

// Is reports whether target is a *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindUnknown when err is not a patch error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func mismatchError(role string, line int) *Error {
	return &Error{
		Kind:    KindApply,
		Message: fmt.Sprintf("%s mismatch at line %d", role, line),
		Line:    line,
	}
}

func withPath(err error, path string) error {
	var pe *Error
	if errors.As(err, &pe) && pe.Path == "" {
		cp := *pe
		cp.Path = path
		return &cp
	}
	return err
}
