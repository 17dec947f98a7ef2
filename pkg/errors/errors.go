// Package errors provides the closed error taxonomy for vfskit backends and
// the context-chaining mechanism used by the path layer. Every failure a
// backend produces is one of three kinds; higher layers attach human-readable
// context frames without changing the kind of the innermost cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a backend failure.
type Kind string

const (
	// KindIO wraps an underlying I/O failure from a backend.
	KindIO Kind = "IO_ERROR"
	// KindNotFound reports a path that does not exist where existence was required.
	KindNotFound Kind = "FILE_NOT_FOUND"
	// KindOther covers backend-specific failures not otherwise classified,
	// for example removing a non-empty directory.
	KindOther Kind = "OTHER"
)

// Error is a leaf error produced by a backend.
type Error struct {
	Kind    Kind
	Path    string // set for KindNotFound
	Message string // set for KindOther
	Cause   error  // set for KindIO
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("the file or directory '%s' could not be found", e.Path)
	case KindIO:
		return fmt.Sprintf("I/O error: %v", e.Cause)
	default:
		return fmt.Sprintf("other filesystem error: %s", e.Message)
	}
}

// Unwrap returns the wrapped I/O failure, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, for errors.Is compatibility.
func (e *Error) Is(target error) bool {
	var other *Error
	if stderrors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// NotFound returns a KindNotFound error for path.
func NotFound(path string) *Error {
	return &Error{Kind: KindNotFound, Path: path}
}

// IO wraps an underlying I/O failure.
func IO(cause error) *Error {
	return &Error{Kind: KindIO, Cause: cause}
}

// Other returns a KindOther error with the given message.
func Other(message string) *Error {
	return &Error{Kind: KindOther, Message: message}
}

// Otherf returns a KindOther error with a formatted message.
func Otherf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindOther, Message: fmt.Sprintf(format, args...)}
}

// ContextError layers a human-readable description over a preceding error.
// ContextErrors nest, forming a singly linked causal chain whose rendering
// is outermost-first and bottoms out at the leaf error's own message.
type ContextError struct {
	Context string
	Cause   error
}

// Error renders the full chain as "{context}, cause: {cause}".
func (e *ContextError) Error() string {
	return e.Context + ", cause: " + e.Cause.Error()
}

// Unwrap returns the wrapped cause for errors.As/Is traversal.
func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps err with one context frame. Wrapping nil is a no-op, so
// call sites can wrap unconditionally. The kind of the innermost cause stays
// reachable through errors.As regardless of chain depth.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return &ContextError{Context: context, Cause: err}
}

// WithContextf wraps err with one formatted context frame.
func WithContextf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{Context: fmt.Sprintf(format, args...), Cause: err}
}

// IsNotFound reports whether the chain bottoms out in a KindNotFound error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsKind reports whether the chain contains a leaf error of the given kind.
func IsKind(err error, kind Kind) bool {
	var leaf *Error
	if stderrors.As(err, &leaf) {
		return leaf.Kind == kind
	}
	return false
}

// RootCause walks the chain and returns the innermost error.
func RootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
