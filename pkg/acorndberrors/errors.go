// Package acorndberrors defines the error kinds callers program against.
//
// Callers need to distinguish NotFound from PolicyDenied from BackendIO
// programmatically (a unique-index violation must be handled differently
// than a transient disk error), so Error carries a typed Kind on top of the
// usual fmt.Errorf("...: %w", err) wrapping rather than replacing it.
package acorndberrors

import "fmt"

// Kind enumerates the error categories a caller can match on.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInvalidID              Kind = "invalid_id"
	KindIDExtractionUnavailable Kind = "id_extraction_unavailable"
	KindUniqueIndexViolation   Kind = "unique_index_violation"
	KindPolicyDenied           Kind = "policy_denied"
	KindUnsupported            Kind = "unsupported"
	KindDisposed               Kind = "disposed"
	KindBackendIO              Kind = "backend_io"
	KindConflict               Kind = "conflict"
	KindCorrupt                Kind = "corrupt"
	KindTimeout                Kind = "timeout"
	KindCircuitOpen            Kind = "circuit_open"
)

// Error is the concrete error type returned by AcornDB's core operations.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "Collection.Put"
	ID   string // document id, when applicable
	Err  error  // wrapped underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.ID != "":
		return fmt.Sprintf("%s: %s (id=%q): %v", e.Op, e.Kind, e.ID, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s: %s (id=%q)", e.Op, e.Kind, e.ID)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, acorndberrors.NotFound) style comparisons work by
// treating an *Error that carries only a Kind (the sentinels below) as a
// pattern matching any *Error of that Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewWithID constructs an *Error of the given kind carrying a document id.
func NewWithID(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Sentinel values for use with errors.Is(err, acorndberrors.NotFound) where a
// bare kind comparison (no op/id) is all that's needed.
var (
	NotFound               = &Error{Kind: KindNotFound}
	InvalidID              = &Error{Kind: KindInvalidID}
	IDExtractionUnavailable = &Error{Kind: KindIDExtractionUnavailable}
	UniqueIndexViolation   = &Error{Kind: KindUniqueIndexViolation}
	PolicyDenied           = &Error{Kind: KindPolicyDenied}
	Unsupported            = &Error{Kind: KindUnsupported}
	Disposed               = &Error{Kind: KindDisposed}
	BackendIO              = &Error{Kind: KindBackendIO}
	Conflict               = &Error{Kind: KindConflict}
	Corrupt                = &Error{Kind: KindCorrupt}
	Timeout                = &Error{Kind: KindTimeout}
	CircuitOpen            = &Error{Kind: KindCircuitOpen}
)

// Of reports the Kind of err if it is (or wraps) an *Error, and ok=true.
func Of(err error) (Kind, bool) {
	var e *Error
	if asError(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
