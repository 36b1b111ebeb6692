// Package nogdberr defines the typed error kinds raised by every NogDB
// component. Operations either succeed or fail with exactly one Kind; a
// failure aborts the current operation but leaves the owning transaction
// open unless the error occurred during commit (see pkg/txn).
package nogdberr

import "fmt"

// Kind discriminates the class of failure. Callers should compare with
// nogdberr.Is(err, nogdberr.NoExistClass) rather than string-matching.
type Kind string

const (
	NoExistClass    Kind = "NOEXST_CLASS"
	NoExistProperty Kind = "NOEXST_PROPERTY"
	NoExistIndex    Kind = "NOEXST_INDEX"
	NoExistRecord   Kind = "NOEXST_RECORD"
	NoExistVertex   Kind = "NOEXST_VERTEX"
	NoExistSrc      Kind = "NOEXST_SRC"
	NoExistDst      Kind = "NOEXST_DST"

	DuplicateClass    Kind = "DUPLICATE_CLASS"
	DuplicateProperty Kind = "DUPLICATE_PROPERTY"
	DuplicateIndex    Kind = "DUPLICATE_INDEX"

	InvalidClassName      Kind = "INVALID_CLASSNAME"
	InvalidPropTypeIndex  Kind = "INVALID_PROPTYPE_INDEX"
	InvalidIndexConstrain Kind = "INVALID_INDEX_CONSTRAINT"

	MismatchClassType Kind = "MISMATCH_CLASSTYPE"
	InUsedProperty    Kind = "IN_USED_PROPERTY"
	UniqueConstraint  Kind = "UNIQUE_CONSTRAINT"
	DataTypeMismatch  Kind = "DATA_TYPE_MISMATCH"

	TxnCompleted Kind = "TXN_COMPLETED"
	TxnReadOnly  Kind = "TXN_READONLY"

	SQLUnrecognizedToken Kind = "SQL_UNRECOGNIZED_TOKEN"
	SQLSyntaxError       Kind = "SQL_SYNTAX_ERROR"
)

// Error is the concrete error type returned by NogDB operations.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, nogdberr.New(KindX, "")) match on Kind alone;
// only *Error targets match.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

// New builds an *Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that also carries an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
