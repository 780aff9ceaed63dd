package kastore

import (
	"errors"
	"strings"
)

// Code is a kastore status code. All codes are negative.
type Code int

const (
	ErrGeneric          Code = -1
	ErrIO               Code = -2
	ErrBadMode          Code = -3
	ErrBadFileFormat    Code = -4
	ErrVersionTooOld    Code = -5
	ErrVersionTooNew    Code = -6
	ErrBadType          Code = -7
	ErrDuplicateKey     Code = -8
	ErrKeyNotFound      Code = -9
	ErrIllegalOperation Code = -10
	ErrTypeMismatch     Code = -11
	ErrEmptyKey         Code = -12
)

// Strerror returns the human-readable message for a status code.
func Strerror(c Code) string {
	switch c {
	case ErrGeneric:
		return "Generic error; please file a bug report"
	case ErrIO:
		return "I/O error"
	case ErrBadMode:
		return "Bad open mode; must be read or write"
	case ErrBadFileFormat:
		return "File not in kastore format"
	case ErrVersionTooOld:
		return "File format version is too old; please upgrade using 'kastore upgrade <filename>'"
	case ErrVersionTooNew:
		return "File format version is too new; please upgrade your kastore library"
	case ErrBadType:
		return "Unknown data type"
	case ErrDuplicateKey:
		return "Duplicate key provided"
	case ErrKeyNotFound:
		return "Key not found"
	case ErrIllegalOperation:
		return "Cannot perform the requested operation in the current mode"
	case ErrTypeMismatch:
		return "Mismatch between requested and stored types"
	case ErrEmptyKey:
		return "Keys cannot be empty"
	}
	return "Unknown error"
}

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kastore: store is closed")

// Error carries a kastore status code together with the operation, the key or
// path involved and an optional underlying cause.
type Error struct {
	Cause error
	Op    string
	Key   string
	Code  Code
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("kastore: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Key != "" {
		b.WriteString(e.Key)
		b.WriteString(": ")
	}
	b.WriteString(Strerror(e.Code))
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf returns the status code carried by err, or ErrGeneric when err is
// not a kastore error.
func CodeOf(err error) Code {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ErrGeneric
}

func kasError(code Code, op, key string, cause error) *Error {
	return &Error{Code: code, Op: op, Key: key, Cause: cause}
}
