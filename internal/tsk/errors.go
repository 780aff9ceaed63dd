package tsk

import (
	"errors"
	"fmt"

	"github.com/HighlanderLab/tskitr/internal/kastore"
)

// Code is a library status code. Zero is success; all errors are negative.
type Code int

const (
	ErrGeneric              Code = -1
	ErrNoMemory             Code = -2
	ErrIO                   Code = -3
	ErrBadParamValue        Code = -4
	ErrUnsupportedOperation Code = -6
	ErrBug                  Code = -7

	ErrFileFormat         Code = -100
	ErrFileVersionTooOld  Code = -101
	ErrFileVersionTooNew  Code = -102
	ErrRequiredColumn     Code = -103
	ErrBadColumnType      Code = -104
	ErrBadOffset          Code = -200
	ErrNodeOutOfBounds    Code = -202
	ErrPopulationOutBound Code = -203
	ErrSiteOutOfBounds    Code = -205
	ErrMutationOutOfBound Code = -207
	ErrIndividualOutBound Code = -208

	ErrBadSequenceLength      Code = -300
	ErrLeftLessZero           Code = -301
	ErrRightGreaterSeqLength  Code = -302
	ErrBadEdgeInterval        Code = -303
	ErrBadNodeTime            Code = -304
	ErrBadNodeTimeOrdering    Code = -305
	ErrEdgesNotSortedParent   Code = -306
	ErrBadSitePosition        Code = -307
	ErrUnsortedSites          Code = -308
	ErrMutationParentDiffSite Code = -309
	ErrMutationParentAfter    Code = -310
	ErrMutationParentEqual    Code = -311
	ErrUnsortedMutations      Code = -312
	ErrTablesNotIndexed       Code = -400
	ErrBadFileUUID            Code = -401
)

// Strerror returns the human-readable message for a status code.
func Strerror(c Code) string {
	switch c {
	case 0:
		return "Normal exit condition. This is not an error!"
	case ErrGeneric:
		return "Generic error; please file a bug report"
	case ErrNoMemory:
		return "Out of memory"
	case ErrIO:
		return "I/O error"
	case ErrBadParamValue:
		return "Bad parameter value provided"
	case ErrUnsupportedOperation:
		return "Operation cannot be performed in current configuration"
	case ErrBug:
		return "Bug detected; please file a bug report"
	case ErrFileFormat:
		return "File format error"
	case ErrFileVersionTooOld:
		return "tskit file version too old. Please upgrade using the 'tskit upgrade' command"
	case ErrFileVersionTooNew:
		return "tskit file version is too new for this instance. Please upgrade tskit to the latest version"
	case ErrRequiredColumn:
		return "A required column is missing from the file"
	case ErrBadColumnType:
		return "An incompatible type for a column was found in the file"
	case ErrBadOffset:
		return "Bad offset provided in input array"
	case ErrNodeOutOfBounds:
		return "Node out of bounds"
	case ErrPopulationOutBound:
		return "Population out of bounds"
	case ErrSiteOutOfBounds:
		return "Site out of bounds"
	case ErrMutationOutOfBound:
		return "Mutation out of bounds"
	case ErrIndividualOutBound:
		return "Individual out of bounds"
	case ErrBadSequenceLength:
		return "Sequence length must be > 0"
	case ErrLeftLessZero:
		return "Left coordinate must be >= 0"
	case ErrRightGreaterSeqLength:
		return "Right coordinate > sequence length"
	case ErrBadEdgeInterval:
		return "Bad edge interval where right <= left"
	case ErrBadNodeTime:
		return "Times must be finite"
	case ErrBadNodeTimeOrdering:
		return "time[parent] must be greater than time[child]"
	case ErrEdgesNotSortedParent:
		return "Edges must be listed in (time[parent], child, left) order"
	case ErrBadSitePosition:
		return "Site positions must be between 0 and sequence_length"
	case ErrUnsortedSites:
		return "Sites must be provided in strictly increasing position order"
	case ErrMutationParentDiffSite:
		return "Specified parent mutation is at a different site"
	case ErrMutationParentAfter:
		return "Parent mutation ID must be < current ID"
	case ErrMutationParentEqual:
		return "Parent mutation ID must not be equal to current ID"
	case ErrUnsortedMutations:
		return "Mutations must be provided in non-decreasing site order"
	case ErrTablesNotIndexed:
		return "Table collection must be indexed"
	case ErrBadFileUUID:
		return "File UUID is not a valid UUID"
	}
	return "Error occurred generating error string. Please file a bug report!"
}

// Error is a failed library call. Code selects the message; Detail adds the
// row or key that triggered it.
type Error struct {
	Cause  error
	Detail string
	Code   Code
}

func (e *Error) Error() string {
	msg := Strerror(e.Code)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf returns the status code carried by err, zero for nil and ErrGeneric
// for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrGeneric
}

func tskError(code Code, format string, args ...any) *Error {
	e := &Error{Code: code}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

// bugAssert reports an internal invariant violation as an error instead of
// aborting the process.
func bugAssert(cond bool, what string) error {
	if cond {
		return nil
	}
	return tskError(ErrBug, "%s", what)
}

// fromKastore maps a codec failure onto the library's status codes.
func fromKastore(err error) *Error {
	code := ErrFileFormat
	switch kastore.CodeOf(err) {
	case kastore.ErrIO:
		code = ErrIO
	case kastore.ErrVersionTooOld:
		code = ErrFileVersionTooOld
	case kastore.ErrVersionTooNew:
		code = ErrFileVersionTooNew
	case kastore.ErrKeyNotFound:
		code = ErrRequiredColumn
	case kastore.ErrTypeMismatch, kastore.ErrBadType:
		code = ErrBadColumnType
	}
	return &Error{Code: code, Cause: err}
}
