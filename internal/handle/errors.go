package handle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConstruction      = errors.New("native construction failed")
	ErrInvalidHandle     = errors.New("invalid handle")
	ErrUnsupportedOption = errors.New("unsupported option")
	ErrClosed            = errors.New("handle registry closed")
	ErrUnknownKind       = errors.New("unknown resource kind")
)

// ConstructionError reports a constructor whose native initialisation
// failed. No handle exists for the resource and it has already been
// destroyed.
type ConstructionError struct {
	Err  error
	Op   string
	Kind Kind
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// InvalidHandleError reports use of a handle that is not live or that does
// not refer to a resource of the expected kind.
type InvalidHandleError struct {
	Kind   Kind
	Reason string
	ID     uint64
}

func (e *InvalidHandleError) Error() string {
	var b strings.Builder
	b.WriteString("invalid handle")
	if e.ID != 0 {
		fmt.Fprintf(&b, " %d", e.ID)
	}
	if e.Kind != "" {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *InvalidHandleError) Is(target error) bool {
	return target == ErrInvalidHandle
}

// UnsupportedOptionError reports option bits outside an operation's
// allow-list. Bits holds the offending bits, or the whole value when it is
// negative.
type UnsupportedOptionError struct {
	Op   string
	Bits int64
}

func (e *UnsupportedOptionError) Error() string {
	if e.Bits < 0 {
		return fmt.Sprintf("%s: options must be non-negative, got %d", e.Op, e.Bits)
	}
	return fmt.Sprintf("%s: unsupported option bits %d (0x%x)", e.Op, e.Bits, e.Bits)
}

func (e *UnsupportedOptionError) Is(target error) bool {
	return target == ErrUnsupportedOption
}

func invalid(id uint64, kind Kind, reason string) *InvalidHandleError {
	return &InvalidHandleError{ID: id, Kind: kind, Reason: reason}
}
