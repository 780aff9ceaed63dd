package handle

import "fmt"

// AllowList maps an operation name to the option bits it accepts. Options
// are checked before any native call so unsupported or ownership-changing
// flags never reach the library.
type AllowList map[string]uint64

// Check returns an *UnsupportedOptionError when opts is negative or sets a
// bit outside op's allowed set. It panics for an operation missing from the
// list, which is a programming error.
func (a AllowList) Check(op string, opts int64) error {
	allowed, ok := a[op]
	if !ok {
		panic(fmt.Sprintf("handle: no option allow-list for %q", op))
	}
	if opts < 0 {
		return &UnsupportedOptionError{Op: op, Bits: opts}
	}
	if bad := uint64(opts) &^ allowed; bad != 0 {
		return &UnsupportedOptionError{Op: op, Bits: int64(bad)}
	}
	return nil
}
