package tsk

import "math"

// Library version.
const (
	VersionMajor = 1
	VersionMinor = 2
	VersionPatch = 0
)

// File format identity written under "format/name" and "format/version".
const (
	FileFormatName         = "tskit.trees"
	FileFormatVersionMajor = 12
	FileFormatVersionMinor = 7
)

// Flags is a bitwise option set passed to library calls.
type Flags uint32

// Common flags. The wrapper layer owns allocation and lifetime, so it never
// forwards NoInit or TakeOwnership.
const (
	Debug              Flags = 1 << 31
	NoInit             Flags = 1 << 30
	NoCheckIntegrity   Flags = 1 << 29
	TakeOwnership      Flags = 1 << 28
	CheckTrees         Flags = 1 << 27
	CheckMutationOrder Flags = 1 << 26
)

// Load flags.
const (
	LoadSkipTables            Flags = 1 << 0
	LoadSkipReferenceSequence Flags = 1 << 1
)

// Table collection copy flags.
const (
	CopyFileUUID Flags = 1 << 0
)

// Tree sequence init flags.
const (
	TSInitBuildIndexes           Flags = 1 << 0
	TSInitComputeMutationParents Flags = 1 << 1
)

// NodeIsSample marks a node as a sample in the node flags column.
const NodeIsSample uint32 = 1

// Null is the missing-reference value for id columns.
const Null int32 = -1

// UnknownTime marks a mutation whose time is not known.
var UnknownTime = math.NaN()

// IsUnknownTime reports whether t is the unknown-time marker.
func IsUnknownTime(t float64) bool {
	return math.IsNaN(t)
}
