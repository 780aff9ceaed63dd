package tskitr

import (
	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// Public type aliases for the internal types used in the Host API. These are
// Go type aliases (=), so no conversion is needed.

type Handle = handle.Handle
type Kind = handle.Kind
type State = handle.State
type Bridge = handle.Bridge
type Scope = handle.Scope
type Metrics = handle.Metrics
type Observer = handle.Observer
type ObserverFunc = handle.ObserverFunc
type Event = handle.Event
type Version = binding.Version
type TreeSequenceSummary = binding.TreeSequenceSummary
type TableCollectionSummary = binding.TableCollectionSummary
type MetadataLengths = tsk.MetadataLengths

type ConstructionError = handle.ConstructionError
type InvalidHandleError = handle.InvalidHandleError
type UnsupportedOptionError = handle.UnsupportedOptionError

// LibraryError is a failure reported by the tree sequence library, with its
// status code.
type LibraryError = tsk.Error

const (
	EventIssued   = handle.EventIssued
	EventReleased = handle.EventReleased
)

const (
	KindTreeSequence    = binding.KindTreeSequence
	KindTableCollection = binding.KindTableCollection
)

// Option bits accepted by the operations that take options.
const (
	LoadSkipTables               = int64(tsk.LoadSkipTables)
	LoadSkipReferenceSequence    = int64(tsk.LoadSkipReferenceSequence)
	CopyFileUUID                 = int64(tsk.CopyFileUUID)
	TSInitBuildIndexes           = int64(tsk.TSInitBuildIndexes)
	TSInitComputeMutationParents = int64(tsk.TSInitComputeMutationParents)
)

var (
	ErrConstruction      = handle.ErrConstruction
	ErrInvalidHandle     = handle.ErrInvalidHandle
	ErrUnsupportedOption = handle.ErrUnsupportedOption
)

// NewScope returns a Scope for WithBridges. Closing it releases every handle
// bound to it.
func NewScope() *Scope {
	return handle.NewScope()
}

// NewMetrics registers handle metrics with reg, or skips registration when
// reg is nil.
var NewMetrics = handle.NewMetrics
