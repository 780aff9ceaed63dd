// Package binding exposes tree sequences and table collections as handles:
// load and dump files, derive one kind from the other, read summaries and
// release handles early.
//
// Every operation validates its handle first and its options second, before
// any library call is made. Constructors either return a live handle or
// leave nothing allocated.
package binding

import (
	"go.uber.org/zap"

	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/kastore"
	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// Resource kinds managed by a Session.
const (
	KindTreeSequence    handle.Kind = "tree_sequence"
	KindTableCollection handle.Kind = "table_collection"
)

// Operation names, used in errors and option allow-lists.
const (
	OpTSLoad = "ts_load"
	OpTCLoad = "tc_load"
	OpTSDump = "ts_dump"
	OpTCDump = "tc_dump"
	OpTSToTC = "ts_to_tc"
	OpTCToTS = "tc_to_ts"
	OpTSGrow = "ts_grow"
)

// allowed lists the option bits each operation forwards to the library.
// NoInit and TakeOwnership never appear: the session owns allocation and
// lifetime.
var allowed = handle.AllowList{
	OpTSLoad: uint64(tsk.LoadSkipTables | tsk.LoadSkipReferenceSequence),
	OpTCLoad: uint64(tsk.LoadSkipTables | tsk.LoadSkipReferenceSequence),
	OpTSDump: 0,
	OpTCDump: 0,
	OpTSToTC: uint64(tsk.CopyFileUUID),
	OpTCToTS: uint64(tsk.TSInitBuildIndexes | tsk.TSInitComputeMutationParents),
}

// AllowedOptions returns the option bits op accepts and whether op takes
// options at all.
func AllowedOptions(op string) (uint64, bool) {
	bits, ok := allowed[op]
	return bits, ok
}

// Descriptors returns the resource descriptors for both kinds.
func Descriptors() []handle.Descriptor {
	return []handle.Descriptor{
		{
			Kind:    KindTreeSequence,
			Alloc:   func() any { return &tsk.TreeSequence{} },
			Destroy: func(res any) { res.(*tsk.TreeSequence).Free() },
		},
		{
			Kind:    KindTableCollection,
			Alloc:   func() any { return &tsk.TableCollection{} },
			Destroy: func(res any) { res.(*tsk.TableCollection).Free() },
		},
	}
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry makes the session issue handles from r instead of a private
// registry. r must not have the session's kinds registered yet, and the
// session will not close it.
func WithRegistry(r *handle.Registry) Option {
	return func(s *Session) {
		s.reg = r
	}
}

// WithBridges binds every handle the session issues to bs.
func WithBridges(bs ...handle.Bridge) Option {
	return func(s *Session) {
		s.bridges = append(s.bridges, bs...)
	}
}

// WithLogger sets the logger for the session and its private registry.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics records handle metrics from the session's private registry.
func WithMetrics(m *handle.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session owns the handles issued for one host.
type Session struct {
	reg          *handle.Registry
	logger       *zap.Logger
	metrics      *handle.Metrics
	bridges      handle.Bridges
	ownsRegistry bool
}

// New creates a session with both resource kinds registered.
func New(opts ...Option) (*Session, error) {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = handle.Logger()
	}
	if s.reg == nil {
		s.reg = handle.NewRegistry(handle.WithLogger(s.logger), handle.WithMetrics(s.metrics))
		s.ownsRegistry = true
	}
	for _, d := range Descriptors() {
		if err := s.reg.Register(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Registry returns the registry the session issues handles from.
func (s *Session) Registry() *handle.Registry {
	return s.reg
}

// Close releases every handle of a private registry. A registry supplied
// with WithRegistry is left to its owner.
func (s *Session) Close() error {
	if !s.ownsRegistry {
		return nil
	}
	return s.reg.Close()
}

// Version is a library version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// KastoreVersion returns the version of the file codec library.
func KastoreVersion() Version {
	return Version{Major: kastore.VersionMajor, Minor: kastore.VersionMinor, Patch: kastore.VersionPatch}
}

// TskitVersion returns the version of the tree-sequence library.
func TskitVersion() Version {
	return Version{Major: tsk.VersionMajor, Minor: tsk.VersionMinor, Patch: tsk.VersionPatch}
}
