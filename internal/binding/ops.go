package binding

import (
	"go.uber.org/zap"

	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// construct issues a handle through the registry and binds it to the
// session's bridges.
func (s *Session) construct(op string, kind handle.Kind, init func(res any) error) (*handle.Handle, error) {
	h, err := s.reg.Construct(op, kind, init)
	if err != nil {
		return nil, err
	}
	s.bridges.Bind(h)
	return h, nil
}

// LoadTreeSequence reads a tree sequence from path. Supported options are
// tsk.LoadSkipTables and tsk.LoadSkipReferenceSequence.
func (s *Session) LoadTreeSequence(path string, opts int64) (*handle.Handle, error) {
	if err := allowed.Check(OpTSLoad, opts); err != nil {
		return nil, err
	}
	return s.construct(OpTSLoad, KindTreeSequence, func(res any) error {
		return res.(*tsk.TreeSequence).Load(path, tsk.Flags(opts))
	})
}

// LoadTableCollection reads a table collection from path. Supported options
// are tsk.LoadSkipTables and tsk.LoadSkipReferenceSequence.
func (s *Session) LoadTableCollection(path string, opts int64) (*handle.Handle, error) {
	if err := allowed.Check(OpTCLoad, opts); err != nil {
		return nil, err
	}
	return s.construct(OpTCLoad, KindTableCollection, func(res any) error {
		return res.(*tsk.TableCollection).Load(path, tsk.Flags(opts))
	})
}

// Dump writes the resource behind h to path. No options are supported, so
// opts must be 0. A failed dump leaves h live and unchanged.
func (s *Session) Dump(h *handle.Handle, path string, opts int64) error {
	if h.Kind() == KindTableCollection {
		return handle.Use(s.reg, h, KindTableCollection, func(tc *tsk.TableCollection) error {
			if err := allowed.Check(OpTCDump, opts); err != nil {
				return err
			}
			s.logger.Debug("dump", zap.String("op", OpTCDump), zap.Uint64("id", h.ID()), zap.String("path", path))
			return tc.Dump(path, tsk.Flags(opts))
		})
	}
	return handle.Use(s.reg, h, KindTreeSequence, func(ts *tsk.TreeSequence) error {
		if err := allowed.Check(OpTSDump, opts); err != nil {
			return err
		}
		s.logger.Debug("dump", zap.String("op", OpTSDump), zap.Uint64("id", h.ID()), zap.String("path", path))
		return ts.Dump(path, tsk.Flags(opts))
	})
}

// TreeSequenceToTables copies the tables of the tree sequence behind h into
// a new table collection handle. The source is not modified. With
// tsk.CopyFileUUID the file UUID is carried over.
func (s *Session) TreeSequenceToTables(h *handle.Handle, opts int64) (*handle.Handle, error) {
	if _, err := s.reg.Deref(h, KindTreeSequence); err != nil {
		return nil, err
	}
	if err := allowed.Check(OpTSToTC, opts); err != nil {
		return nil, err
	}
	return s.construct(OpTSToTC, KindTableCollection, func(res any) error {
		return handle.Use(s.reg, h, KindTreeSequence, func(ts *tsk.TreeSequence) error {
			return ts.CopyTables(res.(*tsk.TableCollection), tsk.Flags(opts))
		})
	})
}

// TablesToTreeSequence builds a new tree sequence handle from a copy of the
// table collection behind h. Supported options are tsk.TSInitBuildIndexes
// and tsk.TSInitComputeMutationParents; both act on the copy only.
func (s *Session) TablesToTreeSequence(h *handle.Handle, opts int64) (*handle.Handle, error) {
	if _, err := s.reg.Deref(h, KindTableCollection); err != nil {
		return nil, err
	}
	if err := allowed.Check(OpTCToTS, opts); err != nil {
		return nil, err
	}
	return s.construct(OpTCToTS, KindTreeSequence, func(res any) error {
		return handle.Use(s.reg, h, KindTableCollection, func(tc *tsk.TableCollection) error {
			return res.(*tsk.TreeSequence).Init(tc, tsk.Flags(opts))
		})
	})
}

// Release destroys the resource behind h now instead of at host teardown.
// It is idempotent and reports whether this call did the release.
func (s *Session) Release(h *handle.Handle) bool {
	return s.reg.Release(h)
}

// Grow would extend a tree sequence in place. It has no defined semantics
// yet and always fails with tsk.ErrUnsupportedOperation, leaving h live.
func (s *Session) Grow(h *handle.Handle) error {
	if _, err := s.reg.Deref(h, KindTreeSequence); err != nil {
		return err
	}
	return &tsk.Error{Code: tsk.ErrUnsupportedOperation, Detail: OpTSGrow}
}
