package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/handle"
)

// host carries the per-run state shared by the handle functions.
type host struct {
	session *binding.Session
	scope   *handle.Scope // nil unless the runtime is scoped
}

// issue binds a new handle to the run's scope and wraps it for the script.
func (h *host) issue(hd *handle.Handle) object.Object {
	if h.scope != nil {
		h.scope.Bind(hd)
	}
	p, err := object.NewProxy(hd)
	if err != nil {
		// The session still owns hd and releases it on close.
		return object.Errorf("proxy error: %v", err)
	}
	return p
}

// toHandle unwraps a handle argument. Risor nil maps to a nil handle, which
// every session operation rejects as invalid.
func toHandle(obj object.Object) (*handle.Handle, error) {
	switch v := obj.(type) {
	case *object.Proxy:
		hd, ok := v.Interface().(*handle.Handle)
		if !ok {
			return nil, fmt.Errorf("expected handle, got %T", v.Interface())
		}
		return hd, nil
	case *object.NilType:
		return nil, nil
	}
	return nil, fmt.Errorf("expected handle, got %s", obj.Type())
}

// raise converts a session error into a Risor error. Construction and
// option errors already name their operation.
func raise(name string, err error) object.Object {
	if errors.Is(err, handle.ErrConstruction) || errors.Is(err, handle.ErrUnsupportedOption) {
		return object.Errorf("%v", err)
	}
	return object.Errorf("%s: %v", name, err)
}

// optionsArg reads the optional trailing options argument at index i.
// Options are bit sets, so only integers are accepted.
func optionsArg(args []object.Object, i int) (int64, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, ok := args[i].(*object.Int)
	if !ok {
		return 0, fmt.Errorf("expected int, got %s", args[i].Type())
	}
	return n.Value(), nil
}

// makeLoadFn creates a load host function.
//
// ts_load(path, options=0) → handle
func (h *host) makeLoadFn(name string, load func(string, int64) (*handle.Handle, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("%s: expected 1 or 2 arguments, got %d", name, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: path: %v", name, err)
		}
		opts, err := optionsArg(args, 1)
		if err != nil {
			return object.Errorf("%s: options: %v", name, err)
		}

		hd, loadErr := load(path, opts)
		if loadErr != nil {
			return raise(name, loadErr)
		}
		return h.issue(hd)
	})
}

// makeDumpFn creates a dump host function. The handle must be of kind.
//
// ts_dump(handle, path, options=0) → nil
func (h *host) makeDumpFn(name string, kind handle.Kind) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.Errorf("%s: expected 2 or 3 arguments, got %d", name, len(args))
		}
		hd, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		if hd.Kind() != kind {
			// Route through the session so the caller sees the usual
			// invalid handle error for the wrong kind.
			if _, err := h.session.Registry().Deref(hd, kind); err != nil {
				return raise(name, err)
			}
		}
		path, err := toString(args[1])
		if err != nil {
			return object.Errorf("%s: path: %v", name, err)
		}
		opts, err := optionsArg(args, 2)
		if err != nil {
			return object.Errorf("%s: options: %v", name, err)
		}

		if err := h.session.Dump(hd, path, opts); err != nil {
			return raise(name, err)
		}
		return object.Nil
	})
}

// makeDeriveFn creates a host function building one kind from the other.
//
// ts_to_tc(handle, options=0) → handle
func (h *host) makeDeriveFn(name string, derive func(*handle.Handle, int64) (*handle.Handle, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("%s: expected 1 or 2 arguments, got %d", name, len(args))
		}
		src, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		opts, err := optionsArg(args, 1)
		if err != nil {
			return object.Errorf("%s: options: %v", name, err)
		}

		hd, deriveErr := derive(src, opts)
		if deriveErr != nil {
			return raise(name, deriveErr)
		}
		return h.issue(hd)
	})
}

// makeGrowFn creates "ts_grow". It always raises after validating the handle.
//
// ts_grow(handle) → error
func (h *host) makeGrowFn() *object.Builtin {
	return object.NewBuiltin("ts_grow", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("ts_grow", 1, len(args))
		}
		hd, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("ts_grow: %v", err)
		}
		return raise("ts_grow", h.session.Grow(hd))
	})
}

// makeReleaseFn creates "release". Releasing twice is allowed.
//
// release(handle) → bool, true if this call destroyed the resource
func (h *host) makeReleaseFn() *object.Builtin {
	return object.NewBuiltin("release", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("release", 1, len(args))
		}
		hd, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("release: %v", err)
		}
		return object.NewBool(h.session.Release(hd))
	})
}

// makeIsLiveFn creates "is_live".
//
// is_live(handle) → bool
func makeIsLiveFn() *object.Builtin {
	return object.NewBuiltin("is_live", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("is_live", 1, len(args))
		}
		hd, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("is_live: %v", err)
		}
		return object.NewBool(hd.Live())
	})
}

// makeVersionFn creates a library version host function.
//
// tskit_version() → {major, minor, patch}
func makeVersionFn(name string, version func() binding.Version) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError(name, 0, len(args))
		}
		v := version()
		return object.NewMap(map[string]object.Object{
			"major": object.NewInt(int64(v.Major)),
			"minor": object.NewInt(int64(v.Minor)),
			"patch": object.NewInt(int64(v.Patch)),
		})
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Debug(msg string) {
	l.logger.Debug(msg)
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
