package tskitr

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/kastore"
	"github.com/HighlanderLab/tskitr/internal/runtime"
)

//go:embed scripts/*.risor scripts/examples/*.risor
var scripts embed.FS

// ExampleScripts returns the bundled Risor scripts. Example programs live
// under examples/ and shared helpers at the root, so they can be imported
// by name.
func ExampleScripts() fs.FS {
	sub, err := fs.Sub(scripts, "scripts")
	if err != nil {
		panic(fmt.Sprintf("tskitr: scripts: %v", err))
	}
	return sub
}

// ExampleScriptPath returns the path of a bundled example within
// ExampleScripts.
func ExampleScriptPath(name string) string {
	return runtime.ExampleScriptPath(name)
}

// Host owns a session of handles and the script runtime that exposes them.
// The session's operations are promoted onto Host.
type Host struct {
	*binding.Session

	runtime    *runtime.Runtime
	scriptsDir string
	scriptsFS  fs.FS
	logger     *zap.Logger
	metrics    *handle.Metrics
	bridges    handle.Bridges
	observers  []Observer
	gc         bool
	scoped     bool
}

// Option configures a Host.
type Option func(*Host)

// WithScriptsDir loads scripts and resolves imports from dir on disk.
func WithScriptsDir(dir string) Option {
	return func(h *Host) {
		h.scriptsDir = dir
	}
}

// WithScriptsFS loads scripts and resolves imports from fsys instead of
// disk. Use ExampleScripts() to run the bundled examples.
func WithScriptsFS(fsys fs.FS) Option {
	return func(h *Host) {
		h.scriptsFS = fsys
	}
}

// WithLogger sets the logger for the host, its handles and the scripts' log
// global.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithMetrics records handle lifecycle metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// WithBridges binds every issued handle to bs in addition to the garbage
// collector.
func WithBridges(bs ...Bridge) Option {
	return func(h *Host) {
		h.bridges = append(h.bridges, bs...)
	}
}

// WithObserver reports every handle issue and release to o.
func WithObserver(o Observer) Option {
	return func(h *Host) {
		h.observers = append(h.observers, o)
	}
}

// WithGCRelease controls whether unreachable handles are released by the
// garbage collector. It is on by default. When off, resources live until
// Release, a bound Scope closes, or the host closes.
func WithGCRelease(enabled bool) Option {
	return func(h *Host) {
		h.gc = enabled
	}
}

// WithScopedRelease releases the handles a script created when its run
// ends.
func WithScopedRelease(scoped bool) Option {
	return func(h *Host) {
		h.scoped = scoped
	}
}

// New creates a Host.
func New(opts ...Option) (*Host, error) {
	h := &Host{gc: true}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = handle.Logger()
	}

	var bridges handle.Bridges
	if h.gc {
		bridges = append(bridges, handle.GCBridge{})
	}
	bridges = append(bridges, h.bridges...)

	s, err := binding.New(
		binding.WithLogger(h.logger),
		binding.WithMetrics(h.metrics),
		binding.WithBridges(bridges...),
	)
	if err != nil {
		return nil, fmt.Errorf("tskitr: create session: %w", err)
	}
	h.Session = s
	for _, o := range h.observers {
		s.Registry().Subscribe(o)
	}

	rtOpts := []runtime.RuntimeOption{
		runtime.WithLogger(h.logger),
		runtime.WithScopedRelease(h.scoped),
	}
	if h.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(h.scriptsFS))
	}
	h.runtime = runtime.NewRuntime(s, h.scriptsDir, rtOpts...)
	return h, nil
}

// Close releases every handle the host still holds. Handles become invalid
// but remain safe to pass to any operation.
func (h *Host) Close() error {
	return h.Session.Close()
}

// Live returns the number of live handles.
func (h *Host) Live() int {
	return h.Registry().Len()
}

// RunScript runs the Risor script at path with the host functions plus
// globals.
func (h *Host) RunScript(ctx context.Context, path string, globals map[string]any) error {
	return h.runtime.RunScript(ctx, path, globals)
}

// RunSource runs Risor source with the host functions plus globals.
func (h *Host) RunSource(ctx context.Context, source string, globals map[string]any) error {
	return h.runtime.RunSource(ctx, source, globals)
}

// KastoreVersion returns the version of the data file codec.
func KastoreVersion() Version {
	return binding.KastoreVersion()
}

// SQLiteVersion returns the version of the SQLite library that holds the
// data files.
func SQLiteVersion() string {
	return kastore.SQLiteVersion()
}

// TskitVersion returns the version of the tree sequence library.
func TskitVersion() Version {
	return binding.TskitVersion()
}
