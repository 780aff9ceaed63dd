package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/handle"
)

// Runtime embeds a Risor VM and exposes a binding session to scripts as
// host functions. Handles reach scripts as opaque proxies.
type Runtime struct {
	session    *binding.Session
	scriptsDir string
	fsys       fs.FS
	logger     *zap.Logger
	scoped     bool
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithScopedRelease releases every handle a script created when that
// script's run ends, whether or not the script released it.
func WithScopedRelease(scoped bool) RuntimeOption {
	return func(r *Runtime) {
		r.scoped = scoped
	}
}

// NewRuntime creates a Runtime wired to the given session and scripts
// directory.
func NewRuntime(s *binding.Session, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		session:    s,
		scriptsDir: scriptsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = handle.Logger()
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	h := &host{session: r.session}
	if r.scoped {
		h.scope = handle.NewScope()
		defer h.scope.Close()
	}
	globals := r.buildGlobals(h, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		r.logger.Debug("script failed", zap.String("script", label), zap.Error(err))
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are always relative ("/examples/x.risor" -> "examples/x.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ExampleScriptPath returns the path to a bundled example script.
func ExampleScriptPath(name string) string {
	return filepath.Join("examples", name+".risor")
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(h *host, extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":             mustProxy(&logObject{logger: r.logger.Named("script")}),
		"kastore_version": makeVersionFn("kastore_version", binding.KastoreVersion),
		"tskit_version":   makeVersionFn("tskit_version", binding.TskitVersion),
	}

	// Handle-producing and lifecycle functions need a session.
	if r.session != nil {
		globals["ts_load"] = h.makeLoadFn(binding.OpTSLoad, r.session.LoadTreeSequence)
		globals["tc_load"] = h.makeLoadFn(binding.OpTCLoad, r.session.LoadTableCollection)
		globals["ts_dump"] = h.makeDumpFn(binding.OpTSDump, binding.KindTreeSequence)
		globals["tc_dump"] = h.makeDumpFn(binding.OpTCDump, binding.KindTableCollection)
		globals["ts_to_tc"] = h.makeDeriveFn(binding.OpTSToTC, r.session.TreeSequenceToTables)
		globals["tc_to_ts"] = h.makeDeriveFn(binding.OpTCToTS, r.session.TablesToTreeSequence)
		globals["ts_grow"] = h.makeGrowFn()
		globals["release"] = h.makeReleaseFn()
		globals["is_live"] = makeIsLiveFn()

		for name, fn := range accessorFuncs(r.session) {
			globals[name] = fn
		}
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
