package runtime

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/tsk"
	"github.com/HighlanderLab/tskitr/internal/tsk/tsktest"
)

// newTestRuntime returns a runtime over a fresh session and the path of the
// example tree sequence file.
func newTestRuntime(t *testing.T, opts ...RuntimeOption) (*Runtime, *binding.Session, string) {
	t.Helper()
	s, err := binding.New()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRuntime(s, "", opts...), s, tsktest.WriteTreeSequence(t)
}

// =============================================================================
// Handle functions
// =============================================================================

func TestRunSource_LoadAndCount(t *testing.T) {
	rt, s, path := newTestRuntime(t)

	script := `
ts := ts_load(path)
assert(ts_num_nodes(ts) == 80, 'expected 80 nodes, got {ts_num_nodes(ts)}')
assert(ts_num_trees(ts) == 2, 'expected 2 trees')
assert(ts_num_populations(ts) == 0, 'expected no populations')
assert(ts_sequence_length(ts) == 10000.0, 'bad sequence length')
assert(ts_time_units(ts) == "generations", 'bad time units')
assert(ts_metadata(ts) == "example", 'bad metadata')
assert(is_live(ts), 'expected live handle')
assert(release(ts), 'first release must destroy')
assert(!release(ts), 'second release must be a no-op')
assert(!is_live(ts), 'expected released handle')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestRunSource_DumpLoadRoundTrip(t *testing.T) {
	rt, _, path := newTestRuntime(t)
	out := filepath.Join(t.TempDir(), "out.trees")

	script := `
ts := ts_load(path)
ts_dump(ts, out)
again := ts_load(out)
a := ts_summary(ts)
b := ts_summary(again)
for _, key := range ["num_nodes", "num_edges", "num_sites", "num_mutations", "num_trees", "sequence_length", "time_units"] {
    assert(a[key] == b[key], 'summary mismatch for {key}')
}
assert(a["file_uuid"] != b["file_uuid"], 'dump must assign a new uuid')
assert(b["num_nodes"] == 80, 'expected 80 nodes')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path, "out": out})
	require.NoError(t, err)
}

func TestRunSource_LoadFailureRaises(t *testing.T) {
	rt, s, _ := newTestRuntime(t)
	before := tsk.Outstanding()

	err := rt.RunSource(context.Background(), `ts_load("/nonexistent/path")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ts_load: I/O error")
	assert.Equal(t, 0, s.Registry().Len())
	assert.Equal(t, before, tsk.Outstanding())
}

func TestRunSource_DumpUnsupportedOption(t *testing.T) {
	rt, _, path := newTestRuntime(t)
	out := filepath.Join(t.TempDir(), "out.trees")

	err := rt.RunSource(context.Background(), `ts_dump(ts_load(path), out, 4)`, map[string]any{"path": path, "out": out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ts_dump: unsupported option bits 4")
	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestRunSource_NonIntegerOptionsRaise(t *testing.T) {
	rt, _, path := newTestRuntime(t)
	out := filepath.Join(t.TempDir(), "out.trees")
	globals := map[string]any{"path": path, "out": out}

	tests := []struct {
		name string
		call string
		want string
	}{
		{"dump fraction", `ts_dump(ts_load(path), out, 0.5)`, "ts_dump: options: expected int, got float"},
		{"dump whole float", `ts_dump(ts_load(path), out, 0.0)`, "ts_dump: options: expected int, got float"},
		{"load fraction", `ts_load(path, 1.9)`, "ts_load: options: expected int, got float"},
		{"derive string", `ts_to_tc(ts_load(path), "1")`, "ts_to_tc: options: expected int, got string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rt.RunSource(context.Background(), tt.call, globals)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestRunSource_LoadNegativeOption(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	err := rt.RunSource(context.Background(), `tc_load(path, -1)`, map[string]any{"path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tc_load: options must be non-negative")
}

func TestRunSource_ReleasedHandleRaises(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	tests := []struct {
		name string
		call string
	}{
		{"accessor", `ts_num_nodes(ts)`},
		{"summary", `ts_summary(ts)`},
		{"dump", `ts_dump(ts, "unused.trees")`},
		{"derive", `ts_to_tc(ts)`},
		{"grow", `ts_grow(ts)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := "ts := ts_load(path)\nrelease(ts)\n" + tt.call
			err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid handle")
			assert.Contains(t, err.Error(), "released")
		})
	}
}

func TestRunSource_NilHandleRaises(t *testing.T) {
	rt, _, _ := newTestRuntime(t)

	err := rt.RunSource(context.Background(), `ts_num_nodes(nil)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never constructed")

	err = rt.RunSource(context.Background(), `ts_num_nodes(42)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected handle")
}

func TestRunSource_WrongKindRaises(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	tests := []struct {
		name string
		call string
		want string
	}{
		{"ts accessor on tc", `ts_num_nodes(tc)`, "refers to a table_collection"},
		{"shared ts accessor on tc", `ts_sequence_length(tc)`, "refers to a table_collection"},
		{"tc accessor on ts", `tc_has_index(ts)`, "refers to a tree_sequence"},
		{"tc dump on ts", `tc_dump(ts, "unused.trees")`, "refers to a tree_sequence"},
		{"ts dump on tc", `ts_dump(tc, "unused.trees")`, "refers to a table_collection"},
		{"tc_to_ts on ts", `tc_to_ts(ts)`, "refers to a tree_sequence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := "ts := ts_load(path)\ntc := tc_load(path)\n" + tt.call
			err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunSource_Derive(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	script := `
ts := ts_load(path)
tc := ts_to_tc(ts)
assert(tc_has_index(tc), 'derived tables keep the index')
assert(tc_file_uuid(tc) == "", 'uuid is not copied by default')
assert(tc_file_uuid(ts_to_tc(ts, 1)) == ts_file_uuid(ts), 'uuid copied with option')

s := tc_summary(tc)
assert(s["num_nodes"] == 80, 'expected 80 nodes')
assert(s["num_edges"] == 119, 'expected 119 edges')

back := tc_to_ts(tc, 0)
assert(ts_num_trees(back) == 2, 'expected 2 trees')
release(ts)
release(tc)
assert(ts_num_samples(back) == 40, 'derived handle survives its source')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
}

func TestRunSource_MetadataLength(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	script := `
ts := ts_load(path)
m := ts_metadata_length(ts)
assert(m["ts"] == 7, 'expected 7 bytes of metadata')
assert(m["nodes"] == 0, 'expected no node metadata')
n := tc_metadata_length(ts_to_tc(ts))
assert(n["tc"] == 7, 'expected 7 bytes of metadata')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
}

func TestRunSource_GrowUnsupported(t *testing.T) {
	rt, _, path := newTestRuntime(t)

	err := rt.RunSource(context.Background(), `ts_grow(ts_load(path))`, map[string]any{"path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Operation cannot be performed")
}

func TestRunSource_Versions(t *testing.T) {
	rt := NewRuntime(nil, "")

	script := `
v := tskit_version()
assert(v["major"] == major, 'bad tskit major version')
k := kastore_version()
assert(k["major"] == 2, 'bad kastore major version')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"major": tsk.VersionMajor})
	require.NoError(t, err)
}

func TestRunSource_ArgumentErrors(t *testing.T) {
	rt, _, _ := newTestRuntime(t)

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"load without path", `ts_load()`, "expected 1 or 2 arguments"},
		{"load with non-string path", `ts_load(1)`, "expected string"},
		{"load with string options", `ts_load("x", "y")`, "expected int"},
		{"dump without path", `ts_dump(nil)`, "expected 2 or 3 arguments"},
		{"release without handle", `release()`, "release"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rt.RunSource(context.Background(), tt.script, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// =============================================================================
// Release at end of run
// =============================================================================

func TestRunSource_UnscopedHandlesOutliveRun(t *testing.T) {
	rt, s, path := newTestRuntime(t)

	err := rt.RunSource(context.Background(), `ts_load(path)`, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Registry().Len())
}

func TestRunSource_ScopedRelease(t *testing.T) {
	rt, s, path := newTestRuntime(t, WithScopedRelease(true))
	before := tsk.Outstanding()

	script := `
ts := ts_load(path)
tc := ts_to_tc(ts)
release(ts)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Registry().Len())
	assert.Equal(t, before, tsk.Outstanding())
}

func TestRunSource_ScopedReleaseOnError(t *testing.T) {
	rt, s, path := newTestRuntime(t, WithScopedRelease(true))

	script := `
ts := ts_load(path)
ts_dump(ts, "unused.trees", 4)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.Error(t, err)
	assert.Equal(t, 0, s.Registry().Len())
}

// =============================================================================
// Logging
// =============================================================================

func TestRunSource_LogGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := NewRuntime(nil, "", WithLogger(zap.New(core)))

	err := rt.RunSource(context.Background(), `log.Info("hello")
log.Warn("careful")`, nil)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "script", entries[0].LoggerName)
}

func TestRunSource_FailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := NewRuntime(nil, "", WithLogger(zap.New(core)))

	err := rt.RunSource(context.Background(), `assert(false, "boom")`, nil)
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("script failed").Len())
}

// =============================================================================
// Script loading
// =============================================================================

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()

	scriptPath := filepath.Join(dir, "test.risor")
	if err := os.WriteFile(scriptPath, []byte(`result := 1 + 1`), 0644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	rt := NewRuntime(nil, dir)
	ctx := context.Background()

	err := rt.RunScript(ctx, "test.risor", nil)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	ctx := context.Background()

	err := rt.RunScript(ctx, "nonexistent.risor", nil)
	if err == nil {
		t.Fatal("expected error for missing script, got nil")
	}
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing: %v", err)
	}

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if got != content {
		t.Errorf("LoadScript = %q, want %q", got, content)
	}
}

func TestExampleScriptPath(t *testing.T) {
	t.Parallel()
	got := ExampleScriptPath("summary")
	if got != filepath.Join("examples", "summary.risor") {
		t.Errorf("ExampleScriptPath(\"summary\") = %q", got)
	}
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"examples/summary.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("examples/summary.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromFSFS_StripsLeadingSeparator(t *testing.T) {
	t.Parallel()

	content := `y := 99`
	mapFS := fstest.MapFS{
		"examples/summary.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/examples/summary.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunScript_FromFSFS(t *testing.T) {
	rt, _, path := newTestRuntime(t)
	rt.fsys = fstest.MapFS{
		"count.risor": &fstest.MapFile{Data: []byte(`
ts := ts_load(path)
assert(ts_num_nodes(ts) == 80)
release(ts)
`)},
	}

	err := rt.RunScript(context.Background(), "count.risor", map[string]any{"path": path})
	require.NoError(t, err)
}

// =============================================================================
// Importer wiring
// =============================================================================

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor",
	// so the file must be at the flat path "lib_helpers.risor" in the FS.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0644))

	rt := NewRuntime(nil, dir)

	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestImport_HandleFunctionsAvailableInImportedModules(t *testing.T) {
	rt, s, path := newTestRuntime(t)
	rt.fsys = fstest.MapFS{
		"counts.risor": &fstest.MapFile{Data: []byte(`
func nodes_in(path) {
	ts := ts_load(path)
	n := ts_num_nodes(ts)
	release(ts)
	return n
}
`)},
	}

	script := `
import counts
assert(counts.nodes_in(path) == 80)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.False(t, rt.scoped)
	assert.NotNil(t, rt.logger)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
}
