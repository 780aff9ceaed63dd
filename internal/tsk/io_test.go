package tsk_test

import (
	"database/sql"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HighlanderLab/tskitr/internal/tsk"
	"github.com/HighlanderLab/tskitr/internal/tsk/tsktest"
)

func loadTables(t *testing.T, path string, flags tsk.Flags) *tsk.TableCollection {
	t.Helper()
	tc := &tsk.TableCollection{}
	err := tc.Load(path, flags)
	if err != nil {
		tc.Free()
	}
	require.NoError(t, err)
	t.Cleanup(tc.Free)
	return tc
}

// =============================================================================
// Round trip
// =============================================================================

func TestTableCollection_DumpLoadRoundTrip(t *testing.T) {
	src := tsktest.Tables(t)
	src.ReferenceSequence.Data = "ACGT"
	src.ReferenceSequence.URL = "https://example.org/ref.fa"
	src.Nodes.Rows[0].Metadata = []byte("meta")

	path := filepath.Join(t.TempDir(), "rt.trees")
	require.NoError(t, src.Dump(path, 0))
	assert.Empty(t, src.FileUUID, "dump must not modify the source")

	got := loadTables(t, path, 0)
	assert.Equal(t, src.SequenceLength, got.SequenceLength)
	assert.Equal(t, src.TimeUnits, got.TimeUnits)
	assert.Equal(t, src.Metadata, got.Metadata)
	assert.Equal(t, src.Nodes.NumRows(), got.Nodes.NumRows())
	assert.Equal(t, src.Edges.Rows, got.Edges.Rows)
	assert.Equal(t, src.Sites.Rows, got.Sites.Rows)
	assert.Equal(t, src.Provenances.Rows, got.Provenances.Rows)
	assert.Equal(t, src.Indexes, got.Indexes)
	assert.Equal(t, []byte("meta"), got.Nodes.Rows[0].Metadata)
	assert.Equal(t, "ACGT", got.ReferenceSequence.Data)
	assert.True(t, got.HasReferenceSequence())
	assert.True(t, got.HasIndex())

	_, err := uuid.Parse(got.FileUUID)
	assert.NoError(t, err)

	// Mutation times are unknown (NaN), so compare the remaining columns.
	require.Equal(t, src.Mutations.NumRows(), got.Mutations.NumRows())
	for i, m := range got.Mutations.Rows {
		want := src.Mutations.Rows[i]
		assert.Equal(t, want.Site, m.Site)
		assert.Equal(t, want.Node, m.Node)
		assert.Equal(t, want.Parent, m.Parent)
		assert.Equal(t, want.DerivedState, m.DerivedState)
		assert.True(t, tsk.IsUnknownTime(m.Time))
	}
}

func TestTableCollection_DumpGivesNewUUIDEachTime(t *testing.T) {
	src := tsktest.Tables(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.trees"), filepath.Join(dir, "b.trees")
	require.NoError(t, src.Dump(a, 0))
	require.NoError(t, src.Dump(b, 0))

	assert.NotEqual(t, loadTables(t, a, 0).FileUUID, loadTables(t, b, 0).FileUUID)
}

func TestTableCollection_LoadSkipTables(t *testing.T) {
	path := tsktest.WriteTreeSequence(t)

	tc := loadTables(t, path, tsk.LoadSkipTables)
	assert.Equal(t, tsktest.SequenceLength, tc.SequenceLength)
	assert.Equal(t, tsktest.TimeUnits, tc.TimeUnits)
	assert.Zero(t, tc.Nodes.NumRows())
	assert.Zero(t, tc.Edges.NumRows())
	assert.False(t, tc.HasIndex())
}

func TestTableCollection_LoadSkipReferenceSequence(t *testing.T) {
	src := tsktest.Tables(t)
	src.ReferenceSequence.Data = "ACGT"
	path := filepath.Join(t.TempDir(), "ref.trees")
	require.NoError(t, src.Dump(path, 0))

	assert.True(t, loadTables(t, path, 0).HasReferenceSequence())
	assert.False(t, loadTables(t, path, tsk.LoadSkipReferenceSequence).HasReferenceSequence())
}

// =============================================================================
// Failures
// =============================================================================

func TestTableCollection_LoadNonexistent(t *testing.T) {
	before := tsk.Outstanding()

	tc := &tsk.TableCollection{}
	err := tc.Load("/nonexistent/path", 0)
	require.Error(t, err)
	assert.Equal(t, tsk.ErrIO, tsk.CodeOf(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	tc.Free()
	assert.Equal(t, before, tsk.Outstanding())
}

func TestTableCollection_LoadBadUUID(t *testing.T) {
	path := tsktest.WriteTreeSequence(t)
	rewriteItem(t, path, "uuid", []byte("not-a-uuid"))

	tc := &tsk.TableCollection{}
	defer tc.Free()
	assert.Equal(t, tsk.ErrBadFileUUID, tsk.CodeOf(tc.Load(path, 0)))
}

func TestTableCollection_LoadWrongFormatName(t *testing.T) {
	path := tsktest.WriteTreeSequence(t)
	rewriteItem(t, path, "format/name", []byte("other.format"))

	tc := &tsk.TableCollection{}
	defer tc.Free()
	assert.Equal(t, tsk.ErrFileFormat, tsk.CodeOf(tc.Load(path, 0)))
}

func TestTableCollection_LoadMissingColumn(t *testing.T) {
	path := tsktest.WriteTreeSequence(t)
	deleteItem(t, path, "nodes/time")

	tc := &tsk.TableCollection{}
	defer tc.Free()
	assert.Equal(t, tsk.ErrRequiredColumn, tsk.CodeOf(tc.Load(path, 0)))
}

func TestTableCollection_LoadBadOffsets(t *testing.T) {
	beyond := make([]uint64, tsktest.NumNodes+1)
	beyond[1] = 5

	tests := []struct {
		name    string
		key     string
		offsets []uint64
	}{
		{"beyond data", "nodes/metadata_offset", beyond},
		{"decreasing", "sites/ancestral_state_offset", []uint64{0, 2, 1, 3}},
		{"first row past end", "sites/ancestral_state_offset", []uint64{0, 4, 4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tsktest.WriteTreeSequence(t)
			rewriteOffsets(t, path, tt.key, tt.offsets)
			before := tsk.Outstanding()

			tc := &tsk.TableCollection{}
			var err error
			require.NotPanics(t, func() { err = tc.Load(path, 0) })
			assert.Equal(t, tsk.ErrBadOffset, tsk.CodeOf(err))

			tc.Free()
			assert.Equal(t, before, tsk.Outstanding())
		})
	}
}

func TestTableCollection_LoadOverflowingLength(t *testing.T) {
	path := tsktest.WriteTreeSequence(t)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE kastore_items SET len = ?, data = NULL WHERE key = 'nodes/time'", int64(1)<<61)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tc := &tsk.TableCollection{}
	defer tc.Free()
	require.NotPanics(t, func() { err = tc.Load(path, 0) })
	assert.Equal(t, tsk.ErrFileFormat, tsk.CodeOf(err))
}

func TestTableCollection_DumpToMissingDirectory(t *testing.T) {
	src := tsktest.Tables(t)
	path := filepath.Join(t.TempDir(), "missing", "out.trees")

	err := src.Dump(path, 0)
	assert.Equal(t, tsk.ErrIO, tsk.CodeOf(err))
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestTableCollection_DumpUninitialised(t *testing.T) {
	var tc tsk.TableCollection
	path := filepath.Join(t.TempDir(), "never.trees")
	assert.Equal(t, tsk.ErrBug, tsk.CodeOf(tc.Dump(path, 0)))
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func rewriteItem(t *testing.T, path, key string, data []byte) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("UPDATE kastore_items SET data = ?, len = ? WHERE key = ?", data, len(data), key)
	require.NoError(t, err)
}

// rewriteOffsets replaces a uint64 offset column.
func rewriteOffsets(t *testing.T, path, key string, offsets []uint64) {
	t.Helper()
	data := make([]byte, 0, 8*len(offsets))
	for _, o := range offsets {
		data = binary.LittleEndian.AppendUint64(data, o)
	}
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("UPDATE kastore_items SET data = ?, len = ? WHERE key = ?", data, len(offsets), key)
	require.NoError(t, err)
}

func deleteItem(t *testing.T, path, key string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("DELETE FROM kastore_items WHERE key = ?", key)
	require.NoError(t, err)
}
