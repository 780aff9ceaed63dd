package kastore

import (
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestStore(t *testing.T, path string, fill func(s *Store)) {
	t.Helper()
	s, err := Open(path, ModeWrite)
	require.NoError(t, err)
	fill(s)
	require.NoError(t, s.Close())
}

// =============================================================================
// Round trip
// =============================================================================

func TestPutGet_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rt.kas")

	writeTestStore(t, path, func(s *Store) {
		require.NoError(t, Put(s, "f64", []float64{0, 1.5, -2.25}))
		require.NoError(t, Put(s, "i32", []int32{-1, 0, 7}))
		require.NoError(t, Put(s, "u64", []uint64{0, 3, 8}))
		require.NoError(t, Put(s, "empty", []uint32{}))
		require.NoError(t, PutString(s, "units", "generations"))
	})

	s, err := Open(path, ModeRead)
	require.NoError(t, err)
	defer s.Close()

	for _, key := range []string{"empty", "f64", "i32", "u64", "units"} {
		assert.True(t, s.Contains(key), key)
	}
	assert.False(t, s.Contains("missing"))

	f64, err := Get[float64](s, "f64")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1.5, -2.25}, f64)

	i32, err := Get[int32](s, "i32")
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, 0, 7}, i32)

	u64, err := Get[uint64](s, "u64")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3, 8}, u64)

	empty, err := Get[uint32](s, "empty")
	require.NoError(t, err)
	assert.Empty(t, empty)

	units, err := GetString(s, "units")
	require.NoError(t, err)
	assert.Equal(t, "generations", units)
}

func TestGet_TypeMismatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mismatch.kas")
	writeTestStore(t, path, func(s *Store) {
		require.NoError(t, Put(s, "x", []int32{1}))
	})

	s, err := Open(path, ModeRead)
	require.NoError(t, err)

	_, err = Get[float64](s, "x")
	require.Error(t, err)
	assert.Equal(t, ErrTypeMismatch, CodeOf(err))
}

func TestGet_KeyNotFound(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.kas")
	writeTestStore(t, path, func(s *Store) {})

	s, err := Open(path, ModeRead)
	require.NoError(t, err)
	assert.False(t, s.Contains("nope"))

	_, err = Get[uint8](s, "nope")
	assert.Equal(t, ErrKeyNotFound, CodeOf(err))
}

// =============================================================================
// Write mode
// =============================================================================

func TestPut_DuplicateAndEmptyKey(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "dup.kas"), ModeWrite)
	require.NoError(t, err)
	defer s.Abort()

	require.NoError(t, Put(s, "a", []uint8{1}))
	assert.Equal(t, ErrDuplicateKey, CodeOf(Put(s, "a", []uint8{2})))
	assert.Equal(t, ErrEmptyKey, CodeOf(Put(s, "", []uint8{2})))
}

func TestPut_ReadModeRejected(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ro.kas")
	writeTestStore(t, path, func(s *Store) {})

	s, err := Open(path, ModeRead)
	require.NoError(t, err)
	assert.Equal(t, ErrIllegalOperation, CodeOf(Put(s, "a", []uint8{1})))
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "twice.kas")
	s, err := Open(path, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = Get[uint8](s, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAbort_DoesNotCreateFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "aborted.kas")
	s, err := Open(path, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, Put(s, "a", []uint8{1}))
	s.Abort()

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestClose_MissingDirectoryLeavesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "no", "such", "dir.kas")
	s, err := Open(path, ModeWrite)
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.Equal(t, ErrIO, CodeOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClose_OverwritesExistingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "over.kas")
	writeTestStore(t, path, func(s *Store) {
		require.NoError(t, Put(s, "v", []int64{1}))
	})
	writeTestStore(t, path, func(s *Store) {
		require.NoError(t, Put(s, "v", []int64{2}))
	})

	s, err := Open(path, ModeRead)
	require.NoError(t, err)
	v, err := Get[int64](s, "v")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, v)
}

// =============================================================================
// Read failures
// =============================================================================

func TestOpen_NonexistentPath(t *testing.T) {
	t.Parallel()
	_, err := Open("/nonexistent/path", ModeRead)
	require.Error(t, err)
	assert.Equal(t, ErrIO, CodeOf(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpen_NotADatabase(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "junk.kas")
	require.NoError(t, os.WriteFile(path, []byte("this is definitely not a sqlite file, just text"), 0o644))

	_, err := Open(path, ModeRead)
	require.Error(t, err)
	code := CodeOf(err)
	assert.True(t, code == ErrBadFileFormat || code == ErrIO, "unexpected code %d", code)
}

func TestOpen_ForeignSQLiteDatabase(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "foreign.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE other (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, ModeRead)
	assert.Equal(t, ErrBadFileFormat, CodeOf(err))
}

func TestOpen_VersionTooNew(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "new.kas")
	writeTestStore(t, path, func(s *Store) {})

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE kastore_header SET version_major = ?", FormatVersionMajor+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, ModeRead)
	assert.Equal(t, ErrVersionTooNew, CodeOf(err))
}

func TestOpen_ItemLengthMismatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		n    int64
	}{
		{"too long", make([]byte, 24), 4},
		{"overflows", nil, 1 << 61},
		{"negative", make([]byte, 24), -1},
		{"not packed", make([]byte, 17), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "len.kas")
			writeTestStore(t, path, func(s *Store) {
				require.NoError(t, Put(s, "u64", []uint64{1, 2, 3}))
			})

			db, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			_, err = db.Exec("UPDATE kastore_items SET len = ?, data = ? WHERE key = 'u64'", tt.n, tt.data)
			require.NoError(t, err)
			require.NoError(t, db.Close())

			assert.NotPanics(t, func() {
				_, err = Open(path, ModeRead)
			})
			assert.Equal(t, ErrBadFileFormat, CodeOf(err))
		})
	}
}

func TestDecode_LengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := decode[uint64](item{typ: Uint64, n: 1 << 61})
	assert.Error(t, err)
	_, err = decode[uint32](item{typ: Uint32, n: 1, data: make([]byte, 3)})
	assert.Error(t, err)
}

func TestOpen_BadMode(t *testing.T) {
	t.Parallel()
	_, err := Open("x", Mode(7))
	assert.Equal(t, ErrBadMode, CodeOf(err))
}

func TestError_Message(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := kasError(ErrIO, "open", "/tmp/x", cause)
	assert.Equal(t, "kastore: open: /tmp/x: I/O error: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrGeneric, CodeOf(cause))
}

func TestSQLiteVersion(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, SQLiteVersion())
}
