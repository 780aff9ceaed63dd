package kastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Library version, reported by the bindings alongside the tree-sequence
// library version.
const (
	VersionMajor = 2
	VersionMinor = 1
	VersionPatch = 1
)

// On-disk format version. A file whose major version differs is rejected.
const (
	FormatVersionMajor = 1
	FormatVersionMinor = 0
)

const formatMagic = "kastore"

// Mode selects how a Store is opened.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Store is an open kastore file.
type Store struct {
	items  map[string]item
	path   string
	mode   Mode
	closed bool
}

// SQLiteVersion reports the version of the SQLite library linked into the
// container layer.
func SQLiteVersion() string {
	v, _, _ := sqlite3.Version()
	return v
}

// Open opens the store at path. In ModeRead the whole file is loaded before
// Open returns; in ModeWrite nothing touches the filesystem until Close.
func Open(path string, mode Mode) (*Store, error) {
	s := &Store{path: path, mode: mode, items: make(map[string]item)}
	switch mode {
	case ModeRead:
		items, err := readFile(path)
		if err != nil {
			return nil, err
		}
		s.items = items
	case ModeWrite:
	default:
		return nil, kasError(ErrBadMode, "open", path, nil)
	}
	return s, nil
}

// Close flushes a store opened for writing and releases the in-memory items.
// Calling Close more than once is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.mode == ModeWrite {
		err = writeFile(s.path, s.items)
	}
	s.items = nil
	return err
}

// Abort discards a write-mode store without touching the filesystem.
func (s *Store) Abort() {
	s.closed = true
	s.items = nil
}

// Contains reports whether key is present.
func (s *Store) Contains(key string) bool {
	if s.closed {
		return false
	}
	_, ok := s.items[key]
	return ok
}

func (s *Store) lookup(key string) (item, error) {
	if s.closed {
		return item{}, ErrClosed
	}
	if s.mode != ModeRead {
		return item{}, kasError(ErrIllegalOperation, "get", key, nil)
	}
	it, ok := s.items[key]
	if !ok {
		return item{}, kasError(ErrKeyNotFound, "get", key, nil)
	}
	return it, nil
}

func (s *Store) checkWritable(op, key string) error {
	if s.closed {
		return ErrClosed
	}
	if s.mode != ModeWrite {
		return kasError(ErrIllegalOperation, op, key, nil)
	}
	if key == "" {
		return kasError(ErrEmptyKey, op, key, nil)
	}
	if _, dup := s.items[key]; dup {
		return kasError(ErrDuplicateKey, op, key, nil)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS kastore_header (
  id              INTEGER PRIMARY KEY CHECK (id = 1),
  magic           TEXT NOT NULL,
  version_major   INTEGER NOT NULL,
  version_minor   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kastore_items (
  key             TEXT PRIMARY KEY,
  type            INTEGER NOT NULL,
  len             INTEGER NOT NULL,
  data            BLOB
);
`

// openDB opens a SQLite database and verifies the connection.
func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func readFile(path string) (map[string]item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, kasError(ErrIO, "open", path, err)
	}
	if info.IsDir() {
		return nil, kasError(ErrIO, "open", path, fmt.Errorf("is a directory"))
	}

	db, err := openDB("file:" + path + "?mode=ro")
	if err != nil {
		return nil, kasError(ErrIO, "open", path, err)
	}
	defer db.Close()

	var magic string
	var major, minor int
	err = db.QueryRow(
		"SELECT magic, version_major, version_minor FROM kastore_header WHERE id = 1",
	).Scan(&magic, &major, &minor)
	if err != nil {
		return nil, kasError(ErrBadFileFormat, "open", path, err)
	}
	if magic != formatMagic {
		return nil, kasError(ErrBadFileFormat, "open", path, fmt.Errorf("bad magic %q", magic))
	}
	if major < FormatVersionMajor {
		return nil, kasError(ErrVersionTooOld, "open", path, nil)
	}
	if major > FormatVersionMajor {
		return nil, kasError(ErrVersionTooNew, "open", path, nil)
	}

	rows, err := db.Query("SELECT key, type, len, data FROM kastore_items")
	if err != nil {
		return nil, kasError(ErrBadFileFormat, "open", path, err)
	}
	defer rows.Close()

	items := make(map[string]item)
	for rows.Next() {
		var key string
		var it item
		if err := rows.Scan(&key, &it.typ, &it.n, &it.data); err != nil {
			return nil, kasError(ErrBadFileFormat, "open", path, err)
		}
		size := it.typ.Size()
		if size == 0 {
			return nil, kasError(ErrBadType, "open", key, nil)
		}
		if it.n < 0 || len(it.data)%size != 0 || len(it.data)/size != it.n {
			return nil, kasError(ErrBadFileFormat, "open", key,
				fmt.Errorf("%d bytes for %d %s elements", len(it.data), it.n, it.typ))
		}
		items[key] = it
	}
	if err := rows.Err(); err != nil {
		return nil, kasError(ErrBadFileFormat, "open", path, err)
	}
	return items, nil
}

func writeFile(path string, items map[string]item) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return kasError(ErrIO, "write", path, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	db, err := openDB(tmpPath)
	if err != nil {
		return kasError(ErrIO, "write", path, err)
	}
	if err := writeItems(db, items); err != nil {
		db.Close()
		return kasError(ErrIO, "write", path, err)
	}
	if err := db.Close(); err != nil {
		return kasError(ErrIO, "write", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return kasError(ErrIO, "write", path, err)
	}
	return nil
}

func writeItems(db *sql.DB, items map[string]item) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO kastore_header (id, magic, version_major, version_minor) VALUES (1, ?, ?, ?)",
		formatMagic, FormatVersionMajor, FormatVersionMinor,
	); err != nil {
		return fmt.Errorf("insert header: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO kastore_items (key, type, len, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()

	for key, it := range items {
		data := it.data
		if data == nil {
			data = []byte{}
		}
		if _, err := stmt.Exec(key, int(it.typ), it.n, data); err != nil {
			return fmt.Errorf("insert item %s: %w", key, err)
		}
	}
	return tx.Commit()
}
