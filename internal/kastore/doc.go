// Package kastore is a small key/array store used as the on-disk codec for
// table collections and tree sequences.
//
// A store maps string keys to typed, one-dimensional arrays. Files are SQLite
// databases holding a single items table, so they can be inspected with any
// SQLite client, but callers must treat them as opaque.
//
// Reading is all-or-nothing: Open in ModeRead loads every item into memory
// and closes the database before returning. Writing buffers items in memory
// and Close writes them to a temporary file in the target directory, which is
// renamed over the destination only after the write succeeds. A failed write
// never leaves a partial file behind.
//
//	s, err := kastore.Open("out.trees", kastore.ModeWrite)
//	if err != nil { ... }
//	err = kastore.Put(s, "nodes/time", []float64{0, 0, 1.5})
//	err = s.Close()
package kastore
