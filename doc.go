// Package tskitr exposes tree sequences and table collections to Go code and
// Risor scripts as handles whose lifetime is managed for the caller.
//
// # Handles
//
// Every resource lives behind a *Handle issued by a Host. A handle is either
// live or released. Constructors (LoadTreeSequence, LoadTableCollection,
// TreeSequenceToTables, TablesToTreeSequence) return a live handle or an
// error, never both, and never leave a partially built resource behind.
// Release destroys the resource early and can be called any number of times;
// otherwise the resource is destroyed when the handle becomes unreachable or
// when the Host is closed, whichever comes first.
//
// Using a released, nil or wrong-kind handle fails with ErrInvalidHandle.
// Option bits outside an operation's allow-list fail with
// ErrUnsupportedOption before the library is called.
//
// # Usage
//
//	h, err := tskitr.New()
//	if err != nil { ... }
//	defer h.Close()
//
//	ts, err := h.LoadTreeSequence("example.trees", 0)
//	if err != nil { ... }
//	n, err := h.NumNodes(ts)
//	err = h.Dump(ts, "copy.trees", 0)
//	h.Release(ts)
//
// # Scripts
//
// The same operations are available to Risor scripts as global functions
// (ts_load, ts_dump, ts_num_nodes, tc_to_ts, release, ...):
//
//	err = h.RunSource(ctx, `
//	ts := ts_load(path)
//	log.Info('nodes: {ts_num_nodes(ts)}')
//	`, map[string]any{"path": "example.trees"})
//
// Example scripts are embedded and can be listed with ExampleScripts.
package tskitr
