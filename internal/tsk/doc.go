// Package tsk is a compact tree-sequence table library.
//
// A TableCollection holds the individual, node, edge, migration, site,
// mutation, population and provenance tables plus top-level metadata and an
// optional reference sequence. A TreeSequence is an indexed, integrity
// checked view over a collection with a few summaries precomputed.
//
// Both types follow an explicit Init/Free lifecycle: the zero value is
// uninitialised, failed constructors leave the value in a state that Free
// accepts, and Free is idempotent. Outstanding reports how many objects are
// live, which makes leaks observable in tests.
//
// Files are stored through package kastore under the "tskit.trees" format
// name. Failures are reported as *Error values carrying a negative Code.
package tsk
