package tsk

import (
	"math"
	"slices"
)

// TreeSequence is an immutable, indexed view over a table collection with
// a few derived summaries precomputed. The zero value is uninitialised.
type TreeSequence struct {
	tables  *TableCollection
	samples []int32

	breakpoints []float64
	minTime     float64
	maxTime     float64

	discreteGenome bool
	discreteTime   bool
	initialized    bool
}

// Init builds a tree sequence from tables. The tables are copied unless
// TakeOwnership is set, in which case the tree sequence frees them.
// The tables must be indexed unless TSInitBuildIndexes is given.
//
// On failure the caller must still call Free.
func (ts *TreeSequence) Init(tables *TableCollection, flags Flags) error {
	if err := bugAssert(!ts.initialized, "tree sequence already initialised"); err != nil {
		return err
	}
	if tables == nil {
		return tskError(ErrBadParamValue, "nil tables")
	}
	if err := bugAssert(tables.initialized, "tables not initialised"); err != nil {
		return err
	}
	*ts = TreeSequence{initialized: true}
	outstanding.Add(1)

	if flags&TakeOwnership != 0 {
		ts.tables = tables
	} else {
		ts.tables = &TableCollection{}
		if err := tables.Copy(ts.tables, CopyFileUUID); err != nil {
			return err
		}
	}

	if flags&TSInitBuildIndexes != 0 {
		if err := ts.tables.BuildIndex(); err != nil {
			return err
		}
	}
	if !ts.tables.HasIndex() {
		return tskError(ErrTablesNotIndexed, "")
	}
	if flags&TSInitComputeMutationParents != 0 {
		if err := ts.tables.ComputeMutationParents(); err != nil {
			return err
		}
	}
	if err := ts.tables.CheckIntegrity(CheckTrees); err != nil {
		return err
	}
	ts.derive()
	return nil
}

// Load reads a tree sequence from path. Only the load flags are honoured.
func (ts *TreeSequence) Load(path string, flags Flags) error {
	if err := bugAssert(!ts.initialized, "tree sequence already initialised"); err != nil {
		return err
	}
	tables := &TableCollection{}
	if err := tables.Load(path, flags&(LoadSkipTables|LoadSkipReferenceSequence)); err != nil {
		tables.Free()
		return err
	}
	initFlags := TakeOwnership
	if flags&LoadSkipTables != 0 {
		initFlags |= TSInitBuildIndexes
	}
	return ts.Init(tables, initFlags)
}

// Free releases the tree sequence and its tables. It is safe on a zero,
// partially initialised or already freed value.
func (ts *TreeSequence) Free() {
	if ts == nil || !ts.initialized {
		return
	}
	ts.tables.Free()
	*ts = TreeSequence{}
	outstanding.Add(-1)
}

// Initialized reports whether Init has run and Free has not.
func (ts *TreeSequence) Initialized() bool {
	return ts.initialized
}

// Dump writes the underlying tables to path.
func (ts *TreeSequence) Dump(path string, flags Flags) error {
	if err := bugAssert(ts.initialized, "dump of uninitialised tree sequence"); err != nil {
		return err
	}
	return ts.tables.Dump(path, flags)
}

// CopyTables deep-copies the underlying tables into dest.
func (ts *TreeSequence) CopyTables(dest *TableCollection, flags Flags) error {
	if err := bugAssert(ts.initialized, "copy from uninitialised tree sequence"); err != nil {
		return err
	}
	return ts.tables.Copy(dest, flags)
}

// Tables returns the underlying tables. Callers must not modify them.
func (ts *TreeSequence) Tables() *TableCollection {
	return ts.tables
}

func (ts *TreeSequence) derive() {
	tc := ts.tables

	ts.samples = ts.samples[:0]
	for j, n := range tc.Nodes.Rows {
		if n.Flags&NodeIsSample != 0 {
			ts.samples = append(ts.samples, int32(j))
		}
	}

	bp := []float64{0, tc.SequenceLength}
	for _, e := range tc.Edges.Rows {
		bp = append(bp, e.Left, e.Right)
	}
	slices.Sort(bp)
	ts.breakpoints = slices.Compact(bp)

	ts.minTime, ts.maxTime = math.Inf(1), math.Inf(-1)
	ts.discreteTime = true
	observe := func(t float64) {
		ts.minTime = math.Min(ts.minTime, t)
		ts.maxTime = math.Max(ts.maxTime, t)
		if !isInteger(t) {
			ts.discreteTime = false
		}
	}
	for _, n := range tc.Nodes.Rows {
		observe(n.Time)
	}
	for _, m := range tc.Mutations.Rows {
		if !IsUnknownTime(m.Time) {
			observe(m.Time)
		}
	}
	for _, m := range tc.Migrations.Rows {
		if !isInteger(m.Time) {
			ts.discreteTime = false
		}
	}

	ts.discreteGenome = isInteger(tc.SequenceLength)
	for _, e := range tc.Edges.Rows {
		if !isInteger(e.Left) || !isInteger(e.Right) {
			ts.discreteGenome = false
		}
	}
	for _, s := range tc.Sites.Rows {
		if !isInteger(s.Position) {
			ts.discreteGenome = false
		}
	}
	for _, m := range tc.Migrations.Rows {
		if !isInteger(m.Left) || !isInteger(m.Right) {
			ts.discreteGenome = false
		}
	}
}

func (ts *TreeSequence) NumProvenances() int { return ts.tables.Provenances.NumRows() }
func (ts *TreeSequence) NumPopulations() int { return ts.tables.Populations.NumRows() }
func (ts *TreeSequence) NumMigrations() int  { return ts.tables.Migrations.NumRows() }
func (ts *TreeSequence) NumIndividuals() int { return ts.tables.Individuals.NumRows() }
func (ts *TreeSequence) NumSamples() int     { return len(ts.samples) }
func (ts *TreeSequence) NumNodes() int       { return ts.tables.Nodes.NumRows() }
func (ts *TreeSequence) NumEdges() int       { return ts.tables.Edges.NumRows() }
func (ts *TreeSequence) NumSites() int       { return ts.tables.Sites.NumRows() }
func (ts *TreeSequence) NumMutations() int   { return ts.tables.Mutations.NumRows() }

// NumTrees returns the number of distinct trees along the genome.
func (ts *TreeSequence) NumTrees() int { return len(ts.breakpoints) - 1 }

// Breakpoints returns the tree boundaries, starting at 0 and ending at the
// sequence length.
func (ts *TreeSequence) Breakpoints() []float64 { return slices.Clone(ts.breakpoints) }

// Samples returns the sample node ids.
func (ts *TreeSequence) Samples() []int32 { return slices.Clone(ts.samples) }

func (ts *TreeSequence) SequenceLength() float64 { return ts.tables.SequenceLength }

// MinTime is the smallest node or known mutation time; +Inf when empty.
func (ts *TreeSequence) MinTime() float64 { return ts.minTime }

// MaxTime is the largest node or known mutation time; -Inf when empty.
func (ts *TreeSequence) MaxTime() float64 { return ts.maxTime }

func (ts *TreeSequence) TimeUnits() string          { return ts.tables.TimeUnits }
func (ts *TreeSequence) FileUUID() string           { return ts.tables.FileUUID }
func (ts *TreeSequence) DiscreteGenome() bool       { return ts.discreteGenome }
func (ts *TreeSequence) DiscreteTime() bool         { return ts.discreteTime }
func (ts *TreeSequence) HasReferenceSequence() bool { return ts.tables.HasReferenceSequence() }

// MetadataLengths returns the metadata byte counts of the underlying
// tables.
func (ts *TreeSequence) MetadataLengths() MetadataLengths {
	return ts.tables.MetadataLengths()
}
