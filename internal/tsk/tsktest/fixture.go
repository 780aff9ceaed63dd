// Package tsktest builds a small, fully valid tree sequence for tests.
//
// The fixture has 40 samples under a caterpillar of 39 internal nodes whose
// sample order is reversed halfway along a 10000 unit genome, giving two
// trees, plus one root node joined by a unary edge. Three sites carry three
// mutations, one of which has a parent.
package tsktest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// Expected fixture summary.
const (
	SequenceLength = 10000.0
	Breakpoint     = 5000.0
	TimeUnits      = "generations"
	Metadata       = "example"

	NumSamples     = 40
	NumNodes       = 80
	NumEdges       = 119
	NumTrees       = 2
	NumSites       = 3
	NumMutations   = 3
	NumProvenances = 1
	NumPopulations = 0
	NumMigrations  = 0
	NumIndividuals = 0
	MinTime        = 0.0
	MaxTime        = 40.0
)

// Build fills an initialised collection with the fixture and indexes it.
func Build(tc *tsk.TableCollection) error {
	tc.SequenceLength = SequenceLength
	tc.TimeUnits = TimeUnits
	tc.Metadata = []byte(Metadata)

	for range NumSamples {
		tc.Nodes.Add(tsk.Node{Flags: tsk.NodeIsSample, Time: 0, Population: tsk.Null, Individual: tsk.Null})
	}
	for k := range NumSamples - 1 {
		tc.Nodes.Add(tsk.Node{Time: float64(k + 1), Population: tsk.Null, Individual: tsk.Null})
	}
	root := tc.Nodes.Add(tsk.Node{Time: NumSamples, Population: tsk.Null, Individual: tsk.Null})

	const first = NumSamples
	last := int32(NumSamples - 1)
	tc.Edges.Add(tsk.Edge{Left: 0, Right: Breakpoint, Parent: first, Child: 0})
	tc.Edges.Add(tsk.Edge{Left: 0, Right: Breakpoint, Parent: first, Child: 1})
	tc.Edges.Add(tsk.Edge{Left: Breakpoint, Right: SequenceLength, Parent: first, Child: last})
	tc.Edges.Add(tsk.Edge{Left: Breakpoint, Right: SequenceLength, Parent: first, Child: last - 1})
	for k := int32(1); k < NumSamples-1; k++ {
		p := first + k
		tc.Edges.Add(tsk.Edge{Left: 0, Right: SequenceLength, Parent: p, Child: p - 1})
		tc.Edges.Add(tsk.Edge{Left: 0, Right: Breakpoint, Parent: p, Child: k + 1})
		tc.Edges.Add(tsk.Edge{Left: Breakpoint, Right: SequenceLength, Parent: p, Child: last - 1 - k})
	}
	tc.Edges.Add(tsk.Edge{Left: 0, Right: SequenceLength, Parent: root, Child: root - 1})

	tc.Sites.Add(tsk.Site{Position: 100, AncestralState: "A"})
	tc.Sites.Add(tsk.Site{Position: 5100, AncestralState: "A"})
	tc.Sites.Add(tsk.Site{Position: 9000, AncestralState: "A"})
	tc.Mutations.Add(tsk.Mutation{Site: 0, Node: 0, Parent: tsk.Null, Time: tsk.UnknownTime, DerivedState: "T"})
	tc.Mutations.Add(tsk.Mutation{Site: 1, Node: first + 1, Parent: tsk.Null, Time: tsk.UnknownTime, DerivedState: "G"})
	tc.Mutations.Add(tsk.Mutation{Site: 1, Node: last - 2, Parent: tsk.Null, Time: tsk.UnknownTime, DerivedState: "C"})

	tc.Provenances.Add(tsk.Provenance{Timestamp: "2024-01-01T00:00:00", Record: `{"software":"tsktest"}`})

	if err := tc.SortEdges(); err != nil {
		return err
	}
	if err := tc.ComputeMutationParents(); err != nil {
		return err
	}
	return tc.BuildIndex()
}

// Tables returns a fresh fixture collection, freed when the test ends.
func Tables(t testing.TB) *tsk.TableCollection {
	t.Helper()
	tc := &tsk.TableCollection{}
	require.NoError(t, tc.Init(0))
	t.Cleanup(tc.Free)
	require.NoError(t, Build(tc))
	return tc
}

// WriteTreeSequence dumps the fixture into a temporary directory and
// returns the file path.
func WriteTreeSequence(t testing.TB) string {
	t.Helper()
	tc := &tsk.TableCollection{}
	require.NoError(t, tc.Init(0))
	defer tc.Free()
	require.NoError(t, Build(tc))

	path := filepath.Join(t.TempDir(), "example.trees")
	require.NoError(t, tc.Dump(path, 0))
	return path
}
