package binding

import (
	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// TreeSequenceSummary is the scalar summary of a tree sequence.
type TreeSequenceSummary struct {
	TimeUnits            string
	FileUUID             string
	NumProvenances       int
	NumPopulations       int
	NumMigrations        int
	NumIndividuals       int
	NumSamples           int
	NumNodes             int
	NumEdges             int
	NumTrees             int
	NumSites             int
	NumMutations         int
	SequenceLength       float64
	MinTime              float64
	MaxTime              float64
	DiscreteGenome       bool
	HasReferenceSequence bool
	DiscreteTime         bool
}

// TableCollectionSummary is the scalar summary of a table collection.
type TableCollectionSummary struct {
	TimeUnits            string
	FileUUID             string
	NumProvenances       int
	NumPopulations       int
	NumMigrations        int
	NumIndividuals       int
	NumNodes             int
	NumEdges             int
	NumSites             int
	NumMutations         int
	SequenceLength       float64
	HasReferenceSequence bool
	HasIndex             bool
}

// readTS runs f on the tree sequence behind h.
func readTS[T any](s *Session, h *handle.Handle, f func(*tsk.TreeSequence) T) (T, error) {
	var out T
	err := handle.Use(s.reg, h, KindTreeSequence, func(ts *tsk.TreeSequence) error {
		out = f(ts)
		return nil
	})
	return out, err
}

// readTC runs f on the table collection behind h.
func readTC[T any](s *Session, h *handle.Handle, f func(*tsk.TableCollection) T) (T, error) {
	var out T
	err := handle.Use(s.reg, h, KindTableCollection, func(tc *tsk.TableCollection) error {
		out = f(tc)
		return nil
	})
	return out, err
}

// readTables runs f on the tables behind h, which may be either kind.
func readTables[T any](s *Session, h *handle.Handle, f func(*tsk.TableCollection) T) (T, error) {
	if h.Kind() == KindTableCollection {
		return readTC(s, h, f)
	}
	return readTS(s, h, func(ts *tsk.TreeSequence) T { return f(ts.Tables()) })
}

func (s *Session) NumProvenances(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumProvenances)
}

func (s *Session) NumPopulations(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumPopulations)
}

func (s *Session) NumMigrations(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumMigrations)
}

func (s *Session) NumIndividuals(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumIndividuals)
}

func (s *Session) NumSamples(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumSamples)
}

func (s *Session) NumNodes(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumNodes)
}

func (s *Session) NumEdges(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumEdges)
}

func (s *Session) NumTrees(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumTrees)
}

func (s *Session) NumSites(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumSites)
}

func (s *Session) NumMutations(h *handle.Handle) (int, error) {
	return readTS(s, h, (*tsk.TreeSequence).NumMutations)
}

func (s *Session) MinTime(h *handle.Handle) (float64, error) {
	return readTS(s, h, (*tsk.TreeSequence).MinTime)
}

func (s *Session) MaxTime(h *handle.Handle) (float64, error) {
	return readTS(s, h, (*tsk.TreeSequence).MaxTime)
}

func (s *Session) DiscreteGenome(h *handle.Handle) (bool, error) {
	return readTS(s, h, (*tsk.TreeSequence).DiscreteGenome)
}

func (s *Session) DiscreteTime(h *handle.Handle) (bool, error) {
	return readTS(s, h, (*tsk.TreeSequence).DiscreteTime)
}

// HasIndex reports whether the table collection behind h has edge indexes.
func (s *Session) HasIndex(h *handle.Handle) (bool, error) {
	return readTC(s, h, (*tsk.TableCollection).HasIndex)
}

// The accessors below accept either kind of handle.

func (s *Session) SequenceLength(h *handle.Handle) (float64, error) {
	return readTables(s, h, func(tc *tsk.TableCollection) float64 { return tc.SequenceLength })
}

// TimeUnits returns the time units string, empty when none was set.
func (s *Session) TimeUnits(h *handle.Handle) (string, error) {
	return readTables(s, h, func(tc *tsk.TableCollection) string { return tc.TimeUnits })
}

// FileUUID returns the UUID of the file the resource was loaded from, or ""
// for a resource that was not loaded from a file.
func (s *Session) FileUUID(h *handle.Handle) (string, error) {
	return readTables(s, h, func(tc *tsk.TableCollection) string { return tc.FileUUID })
}

func (s *Session) HasReferenceSequence(h *handle.Handle) (bool, error) {
	return readTables(s, h, (*tsk.TableCollection).HasReferenceSequence)
}

// Metadata returns the top-level metadata bytes as a string.
func (s *Session) Metadata(h *handle.Handle) (string, error) {
	return readTables(s, h, func(tc *tsk.TableCollection) string { return string(tc.Metadata) })
}

// MetadataLength returns the metadata byte counts of the resource and each
// of its tables.
func (s *Session) MetadataLength(h *handle.Handle) (tsk.MetadataLengths, error) {
	return readTables(s, h, (*tsk.TableCollection).MetadataLengths)
}

// TreeSequenceSummary reads every scalar of the tree sequence behind h under
// a single lock.
func (s *Session) TreeSequenceSummary(h *handle.Handle) (TreeSequenceSummary, error) {
	return readTS(s, h, func(ts *tsk.TreeSequence) TreeSequenceSummary {
		return TreeSequenceSummary{
			NumProvenances:       ts.NumProvenances(),
			NumPopulations:       ts.NumPopulations(),
			NumMigrations:        ts.NumMigrations(),
			NumIndividuals:       ts.NumIndividuals(),
			NumSamples:           ts.NumSamples(),
			NumNodes:             ts.NumNodes(),
			NumEdges:             ts.NumEdges(),
			NumTrees:             ts.NumTrees(),
			NumSites:             ts.NumSites(),
			NumMutations:         ts.NumMutations(),
			SequenceLength:       ts.SequenceLength(),
			DiscreteGenome:       ts.DiscreteGenome(),
			HasReferenceSequence: ts.HasReferenceSequence(),
			TimeUnits:            ts.TimeUnits(),
			DiscreteTime:         ts.DiscreteTime(),
			MinTime:              ts.MinTime(),
			MaxTime:              ts.MaxTime(),
			FileUUID:             ts.FileUUID(),
		}
	})
}

// TableCollectionSummary reads every scalar of the table collection behind
// h under a single lock.
func (s *Session) TableCollectionSummary(h *handle.Handle) (TableCollectionSummary, error) {
	return readTC(s, h, func(tc *tsk.TableCollection) TableCollectionSummary {
		return TableCollectionSummary{
			NumProvenances:       tc.Provenances.NumRows(),
			NumPopulations:       tc.Populations.NumRows(),
			NumMigrations:        tc.Migrations.NumRows(),
			NumIndividuals:       tc.Individuals.NumRows(),
			NumNodes:             tc.Nodes.NumRows(),
			NumEdges:             tc.Edges.NumRows(),
			NumSites:             tc.Sites.NumRows(),
			NumMutations:         tc.Mutations.NumRows(),
			SequenceLength:       tc.SequenceLength,
			HasReferenceSequence: tc.HasReferenceSequence(),
			TimeUnits:            tc.TimeUnits,
			FileUUID:             tc.FileUUID,
			HasIndex:             tc.HasIndex(),
		}
	})
}
