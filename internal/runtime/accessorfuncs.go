package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/HighlanderLab/tskitr/internal/binding"
	"github.com/HighlanderLab/tskitr/internal/handle"
	"github.com/HighlanderLab/tskitr/internal/tsk"
)

// accessorFuncs returns the read-only host functions, keyed by global name.
// Each takes a single handle and raises on an invalid one.
func accessorFuncs(s *binding.Session) map[string]*object.Builtin {
	fns := map[string]*object.Builtin{
		"ts_num_provenances": makeAccessor("ts_num_provenances", s.NumProvenances, intObject),
		"ts_num_populations": makeAccessor("ts_num_populations", s.NumPopulations, intObject),
		"ts_num_migrations":  makeAccessor("ts_num_migrations", s.NumMigrations, intObject),
		"ts_num_individuals": makeAccessor("ts_num_individuals", s.NumIndividuals, intObject),
		"ts_num_samples":     makeAccessor("ts_num_samples", s.NumSamples, intObject),
		"ts_num_nodes":       makeAccessor("ts_num_nodes", s.NumNodes, intObject),
		"ts_num_edges":       makeAccessor("ts_num_edges", s.NumEdges, intObject),
		"ts_num_trees":       makeAccessor("ts_num_trees", s.NumTrees, intObject),
		"ts_num_sites":       makeAccessor("ts_num_sites", s.NumSites, intObject),
		"ts_num_mutations":   makeAccessor("ts_num_mutations", s.NumMutations, intObject),
		"ts_min_time":        makeAccessor("ts_min_time", s.MinTime, floatObject),
		"ts_max_time":        makeAccessor("ts_max_time", s.MaxTime, floatObject),
		"ts_discrete_genome": makeAccessor("ts_discrete_genome", s.DiscreteGenome, boolObject),
		"ts_discrete_time":   makeAccessor("ts_discrete_time", s.DiscreteTime, boolObject),
		"ts_summary":         makeAccessor("ts_summary", s.TreeSequenceSummary, tsSummaryObject),
		"tc_has_index":       makeAccessor("tc_has_index", s.HasIndex, boolObject),
		"tc_summary":         makeAccessor("tc_summary", s.TableCollectionSummary, tcSummaryObject),
	}

	// Shared accessors exist under both prefixes and only differ in the kind
	// they accept.
	for _, p := range []struct {
		prefix string
		kind   handle.Kind
	}{
		{"ts", binding.KindTreeSequence},
		{"tc", binding.KindTableCollection},
	} {
		name := func(n string) string { return p.prefix + "_" + n }
		fns[name("sequence_length")] = makeAccessor(name("sequence_length"), ofKind(s, p.kind, s.SequenceLength), floatObject)
		fns[name("time_units")] = makeAccessor(name("time_units"), ofKind(s, p.kind, s.TimeUnits), stringObject)
		fns[name("file_uuid")] = makeAccessor(name("file_uuid"), ofKind(s, p.kind, s.FileUUID), stringObject)
		fns[name("has_reference_sequence")] = makeAccessor(name("has_reference_sequence"), ofKind(s, p.kind, s.HasReferenceSequence), boolObject)
		fns[name("metadata")] = makeAccessor(name("metadata"), ofKind(s, p.kind, s.Metadata), stringObject)
		fns[name("metadata_length")] = makeAccessor(name("metadata_length"), ofKind(s, p.kind, s.MetadataLength), metadataLengthObject(p.prefix))
	}
	return fns
}

// ofKind restricts a shared accessor to handles of kind.
func ofKind[T any](s *binding.Session, kind handle.Kind, get func(*handle.Handle) (T, error)) func(*handle.Handle) (T, error) {
	return func(h *handle.Handle) (T, error) {
		if h.Kind() != kind {
			var zero T
			_, err := s.Registry().Deref(h, kind)
			return zero, err
		}
		return get(h)
	}
}

// makeAccessor wraps a session getter as a one-argument host function.
//
// ts_num_nodes(handle) → int
func makeAccessor[T any](name string, get func(*handle.Handle) (T, error), conv func(T) object.Object) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		h, err := toHandle(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		v, getErr := get(h)
		if getErr != nil {
			return raise(name, getErr)
		}
		return conv(v)
	})
}

func intObject(n int) object.Object       { return object.NewInt(int64(n)) }
func floatObject(f float64) object.Object { return object.NewFloat(f) }
func boolObject(b bool) object.Object     { return object.NewBool(b) }
func stringObject(s string) object.Object { return object.NewString(s) }

func tsSummaryObject(s binding.TreeSequenceSummary) object.Object {
	return object.NewMap(map[string]object.Object{
		"num_provenances":        intObject(s.NumProvenances),
		"num_populations":        intObject(s.NumPopulations),
		"num_migrations":         intObject(s.NumMigrations),
		"num_individuals":        intObject(s.NumIndividuals),
		"num_samples":            intObject(s.NumSamples),
		"num_nodes":              intObject(s.NumNodes),
		"num_edges":              intObject(s.NumEdges),
		"num_trees":              intObject(s.NumTrees),
		"num_sites":              intObject(s.NumSites),
		"num_mutations":          intObject(s.NumMutations),
		"sequence_length":        object.NewFloat(s.SequenceLength),
		"discrete_genome":        object.NewBool(s.DiscreteGenome),
		"has_reference_sequence": object.NewBool(s.HasReferenceSequence),
		"time_units":             object.NewString(s.TimeUnits),
		"discrete_time":          object.NewBool(s.DiscreteTime),
		"min_time":               object.NewFloat(s.MinTime),
		"max_time":               object.NewFloat(s.MaxTime),
		"file_uuid":              object.NewString(s.FileUUID),
	})
}

func tcSummaryObject(s binding.TableCollectionSummary) object.Object {
	return object.NewMap(map[string]object.Object{
		"num_provenances":        intObject(s.NumProvenances),
		"num_populations":        intObject(s.NumPopulations),
		"num_migrations":         intObject(s.NumMigrations),
		"num_individuals":        intObject(s.NumIndividuals),
		"num_nodes":              intObject(s.NumNodes),
		"num_edges":              intObject(s.NumEdges),
		"num_sites":              intObject(s.NumSites),
		"num_mutations":          intObject(s.NumMutations),
		"sequence_length":        object.NewFloat(s.SequenceLength),
		"has_reference_sequence": object.NewBool(s.HasReferenceSequence),
		"time_units":             object.NewString(s.TimeUnits),
		"file_uuid":              object.NewString(s.FileUUID),
		"has_index":              object.NewBool(s.HasIndex),
	})
}

// metadataLengthObject keys the collection-level length by the handle's
// prefix ("ts" or "tc").
func metadataLengthObject(prefix string) func(tsk.MetadataLengths) object.Object {
	return func(l tsk.MetadataLengths) object.Object {
		return object.NewMap(map[string]object.Object{
			prefix:        intObject(l.Collection),
			"populations": intObject(l.Populations),
			"migrations":  intObject(l.Migrations),
			"individuals": intObject(l.Individuals),
			"nodes":       intObject(l.Nodes),
			"edges":       intObject(l.Edges),
			"sites":       intObject(l.Sites),
			"mutations":   intObject(l.Mutations),
		})
	}
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
