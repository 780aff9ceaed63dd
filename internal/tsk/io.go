package tsk

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/HighlanderLab/tskitr/internal/kastore"
)

// encoder writes columns into a kastore, keeping the first failure.
type encoder struct {
	s   *kastore.Store
	err error
}

func put[T kastore.Element](e *encoder, key string, v []T) {
	if e.err != nil {
		return
	}
	if v == nil {
		v = []T{}
	}
	e.err = kastore.Put(e.s, key, v)
}

func putString(e *encoder, key, v string) {
	if e.err != nil {
		return
	}
	e.err = kastore.PutString(e.s, key, v)
}

// putRagged flattens a ragged column into key and key_offset.
func putRagged[T kastore.Element](e *encoder, key string, rows [][]T) {
	offsets := make([]uint64, len(rows)+1)
	var flat []T
	for i, r := range rows {
		flat = append(flat, r...)
		offsets[i+1] = uint64(len(flat))
	}
	put(e, key, flat)
	put(e, key+"_offset", offsets)
}

func column[R any, T any](rows []R, f func(R) T) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = f(r)
	}
	return out
}

func bytesOf(s string) []byte { return []byte(s) }

// decoder reads columns from a kastore, keeping the first failure.
type decoder struct {
	s   *kastore.Store
	err error
}

func get[T kastore.Element](d *decoder, key string) []T {
	if d.err != nil {
		return nil
	}
	v, err := kastore.Get[T](d.s, key)
	if err != nil {
		d.err = fromKastore(err)
		return nil
	}
	return v
}

func getString(d *decoder, key string) string {
	if d.err != nil {
		return ""
	}
	v, err := kastore.GetString(d.s, key)
	if err != nil {
		d.err = fromKastore(err)
		return ""
	}
	return v
}

// getOptionalString returns "" for a missing key.
func getOptionalString(d *decoder, key string) string {
	if d.err != nil || !d.s.Contains(key) {
		return ""
	}
	return getString(d, key)
}

func getScalar[T kastore.Element](d *decoder, key string) T {
	var zero T
	v := get[T](d, key)
	if d.err != nil {
		return zero
	}
	if len(v) != 1 {
		d.err = tskError(ErrFileFormat, "%s: expected 1 value, found %d", key, len(v))
		return zero
	}
	return v[0]
}

// getRagged splits key by key_offset into n rows.
func getRagged[T kastore.Element](d *decoder, key string, n int) [][]T {
	flat := get[T](d, key)
	offsets := get[uint64](d, key+"_offset")
	if d.err != nil {
		return nil
	}
	if len(offsets) != n+1 || offsets[0] != 0 || offsets[n] != uint64(len(flat)) {
		d.err = tskError(ErrBadOffset, "%s", key)
		return nil
	}
	// Offsets must be non-decreasing and within flat before any row is cut.
	for i := range n {
		if offsets[i] > offsets[i+1] || offsets[i+1] > uint64(len(flat)) {
			d.err = tskError(ErrBadOffset, "%s row %d", key, i)
			return nil
		}
	}
	rows := make([][]T, n)
	for i := range n {
		if lo, hi := offsets[i], offsets[i+1]; hi > lo {
			rows[i] = flat[lo:hi:hi]
		}
	}
	return rows
}

// numRows reads the first column of a table and checks that every other
// fixed-width column has the same length.
func numRows(d *decoder, table string, lengths ...int) int {
	if d.err != nil || len(lengths) == 0 {
		return 0
	}
	for _, n := range lengths[1:] {
		if n != lengths[0] {
			d.err = tskError(ErrFileFormat, "%s: column lengths differ", table)
			return 0
		}
	}
	return lengths[0]
}

// Dump writes the collection to path. A fresh file UUID is written; the
// in-memory collection is not modified. On failure no file is left at path.
func (tc *TableCollection) Dump(path string, flags Flags) error {
	if err := bugAssert(tc.initialized, "dump of uninitialised table collection"); err != nil {
		return err
	}
	s, err := kastore.Open(path, kastore.ModeWrite)
	if err != nil {
		return fromKastore(err)
	}
	e := &encoder{s: s}
	tc.encode(e, uuid.NewString())
	if e.err != nil {
		s.Abort()
		return fromKastore(e.err)
	}
	if err := s.Close(); err != nil {
		return fromKastore(err)
	}
	return nil
}

func (tc *TableCollection) encode(e *encoder, fileUUID string) {
	putString(e, "format/name", FileFormatName)
	put(e, "format/version", []uint32{FileFormatVersionMajor, FileFormatVersionMinor})
	put(e, "sequence_length", []float64{tc.SequenceLength})
	putString(e, "time_units", tc.TimeUnits)
	put(e, "metadata", tc.Metadata)
	putString(e, "metadata_schema", tc.MetadataSchema)
	putString(e, "uuid", fileUUID)

	if tc.HasReferenceSequence() {
		rs := tc.ReferenceSequence
		putString(e, "reference_sequence/data", rs.Data)
		putString(e, "reference_sequence/url", rs.URL)
		put(e, "reference_sequence/metadata", rs.Metadata)
		putString(e, "reference_sequence/metadata_schema", rs.MetadataSchema)
	}

	ind := tc.Individuals.Rows
	put(e, "individuals/flags", column(ind, func(r Individual) uint32 { return r.Flags }))
	putRagged(e, "individuals/location", column(ind, func(r Individual) []float64 { return r.Location }))
	putRagged(e, "individuals/parents", column(ind, func(r Individual) []int32 { return r.Parents }))
	putRagged(e, "individuals/metadata", column(ind, Individual.meta))
	putString(e, "individuals/metadata_schema", tc.Individuals.MetadataSchema)

	nodes := tc.Nodes.Rows
	put(e, "nodes/flags", column(nodes, func(r Node) uint32 { return r.Flags }))
	put(e, "nodes/time", column(nodes, func(r Node) float64 { return r.Time }))
	put(e, "nodes/population", column(nodes, func(r Node) int32 { return r.Population }))
	put(e, "nodes/individual", column(nodes, func(r Node) int32 { return r.Individual }))
	putRagged(e, "nodes/metadata", column(nodes, Node.meta))
	putString(e, "nodes/metadata_schema", tc.Nodes.MetadataSchema)

	edges := tc.Edges.Rows
	put(e, "edges/left", column(edges, func(r Edge) float64 { return r.Left }))
	put(e, "edges/right", column(edges, func(r Edge) float64 { return r.Right }))
	put(e, "edges/parent", column(edges, func(r Edge) int32 { return r.Parent }))
	put(e, "edges/child", column(edges, func(r Edge) int32 { return r.Child }))
	putRagged(e, "edges/metadata", column(edges, Edge.meta))
	putString(e, "edges/metadata_schema", tc.Edges.MetadataSchema)

	mig := tc.Migrations.Rows
	put(e, "migrations/left", column(mig, func(r Migration) float64 { return r.Left }))
	put(e, "migrations/right", column(mig, func(r Migration) float64 { return r.Right }))
	put(e, "migrations/node", column(mig, func(r Migration) int32 { return r.Node }))
	put(e, "migrations/source", column(mig, func(r Migration) int32 { return r.Source }))
	put(e, "migrations/dest", column(mig, func(r Migration) int32 { return r.Dest }))
	put(e, "migrations/time", column(mig, func(r Migration) float64 { return r.Time }))
	putRagged(e, "migrations/metadata", column(mig, Migration.meta))
	putString(e, "migrations/metadata_schema", tc.Migrations.MetadataSchema)

	sites := tc.Sites.Rows
	put(e, "sites/position", column(sites, func(r Site) float64 { return r.Position }))
	putRagged(e, "sites/ancestral_state", column(sites, func(r Site) []byte { return bytesOf(r.AncestralState) }))
	putRagged(e, "sites/metadata", column(sites, Site.meta))
	putString(e, "sites/metadata_schema", tc.Sites.MetadataSchema)

	muts := tc.Mutations.Rows
	put(e, "mutations/site", column(muts, func(r Mutation) int32 { return r.Site }))
	put(e, "mutations/node", column(muts, func(r Mutation) int32 { return r.Node }))
	put(e, "mutations/parent", column(muts, func(r Mutation) int32 { return r.Parent }))
	put(e, "mutations/time", column(muts, func(r Mutation) float64 { return r.Time }))
	putRagged(e, "mutations/derived_state", column(muts, func(r Mutation) []byte { return bytesOf(r.DerivedState) }))
	putRagged(e, "mutations/metadata", column(muts, Mutation.meta))
	putString(e, "mutations/metadata_schema", tc.Mutations.MetadataSchema)

	putRagged(e, "populations/metadata", column(tc.Populations.Rows, Population.meta))
	putString(e, "populations/metadata_schema", tc.Populations.MetadataSchema)

	prov := tc.Provenances.Rows
	putRagged(e, "provenances/timestamp", column(prov, func(r Provenance) []byte { return bytesOf(r.Timestamp) }))
	putRagged(e, "provenances/record", column(prov, func(r Provenance) []byte { return bytesOf(r.Record) }))

	if tc.HasIndex() {
		put(e, "indexes/edge_insertion_order", tc.Indexes.Insertion)
		put(e, "indexes/edge_removal_order", tc.Indexes.Removal)
	}
}

// Load reads the collection stored at path. Unless NoInit is set tc is
// initialised first; on failure the caller must still call Free, which is
// safe on a partially loaded collection.
//
// LoadSkipTables reads only the top-level fields. LoadSkipReferenceSequence
// leaves the reference sequence empty.
func (tc *TableCollection) Load(path string, flags Flags) error {
	if flags&NoInit == 0 {
		if err := tc.Init(0); err != nil {
			return err
		}
	} else if err := bugAssert(tc.initialized, "load into uninitialised table collection"); err != nil {
		return err
	}

	s, err := kastore.Open(path, kastore.ModeRead)
	if err != nil {
		return fromKastore(err)
	}
	defer s.Close()

	d := &decoder{s: s}
	tc.decode(d, flags)
	if d.err != nil {
		return d.err
	}
	return nil
}

func (tc *TableCollection) decode(d *decoder, flags Flags) {
	name := getString(d, "format/name")
	version := get[uint32](d, "format/version")
	if d.err != nil {
		return
	}
	if name != FileFormatName {
		d.err = tskError(ErrFileFormat, "format name %q", name)
		return
	}
	if len(version) != 2 {
		d.err = tskError(ErrFileFormat, "format/version")
		return
	}
	if version[0] < FileFormatVersionMajor {
		d.err = tskError(ErrFileVersionTooOld, "")
		return
	}
	if version[0] > FileFormatVersionMajor {
		d.err = tskError(ErrFileVersionTooNew, "")
		return
	}

	tc.SequenceLength = getScalar[float64](d, "sequence_length")
	if d.err == nil && !(tc.SequenceLength > 0) {
		d.err = tskError(ErrBadSequenceLength, "")
		return
	}
	tc.TimeUnits = getOptionalString(d, "time_units")
	tc.Metadata = get[uint8](d, "metadata")
	tc.MetadataSchema = getOptionalString(d, "metadata_schema")

	fileUUID := getString(d, "uuid")
	if d.err != nil {
		return
	}
	if err := uuid.Validate(fileUUID); err != nil {
		d.err = &Error{Code: ErrBadFileUUID, Cause: err}
		return
	}
	tc.FileUUID = fileUUID

	if flags&LoadSkipReferenceSequence == 0 && d.s.Contains("reference_sequence/data") {
		tc.ReferenceSequence = ReferenceSequence{
			Data:           getString(d, "reference_sequence/data"),
			URL:            getOptionalString(d, "reference_sequence/url"),
			Metadata:       get[uint8](d, "reference_sequence/metadata"),
			MetadataSchema: getOptionalString(d, "reference_sequence/metadata_schema"),
		}
	}
	if d.err != nil || flags&LoadSkipTables != 0 {
		return
	}

	tc.decodeTables(d)
	if d.err != nil {
		return
	}

	hasIns := d.s.Contains("indexes/edge_insertion_order")
	hasRem := d.s.Contains("indexes/edge_removal_order")
	if hasIns != hasRem {
		d.err = tskError(ErrFileFormat, "only one edge index present")
		return
	}
	if hasIns {
		ins := get[int32](d, "indexes/edge_insertion_order")
		rem := get[int32](d, "indexes/edge_removal_order")
		if d.err != nil {
			return
		}
		if len(ins) != len(tc.Edges.Rows) || len(rem) != len(tc.Edges.Rows) {
			d.err = tskError(ErrFileFormat, "edge index length")
			return
		}
		tc.Indexes = EdgeIndex{Insertion: ins, Removal: rem}
	}
}

func (tc *TableCollection) decodeTables(d *decoder) {
	indFlags := get[uint32](d, "individuals/flags")
	n := numRows(d, "individuals", len(indFlags))
	loc := getRagged[float64](d, "individuals/location", n)
	parents := getRagged[int32](d, "individuals/parents", n)
	meta := getRagged[uint8](d, "individuals/metadata", n)
	tc.Individuals.MetadataSchema = getOptionalString(d, "individuals/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Individuals.Add(Individual{Flags: indFlags[i], Location: loc[i], Parents: parents[i], Metadata: meta[i]})
	}

	nodeFlags := get[uint32](d, "nodes/flags")
	nodeTime := get[float64](d, "nodes/time")
	nodePop := get[int32](d, "nodes/population")
	nodeInd := get[int32](d, "nodes/individual")
	n = numRows(d, "nodes", len(nodeFlags), len(nodeTime), len(nodePop), len(nodeInd))
	meta = getRagged[uint8](d, "nodes/metadata", n)
	tc.Nodes.MetadataSchema = getOptionalString(d, "nodes/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Nodes.Add(Node{Flags: nodeFlags[i], Time: nodeTime[i], Population: nodePop[i], Individual: nodeInd[i], Metadata: meta[i]})
	}

	left := get[float64](d, "edges/left")
	right := get[float64](d, "edges/right")
	parent := get[int32](d, "edges/parent")
	child := get[int32](d, "edges/child")
	n = numRows(d, "edges", len(left), len(right), len(parent), len(child))
	meta = getRagged[uint8](d, "edges/metadata", n)
	tc.Edges.MetadataSchema = getOptionalString(d, "edges/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Edges.Add(Edge{Left: left[i], Right: right[i], Parent: parent[i], Child: child[i], Metadata: meta[i]})
	}

	left = get[float64](d, "migrations/left")
	right = get[float64](d, "migrations/right")
	migNode := get[int32](d, "migrations/node")
	source := get[int32](d, "migrations/source")
	dest := get[int32](d, "migrations/dest")
	migTime := get[float64](d, "migrations/time")
	n = numRows(d, "migrations", len(left), len(right), len(migNode), len(source), len(dest), len(migTime))
	meta = getRagged[uint8](d, "migrations/metadata", n)
	tc.Migrations.MetadataSchema = getOptionalString(d, "migrations/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Migrations.Add(Migration{
			Left: left[i], Right: right[i], Node: migNode[i],
			Source: source[i], Dest: dest[i], Time: migTime[i], Metadata: meta[i],
		})
	}

	position := get[float64](d, "sites/position")
	n = numRows(d, "sites", len(position))
	ancestral := getRagged[uint8](d, "sites/ancestral_state", n)
	meta = getRagged[uint8](d, "sites/metadata", n)
	tc.Sites.MetadataSchema = getOptionalString(d, "sites/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Sites.Add(Site{Position: position[i], AncestralState: string(ancestral[i]), Metadata: meta[i]})
	}

	mutSite := get[int32](d, "mutations/site")
	mutNode := get[int32](d, "mutations/node")
	mutParent := get[int32](d, "mutations/parent")
	mutTime := get[float64](d, "mutations/time")
	n = numRows(d, "mutations", len(mutSite), len(mutNode), len(mutParent), len(mutTime))
	derived := getRagged[uint8](d, "mutations/derived_state", n)
	meta = getRagged[uint8](d, "mutations/metadata", n)
	tc.Mutations.MetadataSchema = getOptionalString(d, "mutations/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Mutations.Add(Mutation{
			Site: mutSite[i], Node: mutNode[i], Parent: mutParent[i], Time: mutTime[i],
			DerivedState: string(derived[i]), Metadata: meta[i],
		})
	}

	popOffsets := get[uint64](d, "populations/metadata_offset")
	if d.err != nil {
		return
	}
	if len(popOffsets) == 0 {
		d.err = tskError(ErrBadOffset, "populations/metadata")
		return
	}
	n = len(popOffsets) - 1
	meta = getRagged[uint8](d, "populations/metadata", n)
	tc.Populations.MetadataSchema = getOptionalString(d, "populations/metadata_schema")
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Populations.Add(Population{Metadata: meta[i]})
	}

	tsOffsets := get[uint64](d, "provenances/timestamp_offset")
	if d.err != nil {
		return
	}
	if len(tsOffsets) == 0 {
		d.err = tskError(ErrBadOffset, "provenances/timestamp")
		return
	}
	n = len(tsOffsets) - 1
	stamps := getRagged[uint8](d, "provenances/timestamp", n)
	records := getRagged[uint8](d, "provenances/record", n)
	if d.err != nil {
		return
	}
	for i := range n {
		tc.Provenances.Add(Provenance{Timestamp: string(stamps[i]), Record: string(records[i])})
	}
}

// String describes the collection briefly, for logs.
func (tc *TableCollection) String() string {
	return fmt.Sprintf("TableCollection(L=%g, nodes=%d, edges=%d, sites=%d, mutations=%d)",
		tc.SequenceLength, tc.Nodes.NumRows(), tc.Edges.NumRows(), tc.Sites.NumRows(), tc.Mutations.NumRows())
}
