package tsk

import (
	"math"
	"slices"
	"sort"
	"sync/atomic"
)

// outstanding counts initialised table collections and tree sequences that
// have not been freed yet.
var outstanding atomic.Int64

// Outstanding returns the number of live library objects. Tests use it as a
// leak check after failed constructions.
func Outstanding() int64 {
	return outstanding.Load()
}

// Individual is a row of the individual table.
type Individual struct {
	Location []float64
	Parents  []int32
	Metadata []byte
	Flags    uint32
}

// Node is a row of the node table.
type Node struct {
	Metadata   []byte
	Time       float64
	Flags      uint32
	Population int32
	Individual int32
}

// Edge is a row of the edge table.
type Edge struct {
	Metadata []byte
	Left     float64
	Right    float64
	Parent   int32
	Child    int32
}

// Migration is a row of the migration table.
type Migration struct {
	Metadata []byte
	Left     float64
	Right    float64
	Time     float64
	Node     int32
	Source   int32
	Dest     int32
}

// Site is a row of the site table.
type Site struct {
	AncestralState string
	Metadata       []byte
	Position       float64
}

// Mutation is a row of the mutation table.
type Mutation struct {
	DerivedState string
	Metadata     []byte
	Time         float64
	Site         int32
	Node         int32
	Parent       int32
}

// Population is a row of the population table.
type Population struct {
	Metadata []byte
}

// Provenance is a row of the provenance table.
type Provenance struct {
	Timestamp string
	Record    string
}

func (r Individual) meta() []byte { return r.Metadata }
func (r Node) meta() []byte       { return r.Metadata }
func (r Edge) meta() []byte       { return r.Metadata }
func (r Migration) meta() []byte  { return r.Metadata }
func (r Site) meta() []byte       { return r.Metadata }
func (r Mutation) meta() []byte   { return r.Metadata }
func (r Population) meta() []byte { return r.Metadata }
func (r Provenance) meta() []byte { return nil }

type row interface {
	meta() []byte
}

// Table is an append-only list of rows plus the table's metadata schema.
type Table[R row] struct {
	MetadataSchema string
	Rows           []R
}

// NumRows returns the number of rows.
func (t *Table[R]) NumRows() int {
	return len(t.Rows)
}

// Add appends r and returns its id.
func (t *Table[R]) Add(r R) int32 {
	t.Rows = append(t.Rows, r)
	return int32(len(t.Rows) - 1)
}

// MetadataLength returns the total number of metadata bytes over all rows.
func (t *Table[R]) MetadataLength() int {
	n := 0
	for i := range t.Rows {
		n += len(t.Rows[i].meta())
	}
	return n
}

func (t *Table[R]) copyTo(dst *Table[R], clone func(R) R) {
	dst.MetadataSchema = t.MetadataSchema
	dst.Rows = make([]R, len(t.Rows))
	for i, r := range t.Rows {
		dst.Rows[i] = clone(r)
	}
}

// ReferenceSequence is the optional reference genome attached to a
// collection.
type ReferenceSequence struct {
	Data           string
	URL            string
	MetadataSchema string
	Metadata       []byte
}

// IsEmpty reports whether no reference sequence field is set.
func (r *ReferenceSequence) IsEmpty() bool {
	return r.Data == "" && r.URL == "" && len(r.Metadata) == 0 && r.MetadataSchema == ""
}

// EdgeIndex holds the edge insertion and removal orders used to iterate
// trees left to right.
type EdgeIndex struct {
	Insertion []int32
	Removal   []int32
}

// MetadataLengths reports metadata byte counts for a collection and each of
// its tables.
type MetadataLengths struct {
	Collection  int
	Populations int
	Migrations  int
	Individuals int
	Nodes       int
	Edges       int
	Sites       int
	Mutations   int
}

// TableCollection is the full set of tables describing a tree sequence.
// The zero value is uninitialised; call Init (or Load, or use it as a Copy
// destination) before use and Free when done.
type TableCollection struct {
	Individuals Table[Individual]
	Nodes       Table[Node]
	Edges       Table[Edge]
	Migrations  Table[Migration]
	Sites       Table[Site]
	Mutations   Table[Mutation]
	Populations Table[Population]
	Provenances Table[Provenance]

	ReferenceSequence ReferenceSequence
	Indexes           EdgeIndex

	TimeUnits      string
	MetadataSchema string
	FileUUID       string
	Metadata       []byte
	SequenceLength float64

	initialized bool
}

// Init prepares an empty collection.
func (tc *TableCollection) Init(flags Flags) error {
	if err := bugAssert(!tc.initialized, "table collection already initialised"); err != nil {
		return err
	}
	*tc = TableCollection{initialized: true}
	outstanding.Add(1)
	return nil
}

// Initialized reports whether Init has run and Free has not.
func (tc *TableCollection) Initialized() bool {
	return tc.initialized
}

// Free releases everything held by the collection. It is safe on a zero,
// partially loaded or already freed collection.
func (tc *TableCollection) Free() {
	if tc == nil || !tc.initialized {
		return
	}
	*tc = TableCollection{}
	outstanding.Add(-1)
}

// Copy deep-copies tc into dest. Unless NoInit is set dest is initialised
// first; the file UUID is only carried over with CopyFileUUID.
func (tc *TableCollection) Copy(dest *TableCollection, flags Flags) error {
	if dest == tc {
		return tskError(ErrBadParamValue, "copy destination aliases source")
	}
	if flags&NoInit == 0 {
		if err := dest.Init(0); err != nil {
			return err
		}
	} else if err := bugAssert(dest.initialized, "copy destination not initialised"); err != nil {
		return err
	}

	dest.SequenceLength = tc.SequenceLength
	dest.TimeUnits = tc.TimeUnits
	dest.Metadata = slices.Clone(tc.Metadata)
	dest.MetadataSchema = tc.MetadataSchema
	dest.ReferenceSequence = ReferenceSequence{
		Data:           tc.ReferenceSequence.Data,
		URL:            tc.ReferenceSequence.URL,
		MetadataSchema: tc.ReferenceSequence.MetadataSchema,
		Metadata:       slices.Clone(tc.ReferenceSequence.Metadata),
	}
	dest.FileUUID = ""
	if flags&CopyFileUUID != 0 {
		dest.FileUUID = tc.FileUUID
	}

	tc.Individuals.copyTo(&dest.Individuals, func(r Individual) Individual {
		r.Location = slices.Clone(r.Location)
		r.Parents = slices.Clone(r.Parents)
		r.Metadata = slices.Clone(r.Metadata)
		return r
	})
	tc.Nodes.copyTo(&dest.Nodes, func(r Node) Node { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Edges.copyTo(&dest.Edges, func(r Edge) Edge { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Migrations.copyTo(&dest.Migrations, func(r Migration) Migration { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Sites.copyTo(&dest.Sites, func(r Site) Site { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Mutations.copyTo(&dest.Mutations, func(r Mutation) Mutation { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Populations.copyTo(&dest.Populations, func(r Population) Population { r.Metadata = slices.Clone(r.Metadata); return r })
	tc.Provenances.copyTo(&dest.Provenances, func(r Provenance) Provenance { return r })

	dest.Indexes = EdgeIndex{}
	if tc.HasIndex() {
		dest.Indexes = EdgeIndex{
			Insertion: slices.Clone(tc.Indexes.Insertion),
			Removal:   slices.Clone(tc.Indexes.Removal),
		}
	}
	return nil
}

// HasReferenceSequence reports whether any reference sequence field is set.
func (tc *TableCollection) HasReferenceSequence() bool {
	return !tc.ReferenceSequence.IsEmpty()
}

// HasIndex reports whether edge indexes exist and cover every edge.
func (tc *TableCollection) HasIndex() bool {
	return tc.Indexes.Insertion != nil && tc.Indexes.Removal != nil &&
		len(tc.Indexes.Insertion) == len(tc.Edges.Rows) &&
		len(tc.Indexes.Removal) == len(tc.Edges.Rows)
}

// DropIndex discards the edge indexes.
func (tc *TableCollection) DropIndex() {
	tc.Indexes = EdgeIndex{}
}

// BuildIndex computes the edge insertion order (left, time[parent], parent,
// child) and removal order (right, -time[parent], -parent, -child).
func (tc *TableCollection) BuildIndex() error {
	nodes := tc.Nodes.Rows
	edges := tc.Edges.Rows
	for j, e := range edges {
		if !inRange(e.Parent, len(nodes)) || !inRange(e.Child, len(nodes)) {
			return tskError(ErrNodeOutOfBounds, "edge %d", j)
		}
	}
	ins := make([]int32, len(edges))
	rem := make([]int32, len(edges))
	for j := range edges {
		ins[j] = int32(j)
		rem[j] = int32(j)
	}
	sort.SliceStable(ins, func(a, b int) bool {
		ea, eb := edges[ins[a]], edges[ins[b]]
		if ea.Left != eb.Left {
			return ea.Left < eb.Left
		}
		ta, tb := nodes[ea.Parent].Time, nodes[eb.Parent].Time
		if ta != tb {
			return ta < tb
		}
		if ea.Parent != eb.Parent {
			return ea.Parent < eb.Parent
		}
		return ea.Child < eb.Child
	})
	sort.SliceStable(rem, func(a, b int) bool {
		ea, eb := edges[rem[a]], edges[rem[b]]
		if ea.Right != eb.Right {
			return ea.Right < eb.Right
		}
		ta, tb := nodes[ea.Parent].Time, nodes[eb.Parent].Time
		if ta != tb {
			return ta > tb
		}
		if ea.Parent != eb.Parent {
			return ea.Parent > eb.Parent
		}
		return ea.Child > eb.Child
	})
	tc.Indexes = EdgeIndex{Insertion: ins, Removal: rem}
	return nil
}

// SortEdges orders edges by (time[parent], parent, child, left), the order
// a tree sequence requires, and drops any existing index.
func (tc *TableCollection) SortEdges() error {
	nodes := tc.Nodes.Rows
	for j, e := range tc.Edges.Rows {
		if !inRange(e.Parent, len(nodes)) || !inRange(e.Child, len(nodes)) {
			return tskError(ErrNodeOutOfBounds, "edge %d", j)
		}
	}
	sort.SliceStable(tc.Edges.Rows, func(a, b int) bool {
		return edgeLess(nodes, tc.Edges.Rows[a], tc.Edges.Rows[b])
	})
	tc.DropIndex()
	return nil
}

func edgeLess(nodes []Node, a, b Edge) bool {
	ta, tb := nodes[a.Parent].Time, nodes[b.Parent].Time
	if ta != tb {
		return ta < tb
	}
	if a.Parent != b.Parent {
		return a.Parent < b.Parent
	}
	if a.Child != b.Child {
		return a.Child < b.Child
	}
	return a.Left < b.Left
}

// MetadataLengths returns the metadata byte counts of the collection and its
// tables.
func (tc *TableCollection) MetadataLengths() MetadataLengths {
	return MetadataLengths{
		Collection:  len(tc.Metadata),
		Populations: tc.Populations.MetadataLength(),
		Migrations:  tc.Migrations.MetadataLength(),
		Individuals: tc.Individuals.MetadataLength(),
		Nodes:       tc.Nodes.MetadataLength(),
		Edges:       tc.Edges.MetadataLength(),
		Sites:       tc.Sites.MetadataLength(),
		Mutations:   tc.Mutations.MetadataLength(),
	}
}

func inRange(id int32, n int) bool {
	return id >= 0 && int(id) < n
}

func inRangeOrNull(id int32, n int) bool {
	return id == Null || inRange(id, n)
}

func isInteger(x float64) bool {
	return x == math.Trunc(x)
}
