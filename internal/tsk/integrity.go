package tsk

import (
	"math"
	"strconv"
)

// CheckIntegrity validates references between tables and the coordinate
// and time constraints of every row. With CheckTrees it also requires the
// ordering a tree sequence depends on and an edge index.
func (tc *TableCollection) CheckIntegrity(flags Flags) error {
	L := tc.SequenceLength
	if !(L > 0) || math.IsInf(L, 0) {
		return tskError(ErrBadSequenceLength, "")
	}
	nInd := tc.Individuals.NumRows()
	nNodes := tc.Nodes.NumRows()
	nPop := tc.Populations.NumRows()
	nSites := tc.Sites.NumRows()
	nMut := tc.Mutations.NumRows()

	for j, ind := range tc.Individuals.Rows {
		for _, p := range ind.Parents {
			if !inRangeOrNull(p, nInd) {
				return tskError(ErrIndividualOutBound, "individual %d parent %d", j, p)
			}
		}
	}

	nodes := tc.Nodes.Rows
	for j, n := range nodes {
		if math.IsNaN(n.Time) || math.IsInf(n.Time, 0) {
			return tskError(ErrBadNodeTime, "node %d", j)
		}
		if !inRangeOrNull(n.Population, nPop) {
			return tskError(ErrPopulationOutBound, "node %d", j)
		}
		if !inRangeOrNull(n.Individual, nInd) {
			return tskError(ErrIndividualOutBound, "node %d", j)
		}
	}

	for j, e := range tc.Edges.Rows {
		if !inRange(e.Parent, nNodes) || !inRange(e.Child, nNodes) {
			return tskError(ErrNodeOutOfBounds, "edge %d", j)
		}
		if err := checkInterval(e.Left, e.Right, L); err != nil {
			err.Detail = "edge " + strconv.Itoa(j)
			return err
		}
		if nodes[e.Parent].Time <= nodes[e.Child].Time {
			return tskError(ErrBadNodeTimeOrdering, "edge %d", j)
		}
	}

	for j, s := range tc.Sites.Rows {
		if s.Position < 0 || s.Position >= L {
			return tskError(ErrBadSitePosition, "site %d", j)
		}
	}

	muts := tc.Mutations.Rows
	for j, m := range muts {
		if !inRange(m.Site, nSites) {
			return tskError(ErrSiteOutOfBounds, "mutation %d", j)
		}
		if !inRange(m.Node, nNodes) {
			return tskError(ErrNodeOutOfBounds, "mutation %d", j)
		}
		if !inRangeOrNull(m.Parent, nMut) {
			return tskError(ErrMutationOutOfBound, "mutation %d", j)
		}
		if m.Parent == Null {
			continue
		}
		switch {
		case m.Parent == int32(j):
			return tskError(ErrMutationParentEqual, "mutation %d", j)
		case m.Parent > int32(j):
			return tskError(ErrMutationParentAfter, "mutation %d", j)
		case muts[m.Parent].Site != m.Site:
			return tskError(ErrMutationParentDiffSite, "mutation %d", j)
		}
	}

	for j, m := range tc.Migrations.Rows {
		if !inRange(m.Node, nNodes) {
			return tskError(ErrNodeOutOfBounds, "migration %d", j)
		}
		if !inRange(m.Source, nPop) || !inRange(m.Dest, nPop) {
			return tskError(ErrPopulationOutBound, "migration %d", j)
		}
		if err := checkInterval(m.Left, m.Right, L); err != nil {
			err.Detail = "migration " + strconv.Itoa(j)
			return err
		}
	}

	if flags&CheckTrees == 0 {
		return nil
	}
	return tc.checkOrdering()
}

func (tc *TableCollection) checkOrdering() error {
	nodes := tc.Nodes.Rows
	edges := tc.Edges.Rows
	for j := 1; j < len(edges); j++ {
		if edgeLess(nodes, edges[j], edges[j-1]) {
			return tskError(ErrEdgesNotSortedParent, "edge %d", j)
		}
	}
	sites := tc.Sites.Rows
	for j := 1; j < len(sites); j++ {
		if sites[j].Position <= sites[j-1].Position {
			return tskError(ErrUnsortedSites, "site %d", j)
		}
	}
	muts := tc.Mutations.Rows
	for j := 1; j < len(muts); j++ {
		if muts[j].Site < muts[j-1].Site {
			return tskError(ErrUnsortedMutations, "mutation %d", j)
		}
	}
	if !tc.HasIndex() {
		return tskError(ErrTablesNotIndexed, "")
	}
	return nil
}

func checkInterval(left, right, L float64) *Error {
	switch {
	case left < 0:
		return tskError(ErrLeftLessZero, "")
	case right > L:
		return tskError(ErrRightGreaterSeqLength, "")
	case !(left < right):
		return tskError(ErrBadEdgeInterval, "")
	}
	return nil
}

// ComputeMutationParents rewrites the mutation parent column: the parent of
// a mutation is the closest earlier mutation at the same site on the path
// from its node to the root of the tree covering the site.
func (tc *TableCollection) ComputeMutationParents() error {
	nNodes := tc.Nodes.NumRows()
	for j, e := range tc.Edges.Rows {
		if !inRange(e.Parent, nNodes) || !inRange(e.Child, nNodes) {
			return tskError(ErrNodeOutOfBounds, "edge %d", j)
		}
	}
	sites := tc.Sites.Rows
	for j := 1; j < len(sites); j++ {
		if sites[j].Position <= sites[j-1].Position {
			return tskError(ErrUnsortedSites, "site %d", j)
		}
	}
	muts := tc.Mutations.Rows
	for j, m := range muts {
		if !inRange(m.Site, len(sites)) {
			return tskError(ErrSiteOutOfBounds, "mutation %d", j)
		}
		if !inRange(m.Node, nNodes) {
			return tskError(ErrNodeOutOfBounds, "mutation %d", j)
		}
		if j > 0 && m.Site < muts[j-1].Site {
			return tskError(ErrUnsortedMutations, "mutation %d", j)
		}
	}

	parent := make([]int32, nNodes)
	for start := 0; start < len(muts); {
		site := muts[start].Site
		end := start
		for end < len(muts) && muts[end].Site == site {
			end++
		}

		x := sites[site].Position
		for i := range parent {
			parent[i] = Null
		}
		for _, e := range tc.Edges.Rows {
			if e.Left <= x && x < e.Right {
				parent[e.Child] = e.Parent
			}
		}

		below := make(map[int32]int32)
		for j := start; j < end; j++ {
			p := Null
			for u, steps := muts[j].Node, 0; u != Null && steps <= nNodes; u, steps = parent[u], steps+1 {
				if k, ok := below[u]; ok {
					p = k
					break
				}
			}
			muts[j].Parent = p
			below[muts[j].Node] = int32(j)
		}
		start = end
	}
	return nil
}
