// Package stitch implements the Edge Stitcher (spec.md §4.G):
// reconciling a self-tile's mesh against its up-to-8 neighbors so that
// shared-edge vertices agree on height and normal, independent of
// which meshing method produced either side.
//
// File: stitch.go
// Purpose: quantized-bucket edge agreement, corner averaging, and
// boundary-strip re-triangulation for inserted vertices.
package stitch

import (
	"math"
	"sort"

	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/mesh"
)

// DefaultQuantization matches the quantized-mesh on-wire resolution
// along an edge axis parameter (spec.md §4.G, §9 open question).
const DefaultQuantization = 32768

// Neighbors holds the (already meshed) neighbor tiles of a self-tile,
// nil where a neighbor is absent (outside the dataset footprint or
// soft-failed per spec.md §4.E).
type Neighbors struct {
	N, S, E, W     *mesh.Mesh
	NE, NW, SE, SW *mesh.Mesh
}

// Stitch mutates self in place so that its boundary vertices agree
// with every present neighbor, per spec.md §4.G. Neighbor meshes are
// read-only and are used as given; they are not themselves stitched
// against their own neighbors.
func Stitch(self *mesh.Mesh, nb Neighbors, quantization int) error {
	if self == nil {
		return ctoderr.New(ctoderr.Internal, "stitch: self mesh is nil")
	}
	if quantization <= 0 {
		quantization = DefaultQuantization
	}

	var err error
	if self.North, err = stitchEdge(self, self.North, nb.N, edgeSouth, quantization, edgeNorth); err != nil {
		return err
	}
	if self.South, err = stitchEdge(self, self.South, nb.S, edgeNorth, quantization, edgeSouth); err != nil {
		return err
	}
	if self.East, err = stitchEdge(self, self.East, nb.E, edgeWest, quantization, edgeEast); err != nil {
		return err
	}
	if self.West, err = stitchEdge(self, self.West, nb.W, edgeEast, quantization, edgeWest); err != nil {
		return err
	}

	stitchCorner(self, cornerNW, nb.W, cornerNE, nb.NW, cornerSE, nb.N, cornerSW)
	stitchCorner(self, cornerNE, nb.N, cornerSE, nb.NE, cornerSW, nb.E, cornerNW)
	stitchCorner(self, cornerSE, nb.E, cornerSW, nb.SE, cornerNW, nb.S, cornerNE)
	stitchCorner(self, cornerSW, nb.S, cornerNW, nb.SW, cornerNE, nb.W, cornerSE)

	return nil
}

// edgeSide names one of the four straight edges of a mesh, for reading
// the right field off a neighbor mesh and for boundary-winding lookups
// during re-triangulation.
type edgeSide int

const (
	edgeNorth edgeSide = iota
	edgeSouth
	edgeEast
	edgeWest
)

func edgeOf(m *mesh.Mesh, side edgeSide) []mesh.EdgeVertex {
	if m == nil {
		return nil
	}
	switch side {
	case edgeNorth:
		return m.North
	case edgeSouth:
		return m.South
	case edgeEast:
		return m.East
	case edgeWest:
		return m.West
	default:
		return nil
	}
}

func bucketOf(axisParam float64, quantization int) int {
	return int(math.Round(axisParam * float64(quantization)))
}

type positioned struct {
	mesh.EdgeVertex
	bucket int
}

// stitchEdge reconciles self's edgeSelf against neighbor's opposite
// edge (named by neighborSide), per spec.md §4.G steps 1-2 and 4. It
// returns the possibly-extended, bucket-sorted edge list to store back
// onto self; self.Vertices and self.Triangles are extended in place
// when the neighbor contributes a vertex self has no match for.
func stitchEdge(self *mesh.Mesh, selfEdge []mesh.EdgeVertex, neighbor *mesh.Mesh, neighborSide edgeSide, quantization int, selfSide edgeSide) ([]mesh.EdgeVertex, error) {
	neighborEdge := edgeOf(neighbor, neighborSide)
	if len(neighborEdge) == 0 {
		return selfEdge, nil
	}

	selfBuckets := make(map[int]int, len(selfEdge)) // bucket -> index into sorted
	sorted := make([]positioned, len(selfEdge))
	for i, ev := range selfEdge {
		b := bucketOf(ev.AxisParam, quantization)
		sorted[i] = positioned{ev, b}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].bucket < sorted[j].bucket })
	for i, p := range sorted {
		selfBuckets[p.bucket] = i
	}

	type insertion struct {
		bucket         int
		neighborHeight float64
		neighborNormal [3]float64
	}
	var insertions []insertion

	// Corner buckets (axis param 0 or 1) are left untouched here and
	// resolved exclusively by stitchCorner: a corner can have up to
	// three contributors (e.g. N, NE, E), and folding it in twice — once
	// per straight edge, again in the dedicated corner pass — would
	// weight contributors asymmetrically depending on pass order.
	for _, nv := range neighborEdge {
		b := bucketOf(nv.AxisParam, quantization)
		if b == 0 || b == quantization {
			continue
		}
		nVertex := neighbor.Vertices[nv.Index]
		if i, ok := selfBuckets[b]; ok {
			averageVertex(self, sorted[i].Index, nVertex)
			continue
		}
		insertions = append(insertions, insertion{bucket: b, neighborHeight: nVertex.Height, neighborNormal: nVertex.Normal})
	}

	for _, ins := range insertions {
		prev, next, ok := bracket(sorted, ins.bucket)
		if !ok {
			return selfEdge, ctoderr.New(ctoderr.Internal, "stitch: no bracketing self vertices for inserted edge vertex")
		}
		frac := fraction(prev.bucket, ins.bucket, next.bucket)
		newIdx := insertInterpolatedVertex(self, int32(prev.Index), int32(next.Index), frac, ins.neighborHeight, ins.neighborNormal)
		if err := splitBoundaryTriangle(self, int32(prev.Index), int32(next.Index), newIdx, selfSide); err != nil {
			return selfEdge, err
		}
		sorted = append(sorted, positioned{
			EdgeVertex: mesh.EdgeVertex{AxisParam: float64(ins.bucket) / float64(quantization), Index: int(newIdx)},
			bucket:     ins.bucket,
		})
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].bucket < sorted[j].bucket })
	}

	out := make([]mesh.EdgeVertex, len(sorted))
	for i, p := range sorted {
		out[i] = p.EdgeVertex
	}
	return out, nil
}

func bracket(sorted []positioned, b int) (prev, next positioned, ok bool) {
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].bucket <= b && b <= sorted[i+1].bucket {
			return sorted[i], sorted[i+1], true
		}
	}
	return prev, next, false
}

func fraction(prevBucket, b, nextBucket int) float64 {
	if nextBucket == prevBucket {
		return 0
	}
	return float64(b-prevBucket) / float64(nextBucket-prevBucket)
}

// averageVertex folds a coincident neighbor vertex into self's vertex
// at selfIdx: average height and normal, then renormalize.
func averageVertex(self *mesh.Mesh, selfIdx int, other mesh.Vertex) {
	v := &self.Vertices[selfIdx]
	v.Height = (v.Height + other.Height) / 2
	v.Normal = mesh.Normalize([3]float64{
		(v.Normal[0] + other.Normal[0]) / 2,
		(v.Normal[1] + other.Normal[1]) / 2,
		(v.Normal[2] + other.Normal[2]) / 2,
	})
}

// insertInterpolatedVertex adds a new self vertex at the geographic
// position found by linearly interpolating between the two bracketing
// self edge vertices, but takes height and normal directly from the
// neighbor vertex it represents (spec.md §4.G step 2).
func insertInterpolatedVertex(self *mesh.Mesh, prevIdx, nextIdx int32, frac float64, height float64, normal [3]float64) int32 {
	prev, next := self.Vertices[prevIdx], self.Vertices[nextIdx]
	v := mesh.Vertex{
		Lon:    prev.Lon + frac*(next.Lon-prev.Lon),
		Lat:    prev.Lat + frac*(next.Lat-prev.Lat),
		Height: height,
		Normal: normal,
	}
	self.Vertices = append(self.Vertices, v)
	return int32(len(self.Vertices) - 1)
}

// splitBoundaryTriangle finds the single triangle whose boundary edge
// runs between prevIdx and nextIdx (in either winding direction) and
// replaces it with two triangles sharing the new vertex, preserving
// the original winding and leaving every other triangle untouched
// (spec.md §4.G step 4: interior triangles are not touched).
func splitBoundaryTriangle(self *mesh.Mesh, prevIdx, nextIdx, newIdx int32, side edgeSide) error {
	tris := self.Triangles
	for t := 0; t+2 < len(tris); t += 3 {
		a, b, c := tris[t], tris[t+1], tris[t+2]
		p, q, apex, found := matchEdge(a, b, c, prevIdx, nextIdx)
		if !found {
			continue
		}
		self.Triangles[t], self.Triangles[t+1], self.Triangles[t+2] = p, newIdx, apex
		self.Triangles = append(self.Triangles, newIdx, q, apex)
		return nil
	}
	return ctoderr.New(ctoderr.Internal, "stitch: no boundary triangle found to split")
}

// matchEdge checks the three rotations of triangle (a,b,c) for a
// consecutive pair matching {u,v} in the winding direction found, and
// if so returns that pair (p,q) in winding order plus the remaining
// apex vertex.
func matchEdge(a, b, c, u, v int32) (p, q, apex int32, found bool) {
	switch {
	case a == u && b == v:
		return a, b, c, true
	case b == u && c == v:
		return b, c, a, true
	case c == u && a == v:
		return c, a, b, true
	case a == v && b == u:
		return a, b, c, true
	case b == v && c == u:
		return b, c, a, true
	case c == v && a == u:
		return c, a, b, true
	default:
		return 0, 0, 0, false
	}
}

// cornerKind names one of the four corners shared by up to three
// neighbors (spec.md §4.G step 3).
type cornerKind int

const (
	cornerNW cornerKind = iota
	cornerNE
	cornerSE
	cornerSW
)

// cornerVertex returns the vertex index and value at one corner of m,
// derived from its own edge lists (corners are shared between the two
// adjacent edge lists, so either would do).
func cornerVertex(m *mesh.Mesh, corner cornerKind) (int32, mesh.Vertex, bool) {
	if m == nil {
		return 0, mesh.Vertex{}, false
	}
	var idx int32
	switch corner {
	case cornerNW:
		if len(m.North) == 0 {
			return 0, mesh.Vertex{}, false
		}
		idx = int32(m.North[0].Index)
	case cornerNE:
		if len(m.North) == 0 {
			return 0, mesh.Vertex{}, false
		}
		idx = int32(m.North[len(m.North)-1].Index)
	case cornerSE:
		if len(m.South) == 0 {
			return 0, mesh.Vertex{}, false
		}
		idx = int32(m.South[len(m.South)-1].Index)
	case cornerSW:
		if len(m.South) == 0 {
			return 0, mesh.Vertex{}, false
		}
		idx = int32(m.South[0].Index)
	default:
		return 0, mesh.Vertex{}, false
	}
	return idx, m.Vertices[idx], true
}

// stitchCorner averages self's corner against the matching corner of
// each present contributor, then writes the result back onto self.
// Each contributor is passed as (neighbor mesh, which corner of that
// neighbor mesh coincides with self's corner).
func stitchCorner(self *mesh.Mesh, selfCorner cornerKind, a *mesh.Mesh, aCorner cornerKind, b *mesh.Mesh, bCorner cornerKind, c *mesh.Mesh, cCorner cornerKind) {
	selfIdx, selfVertex, ok := cornerVertex(self, selfCorner)
	if !ok {
		return
	}

	sumHeight := selfVertex.Height
	sumNormal := selfVertex.Normal
	count := 1

	for _, contributor := range []struct {
		m *mesh.Mesh
		c cornerKind
	}{{a, aCorner}, {b, bCorner}, {c, cCorner}} {
		_, v, ok := cornerVertex(contributor.m, contributor.c)
		if !ok {
			continue
		}
		sumHeight += v.Height
		sumNormal[0] += v.Normal[0]
		sumNormal[1] += v.Normal[1]
		sumNormal[2] += v.Normal[2]
		count++
	}

	if count == 1 {
		return
	}

	self.Vertices[selfIdx].Height = sumHeight / float64(count)
	self.Vertices[selfIdx].Normal = mesh.Normalize([3]float64{
		sumNormal[0] / float64(count),
		sumNormal[1] / float64(count),
		sumNormal[2] / float64(count),
	})
}
