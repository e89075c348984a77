// File: martini.go
// Purpose: right-triangulated irregular network (RTIN) triangulation,
// the Go-native shape of the "Martini" algorithm's contract (spec.md
// §4.F): a regular (2^k + 1)-per-side grid in, an error-bounded
// triangle mesh out. The full reference algorithm's micro-optimized
// implementation is out of this spec's scope — only the contract
// (input shape, max_error semantics, output Mesh invariants) is.
package mesh

import (
	"fmt"
	"math"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
)

type martiniProducer struct{}

func (martiniProducer) Mesh(grid *cog.Grid, params Params) (*Mesh, error) {
	side := grid.Width
	if grid.Height != side {
		return nil, ctoderr.New(ctoderr.MeshingFailed, "martini requires a square input grid")
	}
	k := math.Log2(float64(side - 1))
	if k != math.Trunc(k) {
		return nil, ctoderr.New(ctoderr.MeshingFailed, fmt.Sprintf("martini requires a (2^k + 1) grid, got %d", side))
	}

	maxError := params.MaxErrorMeters
	if maxError <= 0 {
		maxError = DefaultMaxErrorMeters
	}

	rt := newRTIN(grid)
	rt.computeErrors()
	included := rt.selectVertices(maxError)

	return rt.buildMesh(included, grid)
}

// rtin holds the bottom-up error pyramid for one (2^k+1)-sided grid.
type rtin struct {
	grid *cog.Grid
	side int
	// triangleErr[i] is the approximation error of collapsing triangle i
	// (and everything beneath it) to its two corners, computed bottom-up
	// over the binary-triangle tree that tiles the grid.
	triangleErr []float64
}

func newRTIN(grid *cog.Grid) *rtin {
	return &rtin{grid: grid, side: grid.Width}
}

// computeErrors walks the binary-triangle tree bottom-up (deepest index
// first), giving each triangle i the max of its own midpoint error and
// its two children's already-computed errors (children of i are
// 2i+2 and 2i+3, mirroring the id=i+2 bit-doubling triangleCoords
// uses). Propagating the max upward is what lets selectVertices decide
// to stop refining a subtree from its root error alone.
func (r *rtin) computeErrors() {
	tileSize := r.side - 1
	numSmallestTriangles := tileSize * tileSize
	numTriangles := numSmallestTriangles*2 - 2
	r.triangleErr = make([]float64, numTriangles)

	for i := numTriangles - 1; i >= 0; i-- {
		ax, ay, bx, by, _, _ := r.triangleCoords(i)
		mx, my := (ax+bx)/2, (ay+by)/2

		interpolated := (r.height(ax, ay) + r.height(bx, by)) / 2
		actual := r.height(mx, my)
		e := math.Abs(actual - interpolated)

		if left := 2*i + 2; left < numTriangles {
			e = math.Max(e, r.triangleErr[left])
		}
		if right := 2*i + 3; right < numTriangles {
			e = math.Max(e, r.triangleErr[right])
		}
		r.triangleErr[i] = e
	}
}

// triangleCoords returns the three corners of triangle index i in the
// binary-triangle tree over a (side x side) grid. With id = i + 2, the
// bit just below id's leading 1 picks the root (set: bottom-left, clear:
// top-right) and each lower bit, most significant first, picks the left
// (set) or right (clear) child, so the children of i are 2i+2 and 2i+3.
func (r *rtin) triangleCoords(i int) (ax, ay, bx, by, cx, cy int) {
	side := r.side
	tileSize := side - 1
	id := i + 2
	top := 0 // position of id's leading 1 bit
	for id>>(top+1) != 0 {
		top++
	}
	var ax2, ay2, bx2, by2, cx2, cy2 int
	if id>>(top-1)&1 != 0 {
		bx2, by2, cx2, cy2 = tileSize, tileSize, 0, tileSize // bottom-left triangle
	} else {
		bx2, by2, cx2, cy2 = tileSize, tileSize, tileSize, 0 // top-right triangle
	}
	for bit := top - 2; bit >= 0; bit-- {
		mx, my := (ax2+bx2)/2, (ay2+by2)/2
		if id>>bit&1 != 0 { // left child
			bx2, by2 = ax2, ay2
			ax2, ay2 = cx2, cy2
		} else { // right child
			ax2, ay2 = bx2, by2
			bx2, by2 = cx2, cy2
		}
		cx2, cy2 = mx, my
	}
	return ax2, ay2, bx2, by2, cx2, cy2
}

func (r *rtin) height(x, y int) float64 {
	return float64(r.grid.At(x, y))
}

// selectVertices returns the set of grid-pixel coordinates that must be
// kept as mesh vertices so no omitted point's error exceeds maxError.
// It always keeps the four corners and recursively refines, stopping a
// subtree as soon as its root triangle's propagated error is within
// budget.
func (r *rtin) selectVertices(maxError float64) map[[2]int]bool {
	tileSize := r.side - 1
	included := map[[2]int]bool{
		{0, 0}: true, {tileSize, 0}: true, {0, tileSize}: true, {tileSize, tileSize}: true,
	}
	numTriangles := len(r.triangleErr)

	var refine func(i int)
	refine = func(i int) {
		if i < 0 || i >= numTriangles || r.triangleErr[i] <= maxError {
			return
		}
		ax, ay, bx, by, _, _ := r.triangleCoords(i)
		mx, my := (ax+bx)/2, (ay+by)/2
		if mx == ax && my == ay {
			return
		}
		included[[2]int{mx, my}] = true
		refine(2*i + 2)
		refine(2*i + 3)
	}

	refine(0)
	refine(1)
	return included
}

// buildMesh triangulates the included vertex set with a simple
// Delaunay-free fan: since included points always form a refined
// binary-triangle subdivision of the two root triangles, a direct
// recursive split mirrors selectVertices exactly, guaranteeing a
// conforming (crack-free) triangulation.
func (r *rtin) buildMesh(included map[[2]int]bool, grid *cog.Grid) (*Mesh, error) {
	m := &Mesh{}
	vertexIndex := map[[2]int]int32{}

	addVertex := func(x, y int) int32 {
		key := [2]int{x, y}
		if idx, ok := vertexIndex[key]; ok {
			return idx
		}
		u := float64(x) / float64(r.side-1)
		v := float64(y) / float64(r.side-1)
		lon := grid.Bounds.West + u*(grid.Bounds.East-grid.Bounds.West)
		lat := grid.Bounds.South + (1-v)*(grid.Bounds.North-grid.Bounds.South)
		idx := int32(len(m.Vertices))
		m.Vertices = append(m.Vertices, Vertex{Lon: lon, Lat: lat, Height: r.height(x, y)})
		vertexIndex[key] = idx
		return idx
	}

	tileSize := r.side - 1

	var split func(ax, ay, bx, by, cx, cy int)
	split = func(ax, ay, bx, by, cx, cy int) {
		mx, my := (ax+bx)/2, (ay+by)/2
		if included[[2]int{mx, my}] && !(mx == ax && my == ay) {
			split(cx, cy, ax, ay, mx, my)
			split(bx, by, cx, cy, mx, my)
			return
		}
		ia, ib, ic := addVertex(ax, ay), addVertex(bx, by), addVertex(cx, cy)
		m.Triangles = append(m.Triangles, ia, ib, ic)
	}

	split(0, 0, tileSize, tileSize, tileSize, 0)
	split(tileSize, tileSize, 0, 0, 0, tileSize)

	if len(m.Vertices) < 3 || len(m.Triangles) == 0 {
		return nil, ctoderr.New(ctoderr.MeshingFailed, "martini produced a degenerate mesh")
	}

	ComputeNormals(m)
	buildIrregularEdgeLists(m, vertexIndex, tileSize, tileSize)
	return m, nil
}

// buildIrregularEdgeLists derives the four boundary edge lists from the
// vertex-index map built during triangulation, for meshes whose
// boundary vertex count is not fixed ahead of time (martini, delatin).
// w and h are the pixel-index extents along x and y respectively;
// martini's grid is always square (w == h), delatin's need not be.
func buildIrregularEdgeLists(m *Mesh, vertexIndex map[[2]int]int32, w, h int) {
	paramX := func(p int) float64 { return float64(p) / float64(w) }
	paramY := func(p int) float64 { return float64(p) / float64(h) }

	for key, idx := range vertexIndex {
		x, y := key[0], key[1]
		switch {
		case y == 0:
			m.North = append(m.North, EdgeVertex{AxisParam: paramX(x), Index: int(idx)})
		case y == h:
			m.South = append(m.South, EdgeVertex{AxisParam: paramX(x), Index: int(idx)})
		}
		switch {
		case x == 0:
			m.West = append(m.West, EdgeVertex{AxisParam: paramY(y), Index: int(idx)})
		case x == w:
			m.East = append(m.East, EdgeVertex{AxisParam: paramY(y), Index: int(idx)})
		}
	}
	sortByAxisParam(m.North)
	sortByAxisParam(m.South)
	sortByAxisParam(m.West)
	sortByAxisParam(m.East)
}

func sortByAxisParam(edges []EdgeVertex) {
	for i := 1; i < len(edges); i++ {
		j := i
		for j > 0 && edges[j-1].AxisParam > edges[j].AxisParam {
			edges[j-1], edges[j] = edges[j], edges[j-1]
			j--
		}
	}
}
