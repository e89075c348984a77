// File: delatin.go
// Purpose: greedy error-driven triangulation for grids that are not
// necessarily square or (2^k + 1)-sided (spec.md §4.F "delatin"): where
// martini demands a power-of-two RTIN grid, delatin accepts an
// arbitrary W x H window and refines a quadtree of candidate splits
// until every remaining cell's interpolation error is within budget.
// As with martini, only the contract (arbitrary grid in, error-bounded
// Mesh out) is in scope; this is not a port of any particular reference
// implementation.
package mesh

import (
	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
)

type delatinProducer struct{}

func (delatinProducer) Mesh(grid *cog.Grid, params Params) (*Mesh, error) {
	if grid.Width < 2 || grid.Height < 2 {
		return nil, ctoderr.New(ctoderr.MeshingFailed, "delatin requires at least a 2x2 grid")
	}

	maxError := params.MaxErrorMeters
	if maxError <= 0 {
		maxError = DefaultMaxErrorMeters
	}

	dt := &delatinTree{grid: grid}
	included := dt.selectVertices(maxError)

	return dt.buildMesh(included)
}

// delatinTree recursively bisects a W x H grid of pixel coordinates,
// splitting a cell along its longer axis whenever its center's
// interpolation error exceeds budget.
type delatinTree struct {
	grid *cog.Grid
}

func (d *delatinTree) height(x, y int) float64 {
	return float64(d.grid.At(x, y))
}

// selectVertices returns the set of grid-pixel coordinates that must be
// kept as mesh vertices, always including the four corners.
func (d *delatinTree) selectVertices(maxError float64) map[[2]int]bool {
	w, h := d.grid.Width-1, d.grid.Height-1
	included := map[[2]int]bool{
		{0, 0}: true, {w, 0}: true, {0, h}: true, {w, h}: true,
	}

	var refine func(x0, y0, x1, y1 int)
	refine = func(x0, y0, x1, y1 int) {
		if x1-x0 <= 1 && y1-y0 <= 1 {
			return
		}

		cx, cy := (x0+x1)/2, (y0+y1)/2
		interpolated := (d.height(x0, y0) + d.height(x1, y1) + d.height(x0, y1) + d.height(x1, y0)) / 4
		actual := d.height(cx, cy)
		e := abs(actual - interpolated)
		if e <= maxError {
			return
		}

		if x1-x0 >= y1-y0 && x1-x0 > 1 {
			// split along x
			included[[2]int{cx, y0}] = true
			included[[2]int{cx, y1}] = true
			refine(x0, y0, cx, y1)
			refine(cx, y0, x1, y1)
		} else if y1-y0 > 1 {
			// split along y
			included[[2]int{x0, cy}] = true
			included[[2]int{x1, cy}] = true
			refine(x0, y0, x1, cy)
			refine(x0, cy, x1, y1)
		}
	}

	refine(0, 0, w, h)
	return included
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// buildMesh triangulates the included vertex set by recursively
// bisecting the same quadtree used for selection: every rectangular
// cell whose midpoints are not further subdivided is closed off with
// two triangles, so the triangulation conforms exactly to the
// refinement that produced included.
func (d *delatinTree) buildMesh(included map[[2]int]bool) (*Mesh, error) {
	m := &Mesh{}
	vertexIndex := map[[2]int]int32{}
	w, h := d.grid.Width-1, d.grid.Height-1

	addVertex := func(x, y int) int32 {
		key := [2]int{x, y}
		if idx, ok := vertexIndex[key]; ok {
			return idx
		}
		u := float64(x) / float64(w)
		v := float64(y) / float64(h)
		lon := d.grid.Bounds.West + u*(d.grid.Bounds.East-d.grid.Bounds.West)
		lat := d.grid.Bounds.South + (1-v)*(d.grid.Bounds.North-d.grid.Bounds.South)
		idx := int32(len(m.Vertices))
		m.Vertices = append(m.Vertices, Vertex{Lon: lon, Lat: lat, Height: d.height(x, y)})
		vertexIndex[key] = idx
		return idx
	}

	quad := func(x0, y0, x1, y1 int) {
		tl, tr := addVertex(x0, y0), addVertex(x1, y0)
		bl, br := addVertex(x0, y1), addVertex(x1, y1)
		m.Triangles = append(m.Triangles, tl, bl, tr, tr, bl, br)
	}

	var walk func(x0, y0, x1, y1 int)
	walk = func(x0, y0, x1, y1 int) {
		if x1-x0 <= 1 && y1-y0 <= 1 {
			quad(x0, y0, x1, y1)
			return
		}

		cx, cy := (x0+x1)/2, (y0+y1)/2
		splitX := x1-x0 >= y1-y0 && x1-x0 > 1 && (included[[2]int{cx, y0}] || included[[2]int{cx, y1}])
		splitY := !splitX && y1-y0 > 1 && (included[[2]int{x0, cy}] || included[[2]int{x1, cy}])

		switch {
		case splitX:
			walk(x0, y0, cx, y1)
			walk(cx, y0, x1, y1)
		case splitY:
			walk(x0, y0, x1, cy)
			walk(x0, cy, x1, y1)
		default:
			quad(x0, y0, x1, y1)
		}
	}

	walk(0, 0, w, h)

	if len(m.Vertices) < 3 || len(m.Triangles) == 0 {
		return nil, ctoderr.New(ctoderr.MeshingFailed, "delatin produced a degenerate mesh")
	}

	ComputeNormals(m)
	buildIrregularEdgeLists(m, vertexIndex, w, h)
	return m, nil
}
