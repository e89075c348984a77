// File: grid.go
// Purpose: regular n x n structured triangulation (spec.md §4.F "grid").
package mesh

import (
	"fmt"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
)

type gridProducer struct{}

func (gridProducer) Mesh(grid *cog.Grid, params Params) (*Mesh, error) {
	n := params.GridSize
	if n <= 0 {
		n = DefaultGridSize
	}
	if n < 2 {
		return nil, ctoderr.New(ctoderr.MeshingFailed, fmt.Sprintf("grid size %d too small", n))
	}

	m := &Mesh{
		Vertices:  make([]Vertex, n*n),
		Triangles: make([]int32, 0, (n-1)*(n-1)*6),
	}

	west, south := grid.Bounds.West, grid.Bounds.South
	lonSpan := grid.Bounds.East - grid.Bounds.West
	latSpan := grid.Bounds.North - grid.Bounds.South

	index := func(gx, gy int) int32 { return int32(gy*n + gx) }

	for gy := 0; gy < n; gy++ {
		v := float64(gy) / float64(n-1)
		for gx := 0; gx < n; gx++ {
			u := float64(gx) / float64(n-1)
			height := sampleBilinear(grid, u, v)
			m.Vertices[gy*n+gx] = Vertex{
				Lon:    west + u*lonSpan,
				Lat:    south + (1-v)*latSpan, // grid row 0 is the north edge
				Height: float64(height),
			}
		}
	}

	for gy := 0; gy < n-1; gy++ {
		for gx := 0; gx < n-1; gx++ {
			tl, tr := index(gx, gy), index(gx+1, gy)
			bl, br := index(gx, gy+1), index(gx+1, gy+1)
			m.Triangles = append(m.Triangles, tl, bl, tr, tr, bl, br)
		}
	}

	ComputeNormals(m)
	buildEdgeLists(m, n)
	return m, nil
}

// sampleBilinear samples grid at normalized (u, v) in [0,1]x[0,1], u
// across width, v across height (row 0 = north).
func sampleBilinear(grid *cog.Grid, u, v float64) float32 {
	fx := u * float64(grid.Width-1)
	fy := v * float64(grid.Height-1)
	x0 := int(fx)
	y0 := int(fy)
	x1, y1 := x0+1, y0+1
	if x1 >= grid.Width {
		x1 = grid.Width - 1
	}
	if y1 >= grid.Height {
		y1 = grid.Height - 1
	}
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	h00 := float64(grid.At(x0, y0))
	h10 := float64(grid.At(x1, y0))
	h01 := float64(grid.At(x0, y1))
	h11 := float64(grid.At(x1, y1))

	top := h00*(1-dx) + h10*dx
	bottom := h01*(1-dx) + h11*dx
	return float32(top*(1-dy) + bottom*dy)
}

// buildEdgeLists populates the four boundary-edge index lists for an
// n x n structured grid mesh, with axis parameter along each edge.
func buildEdgeLists(m *Mesh, n int) {
	idx := func(gx, gy int) int { return gy*n + gx }
	param := func(i int) float64 { return float64(i) / float64(n-1) }

	for gx := 0; gx < n; gx++ {
		m.North = append(m.North, EdgeVertex{AxisParam: param(gx), Index: idx(gx, 0)})
		m.South = append(m.South, EdgeVertex{AxisParam: param(gx), Index: idx(gx, n-1)})
	}
	for gy := 0; gy < n; gy++ {
		m.West = append(m.West, EdgeVertex{AxisParam: param(gy), Index: idx(0, gy)})
		m.East = append(m.East, EdgeVertex{AxisParam: param(gy), Index: idx(n-1, gy)})
	}
}
