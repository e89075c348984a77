package stitch

import (
	"math"
	"testing"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/mesh"
	"github.com/stretchr/testify/require"
)

// gridMesh builds an n x n grid mesh over bounds, with heights and
// normals already computed, mirroring what internal/mesh's grid
// producer would hand to the factory.
func gridMesh(t *testing.T, n int, bounds cog.Bounds, heightAt func(u, v float64) float64) *mesh.Mesh {
	t.Helper()
	grid := &cog.Grid{Width: n, Height: n, Heights: make([]float32, n*n), Bounds: bounds}
	for gy := 0; gy < n; gy++ {
		v := float64(gy) / float64(n-1)
		for gx := 0; gx < n; gx++ {
			u := float64(gx) / float64(n-1)
			grid.Heights[gy*n+gx] = float32(heightAt(u, v))
		}
	}
	p, err := mesh.For(mesh.MethodGrid)
	require.NoError(t, err)
	m, err := p.Mesh(grid, mesh.Params{GridSize: n})
	require.NoError(t, err)
	return m
}

func cloneMesh(m *mesh.Mesh) *mesh.Mesh {
	cp := *m
	cp.Vertices = append([]mesh.Vertex(nil), m.Vertices...)
	cp.Triangles = append([]int32(nil), m.Triangles...)
	cp.North = append([]mesh.EdgeVertex(nil), m.North...)
	cp.South = append([]mesh.EdgeVertex(nil), m.South...)
	cp.East = append([]mesh.EdgeVertex(nil), m.East...)
	cp.West = append([]mesh.EdgeVertex(nil), m.West...)
	return &cp
}

// TestStitch_EdgeAgreement builds two vertically-adjacent tiles with
// different height fields, each stitching against an unmutated copy
// of the other (as the factory would: neighbor meshes come fresh from
// the elevation-grid cache, never from a previously-stitched result),
// and checks that their shared edge converges to identical heights
// and normals (spec.md §8 invariant 2).
func TestStitch_EdgeAgreement(t *testing.T) {
	north := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.1, East: 4.1, North: 52.2}, func(u, v float64) float64 {
		return 10 + 3*u
	})
	south := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}, func(u, v float64) float64 {
		return 20 + 5*u
	})

	rawNorth := cloneMesh(north)
	rawSouth := cloneMesh(south)

	err := Stitch(north, Neighbors{S: rawSouth}, DefaultQuantization)
	require.NoError(t, err)
	err = Stitch(south, Neighbors{N: rawNorth}, DefaultQuantization)
	require.NoError(t, err)

	require.Equal(t, len(north.South), len(south.North))
	for i := range north.South {
		nv := north.Vertices[north.South[i].Index]
		sv := south.Vertices[south.North[i].Index]
		require.InDelta(t, north.South[i].AxisParam, south.North[i].AxisParam, 1e-9)
		require.InDelta(t, nv.Height, sv.Height, 1e-9)
		require.InDelta(t, nv.Normal[0], sv.Normal[0], 1e-9)
		require.InDelta(t, nv.Normal[1], sv.Normal[1], 1e-9)
		require.InDelta(t, nv.Normal[2], sv.Normal[2], 1e-9)
	}
}

func TestStitch_NoNeighborsIsNoOp(t *testing.T) {
	m := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}, func(u, v float64) float64 {
		return 1 + u + v
	})
	before := cloneMesh(m)

	err := Stitch(m, Neighbors{}, DefaultQuantization)
	require.NoError(t, err)

	require.Equal(t, before.Vertices, m.Vertices)
	require.Equal(t, before.Triangles, m.Triangles)
}

func TestStitch_PreservesUnitNormals(t *testing.T) {
	north := gridMesh(t, 9, cog.Bounds{West: 4.0, South: 52.1, East: 4.1, North: 52.2}, func(u, v float64) float64 {
		return 10 + 3*u + 2*v
	})
	south := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}, func(u, v float64) float64 {
		return 20 + 5*u
	})
	rawSouth := cloneMesh(south)

	err := Stitch(north, Neighbors{S: rawSouth}, DefaultQuantization)
	require.NoError(t, err)

	for _, v := range north.Vertices {
		n := math.Sqrt(v.Normal[0]*v.Normal[0] + v.Normal[1]*v.Normal[1] + v.Normal[2]*v.Normal[2])
		require.InDelta(t, 1.0, n, 1e-6)
	}
}

func TestStitch_CornerAveragesAllPresentContributors(t *testing.T) {
	self := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}, func(u, v float64) float64 {
		return 0
	})
	north := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.1, East: 4.1, North: 52.2}, func(u, v float64) float64 {
		return 10
	})
	east := gridMesh(t, 5, cog.Bounds{West: 4.1, South: 52.0, East: 4.2, North: 52.1}, func(u, v float64) float64 {
		return 20
	})
	northEast := gridMesh(t, 5, cog.Bounds{West: 4.1, South: 52.1, East: 4.2, North: 52.2}, func(u, v float64) float64 {
		return 30
	})

	err := Stitch(self, Neighbors{N: north, E: east, NE: northEast}, DefaultQuantization)
	require.NoError(t, err)

	neIdx := self.North[len(self.North)-1].Index
	// Corner buckets are skipped by the straight-edge passes and
	// resolved once here: self=0, N=10, E=20, NE=30, mean 15.
	require.InDelta(t, 15.0, self.Vertices[neIdx].Height, 1e-9)
}

func TestStitch_InsertsVertexForUnmatchedNeighborPoint(t *testing.T) {
	self := gridMesh(t, 3, cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}, func(u, v float64) float64 {
		return 1
	})
	finerNorth := gridMesh(t, 5, cog.Bounds{West: 4.0, South: 52.1, East: 4.1, North: 52.2}, func(u, v float64) float64 {
		return 7
	})
	rawFinerNorth := cloneMesh(finerNorth)

	before := len(self.Vertices)
	err := Stitch(self, Neighbors{N: rawFinerNorth}, DefaultQuantization)
	require.NoError(t, err)

	require.Greater(t, len(self.Vertices), before)
	require.Equal(t, len(self.North), len(finerNorth.South))

	for _, v := range self.Vertices {
		n := math.Sqrt(v.Normal[0]*v.Normal[0] + v.Normal[1]*v.Normal[1] + v.Normal[2]*v.Normal[2])
		require.InDelta(t, 1.0, n, 1e-6)
	}
}
