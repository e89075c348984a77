package factory

import (
	"github.com/paulmach/orb"

	"github.com/sogelink-research/ctod/internal/mesh"
)

// emptyMesh synthesizes the canonical empty terrain tile of spec.md
// §4.E step 2: four corner vertices at height 0, two triangles, and
// geodetic surface normals (there is no elevation data backing this
// tile, so there are no incident face normals to average). Vertex
// ordering (NW, NE, SW, SE) and winding match gridProducer's n=2 case
// so the result is indistinguishable from a real flat 2x2 tile.
func emptyMesh(bounds orb.Bound) *mesh.Mesh {
	w, s, e, n := bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1]

	nw := mesh.Vertex{Lon: w, Lat: n, Normal: mesh.GeodeticSurfaceNormal(w, n)}
	ne := mesh.Vertex{Lon: e, Lat: n, Normal: mesh.GeodeticSurfaceNormal(e, n)}
	sw := mesh.Vertex{Lon: w, Lat: s, Normal: mesh.GeodeticSurfaceNormal(w, s)}
	se := mesh.Vertex{Lon: e, Lat: s, Normal: mesh.GeodeticSurfaceNormal(e, s)}

	return &mesh.Mesh{
		Vertices:  []mesh.Vertex{nw, ne, sw, se},
		Triangles: []int32{0, 2, 1, 1, 2, 3},
		North:     []mesh.EdgeVertex{{AxisParam: 0, Index: 0}, {AxisParam: 1, Index: 1}},
		South:     []mesh.EdgeVertex{{AxisParam: 0, Index: 2}, {AxisParam: 1, Index: 3}},
		West:      []mesh.EdgeVertex{{AxisParam: 0, Index: 0}, {AxisParam: 1, Index: 2}},
		East:      []mesh.EdgeVertex{{AxisParam: 0, Index: 1}, {AxisParam: 1, Index: 3}},
	}
}
