// Package mesh implements the Mesh Producer (spec.md §4.F): turning an
// elevation grid into a triangulated Mesh per a grid/martini/delatin
// policy.
//
// File: mesh.go
// Purpose: the Mesh type and the boundary-edge index contract shared by
// every producer and by the edge stitcher.
package mesh

import "math"

// Vertex is one mesh vertex: geographic position plus a unit normal.
type Vertex struct {
	Lon, Lat, Height float64
	Normal           [3]float64
}

// EdgeVertex indexes a vertex on one of the four tile boundaries.
// AxisParam is the position along the edge in [0, 1], per spec.md §3.
type EdgeVertex struct {
	AxisParam float64
	Index     int
}

// Mesh is the Mesh type of spec.md §3: vertices, triangle indices (three
// per triangle, indexing Vertices), and the four boundary edge lists.
type Mesh struct {
	Vertices  []Vertex
	Triangles []int32 // len % 3 == 0

	West, South, East, North []EdgeVertex
}

// NumTriangles returns the number of triangles in the mesh.
func (m *Mesh) NumTriangles() int { return len(m.Triangles) / 3 }

// Normalize scales v to unit length; the zero vector maps to itself.
func Normalize(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

func add(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func faceNormal(a, b, c [3]float64) ([3]float64, bool) {
	n := cross(sub(b, a), sub(c, a))
	mag := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	const degenerateFloor = 1e-12
	if mag < degenerateFloor {
		return [3]float64{}, false
	}
	return [3]float64{n[0] / mag, n[1] / mag, n[2] / mag}, true
}

// toECEF projects a vertex to an Earth-centered Cartesian frame on a
// sphere of the WGS84 equatorial radius, suitable for computing face
// normals. It is not a geodetic ellipsoid projection — only relative
// geometry (used for normal directions) needs to be correct, and the
// scale factor cancels out in Normalize.
func toECEF(v Vertex) [3]float64 {
	const earthRadius = 6378137.0
	lonRad := v.Lon * math.Pi / 180
	latRad := v.Lat * math.Pi / 180
	r := earthRadius + v.Height
	return [3]float64{
		r * math.Cos(latRad) * math.Cos(lonRad),
		r * math.Cos(latRad) * math.Sin(lonRad),
		r * math.Sin(latRad),
	}
}

// ToECEF converts a geographic (lon, lat, height-above-ellipsoid) point
// to the same approximate Cartesian frame used internally for normal
// computation. Exported for the quantized-mesh encoder's header
// fields (center, bounding sphere, horizon occlusion point), which
// need the same frame the client will interpret oct-encoded normals
// against.
func ToECEF(lon, lat, height float64) [3]float64 {
	return toECEF(Vertex{Lon: lon, Lat: lat, Height: height})
}

// ComputeNormals fills in per-vertex normals by averaging incident face
// normals and renormalizing, skipping degenerate faces (spec.md §4.F).
func ComputeNormals(m *Mesh) {
	ecef := make([][3]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		ecef[i] = toECEF(v)
	}
	accum := make([][3]float64, len(m.Vertices))
	for t := 0; t+2 < len(m.Triangles); t += 3 {
		ia, ib, ic := m.Triangles[t], m.Triangles[t+1], m.Triangles[t+2]
		n, ok := faceNormal(ecef[ia], ecef[ib], ecef[ic])
		if !ok {
			continue
		}
		accum[ia] = add(accum[ia], n)
		accum[ib] = add(accum[ib], n)
		accum[ic] = add(accum[ic], n)
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = Normalize(accum[i])
	}
}

// GeodeticSurfaceNormal returns the normal of the WGS84 ellipsoid
// surface at a lon/lat point, used for edge-of-world neighbors and
// empty-tile corners (spec.md §4.E, §4.G).
func GeodeticSurfaceNormal(lon, lat float64) [3]float64 {
	lonRad := lon * math.Pi / 180
	latRad := lat * math.Pi / 180
	cosLat := math.Cos(latRad)
	return [3]float64{
		cosLat * math.Cos(lonRad),
		cosLat * math.Sin(lonRad),
		math.Sin(latRad),
	}
}
