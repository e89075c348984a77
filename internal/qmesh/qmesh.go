// Package qmesh implements the Quantized-Mesh Encoder Facade (spec.md
// §4.H): serializing a mesh.Mesh to Cesium's quantized-mesh 1.0 wire
// format with the octvertexnormals extension.
//
// File: qmesh.go
// Purpose: binary encoding, sequential field-at-a-time writes into a
// bytes.Buffer, in the style of the corpus's own binary tile formats
// (e.g. a detour NavMesh header's WriteTo).
// Dependencies: encoding/binary, stdlib only — no example repo carries
// a Cesium terrain encoder, and the wire layout is fixed by an
// external spec (not a design choice this package gets to make), so
// there is no third-party library whose abstraction would fit; see
// DESIGN.md.
package qmesh

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/mesh"
)

// ContentType is the media type served for a quantized-mesh body
// (spec.md §6).
const ContentType = "application/vnd.quantized-mesh;extensions=octvertexnormals"

const (
	quantizedRange   = 32767
	octExtensionID   = 1
	octRangeMax      = 255
	maxUint16Vertices = 65536
)

// Encode serializes m into a quantized-mesh 1.0 body with the
// octvertexnormals extension. bounds is the geographic rectangle the
// tile covers, used to quantize vertex positions and to compute the
// header's center/bounding-sphere/horizon-occlusion fields.
func Encode(m *mesh.Mesh, bounds cog.Bounds) ([]byte, error) {
	if m == nil || len(m.Vertices) == 0 {
		return nil, ctoderr.New(ctoderr.EncodingFailed, "qmesh: empty mesh")
	}

	buf := &bytes.Buffer{}

	minHeight, maxHeight := minMaxHeight(m.Vertices)
	if err := writeHeader(buf, m, bounds, minHeight, maxHeight); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: header", err)
	}
	if err := writeVertexData(buf, m.Vertices, bounds, minHeight, maxHeight); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: vertex data", err)
	}

	use32 := len(m.Vertices) > maxUint16Vertices
	if err := writeIndexData(buf, m.Triangles, use32); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: index data", err)
	}
	if err := writeEdge(buf, m.West, use32); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: west edge", err)
	}
	if err := writeEdge(buf, m.South, use32); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: south edge", err)
	}
	if err := writeEdge(buf, m.East, use32); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: east edge", err)
	}
	if err := writeEdge(buf, m.North, use32); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: north edge", err)
	}
	if err := writeOctNormalsExtension(buf, m.Vertices); err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "qmesh: octvertexnormals extension", err)
	}

	return buf.Bytes(), nil
}

func minMaxHeight(vertices []mesh.Vertex) (min, max float64) {
	min, max = vertices[0].Height, vertices[0].Height
	for _, v := range vertices[1:] {
		if v.Height < min {
			min = v.Height
		}
		if v.Height > max {
			max = v.Height
		}
	}
	return min, max
}

func writeLE(buf *bytes.Buffer, v any) error {
	return binary.Write(buf, binary.LittleEndian, v)
}

// writeHeader writes the 88-byte fixed quantized-mesh header: tile
// center, min/max height, bounding sphere, and horizon occlusion
// point, all in the Earth-centered frame shared with mesh.ToECEF.
func writeHeader(buf *bytes.Buffer, m *mesh.Mesh, b cog.Bounds, minHeight, maxHeight float64) error {
	centerLon, centerLat := (b.West+b.East)/2, (b.South+b.North)/2
	centerHeight := (minHeight + maxHeight) / 2
	center := mesh.ToECEF(centerLon, centerLat, centerHeight)

	radius := 0.0
	for _, v := range m.Vertices {
		p := mesh.ToECEF(v.Lon, v.Lat, v.Height)
		d := dist(center, p)
		if d > radius {
			radius = d
		}
	}

	horizonOcclusion := mesh.ToECEF(centerLon, centerLat, maxHeight)

	fields := []any{
		center[0], center[1], center[2],
		float32(minHeight), float32(maxHeight),
		center[0], center[1], center[2], radius,
		horizonOcclusion[0], horizonOcclusion[1], horizonOcclusion[2],
	}
	for _, f := range fields {
		if err := writeLE(buf, f); err != nil {
			return err
		}
	}
	return nil
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// writeVertexData writes vertexCount followed by the zigzag
// delta-encoded u, v, and height arrays, each quantized to
// [0, quantizedRange].
func writeVertexData(buf *bytes.Buffer, vertices []mesh.Vertex, b cog.Bounds, minHeight, maxHeight float64) error {
	if err := writeLE(buf, uint32(len(vertices))); err != nil {
		return err
	}

	us := make([]uint16, len(vertices))
	vs := make([]uint16, len(vertices))
	hs := make([]uint16, len(vertices))
	for i, vtx := range vertices {
		us[i] = quantize(fraction(vtx.Lon, b.West, b.East))
		vs[i] = quantize(fraction(vtx.Lat, b.South, b.North))
		hs[i] = quantize(fraction(vtx.Height, minHeight, maxHeight))
	}

	for _, arr := range [][]uint16{us, vs, hs} {
		if err := writeZigZagDeltas(buf, arr); err != nil {
			return err
		}
	}
	return nil
}

func fraction(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	f := (v - lo) / (hi - lo)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func quantize(fraction float64) uint16 {
	return uint16(math.Round(fraction * quantizedRange))
}

func zigZagEncode(delta int32) uint16 {
	return uint16((delta << 1) ^ (delta >> 31))
}

func writeZigZagDeltas(buf *bytes.Buffer, values []uint16) error {
	var prev int32
	for _, v := range values {
		delta := int32(v) - prev
		if err := writeLE(buf, zigZagEncode(delta)); err != nil {
			return err
		}
		prev = int32(v)
	}
	return nil
}

// writeIndexData writes triangleCount followed by the flat triangle
// index array, in uint16 or uint32 depending on vertex count.
func writeIndexData(buf *bytes.Buffer, triangles []int32, use32 bool) error {
	if err := writeLE(buf, uint32(len(triangles)/3)); err != nil {
		return err
	}
	return writeIndices(buf, triangles, use32)
}

func writeIndices(buf *bytes.Buffer, indices []int32, use32 bool) error {
	for _, idx := range indices {
		if use32 {
			if err := writeLE(buf, uint32(idx)); err != nil {
				return err
			}
		} else {
			if err := writeLE(buf, uint16(idx)); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeEdge writes one boundary edge's vertexCount followed by its
// vertex indices, in the axis-param order already established by the
// Mesh Producer (and, where stitched, by the Edge Stitcher).
func writeEdge(buf *bytes.Buffer, edge []mesh.EdgeVertex, use32 bool) error {
	if err := writeLE(buf, uint32(len(edge))); err != nil {
		return err
	}
	indices := make([]int32, len(edge))
	for i, ev := range edge {
		indices[i] = int32(ev.Index)
	}
	return writeIndices(buf, indices, use32)
}

// writeOctNormalsExtension writes the octvertexnormals extension
// block: a 1-byte extension id, a uint32 byte length, then 2 oct-
// encoded bytes per vertex in the same order as the main vertex data.
func writeOctNormalsExtension(buf *bytes.Buffer, vertices []mesh.Vertex) error {
	if err := writeLE(buf, uint8(octExtensionID)); err != nil {
		return err
	}
	if err := writeLE(buf, uint32(len(vertices)*2)); err != nil {
		return err
	}
	for _, v := range vertices {
		x, y := octEncode(v.Normal)
		if err := writeLE(buf, x); err != nil {
			return err
		}
		if err := writeLE(buf, y); err != nil {
			return err
		}
	}
	return nil
}

// octEncode maps a unit vector to a 2-byte octahedral encoding, per
// the encoding Cesium's AttributeCompression.octEncode uses for the
// octvertexnormals extension (range [0, 255] per component).
func octEncode(n [3]float64) (uint8, uint8) {
	l1 := math.Abs(n[0]) + math.Abs(n[1]) + math.Abs(n[2])
	if l1 == 0 {
		return octEncodeFloat(0), octEncodeFloat(0)
	}
	x, y := n[0]/l1, n[1]/l1
	if n[2] < 0 {
		ox, oy := x, y
		x = (1 - math.Abs(oy)) * signNotZero(ox)
		y = (1 - math.Abs(ox)) * signNotZero(oy)
	}
	return octEncodeFloat(x), octEncodeFloat(y)
}

func signNotZero(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func octEncodeFloat(v float64) uint8 {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round((v*0.5 + 0.5) * octRangeMax))
}
