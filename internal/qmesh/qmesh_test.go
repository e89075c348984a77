package qmesh

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/mesh"
	"github.com/stretchr/testify/require"
)

func squareMesh() *mesh.Mesh {
	m := &mesh.Mesh{
		Vertices: []mesh.Vertex{
			{Lon: 4.0, Lat: 52.0, Height: 0, Normal: [3]float64{0, 0, 1}},
			{Lon: 4.1, Lat: 52.0, Height: 10, Normal: [3]float64{0, 0, 1}},
			{Lon: 4.0, Lat: 52.1, Height: 20, Normal: [3]float64{0, 0, 1}},
			{Lon: 4.1, Lat: 52.1, Height: 30, Normal: [3]float64{0, 0, 1}},
		},
		Triangles: []int32{0, 2, 1, 1, 2, 3},
		West:      []mesh.EdgeVertex{{AxisParam: 0, Index: 0}, {AxisParam: 1, Index: 2}},
		East:      []mesh.EdgeVertex{{AxisParam: 0, Index: 1}, {AxisParam: 1, Index: 3}},
		North:     []mesh.EdgeVertex{{AxisParam: 0, Index: 0}, {AxisParam: 1, Index: 1}},
		South:     []mesh.EdgeVertex{{AxisParam: 0, Index: 2}, {AxisParam: 1, Index: 3}},
	}
	return m
}

func TestEncode_ProducesNonEmptyBody(t *testing.T) {
	b := cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}
	body, err := Encode(squareMesh(), b)
	require.NoError(t, err)
	require.Greater(t, len(body), 88) // at least the fixed header
}

func TestEncode_HeaderLayout(t *testing.T) {
	b := cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1}
	body, err := Encode(squareMesh(), b)
	require.NoError(t, err)

	// header: 3 doubles center, float min, float max, 3 doubles sphere
	// center, double radius, 3 doubles horizon occlusion = 88 bytes.
	require.GreaterOrEqual(t, len(body), 88)

	minHeight := float32FromBytes(body[24:28])
	maxHeight := float32FromBytes(body[28:32])
	require.InDelta(t, 0.0, minHeight, 1e-6)
	require.InDelta(t, 30.0, maxHeight, 1e-6)

	vertexCount := binary.LittleEndian.Uint32(body[88:92])
	require.EqualValues(t, 4, vertexCount)
}

func float32FromBytes(b []byte) float64 {
	bits := binary.LittleEndian.Uint32(b)
	return float64(math.Float32frombits(bits))
}

func TestEncode_RejectsEmptyMesh(t *testing.T) {
	_, err := Encode(&mesh.Mesh{}, cog.Bounds{})
	require.Error(t, err)
}

func TestOctEncode_AxisAlignedNormalsEncodeWithinRange(t *testing.T) {
	cases := [][3]float64{
		{0, 0, 1}, {0, 0, -1}, {1, 0, 0}, {0, 1, 0},
	}
	for _, n := range cases {
		x, y := octEncode(n)
		require.True(t, x <= octRangeMax)
		require.True(t, y <= octRangeMax)
	}
}

func TestZigZagEncode_SmallDeltasRoundTrip(t *testing.T) {
	for _, d := range []int32{0, 1, -1, 100, -100, 32767, -32767} {
		encoded := zigZagEncode(d)
		decoded := zigZagDecode(encoded)
		require.Equal(t, d, decoded)
	}
}

func zigZagDecode(v uint16) int32 {
	u := int32(v)
	return (u >> 1) ^ -(u & 1)
}
