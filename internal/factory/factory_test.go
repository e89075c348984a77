package factory

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/sogelink-research/ctod/internal/mesh"
)

func TestTargetGridSize_MartiniRoundsUpToPowerOfTwoPlusOne(t *testing.T) {
	cases := map[int]int{
		2:  2,  // 2^0+1
		3:  3,  // 2^1+1
		5:  5,  // 2^2+1
		6:  9,  // next is 2^3+1
		17: 17, // exact
		18: 33,
	}
	for in, want := range cases {
		require.Equal(t, want, targetGridSize(mesh.MethodMartini, in), "input %d", in)
	}
}

func TestTargetGridSize_GridAndDelatinPassThrough(t *testing.T) {
	require.Equal(t, 23, targetGridSize(mesh.MethodGrid, 23))
	require.Equal(t, 23, targetGridSize(mesh.MethodDelatin, 23))
}

func TestDirection_DeltaSigns(t *testing.T) {
	cases := map[direction][2]int{
		dirN:  {0, -1},
		dirS:  {0, 1},
		dirE:  {1, 0},
		dirW:  {-1, 0},
		dirNE: {1, -1},
		dirNW: {-1, -1},
		dirSE: {1, 1},
		dirSW: {-1, 1},
		dirSelf: {0, 0},
	}
	for d, want := range cases {
		dx, dy := d.delta()
		require.Equal(t, want[0], dx, "direction %d dx", d)
		require.Equal(t, want[1], dy, "direction %d dy", d)
	}
}

func TestWindowKey_StringDiffersOnEachComponent(t *testing.T) {
	base := windowKey{DatasetFingerprint: "abc", Z: 1, X: 2, Y: 3, Resampling: "bilinear", MeshingMethod: "grid", GridParam: "n=20", NoData: "0"}

	variants := []windowKey{base, base, base, base, base, base, base, base, base}
	variants[1].DatasetFingerprint = "xyz"
	variants[2].Z = 9
	variants[3].X = 9
	variants[4].Y = 9
	variants[5].Resampling = "nearest"
	variants[6].MeshingMethod = "martini"
	variants[7].GridParam = "e=4"
	variants[8].NoData = "-9999"

	seen := map[string]bool{}
	for i, v := range variants {
		s := v.String()
		require.False(t, seen[s], "variant %d collided with an earlier key", i)
		seen[s] = true
	}
}

func TestEmptyMesh_DeterministicForSameBounds(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{4.0, 52.0}, Max: orb.Point{4.1, 52.1}}
	a := emptyMesh(bounds)
	b := emptyMesh(bounds)
	require.Equal(t, a, b)
}

func TestEmptyMesh_HasUnitNormalsAndTwoTriangles(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{4.0, 52.0}, Max: orb.Point{4.1, 52.1}}
	m := emptyMesh(bounds)

	require.Len(t, m.Vertices, 4)
	require.Equal(t, 2, m.NumTriangles())
	for _, v := range m.Vertices {
		mag := math.Sqrt(v.Normal[0]*v.Normal[0] + v.Normal[1]*v.Normal[1] + v.Normal[2]*v.Normal[2])
		require.InDelta(t, 1.0, mag, 1e-9)
		require.Zero(t, v.Height)
	}
}

func TestState_StringCoversAllStates(t *testing.T) {
	for s := statePlanning; s <= stateDone; s++ {
		require.NotEqual(t, "FAILED", s.String())
	}
}
