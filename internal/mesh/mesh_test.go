package mesh

import (
	"math"
	"testing"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/stretchr/testify/require"
)

// planeGrid builds a side x side grid whose heights lie on a tilted
// plane, so a perfect mesh producer should need very few vertices to
// stay under any nonzero error budget.
func planeGrid(side int) *cog.Grid {
	g := &cog.Grid{
		Width:  side,
		Height: side,
		Heights: make([]float32, side*side),
		Bounds: cog.Bounds{West: 4.0, South: 52.0, East: 4.1, North: 52.1},
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			g.Heights[y*side+x] = float32(x)*0.5 + float32(y)*0.25
		}
	}
	return g
}

func requireValidMesh(t *testing.T, m *Mesh) {
	t.Helper()
	require.NotEmpty(t, m.Vertices)
	require.NotEmpty(t, m.Triangles)
	require.Zero(t, len(m.Triangles)%3)

	for _, idx := range m.Triangles {
		require.GreaterOrEqual(t, int(idx), 0)
		require.Less(t, int(idx), len(m.Vertices))
	}
	for _, v := range m.Vertices {
		n := math.Sqrt(v.Normal[0]*v.Normal[0] + v.Normal[1]*v.Normal[1] + v.Normal[2]*v.Normal[2])
		require.InDelta(t, 1.0, n, 1e-6, "vertex normal must be unit length")
	}
	require.NotEmpty(t, m.North)
	require.NotEmpty(t, m.South)
	require.NotEmpty(t, m.East)
	require.NotEmpty(t, m.West)
}

func TestGridProducer_ProducesValidMesh(t *testing.T) {
	grid := planeGrid(17)
	p, err := For(MethodGrid)
	require.NoError(t, err)

	m, err := p.Mesh(grid, Params{GridSize: 5})
	require.NoError(t, err)
	requireValidMesh(t, m)
	require.Len(t, m.Vertices, 25)
}

func TestGridProducer_RejectsTooSmallGrid(t *testing.T) {
	grid := planeGrid(9)
	p, err := For(MethodGrid)
	require.NoError(t, err)

	_, err = p.Mesh(grid, Params{GridSize: 1})
	require.Error(t, err)
}

func TestMartiniProducer_ProducesValidMesh(t *testing.T) {
	grid := planeGrid(17) // 2^4 + 1
	p, err := For(MethodMartini)
	require.NoError(t, err)

	m, err := p.Mesh(grid, Params{MaxErrorMeters: 0.01})
	require.NoError(t, err)
	requireValidMesh(t, m)
}

func TestMartiniProducer_RejectsNonPowerOfTwoGrid(t *testing.T) {
	grid := planeGrid(16)
	p, err := For(MethodMartini)
	require.NoError(t, err)

	_, err = p.Mesh(grid, Params{MaxErrorMeters: 1})
	require.Error(t, err)
}

func TestMartiniProducer_LargerErrorBudgetYieldsFewerVertices(t *testing.T) {
	grid := planeGrid(17)
	p, err := For(MethodMartini)
	require.NoError(t, err)

	tight, err := p.Mesh(grid, Params{MaxErrorMeters: 0.001})
	require.NoError(t, err)
	loose, err := p.Mesh(grid, Params{MaxErrorMeters: 10})
	require.NoError(t, err)

	require.LessOrEqual(t, len(loose.Vertices), len(tight.Vertices))
}

func TestDelatinProducer_ProducesValidMesh(t *testing.T) {
	grid := planeGrid(23) // not a power-of-two side, martini would reject it
	p, err := For(MethodDelatin)
	require.NoError(t, err)

	m, err := p.Mesh(grid, Params{MaxErrorMeters: 0.01})
	require.NoError(t, err)
	requireValidMesh(t, m)
}

func TestDelatinProducer_HandlesNonSquareGrid(t *testing.T) {
	g := &cog.Grid{
		Width:  12,
		Height: 30,
		Heights: make([]float32, 12*30),
		Bounds: cog.Bounds{West: 4.0, South: 52.0, East: 4.05, North: 52.2},
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			g.Heights[y*g.Width+x] = float32(x + y)
		}
	}

	p, err := For(MethodDelatin)
	require.NoError(t, err)

	m, err := p.Mesh(g, Params{MaxErrorMeters: 0.01})
	require.NoError(t, err)
	requireValidMesh(t, m)
}

func TestFor_UnknownMethod(t *testing.T) {
	_, err := For(Method("nonsense"))
	require.Error(t, err)
}
