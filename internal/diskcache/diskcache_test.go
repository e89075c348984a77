package diskcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() PathKey {
	return PathKey{
		DatasetFingerprint: "abc123",
		MeshingMethod:      "grid",
		Resampling:         "bilinear",
		Z:                  17, X: 134972, Y: 21614,
	}
}

func TestCache_PutThenGet_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	key := testKey()
	body := []byte("quantized-mesh-bytes")

	_, err = c.Put(key, body)
	require.NoError(t, err)

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got.EncodedBytes)
}

func TestCache_Get_MissReturnsFalseNotError(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	_, ok, err := c.Get(testKey())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_Path_IsInjectiveOverKeyComponents(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	a := testKey()
	b := testKey()
	b.Resampling = "nearest"

	require.NotEqual(t, c.Path(a), c.Path(b))
}

func TestCache_Put_LeavesNoTempfileBehind(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	key := testKey()
	_, err = c.Put(key, []byte("data"))
	require.NoError(t, err)

	var tempfiles int
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() && len(d.Name()) > len(tempPrefix) && d.Name()[:len(tempPrefix)] == tempPrefix {
			tempfiles++
		}
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, tempfiles)
}

func TestSweep_RemovesStrayTempfilesButNotCommittedArtifacts(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	key := testKey()
	_, err = c.Put(key, []byte("committed"))
	require.NoError(t, err)

	strayDir := filepath.Dir(c.Path(key))
	stray, err := os.CreateTemp(strayDir, tempPrefix+"*")
	require.NoError(t, err)
	stray.Close()

	err = Sweep(dir, nil)
	require.NoError(t, err)

	_, err = os.Stat(stray.Name())
	require.True(t, os.IsNotExist(err))

	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("committed"), got.EncodedBytes)
}
