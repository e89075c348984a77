package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptions_Fingerprint_StableForEqualOptions(t *testing.T) {
	a := Options{COG: "s3://bucket/a.tif", ResamplingMethod: "bilinear", MeshingMethod: "grid", DefaultGridSize: 20}
	b := Options{COG: "s3://bucket/a.tif", ResamplingMethod: "bilinear", MeshingMethod: "grid", DefaultGridSize: 20}
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestOptions_Fingerprint_DiffersOnNoData(t *testing.T) {
	zero := 0.0
	minusNine := -9999.0
	a := Options{COG: "a.tif", NoData: &zero}
	b := Options{COG: "a.tif", NoData: &minusNine}
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestOptions_Fingerprint_DiffersOnCOG(t *testing.T) {
	a := Options{COG: "a.tif"}
	b := Options{COG: "b.tif"}
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestParseDocument_ParsesDatasetsArray(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"datasets": [
			{"name": "norway", "options": {"cog": "norway.tif", "minZoom": 0, "maxZoom": 18}}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, doc.Datasets, 1)
	require.Equal(t, "norway", doc.Datasets[0].Name)
	require.Equal(t, "norway.tif", doc.Datasets[0].Options.COG)
	require.Equal(t, 18, doc.Datasets[0].Options.MaxZoom)
}

func TestParseDocument_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`not json`))
	require.Error(t, err)
}
