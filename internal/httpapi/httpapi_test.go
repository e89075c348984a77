package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/mesh"
	"github.com/sogelink-research/ctod/internal/tms"
)

func TestParseDynamicOptions_RequiresCOG(t *testing.T) {
	_, _, err := parseDynamicOptions(url.Values{})
	require.Error(t, err)
	require.Equal(t, ctoderr.BadRequest, ctoderr.KindOf(err))
}

func TestParseDynamicOptions_DefaultsAndOverrides(t *testing.T) {
	q := url.Values{}
	q.Set("cog", "s3://bucket/terrain.tif")
	q.Set("minZoom", "3")
	q.Set("maxZoom", "15")
	q.Set("meshingMethod", "martini")
	q.Set("defaultMaxError", "2.5")
	q.Set("zoomGridSizes", `{"5": 33, "6": 65}`)
	q.Set("skipCache", "true")

	opts, skipCache, err := parseDynamicOptions(q)
	require.NoError(t, err)
	require.True(t, skipCache)
	require.Equal(t, "s3://bucket/terrain.tif", opts.COG)
	require.Equal(t, 3, opts.MinZoom)
	require.Equal(t, 15, opts.MaxZoom)
	require.Equal(t, mesh.MethodMartini, opts.MeshingMethod)
	require.InDelta(t, 2.5, opts.DefaultMaxError, 1e-9)
	require.Equal(t, 33, opts.ZoomGridSizes[5])
	require.Equal(t, 65, opts.ZoomGridSizes[6])
}

func TestParseDynamicOptions_BadNoDataIsBadRequest(t *testing.T) {
	q := url.Values{}
	q.Set("cog", "x.tif")
	q.Set("noData", "not-a-number")
	_, _, err := parseDynamicOptions(q)
	require.Error(t, err)
	require.Equal(t, ctoderr.BadRequest, ctoderr.KindOf(err))
}

func TestParseTileCoords_ReadsChiURLParams(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("z", "10")
	rctx.URLParams.Add("x", "512")
	rctx.URLParams.Add("y", "340")

	req := httptest.NewRequest(http.MethodGet, "/tiles/foo/10/512/340.terrain", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	z, x, y, err := parseTileCoords(req)
	require.NoError(t, err)
	require.Equal(t, 10, z)
	require.Equal(t, 512, x)
	require.Equal(t, 340, y)
}

func TestParseTileCoords_NonIntegerIsBadRequest(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("z", "ten")
	rctx.URLParams.Add("x", "1")
	rctx.URLParams.Add("y", "1")

	req := httptest.NewRequest(http.MethodGet, "/tiles/foo/ten/1/1.terrain", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	_, _, _, err := parseTileCoords(req)
	require.Error(t, err)
	require.Equal(t, ctoderr.BadRequest, ctoderr.KindOf(err))
}

func TestServer_ResolveTMS_DefaultsWhenQueryAbsent(t *testing.T) {
	s := &Server{defaultTMS: tms.WGS84Quad}
	req := httptest.NewRequest(http.MethodGet, "/tiles/foo/layer.json", nil)
	tmsImpl, err := s.resolveTMS(req)
	require.NoError(t, err)
	require.Equal(t, tms.WGS84Quad, tmsImpl.ID())
}

func TestServer_ResolveTMS_QueryOverridesDefault(t *testing.T) {
	s := &Server{defaultTMS: tms.WebMercatorQuad}
	req := httptest.NewRequest(http.MethodGet, "/tiles/foo/layer.json?tms=WGS84", nil)
	tmsImpl, err := s.resolveTMS(req)
	require.NoError(t, err)
	require.Equal(t, tms.WGS84Quad, tmsImpl.ID())
}

func TestServer_ResolveTMS_UnknownIDIsError(t *testing.T) {
	s := &Server{defaultTMS: tms.WebMercatorQuad}
	req := httptest.NewRequest(http.MethodGet, "/tiles/foo/layer.json?tms=bogus", nil)
	_, err := s.resolveTMS(req)
	require.Error(t, err)
	require.Equal(t, ctoderr.NoSuchTMS, ctoderr.KindOf(err))
}

func TestHandleStatus_RespondsOK(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.handleStatus(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRespondError_InternalKindHidesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, ctoderr.Wrap(ctoderr.Internal, "leaking a stack trace path", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Internal","message":"internal error"}`, w.Body.String())
}

func TestRespondError_NonInternalKindPassesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, ctoderr.New(ctoderr.TileOutOfRange, "tile 99/1/1 out of range"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"TileOutOfRange","message":"TileOutOfRange: tile 99/1/1 out of range"}`, w.Body.String())
}

func TestAvailableRanges_OneEntryPerZoom(t *testing.T) {
	webMercator, err := tms.Get(tms.WebMercatorQuad)
	require.NoError(t, err)

	ranges := availableRanges(webMercator, -10, -10, 10, 10, 2, 5)
	require.Len(t, ranges, 4)
	for _, zoomRanges := range ranges {
		require.Len(t, zoomRanges, 1)
		require.LessOrEqual(t, zoomRanges[0].StartX, zoomRanges[0].EndX)
		require.LessOrEqual(t, zoomRanges[0].StartY, zoomRanges[0].EndY)
	}
}

func TestAvailableRanges_EmptyWhenMaxBelowMin(t *testing.T) {
	webMercator, err := tms.Get(tms.WebMercatorQuad)
	require.NoError(t, err)
	require.Nil(t, availableRanges(webMercator, -10, -10, 10, 10, 5, 2))
}

func TestCorsOriginsOrDefault(t *testing.T) {
	require.Equal(t, []string{"*"}, corsOriginsOrDefault(nil))
	require.Equal(t, []string{"https://example.com"}, corsOriginsOrDefault([]string{"https://example.com"}))
}
