package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/tms"
)

// handleStatus is a liveness probe: it never touches the factory or
// any dataset, so it stays cheap under load (spec.md §6).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDynamicLayerJSON(w http.ResponseWriter, r *http.Request) {
	opts, _, err := parseDynamicOptions(r.URL.Query())
	if err != nil {
		RespondError(w, err)
		return
	}
	ds, err := s.resolveDynamicDataset(opts)
	if err != nil {
		RespondError(w, err)
		return
	}
	tmsImpl, err := s.resolveTMS(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, buildLayerJSON(ds, tmsImpl, "{z}/{x}/{y}.terrain"))
}

func (s *Server) handleDynamicTerrain(w http.ResponseWriter, r *http.Request) {
	opts, skipCache, err := parseDynamicOptions(r.URL.Query())
	if err != nil {
		RespondError(w, err)
		return
	}
	ds, err := s.resolveDynamicDataset(opts)
	if err != nil {
		RespondError(w, err)
		return
	}
	s.serveTerrain(w, r, ds, skipCache)
}

func (s *Server) handleNamedLayerJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")
	ds, err := s.registry.Resolve(name)
	if err != nil {
		RespondError(w, err)
		return
	}
	tmsImpl, err := s.resolveTMS(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, buildLayerJSON(ds, tmsImpl, "{z}/{x}/{y}.terrain"))
}

func (s *Server) handleNamedTerrain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")
	ds, err := s.registry.Resolve(name)
	if err != nil {
		RespondError(w, err)
		return
	}
	skipCache := r.URL.Query().Get("skipCache") == "true" || r.URL.Query().Get("skipCache") == "1"
	s.serveTerrain(w, r, ds, skipCache)
}

// serveTerrain parses the z/x/y path params shared by both terrain
// routes, resolves the tile matrix set, and runs the Terrain Factory.
func (s *Server) serveTerrain(w http.ResponseWriter, r *http.Request, ds *dataset.Dataset, skipCache bool) {
	z, x, y, err := parseTileCoords(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	tmsImpl, err := s.resolveTMS(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	key := tms.Key{TMS: tmsImpl.ID(), Z: z, X: x, Y: y}
	artifact, err := s.factory.GetTile(r.Context(), tmsImpl, ds, key, skipCache)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("ETag", artifact.ETag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.EncodedBytes)
}

func parseTileCoords(r *http.Request) (z, x, y int, err error) {
	z, err = strconv.Atoi(chi.URLParam(r, "z"))
	if err != nil {
		return 0, 0, 0, ctoderr.Wrap(ctoderr.BadRequest, "parse z", err)
	}
	x, err = strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		return 0, 0, 0, ctoderr.Wrap(ctoderr.BadRequest, "parse x", err)
	}
	y, err = strconv.Atoi(chi.URLParam(r, "y"))
	if err != nil {
		return 0, 0, 0, ctoderr.Wrap(ctoderr.BadRequest, "parse y", err)
	}
	return z, x, y, nil
}

func (s *Server) resolveTMS(r *http.Request) (tms.TileMatrixSet, error) {
	id := r.URL.Query().Get("tms")
	if id == "" {
		id = s.defaultTMS
	}
	return tms.Get(id)
}

// resolveDynamicDataset opens (or reuses) the dataset named by a
// dynamic request's query parameters. Datasets are cached in the
// registry under their fingerprint, so repeated requests for the same
// cog+options reuse one open cog.Reader instead of re-opening the file
// on every tile.
func (s *Server) resolveDynamicDataset(opts dataset.Options) (*dataset.Dataset, error) {
	fp := opts.Fingerprint()
	if ds, err := s.registry.Resolve(fp); err == nil {
		return ds, nil
	} else if ctoderr.KindOf(err) != ctoderr.NoSuchDataset {
		return nil, err
	}
	return s.registry.Register(fp, opts)
}
