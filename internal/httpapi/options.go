package httpapi

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/mesh"
)

// parseDynamicOptions builds a dataset.Options from the dynamic
// endpoint's query parameters (spec.md §6): cog, minZoom, maxZoom,
// noData, resamplingMethod, meshingMethod, defaultGridSize,
// zoomGridSizes, defaultMaxError, zoomMaxErrors.
func parseDynamicOptions(q url.Values) (dataset.Options, bool, error) {
	cogPath := q.Get("cog")
	if cogPath == "" {
		return dataset.Options{}, false, ctoderr.New(ctoderr.BadRequest, "missing required query parameter \"cog\"")
	}

	opts := dataset.Options{
		COG:              cogPath,
		ResamplingMethod: cog.ResamplingBilinear,
		MeshingMethod:    mesh.MethodGrid,
		DefaultGridSize:  mesh.DefaultGridSize,
		DefaultMaxError:  mesh.DefaultMaxErrorMeters,
	}

	var err error
	if opts.MinZoom, err = parseIntDefault(q, "minZoom", 0); err != nil {
		return opts, false, err
	}
	if opts.MaxZoom, err = parseIntDefault(q, "maxZoom", 22); err != nil {
		return opts, false, err
	}
	if v := q.Get("noData"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, false, ctoderr.Wrap(ctoderr.BadRequest, "parse noData", err)
		}
		opts.NoData = &f
	}
	if v := q.Get("resamplingMethod"); v != "" {
		opts.ResamplingMethod = cog.Resampling(v)
	}
	if v := q.Get("meshingMethod"); v != "" {
		opts.MeshingMethod = mesh.Method(v)
	}
	if opts.DefaultGridSize, err = parseIntDefault(q, "defaultGridSize", opts.DefaultGridSize); err != nil {
		return opts, false, err
	}
	if v := q.Get("defaultMaxError"); v != "" {
		opts.DefaultMaxError, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, false, ctoderr.Wrap(ctoderr.BadRequest, "parse defaultMaxError", err)
		}
	}
	if v := q.Get("zoomGridSizes"); v != "" {
		var m map[string]int
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return opts, false, ctoderr.Wrap(ctoderr.BadRequest, "parse zoomGridSizes", err)
		}
		opts.ZoomGridSizes = stringKeysToInt(m)
	}
	if v := q.Get("zoomMaxErrors"); v != "" {
		var m map[string]float64
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return opts, false, ctoderr.Wrap(ctoderr.BadRequest, "parse zoomMaxErrors", err)
		}
		opts.ZoomMaxErrors = make(map[int]float64, len(m))
		for k, val := range m {
			zi, err := strconv.Atoi(k)
			if err != nil {
				return opts, false, ctoderr.Wrap(ctoderr.BadRequest, "parse zoomMaxErrors key", err)
			}
			opts.ZoomMaxErrors[zi] = val
		}
	}

	skipCache := q.Get("skipCache") == "true" || q.Get("skipCache") == "1"
	return opts, skipCache, nil
}

func parseIntDefault(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, ctoderr.Wrap(ctoderr.BadRequest, "parse "+key, err)
	}
	return n, nil
}

func stringKeysToInt(m map[string]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		if zi, err := strconv.Atoi(k); err == nil {
			out[zi] = v
		}
	}
	return out
}
