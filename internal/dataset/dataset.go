// Package dataset implements the Dataset Registry (SPEC_FULL.md §4.J):
// named dataset configuration, fingerprinting, and a spatial index
// over configured dataset footprints so the factory can resolve or
// reject a request without re-opening every configured COG.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/mesh"
)

// Options are the per-dataset settings carried by both the dynamic
// endpoint's query parameters and a configured dataset's JSON entry
// (spec.md §6).
type Options struct {
	COG              string             `json:"cog"`
	MinZoom          int                `json:"minZoom"`
	MaxZoom          int                `json:"maxZoom"`
	NoData           *float64           `json:"noData,omitempty"`
	ResamplingMethod cog.Resampling     `json:"resamplingMethod"`
	MeshingMethod    mesh.Method        `json:"meshingMethod"`
	DefaultGridSize  int                `json:"defaultGridSize"`
	ZoomGridSizes    map[int]int        `json:"zoomGridSizes,omitempty"`
	DefaultMaxError  float64            `json:"defaultMaxError"`
	ZoomMaxErrors    map[int]float64    `json:"zoomMaxErrors,omitempty"`
}

// Fingerprint is a stable hash of a dataset's identity: its COG path
// plus every option that changes what an ElevationGrid for it
// contains (spec.md §3 WindowKey, §9 NoData design note). Two
// Options values that fingerprint identically are interchangeable for
// caching purposes.
func (o Options) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "cog=%s\n", o.COG)
	fmt.Fprintf(h, "resampling=%s\n", o.ResamplingMethod)
	fmt.Fprintf(h, "meshing=%s\n", o.MeshingMethod)
	fmt.Fprintf(h, "gridSize=%d\n", o.DefaultGridSize)
	fmt.Fprintf(h, "maxError=%g\n", o.DefaultMaxError)
	if o.NoData != nil {
		fmt.Fprintf(h, "noData=%g\n", *o.NoData)
	}
	zoomTables, _ := json.Marshal([]any{o.MinZoom, o.MaxZoom, o.ZoomGridSizes, o.ZoomMaxErrors})
	fmt.Fprintf(h, "zoom=%s\n", zoomTables)
	return hex.EncodeToString(h.Sum(nil))
}

// Config is one entry of the dataset config JSON document (spec.md
// §6): `{ "datasets": [ { "name": str, "options": {...} } ... ] }`.
type Config struct {
	Name    string  `json:"name"`
	Options Options `json:"options"`
}

// Document is the top-level shape of the dataset config file.
type Document struct {
	Datasets []Config `json:"datasets"`
}

// ParseDocument decodes a dataset config file's contents.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, ctoderr.Wrap(ctoderr.BadRequest, "dataset: parse config", err)
	}
	return doc, nil
}

// Dataset is a resolved, opened dataset: a COG reader handle plus the
// options and fingerprint that identify its cache entries.
type Dataset struct {
	Name        string
	Options     Options
	Fingerprint string
	Reader      *cog.Reader
}

// Registry resolves dataset names to opened Datasets and answers
// footprint-intersection queries via an R-tree spatial index, so a
// deployment with many configured datasets never has to linearly scan
// them (or re-open their COGs) on every request.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Dataset
	index    rtree.RTreeG[*Dataset]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Dataset)}
}

// Register opens cfg's COG and adds it to the registry under name,
// indexing its footprint for Intersects queries.
func (r *Registry) Register(name string, opts Options) (*Dataset, error) {
	reader, err := cog.Open(opts.COG)
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.SourceUnavailable, "dataset: open "+opts.COG, err)
	}

	ds := &Dataset{
		Name:        name,
		Options:     opts,
		Fingerprint: opts.Fingerprint(),
		Reader:      reader,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = ds

	if fp, ok := reader.Footprint(); ok {
		r.index.Insert(
			[2]float64{fp.West, fp.South},
			[2]float64{fp.East, fp.North},
			ds,
		)
	}
	return ds, nil
}

// Resolve looks up a configured dataset by name.
func (r *Registry) Resolve(name string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.byName[name]
	if !ok {
		return nil, ctoderr.New(ctoderr.NoSuchDataset, "no dataset named "+name)
	}
	return ds, nil
}

// Intersects reports whether bounds intersects ds's COG footprint. A
// dataset with no known footprint (e.g. a COG without geotransform
// metadata) is treated as covering everything, matching cog.Reader's
// own fallback.
func Intersects(ds *Dataset, bounds orb.Bound) bool {
	fp, ok := ds.Reader.Footprint()
	if !ok {
		return true
	}
	return !(bounds.Max[0] < fp.West || bounds.Min[0] > fp.East ||
		bounds.Max[1] < fp.South || bounds.Min[1] > fp.North)
}

// Within returns every registered dataset whose footprint intersects
// bounds, using the R-tree index rather than a linear scan.
func (r *Registry) Within(bounds orb.Bound) []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*Dataset
	r.index.Search(
		[2]float64{bounds.Min[0], bounds.Min[1]},
		[2]float64{bounds.Max[0], bounds.Max[1]},
		func(min, max [2]float64, ds *Dataset) bool {
			found = append(found, ds)
			return true
		},
	)
	return found
}

// Close closes every registered dataset's underlying COG reader.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, ds := range r.byName {
		if err := ds.Reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
