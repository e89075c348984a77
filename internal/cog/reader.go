// Package cog implements the COG Reader Facade (spec.md §4.B): windowed
// reads from a Cloud Optimized GeoTIFF at a requested resolution and
// resampling, returning a dense elevation grid.
//
// File: reader.go
// Purpose: wrap github.com/airbusgeo/godal for ranged COG window reads.
// Dependencies: godal (GDAL bindings)
package cog

import (
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/sogelink-research/ctod/internal/ctoderr"
)

// gdalMu serializes all GDAL calls. GDAL and libtiff keep internal
// global state that is not safe for concurrent use across dataset
// handles from the same process, so every Open/IO/Close is serialized
// here regardless of which Reader or goroutine issues it.
var gdalMu sync.Mutex

var registerOnce sync.Once

// Init registers all GDAL drivers. Safe to call more than once.
func Init() {
	registerOnce.Do(godal.RegisterAll)
}

// Resampling is the fixed set of resampling algorithms spec.md §4.B
// allows, mapped 1:1 onto GDAL's own resampling enum.
type Resampling string

const (
	ResamplingNone       Resampling = "none"
	ResamplingNearest    Resampling = "nearest"
	ResamplingBilinear   Resampling = "bilinear"
	ResamplingCubic      Resampling = "cubic"
	ResamplingCubicSpline Resampling = "cubic_spline"
	ResamplingLanczos    Resampling = "lanczos"
	ResamplingAverage    Resampling = "average"
	ResamplingMode       Resampling = "mode"
	ResamplingGauss      Resampling = "gauss"
	ResamplingRMS        Resampling = "rms"
)

func (r Resampling) valid() bool {
	switch r {
	case ResamplingNone, ResamplingNearest, ResamplingBilinear, ResamplingCubic,
		ResamplingCubicSpline, ResamplingLanczos, ResamplingAverage, ResamplingMode,
		ResamplingGauss, ResamplingRMS:
		return true
	}
	return false
}

func (r Resampling) gdalFlag() string {
	switch r {
	case ResamplingCubicSpline:
		return "cubicspline"
	default:
		return string(r)
	}
}

// Bounds is a geographic (lon/lat, degrees) rectangle.
type Bounds struct {
	West, South, East, North float64
}

// Grid is the ElevationGrid of spec.md §3: a dense H×W array of meters
// above the source datum, the bounds it covers, the resampling used,
// and a per-cell flag marking originally-NoData cells (after they were
// replaced by the caller's fill constant).
type Grid struct {
	Width, Height int
	Heights       []float32 // row-major, length Width*Height
	NoData        []bool    // same length; true where the source was NoData
	Bounds        Bounds
	Resampling    Resampling
	Empty         bool // true when the request fell entirely outside the dataset
}

func (g *Grid) At(x, y int) float32 { return g.Heights[y*g.Width+x] }

// Reader reads windows from a single COG path. One Reader corresponds
// to one open dataset; it is safe for concurrent use (all GDAL access
// is funneled through gdalMu).
type Reader struct {
	path string

	ds *godal.Dataset

	footprint Bounds
	hasFootprint bool
	nativeW, nativeH int
}

// Open opens path (a local path or any GDAL VSI-prefixed URL, e.g.
// /vsicurl/https://... or /vsis3/...) and reads its geographic
// footprint. GDAL's own VSI drivers provide ranged HTTP/S3 reads; CTOD
// does not duplicate that with a second network client.
func Open(path string) (*Reader, error) {
	Init()

	gdalMu.Lock()
	ds, err := godal.Open(path)
	gdalMu.Unlock()
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.SourceUnavailable, fmt.Sprintf("open %s", path), err)
	}

	r := &Reader{path: path, ds: ds}

	gdalMu.Lock()
	defer gdalMu.Unlock()

	structure := ds.Structure()
	r.nativeW, r.nativeH = structure.SizeX, structure.SizeY

	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, ctoderr.Wrap(ctoderr.SourceUnavailable, "read geotransform", err)
	}
	west := gt[0]
	north := gt[3]
	east := west + gt[1]*float64(r.nativeW)
	south := north + gt[5]*float64(r.nativeH)
	if south > north {
		south, north = north, south
	}
	r.footprint = Bounds{West: west, South: south, East: east, North: north}
	r.hasFootprint = true

	return r, nil
}

// Footprint returns the dataset's geographic envelope.
func (r *Reader) Footprint() (Bounds, bool) { return r.footprint, r.hasFootprint }

// NativePixelBudget returns the number of native-resolution pixels a
// window of the given geographic bounds would require, used by the
// safety check of spec.md §6.
func (r *Reader) NativePixelBudget(b Bounds) int64 {
	if !r.hasFootprint {
		return 0
	}
	fw := r.footprint.East - r.footprint.West
	fh := r.footprint.North - r.footprint.South
	if fw <= 0 || fh <= 0 {
		return 0
	}
	w := float64(r.nativeW) * (b.East - b.West) / fw
	h := float64(r.nativeH) * (b.North - b.South) / fh
	return int64(math.Ceil(w)) * int64(math.Ceil(h))
}

// Close releases the underlying GDAL dataset handle.
func (r *Reader) Close() error {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	return r.ds.Close()
}

// ReadWindow reads bounds at targetW x targetH pixels using resampling,
// substituting noDataReplacement for any source NoData value. If bounds
// lie fully outside the dataset footprint, it returns an Empty grid
// rather than an error (spec.md §4.B).
func (r *Reader) ReadWindow(bounds Bounds, targetW, targetH int, resampling Resampling, noDataReplacement float32) (*Grid, error) {
	if !resampling.valid() {
		return nil, ctoderr.New(ctoderr.BadRequest, fmt.Sprintf("unknown resampling %q", resampling))
	}
	if targetW <= 0 || targetH <= 0 {
		return nil, ctoderr.New(ctoderr.BadRequest, "target grid size must be positive")
	}

	if r.hasFootprint && !intersects(r.footprint, bounds) {
		return &Grid{Width: targetW, Height: targetH, Bounds: bounds, Resampling: resampling, Empty: true}, nil
	}

	gdalMu.Lock()
	defer gdalMu.Unlock()

	switches := []string{
		"-of", "MEM",
		"-projwin", f(bounds.West), f(bounds.North), f(bounds.East), f(bounds.South),
		"-outsize", fmt.Sprintf("%d", targetW), fmt.Sprintf("%d", targetH),
		"-r", resampling.gdalFlag(),
		"-ot", "Float32",
	}

	mem, err := r.ds.Translate("", switches)
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.SourceUnavailable, "translate window", err)
	}
	defer mem.Close()

	bands := mem.Bands()
	if len(bands) == 0 {
		return nil, ctoderr.New(ctoderr.SourceUnavailable, "windowed read produced no bands")
	}

	buf := make([]float32, targetW*targetH)
	if err := bands[0].Read(0, 0, buf, targetW, targetH); err != nil {
		return nil, ctoderr.Wrap(ctoderr.SourceUnavailable, "read window band", err)
	}

	noData, hasNoData := bands[0].NoData()
	flags := make([]bool, len(buf))
	if hasNoData {
		nd := float32(noData)
		for i, v := range buf {
			if v == nd || float32IsNaN(v) {
				flags[i] = true
				buf[i] = noDataReplacement
			}
		}
	}

	return &Grid{
		Width: targetW, Height: targetH,
		Heights: buf, NoData: flags,
		Bounds: bounds, Resampling: resampling,
	}, nil
}

func float32IsNaN(f float32) bool { return f != f }

func f(v float64) string { return fmt.Sprintf("%.10f", v) }

func intersects(a, b Bounds) bool {
	return a.West < b.East && b.West < a.East && a.South < b.North && b.South < a.North
}
