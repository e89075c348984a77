// Package tms implements the Tile Matrix Set models CTOD needs to map a
// (z, x, y) tile coordinate onto geographic and projected bounds: the
// Cesium-default WebMercatorQuad, and the WGS84 geographic quad used
// for un-projected COGs.
//
// File: tms.go
// Purpose: (z,x,y) <-> bounds, agreeing bit-exactly with the Cesium client's
// own tiling math.
package tms

import (
	"fmt"
	"math"

	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/paulmach/orb"
)

// Key identifies a tile within a named tile matrix set. Total order is
// lexicographic on (Z, X, Y) within a TMS.
type Key struct {
	TMS string
	Z   int
	X   int
	Y   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.TMS, k.Z, k.X, k.Y)
}

// Less implements the TileKey total order of spec.md §3.
func (k Key) Less(other Key) bool {
	if k.Z != other.Z {
		return k.Z < other.Z
	}
	if k.X != other.X {
		return k.X < other.X
	}
	return k.Y < other.Y
}

// TileMatrixSet maps tile coordinates to bounds for one named scheme.
type TileMatrixSet interface {
	ID() string
	// Bounds returns the (west, south, east, north) bounds of tile (z,x,y)
	// in degrees (WGS84 lon/lat).
	Bounds(z, x, y int) (orb.Bound, error)
	// MatrixSize returns the number of tile columns/rows at zoom z.
	MatrixSize(z int) (cols, rows int)
	// TileForPoint returns the tile covering a lon/lat point at zoom z.
	TileForPoint(z int, lon, lat float64) (x, y int)
}

const (
	WebMercatorQuad = "WebMercatorQuad"
	WGS84Quad       = "WGS84"
)

// Get returns the named TileMatrixSet, defaulting to WebMercatorQuad.
func Get(id string) (TileMatrixSet, error) {
	switch id {
	case "", WebMercatorQuad:
		return webMercator{}, nil
	case WGS84Quad:
		return wgs84{}, nil
	default:
		return nil, ctoderr.New(ctoderr.NoSuchTMS, fmt.Sprintf("unknown tile matrix set %q", id))
	}
}

// CheckRange validates a tile key against its TMS's matrix bounds.
func CheckRange(tms TileMatrixSet, z, x, y int) error {
	if z < 0 {
		return ctoderr.New(ctoderr.TileOutOfRange, "negative zoom")
	}
	cols, rows := tms.MatrixSize(z)
	if x < 0 || x >= cols || y < 0 || y >= rows {
		return ctoderr.New(ctoderr.TileOutOfRange, fmt.Sprintf("tile %d/%d/%d out of range for %s", z, x, y, tms.ID()))
	}
	return nil
}

// webMercator implements the Cesium/OGC WebMercatorQuad: the standard
// Slippy-map quadtree over EPSG:3857, two root tiles wide at z=0.
type webMercator struct{}

func (webMercator) ID() string { return WebMercatorQuad }

func (webMercator) MatrixSize(z int) (int, int) {
	n := 1 << uint(z)
	return 2 * n, n
}

func (webMercator) Bounds(z, x, y int) (orb.Bound, error) {
	cols, rows := webMercator{}.MatrixSize(z)
	if x < 0 || x >= cols || y < 0 || y >= rows {
		return orb.Bound{}, ctoderr.New(ctoderr.TileOutOfRange, fmt.Sprintf("tile %d/%d/%d out of range", z, x, y))
	}
	lonSpan := 360.0 / float64(cols)
	west := -180.0 + float64(x)*lonSpan
	east := west + lonSpan

	n := float64(rows)
	north := mercatorLat(1.0 - float64(y)/n)
	south := mercatorLat(1.0 - float64(y+1)/n)
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}, nil
}

func mercatorLat(yFrac float64) float64 {
	yRad := math.Pi * (2*yFrac - 1)
	return 180.0 / math.Pi * math.Atan(math.Sinh(yRad))
}

func (webMercator) TileForPoint(z int, lon, lat float64) (int, int) {
	cols, rows := webMercator{}.MatrixSize(z)
	x := int(math.Floor((lon + 180.0) / (360.0 / float64(cols))))
	latRad := lat * math.Pi / 180.0
	yFrac := (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0
	y := int(math.Floor(yFrac * float64(rows)))
	return x, y
}

// wgs84 implements the OGC WGS84 geographic TMS: one root tile two wide
// by one tall (the whole globe) at z=0, quad-splitting thereafter.
type wgs84 struct{}

func (wgs84) ID() string { return WGS84Quad }

func (wgs84) MatrixSize(z int) (int, int) {
	n := 1 << uint(z)
	return 2 * n, n
}

func (wgs84) Bounds(z, x, y int) (orb.Bound, error) {
	cols, rows := wgs84{}.MatrixSize(z)
	if x < 0 || x >= cols || y < 0 || y >= rows {
		return orb.Bound{}, ctoderr.New(ctoderr.TileOutOfRange, fmt.Sprintf("tile %d/%d/%d out of range", z, x, y))
	}
	lonSpan := 360.0 / float64(cols)
	latSpan := 180.0 / float64(rows)
	west := -180.0 + float64(x)*lonSpan
	east := west + lonSpan
	north := 90.0 - float64(y)*latSpan
	south := north - latSpan
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}, nil
}

func (wgs84) TileForPoint(z int, lon, lat float64) (int, int) {
	cols, rows := wgs84{}.MatrixSize(z)
	x := int(math.Floor((lon + 180.0) / (360.0 / float64(cols))))
	y := int(math.Floor((90.0 - lat) / (180.0 / float64(rows))))
	return x, y
}

// PixelGrid returns the pixel width/height to request from the COG for
// one tile: gridSize by gridSize, independent of the tile's zoom,
// position or TMS. gridSize is the number of samples per side the mesh
// producer will want (spec.md §4.F).
func PixelGrid(gridSize int) (w, h int) {
	return gridSize, gridSize
}
