// File: producer.go
// Purpose: grid/martini/delatin tagged-variant dispatch behind one
// capability interface, the Go analogue of the corpus's own
// node-tagged dispatch over a typed expression tree.
// Pattern: tagged-variant / strategy
package mesh

import (
	"fmt"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
)

// Method selects a Mesh Producer implementation (spec.md §4.F).
type Method string

const (
	MethodGrid    Method = "grid"
	MethodMartini Method = "martini"
	MethodDelatin Method = "delatin"
)

// Params configures a single meshing call.
type Params struct {
	Method       Method
	GridSize     int     // for MethodGrid: samples per side
	MaxErrorMeters float64 // for MethodMartini/MethodDelatin
}

const (
	DefaultGridSize     = 20
	DefaultMaxErrorMeters = 4.0
)

// Producer turns a grid into a Mesh.
type Producer interface {
	Mesh(grid *cog.Grid, params Params) (*Mesh, error)
}

// For resolves the Producer for params.Method.
func For(method Method) (Producer, error) {
	switch method {
	case MethodGrid, "":
		return gridProducer{}, nil
	case MethodMartini:
		return martiniProducer{}, nil
	case MethodDelatin:
		return delatinProducer{}, nil
	default:
		return nil, ctoderr.New(ctoderr.BadRequest, fmt.Sprintf("unknown meshing method %q", method))
	}
}

// GridSizeForZoom resolves n per spec.md §4.F: zoomGridSizes[z], falling
// back to defaultGridSize.
func GridSizeForZoom(z int, zoomGridSizes map[int]int, defaultGridSize int) int {
	if n, ok := zoomGridSizes[z]; ok {
		return n
	}
	if defaultGridSize > 0 {
		return defaultGridSize
	}
	return DefaultGridSize
}

// MaxErrorForZoom resolves max_error per spec.md §4.F.
func MaxErrorForZoom(z int, zoomMaxErrors map[int]float64, defaultMaxError float64) float64 {
	if e, ok := zoomMaxErrors[z]; ok {
		return e
	}
	if defaultMaxError > 0 {
		return defaultMaxError
	}
	return DefaultMaxErrorMeters
}
