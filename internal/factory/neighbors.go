package factory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/paulmach/orb"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/mesh"
	"github.com/sogelink-research/ctod/internal/middleware"
	"github.com/sogelink-research/ctod/internal/stitch"
	"github.com/sogelink-research/ctod/internal/tms"
)

// direction names one of the 9 windows of spec.md §4.E step 3: the
// self-tile plus its 8 neighbors. Index into the fixed-size arrays
// fetchWindows/meshWindows return matches directionOrder.
type direction int

const (
	dirSelf direction = iota
	dirN
	dirS
	dirE
	dirW
	dirNE
	dirNW
	dirSE
	dirSW
)

const idxSelf = int(dirSelf)

// directionOrder fixes the array index each direction occupies in the
// [9]*cog.Grid / [9]*mesh.Mesh results below.
var directionOrder = [9]direction{dirSelf, dirN, dirS, dirE, dirW, dirNE, dirNW, dirSE, dirSW}

// delta returns the (dx, dy) tile-coordinate offset for a direction.
// dy follows the TMS row convention: increasing y is south.
func (d direction) delta() (dx, dy int) {
	switch d {
	case dirN:
		return 0, -1
	case dirS:
		return 0, 1
	case dirE:
		return 1, 0
	case dirW:
		return -1, 0
	case dirNE:
		return 1, -1
	case dirNW:
		return -1, -1
	case dirSE:
		return 1, 1
	case dirSW:
		return -1, 1
	default:
		return 0, 0
	}
}

// fetchWindows implements spec.md §4.E steps 3-4: plan the 9 windows
// and fan them out through the Request Coalescer. A neighbor whose
// tile coordinates fall off the TMS's row extent, or whose bounds
// don't intersect the dataset footprint, contributes no fetch and is
// left nil (absent). A SourceUnavailable on the self-window is fatal;
// the same failure on a neighbor is logged and the neighbor is treated
// as absent.
func (f *Factory) fetchWindows(ctx context.Context, tmsImpl tms.TileMatrixSet, ds *dataset.Dataset, key tms.Key, selfBounds orb.Bound) ([9]*cog.Grid, error) {
	var grids [9]*cog.Grid

	g, gctx := errgroup.WithContext(ctx)
	for i, dir := range directionOrder {
		i, dir := i, dir
		g.Go(func() error {
			tileZ, tileX, tileY := key.Z, key.X, key.Y
			bounds := selfBounds

			if dir != dirSelf {
				dx, dy := dir.delta()
				cols, rows := tmsImpl.MatrixSize(key.Z)
				tileX = ((key.X+dx)%cols + cols) % cols
				tileY = key.Y + dy
				if tileY < 0 || tileY >= rows {
					return nil // absent: off the top/bottom of the world
				}
				var err error
				bounds, err = tmsImpl.Bounds(tileZ, tileX, tileY)
				if err != nil {
					return nil
				}
				if !dataset.Intersects(ds, bounds) {
					return nil // absent: outside the dataset footprint
				}
			}

			grid, err := f.fetchOne(gctx, ds, key.Z, tileZ, tileX, tileY, bounds)
			if err != nil {
				if dir == dirSelf {
					return ctoderr.Wrap(ctoderr.SourceUnavailable, "factory: fetch self window", err)
				}
				f.logger.Warn("factory: neighbor window fetch failed, treating as absent",
					"request_id", middleware.GetRequestID(gctx),
					"direction", fmt.Sprintf("%d/%d/%d", tileZ, tileX, tileY), "error", err)
				return nil
			}
			if grid.Empty {
				return nil // absent: fell entirely outside the dataset
			}
			grids[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return grids, err
	}
	return grids, nil
}

// fetchOne resolves the window's grid size/resampling/NoData policy
// and runs it through the coalescer, keyed by its WindowKey.
func (f *Factory) fetchOne(ctx context.Context, ds *dataset.Dataset, requestZoom, tileZ, tileX, tileY int, bounds orb.Bound) (*cog.Grid, error) {
	n := mesh.GridSizeForZoom(requestZoom, ds.Options.ZoomGridSizes, ds.Options.DefaultGridSize)
	targetSize := targetGridSize(ds.Options.MeshingMethod, n)
	maxError := mesh.MaxErrorForZoom(requestZoom, ds.Options.ZoomMaxErrors, ds.Options.DefaultMaxError)

	var noData float32
	if ds.Options.NoData != nil {
		noData = float32(*ds.Options.NoData)
	}

	wk := windowKey{
		DatasetFingerprint: ds.Fingerprint,
		Z:                  tileZ, X: tileX, Y: tileY,
		Resampling:    string(ds.Options.ResamplingMethod),
		MeshingMethod: string(ds.Options.MeshingMethod),
		GridParam:     gridParamString(ds.Options.MeshingMethod, targetSize, maxError),
		NoData:        fmt.Sprintf("%g", noData),
	}

	cb := cogBounds(bounds)
	v, err := f.coalescer.GetOrFetch(ctx, wk.String(), func(ctx context.Context) (any, int64, error) {
		grid, err := ds.Reader.ReadWindow(cb, targetSize, targetSize, ds.Options.ResamplingMethod, noData)
		if err != nil {
			return nil, 0, err
		}
		size := int64(len(grid.Heights))*4 + int64(len(grid.NoData))
		return grid, size, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cog.Grid), nil
}

// meshWindows implements spec.md §4.E step 5, submitting each present
// grid's meshing to the CPU worker pool. A meshing failure, on the
// self-window or any neighbor, is fatal (spec.md §4.E).
func (f *Factory) meshWindows(ctx context.Context, ds *dataset.Dataset, z int, grids [9]*cog.Grid) ([9]*mesh.Mesh, error) {
	var meshes [9]*mesh.Mesh

	producer, err := mesh.For(ds.Options.MeshingMethod)
	if err != nil {
		return meshes, err
	}

	n := mesh.GridSizeForZoom(z, ds.Options.ZoomGridSizes, ds.Options.DefaultGridSize)
	params := mesh.Params{
		Method:         ds.Options.MeshingMethod,
		GridSize:       targetGridSize(ds.Options.MeshingMethod, n),
		MaxErrorMeters: mesh.MaxErrorForZoom(z, ds.Options.ZoomMaxErrors, ds.Options.DefaultMaxError),
	}

	g, _ := errgroup.WithContext(ctx)
	for i, grid := range grids {
		if grid == nil {
			continue
		}
		i, grid := i, grid
		g.Go(func() error {
			return f.pool.Do(ctx, func() error {
				m, err := producer.Mesh(grid, params)
				if err != nil {
					return ctoderr.Wrap(ctoderr.MeshingFailed, "factory: mesh window", err)
				}
				meshes[i] = m
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return meshes, err
	}
	if meshes[idxSelf] == nil {
		return meshes, ctoderr.New(ctoderr.MeshingFailed, "factory: self window mesh missing")
	}
	return meshes, nil
}

// neighborsOf maps the fixed directionOrder array onto stitch.Neighbors.
func neighborsOf(meshes [9]*mesh.Mesh) stitch.Neighbors {
	return stitch.Neighbors{
		N: meshes[1], S: meshes[2], E: meshes[3], W: meshes[4],
		NE: meshes[5], NW: meshes[6], SE: meshes[7], SW: meshes[8],
	}
}
