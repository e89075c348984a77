// Package factory implements the Terrain Factory (spec.md §4.E): the
// orchestrator tying the COG reader, processed-window cache, request
// coalescer, mesh producer, edge stitcher, quantized-mesh encoder, and
// tile disk cache into one get_tile operation.
//
// File: factory.go
// Purpose: the PLANNING -> FETCHING -> MESHING -> STITCHING -> ENCODING
// -> PERSISTING -> DONE state machine and its 9-window fan-out/fan-in.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/coalesce"
	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/diskcache"
	"github.com/sogelink-research/ctod/internal/mesh"
	"github.com/sogelink-research/ctod/internal/middleware"
	"github.com/sogelink-research/ctod/internal/qmesh"
	"github.com/sogelink-research/ctod/internal/stitch"
	"github.com/sogelink-research/ctod/internal/tms"
	"github.com/sogelink-research/ctod/internal/workerpool"
)

const (
	// DefaultPixelBudget is the native-resolution pixel ceiling of the
	// safety check (spec.md §6).
	DefaultPixelBudget = 16_000_000
	// DefaultRequestTimeout is the per-request wall-clock budget
	// (spec.md §5).
	DefaultRequestTimeout = 30 * time.Second
)

// state is the per-request state machine of spec.md §4.E. It exists
// for logging/observability; GetTile does not branch on it.
type state int

const (
	statePlanning state = iota
	stateFetching
	stateMeshing
	stateStitching
	stateEncoding
	statePersisting
	stateDone
)

func (s state) String() string {
	switch s {
	case statePlanning:
		return "PLANNING"
	case stateFetching:
		return "FETCHING"
	case stateMeshing:
		return "MESHING"
	case stateStitching:
		return "STITCHING"
	case stateEncoding:
		return "ENCODING"
	case statePersisting:
		return "PERSISTING"
	case stateDone:
		return "DONE"
	default:
		return "FAILED"
	}
}

// Factory is the Terrain Factory. One Factory serves every dataset;
// the processed-window cache and coalescer it holds are shared across
// all of them, keyed by each window's dataset fingerprint.
type Factory struct {
	coalescer      *coalesce.Coalescer
	pool           *workerpool.Pool
	disk           *diskcache.Cache // nil disables on-disk persistence
	unsafe         bool
	pixelBudget    int64
	requestTimeout time.Duration
	quantization   int
	logger         *slog.Logger
}

// New creates a Factory. disk may be nil (spec.md §6: absent
// tile-cache-path disables the on-disk cache; tiles are still served,
// just always recomputed).
func New(coalescer *coalesce.Coalescer, pool *workerpool.Pool, disk *diskcache.Cache, unsafe bool, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		coalescer:      coalescer,
		pool:           pool,
		disk:           disk,
		unsafe:         unsafe,
		pixelBudget:    DefaultPixelBudget,
		requestTimeout: DefaultRequestTimeout,
		quantization:   stitch.DefaultQuantization,
		logger:         logger,
	}
}

// GetTile implements spec.md §4.E's get_tile.
func (f *Factory) GetTile(ctx context.Context, tmsImpl tms.TileMatrixSet, ds *dataset.Dataset, key tms.Key, skipCache bool) (*diskcache.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	s := statePlanning
	artifact, err := f.getTile(ctx, &s, tmsImpl, ds, key, skipCache)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ctoderr.Wrap(ctoderr.Timeout, "factory: request deadline exceeded", err)
		}
		f.logger.Warn("factory: get_tile failed",
			"request_id", middleware.GetRequestID(ctx), "state", s.String(), "tile", key.String(), "error", err)
	}
	return artifact, err
}

func (f *Factory) getTile(ctx context.Context, s *state, tmsImpl tms.TileMatrixSet, ds *dataset.Dataset, key tms.Key, skipCache bool) (*diskcache.Artifact, error) {
	if err := tms.CheckRange(tmsImpl, key.Z, key.X, key.Y); err != nil {
		return nil, err
	}

	path := f.pathKey(ds, key)

	if f.disk != nil && !skipCache {
		if artifact, ok, err := f.disk.Get(path); err != nil {
			f.logger.Warn("factory: disk cache read failed, recomputing",
				"request_id", middleware.GetRequestID(ctx), "tile", key.String(), "error", err)
		} else if ok {
			return artifact, nil
		}
	}

	bounds, err := tmsImpl.Bounds(key.Z, key.X, key.Y)
	if err != nil {
		return nil, err
	}

	if key.Z < ds.Options.MinZoom || !dataset.Intersects(ds, bounds) {
		return f.emptyTile(ctx, path, bounds, skipCache)
	}

	if !f.unsafe {
		if budget := ds.Reader.NativePixelBudget(cogBounds(bounds)); budget > f.pixelBudget {
			return nil, ctoderr.New(ctoderr.UnsafeRequest, fmt.Sprintf("window requires %d native pixels, budget is %d", budget, f.pixelBudget))
		}
	}

	*s = stateFetching
	grids, err := f.fetchWindows(ctx, tmsImpl, ds, key, bounds)
	if err != nil {
		return nil, err
	}

	*s = stateMeshing
	meshes, err := f.meshWindows(ctx, ds, key.Z, grids)
	if err != nil {
		return nil, err
	}

	*s = stateStitching
	self := meshes[idxSelf]
	if err := stitch.Stitch(self, neighborsOf(meshes), f.quantization); err != nil {
		return nil, ctoderr.Wrap(ctoderr.Internal, "factory: stitch", err)
	}

	*s = stateEncoding
	encoded, err := qmesh.Encode(self, cogBounds(bounds))
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "factory: encode", err)
	}

	*s = statePersisting
	artifact := f.persist(ctx, path, encoded, skipCache)
	*s = stateDone
	return artifact, nil
}

// persist writes encoded to the disk cache if enabled, logging but not
// failing the request on a write error (spec.md §4.E failure
// semantics: "a disk-cache write failure is logged but non-fatal").
func (f *Factory) persist(ctx context.Context, path diskcache.PathKey, encoded []byte, skipCache bool) *diskcache.Artifact {
	if f.disk != nil && !skipCache {
		if artifact, err := f.disk.Put(path, encoded); err != nil {
			f.logger.Warn("factory: disk cache write failed",
				"request_id", middleware.GetRequestID(ctx), "tile", fmt.Sprintf("%d/%d/%d", path.Z, path.X, path.Y), "error", err)
		} else {
			return artifact
		}
	}
	now := time.Now()
	return &diskcache.Artifact{
		EncodedBytes: encoded,
		ContentType:  qmesh.ContentType,
		ETag:         fmt.Sprintf(`"%x-%d"`, now.UnixNano(), len(encoded)),
		CreatedAt:    now,
	}
}

func (f *Factory) pathKey(ds *dataset.Dataset, key tms.Key) diskcache.PathKey {
	return diskcache.PathKey{
		DatasetFingerprint: ds.Fingerprint,
		MeshingMethod:      string(ds.Options.MeshingMethod),
		Resampling:         string(ds.Options.ResamplingMethod),
		Z:                  key.Z, X: key.X, Y: key.Y,
	}
}

// emptyTile synthesizes, encodes, and (best-effort) persists the
// canonical empty terrain tile of spec.md §4.E step 2.
func (f *Factory) emptyTile(ctx context.Context, path diskcache.PathKey, bounds orb.Bound, skipCache bool) (*diskcache.Artifact, error) {
	m := emptyMesh(bounds)
	encoded, err := qmesh.Encode(m, cogBounds(bounds))
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.EncodingFailed, "factory: encode empty tile", err)
	}
	return f.persist(ctx, path, encoded, skipCache), nil
}

func cogBounds(b orb.Bound) cog.Bounds {
	return cog.Bounds{West: b.Min[0], South: b.Min[1], East: b.Max[0], North: b.Max[1]}
}

// targetGridSize resolves the sampling resolution to request from the
// COG for meshing method m. Martini requires a (2^k + 1)-sided input
// (spec.md §4.F); grid and delatin accept n directly.
func targetGridSize(m mesh.Method, n int) int {
	if m != mesh.MethodMartini {
		return n
	}
	k := 0
	for (1<<uint(k))+1 < n {
		k++
	}
	return (1 << uint(k)) + 1
}

func gridParamString(m mesh.Method, gridSize int, maxError float64) string {
	if m == mesh.MethodGrid {
		return fmt.Sprintf("n=%d", gridSize)
	}
	return fmt.Sprintf("e=%g", maxError)
}
