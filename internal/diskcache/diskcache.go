// Package diskcache implements the Tile Disk Cache (spec.md §4.I):
// persisting encoded terrain tiles at a path derived injectively from
// a WindowKey, with atomic tempfile-then-rename writes so a reader
// never observes a partially-written file.
package diskcache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sogelink-research/ctod/internal/ctoderr"
)

// Artifact is the TileArtifact of spec.md §3: an encoded tile body
// plus the metadata needed to serve it without re-deriving anything.
type Artifact struct {
	EncodedBytes []byte
	ContentType  string
	ETag         string
	CreatedAt    time.Time
}

// PathKey carries the components spec.md §4.I derives a cache path
// from. DatasetFingerprint is the hex-encoded stable hash described in
// spec.md §3's WindowKey.
type PathKey struct {
	DatasetFingerprint string
	MeshingMethod      string
	Resampling         string
	Z, X, Y            int
}

// Cache is a filesystem-backed tile store rooted at a single
// directory. It holds no in-process locks: per spec.md §4.I, the
// WindowKey this path derives from is already coalesced upstream by
// the Request Coalescer, and path derivation is injective, so two
// goroutines never legitimately write the same path concurrently for
// different content.
type Cache struct {
	root string
}

// New creates a Cache rooted at root. The directory is created if
// absent.
func New(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: create cache root", err)
	}
	return &Cache{root: root}, nil
}

// Path returns the on-disk path an artifact for key would live at.
func (c *Cache) Path(key PathKey) string {
	return filepath.Join(
		c.root,
		key.DatasetFingerprint,
		key.MeshingMethod,
		key.Resampling,
		strconv.Itoa(key.Z),
		strconv.Itoa(key.X),
		strconv.Itoa(key.Y)+".terrain",
	)
}

// Get reads the artifact at key's path, if present.
func (c *Cache) Get(key PathKey) (*Artifact, bool, error) {
	path := c.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, ctoderr.Wrap(ctoderr.Internal, "diskcache: read "+path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, ctoderr.Wrap(ctoderr.Internal, "diskcache: stat "+path, err)
	}
	return &Artifact{
		EncodedBytes: data,
		ContentType:  contentTypeFor(key),
		ETag:         fmt.Sprintf(`"%x-%d"`, info.ModTime().UnixNano(), len(data)),
		CreatedAt:    info.ModTime(),
	}, true, nil
}

func contentTypeFor(key PathKey) string {
	return "application/vnd.quantized-mesh;extensions=octvertexnormals"
}

// Put writes encoded to key's path atomically: a tempfile in the same
// directory is written and fsynced, then renamed over the final path.
// A crash between those two steps leaves no file at the final path —
// only the tempfile, which Sweep removes at the next startup.
func (c *Cache) Put(key PathKey, encoded []byte) (*Artifact, error) {
	path := c.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: mkdir "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: create tempfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: write tempfile", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: sync tempfile", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: close tempfile", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, ctoderr.Wrap(ctoderr.Internal, "diskcache: rename into place", err)
	}

	now := time.Now()
	return &Artifact{
		EncodedBytes: encoded,
		ContentType:  contentTypeFor(key),
		ETag:         fmt.Sprintf(`"%x-%d"`, now.UnixNano(), len(encoded)),
		CreatedAt:    now,
	}, nil
}

const tempPrefix = ".tmp-"

// Sweep walks the cache root at startup and removes stray tempfiles
// left behind by a crash between tempfile write and rename (spec.md
// §8 invariant 7). It never removes a committed .terrain file.
func Sweep(root string, logger *slog.Logger) error {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			} else if logger != nil {
				logger.Warn("diskcache sweep: failed to remove stray tempfile", "path", path, "error", rmErr)
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return ctoderr.Wrap(ctoderr.Internal, "diskcache: sweep", err)
	}
	if logger != nil && removed > 0 {
		logger.Info("diskcache sweep: removed stray tempfiles", "count", removed)
	}
	return nil
}
