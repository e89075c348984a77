package factory

import "fmt"

// windowKey is the WindowKey of spec.md §3: everything that identifies
// a processed elevation grid uniquely, serialized to the string the
// Processed-Window Cache and Request Coalescer key on.
type windowKey struct {
	DatasetFingerprint string
	Z, X, Y            int
	Resampling         string
	MeshingMethod      string
	GridParam          string // grid_size or max_error, stringified
	NoData             string
}

func (k windowKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/%d/%d/%d",
		k.DatasetFingerprint, k.MeshingMethod, k.Resampling, k.GridParam, k.NoData, k.Z, k.X, k.Y)
}
