package grid

import "context"

// ObjectStore fetches raw bytes by key. ok=false means the object is
// absent (404), not an error — spec.md §4.4 requires absent chunks to be
// treated as "all fill value", not a failure.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}
