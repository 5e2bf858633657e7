package grid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FSStore is a local-filesystem ObjectStore, used for tests and
// single-node deployments with no S3-compatible backend configured.
type FSStore struct {
	root string
}

// NewFSStore roots an FSStore at dir; keys are joined onto it with
// filepath.Join, so "<prefix>/c/<cy>/<cx>" becomes dir/<prefix>/c/<cy>/<cx>.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
