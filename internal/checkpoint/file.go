package checkpoint

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/matrix"
)

// FileStore keeps each matrix in its own file
type FileStore struct {
	codec Codec
}

// NewFileStore creates a file store writing with codec
func NewFileStore(codec Codec) *FileStore {
	return &FileStore{codec: codec}
}

// Save writes m to path through a temporary file in the same directory and
// renames it into place
func (s *FileStore) Save(ctx context.Context, path string, m matrix.Matrix) error {
	if err := ctx.Err(); err != nil {
		return faults.Resource("checkpoint.file.save", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return faults.Resource("checkpoint.file.save", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return faults.Resource("checkpoint.file.save", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, m, s.codec); err != nil {
		tmp.Close()
		return faults.Resource("checkpoint.file.save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return faults.Resource("checkpoint.file.save", err)
	}
	if err := tmp.Close(); err != nil {
		return faults.Resource("checkpoint.file.save", err)
	}
	return faults.Resource("checkpoint.file.save", os.Rename(tmp.Name(), path))
}

// Load reads the matrix stored at path
func (s *FileStore) Load(ctx context.Context, path string) (matrix.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, faults.Resource("checkpoint.file.load", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, faults.Resource("checkpoint.file.load", err)
	}
	defer file.Close()

	m, err := Decode(file)
	if err != nil {
		return nil, faults.Resource("checkpoint.file.load", err)
	}
	return m, nil
}
