package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdm-linkage/internal/matrix"
)

// Store saves and loads named matrices. ref is backend specific: a file
// path, a matrix name or an object key.
type Store interface {
	Save(ctx context.Context, ref string, m matrix.Matrix) error
	Load(ctx context.Context, ref string) (matrix.Matrix, error)
}

// Backend names
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Options configures Open
type Options struct {
	Backend  string
	Codec    string
	Postgres PostgresOptions
	S3       S3Options
}

// Open builds the store selected by opts.Backend. The returned closer
// releases backend connections.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	codec, err := ParseCodec(opts.Codec)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(codec), func() error { return nil }, nil
	case BackendPostgres:
		store, err := OpenPostgres(ctx, opts.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case BackendS3:
		store, err := OpenS3(ctx, opts.S3, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", opts.Backend)
	}
}
