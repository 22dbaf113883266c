package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/matrix"
)

// S3Options configures the s3 backend
type S3Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	Prefix          string
	CreateBucket    bool
}

// S3Store keeps each matrix as one object in an S3 compatible bucket
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	codec  Codec
}

// OpenS3 creates the client and checks the bucket, creating it when
// opts.CreateBucket is set
func OpenS3(ctx context.Context, opts S3Options, codec Codec) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("checkpoint s3 backend needs a bucket")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, faults.Resource("checkpoint.s3.open", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, faults.Resource("checkpoint.s3.open", err)
	}
	if !exists {
		if !opts.CreateBucket {
			return nil, faults.Resource("checkpoint.s3.open", fmt.Errorf("bucket %q does not exist", opts.Bucket))
		}
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, faults.Resource("checkpoint.s3.open", err)
		}
	}

	return NewS3Store(client, opts.Bucket, opts.Prefix, codec), nil
}

// NewS3Store wraps an existing client
func NewS3Store(client *minio.Client, bucket, prefix string, codec Codec) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, codec: codec}
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Save uploads m under name
func (s *S3Store) Save(ctx context.Context, name string, m matrix.Matrix) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m, s.codec); err != nil {
		return faults.Resource("checkpoint.s3.save", err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return faults.Resource("checkpoint.s3.save", err)
}

// Load downloads and decodes the object stored under name
func (s *S3Store) Load(ctx context.Context, name string) (matrix.Matrix, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, faults.Resource("checkpoint.s3.load", err)
	}
	defer obj.Close()

	m, err := Decode(obj)
	if err != nil {
		return nil, faults.Resource("checkpoint.s3.load", err)
	}
	return m, nil
}
