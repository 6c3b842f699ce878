package photos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/discx/internal/shared"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions locates an S3-compatible bucket.
type MinioOptions struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// MinioBacking stores photos as objects in a bucket.
type MinioBacking struct {
	client *minio.Client
	bucket string
}

// NewMinioBacking connects to the endpoint and creates the bucket when it is missing.
func NewMinioBacking(ctx context.Context, opts MinioOptions) (*MinioBacking, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket", shared.ErrMissingConfig)
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", opts.Bucket, err)
		}
	}
	return &MinioBacking{client: client, bucket: opts.Bucket}, nil
}

func (m *MinioBacking) Put(ctx context.Context, key string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: http.DetectContentType(data)}
	if _, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload photo object: %w", err)
	}
	return nil
}

func (m *MinioBacking) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.classify(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.classify(key, err)
	}
	return data, nil
}

func (m *MinioBacking) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove photo object: %w", err)
	}
	return nil
}

func (m *MinioBacking) classify(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: photo %s", shared.ErrNotFound, key)
	}
	return fmt.Errorf("get photo object: %w", err)
}
