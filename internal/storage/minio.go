package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *zap.Logger
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a public-read
// policy, and returns a ready-to-use MinioStorage.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool, logger *zap.Logger) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		logger.Info("created bucket", zap.String("bucket", bucket))
	}

	if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		logger:     logger,
	}, nil
}

// Upload streams reader to MinIO under key. size must be the exact byte count.
// Unless opts.Overwrite is set, an existing object under the same key makes
// the call fail with ErrKeyExists — PutObject alone would silently replace it.
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts UploadOptions) error {
	if !opts.Overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%w: %q", ErrKeyExists, key)
		}
		if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" {
			return fmt.Errorf("stat object %q: %w", key, err)
		}
	}

	if opts.OnProgress != nil && size > 0 {
		reader = newProgressReader(reader, size, opts.OnProgress)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Remove deletes the objects at keys from the bucket.
func (s *MinioStorage) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %q: %w", key, err)
		}
	}
	return nil
}

// PublicURL returns the browser-accessible URL for the given key,
// e.g. "http://localhost:9000/files/user-id/1714-ab12.pdf".
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
