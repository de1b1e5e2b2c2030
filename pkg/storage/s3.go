package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JaimeStill/panscan/pkg/lifecycle"
)

const s3NoSuchKey = "NoSuchKey"

type s3 struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger
}

func newS3(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &s3{
		client: client,
		bucket: cfg.S3.Bucket,
		region: cfg.S3.Region,
		logger: logger.With("system", "storage", "provider", ProviderS3),
	}, nil
}

func (s *s3) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting storage system")

	lc.OnStartup(func() error {
		ctx := lc.Context()

		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.logger.Error("storage bucket check failed", "error", err)
			return fmt.Errorf("storage bucket check: %w", err)
		}

		if !exists {
			opts := minio.MakeBucketOptions{Region: s.region}
			if err := s.client.MakeBucket(ctx, s.bucket, opts); err != nil {
				s.logger.Error("storage bucket initialization failed", "error", err)
				return fmt.Errorf("storage bucket: %w", err)
			}
		}

		s.logger.Info("storage bucket ready", "bucket", s.bucket)
		return nil
	})

	return nil
}

func (s *s3) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, opts); err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}

	return nil
}

func (s *s3) Download(ctx context.Context, key string) (*BlobResult, error) {
	meta, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", key, err)
	}

	return &BlobResult{BlobMeta: *meta, Body: obj}, nil
}

func (s *s3) Find(ctx context.Context, key string) (*BlobMeta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == s3NoSuchKey {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	return &BlobMeta{
		Key:           info.Key,
		ContentType:   info.ContentType,
		ContentLength: info.Size,
		LastModified:  info.LastModified,
	}, nil
}

func (s *s3) List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: marker,
		Recursive:  true,
		MaxKeys:    int(maxResults),
	}

	result := &BlobList{Blobs: []BlobMeta{}}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}

		if int32(len(result.Blobs)) == maxResults {
			result.NextMarker = result.Blobs[len(result.Blobs)-1].Key
			break
		}

		result.Blobs = append(result.Blobs, BlobMeta{
			Key:           obj.Key,
			ContentType:   obj.ContentType,
			ContentLength: obj.Size,
			LastModified:  obj.LastModified,
		})
	}

	return result, nil
}

func (s *s3) Delete(ctx context.Context, key string) error {
	if _, err := s.Find(ctx, key); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	return nil
}

func (s *s3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Find(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
