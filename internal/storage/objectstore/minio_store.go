package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

type MinioStore struct {
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

func NewMinioStoreWithClient(client *minio.Client) (*MinioStore, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	_, err := s.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.UserMetadata,
	})
	return err
}

func (s *MinioStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if s == nil || s.client == nil {
		return ObjectInfo{}, fmt.Errorf("minio store not initialized")
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
		UserMetadata: info.UserMetadata,
	}, nil
}
