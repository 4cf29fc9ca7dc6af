package storagesvc

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/faq"
)

type minioStore struct {
	client *minio.Client
	bucket string
}

var _ faq.ObjectStore = (*minioStore)(nil)

// NewMinioStore connects to the object store and creates the bucket if needed.
func NewMinioStore(ctx context.Context, conf *core.Config) (*minioStore, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}

	exists, err := client.BucketExists(ctx, conf.Storage.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "checking bucket %s", conf.Storage.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, conf.Storage.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "creating bucket %s", conf.Storage.Bucket)
		}
	}
	return &minioStore{client: client, bucket: conf.Storage.Bucket}, nil
}

func (s *minioStore) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrapf(err, "uploading %s", key)
}

func (s *minioStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, "presigning %s", key)
	}
	return u.String(), nil
}

func (s *minioStore) RemoveObject(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "removing %s", key)
}
