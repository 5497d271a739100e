package backup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CalendarObjectName is where published calendars are stored.
const CalendarObjectName = "calendar/sk-crm-calendar.ics"

// Sink stores named blobs outside the local machine.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

func SnapshotObjectName(hash string) string {
	return "snapshots/" + hash + ".json"
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Configured reports whether enough is set to reach a bucket.
func (c ObjectStoreConfig) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ObjectStore is a Sink backed by an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (o *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", o.bucket, err)
	}
	if exists {
		return nil
	}
	if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", o.bucket, err)
	}
	return nil
}

func (o *ObjectStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := o.client.PutObject(ctx, o.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

// Publish uploads an already rendered file under name. It fails when no
// sink is configured.
func (s *Service) Publish(ctx context.Context, name string, data []byte, contentType string) error {
	if s.sink == nil {
		return fmt.Errorf("publish %s: object storage is not configured", name)
	}
	return s.sink.Put(ctx, name, data, contentType)
}
