// Package storage archives rendered quotation documents in S3-compatible
// object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/quotedesk/quotedesk/internal/quotations"
)

// Config holds the object storage connection settings. An empty Endpoint
// disables archiving.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether enough settings are present to connect.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// MinIOArchive stores every rendered quotation PDF as an object.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchive creates the archive client.
func NewMinIOArchive(cfg Config) (*MinIOArchive, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage: object storage is not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create minio client: %w", err)
	}
	return &MinIOArchive{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *MinIOArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Archive uploads the document under ObjectKey.
func (a *MinIOArchive) Archive(ctx context.Context, doc quotations.Document) error {
	if len(doc.Content) == 0 {
		return fmt.Errorf("storage: document %s is empty", doc.ID)
	}
	_, err := a.client.PutObject(ctx, a.bucket, ObjectKey(doc), bytes.NewReader(doc.Content), int64(len(doc.Content)),
		minio.PutObjectOptions{
			ContentType: doc.ContentType,
			UserMetadata: map[string]string{
				"quotation-id": fmt.Sprintf("%d", doc.QuotationID),
				"created-by":   fmt.Sprintf("%d", doc.CreatedBy),
			},
		})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", ObjectKey(doc), err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (a *MinIOArchive) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// ObjectKey is the object name of a document: quotations/<id>/<document>.pdf.
func ObjectKey(doc quotations.Document) string {
	return fmt.Sprintf("quotations/%d/%s.pdf", doc.QuotationID, doc.ID)
}
