package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured is returned when no object store is set up.
var ErrNotConfigured = errors.New("object storage not configured")

var Client *minio.Client
var BucketName string

// Init connects to MinIO and checks that the bucket exists.
func Init(ctx context.Context, cfg models.StorageConfig) error {
	if !cfg.Enabled() {
		return ErrNotConfigured
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	Client = client
	BucketName = cfg.Bucket
	return nil
}

// ObjectName builds the tenant-scoped object key: {tenant}/YYYY/MM/{uuid}{ext}.
func ObjectName(tenant string, now time.Time, contentType string) string {
	if tenant == "" {
		tenant = "default"
	}
	return fmt.Sprintf("%s/%d/%02d/%s%s",
		tenant,
		now.Year(),
		now.Month(),
		uuid.New().String(),
		GetFileExtension(contentType),
	)
}

// UploadDocument stores the raw upload and returns its bucket-qualified path.
func UploadDocument(ctx context.Context, tenant string, data []byte, contentType string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}

	objectName := ObjectName(tenant, time.Now(), contentType)
	_, err := Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}

	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// GetPresignedURL generates a presigned URL for viewing a stored document
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}

	url, err := Client.PresignedGetObject(ctx, BucketName, objectKey(objectPath), 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteDocument removes a stored document.
func DeleteDocument(ctx context.Context, objectPath string) error {
	if Client == nil {
		return ErrNotConfigured
	}
	return Client.RemoveObject(ctx, BucketName, objectKey(objectPath), minio.RemoveObjectOptions{})
}

// objectKey strips the bucket prefix from a stored path.
func objectKey(objectPath string) string {
	return strings.TrimPrefix(objectPath, BucketName+"/")
}

// GetFileExtension extracts file extension from content type
func GetFileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}
