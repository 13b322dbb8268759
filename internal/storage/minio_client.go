package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cacoblog/internal/config"
	"cacoblog/internal/gateway"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ gateway.Storage = (*MinIOClient)(nil)

var ErrObjectExists = errors.New("объект уже существует")

type MinIOClient struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
}

func NewMinIOClient(cfg *config.Config) (*MinIOClient, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
		Region: cfg.MinIO.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента MinIO: %w", err)
	}

	return &MinIOClient{
		client:    client,
		bucket:    cfg.MinIO.BucketName,
		region:    cfg.MinIO.Region,
		publicURL: strings.TrimSuffix(cfg.MinIO.PublicURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket if needed and makes its objects publicly readable.
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки бакета %s: %w", m.bucket, err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
		if err != nil {
			return fmt.Errorf("ошибка создания бакета %s: %w", m.bucket, err)
		}
	}

	if err := m.client.SetBucketPolicy(ctx, m.bucket, publicReadPolicy(m.bucket)); err != nil {
		return fmt.Errorf("ошибка установки политики бакета %s: %w", m.bucket, err)
	}

	return nil
}

func (m *MinIOClient) Upload(ctx context.Context, objectPath string, file io.Reader, size int64, opts gateway.UploadOptions) error {
	if !opts.Upsert {
		_, err := m.client.StatObject(ctx, m.bucket, objectPath, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%s: %w", objectPath, ErrObjectExists)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("ошибка проверки объекта в MinIO: %w", err)
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectPath, file, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("ошибка загрузки в MinIO: %w", err)
	}

	return nil
}

func (m *MinIOClient) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, strings.TrimPrefix(objectPath, "/"))
}

func (m *MinIOClient) Remove(ctx context.Context, objectPath string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectPath,
		minio.RemoveObjectOptions{
			GovernanceBypass: true,
		})
	if err != nil {
		return fmt.Errorf("ошибка удаления из MinIO: %w", err)
	}
	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/*"]
	}]
}`, bucket)
}
