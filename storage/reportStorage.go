package storage

import (
	"CareDesk/config"
	"CareDesk/models"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// NewMinio connects to the object store holding prescription reports.
func NewMinio(cfg config.MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}
	return client, nil
}

// ReportStore keeps report files under <appointmentId>/ in one bucket.
type ReportStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

func NewReportStore(client *minio.Client, bucket string, logger *zap.Logger) *ReportStore {
	return &ReportStore{client: client, bucket: bucket, logger: logger}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ReportStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created report bucket", zap.String("bucket", s.bucket))
	return nil
}

// Upload stores one report and returns its metadata.
func (s *ReportStore) Upload(ctx context.Context, appointmentID, name, contentType string, size int64, body io.Reader) (models.ReportFile, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := ObjectKey(appointmentID, name)
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return models.ReportFile{}, fmt.Errorf("failed to upload report %s to bucket %s: %w", name, s.bucket, err)
	}
	s.logger.Debug("Uploaded report",
		zap.String("appointment_id", appointmentID),
		zap.String("object_key", key),
		zap.Int64("size", info.Size),
	)
	return models.ReportFile{
		Name:        name,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

// ObjectKey builds a unique key for a report of an appointment. Only the
// base name of the uploaded file is kept.
func ObjectKey(appointmentID, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "report"
	}
	return appointmentID + "/" + uuid.NewString() + "-" + base
}
