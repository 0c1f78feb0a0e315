// Package archive copies stored weekly reports to S3-compatible storage.
// When no bucket is configured the NoopArchiver is used and nothing leaves the
// local database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/compass/internal/config"
	"github.com/hyperengineering/compass/internal/types"
)

// Archiver stores a copy of a weekly report.
type Archiver interface {
	Archive(ctx context.Context, report *types.WeeklyReport) error
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
// This interface enables testing with mock implementations.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// S3Archiver writes each report as a JSON object.
type S3Archiver struct {
	client s3Client
	bucket string
}

// Archive uploads report as JSON, replacing any earlier copy of the same period.
func (a *S3Archiver) Archive(ctx context.Context, report *types.WeeklyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := ObjectKey(report)
	if err := a.client.PutObject(ctx, a.bucket, key, data, "application/json"); err != nil {
		return fmt.Errorf("upload report to S3: %w", err)
	}
	return nil
}

// NoopArchiver is used when archive storage is not configured.
type NoopArchiver struct{}

// Archive is a no-op when archiving is not configured.
func (a *NoopArchiver) Archive(ctx context.Context, report *types.WeeklyReport) error {
	return nil
}

// New creates the appropriate Archiver based on configuration.
// Returns NoopArchiver when bucket is empty, S3Archiver otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return &NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// ObjectKey returns the S3 object key of a report.
// Convention: {client_id}/{engagement_id}/week-{period}.json
func ObjectKey(report *types.WeeklyReport) string {
	return report.ClientID + "/" + report.EngagementID + "/week-" + strconv.Itoa(report.PeriodNumber) + ".json"
}
