package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"

	"parttrack/internal/logger"
)

// ErrArchivingDisabled is returned by Fetch when no object storage client
// is configured.
var ErrArchivingDisabled = errors.New("archiving is disabled")

// Archiver keeps the original uploaded file in object storage so a batch can
// be audited or replayed later. A nil client disables archiving.
type Archiver struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

func NewArchiver(client *minio.Client, bucket string, log logger.Logger) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		logger: log,
	}
}

// EnsureBucket creates the archive bucket if it does not exist yet.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	if a.client == nil {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}

	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}

	a.logger.Infow("Created import archive bucket", "bucket", a.bucket)
	return nil
}

// Store uploads the file and returns its object key. Returns an empty key
// when archiving is disabled.
func (a *Archiver) Store(ctx context.Context, batchID, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if a.client == nil {
		return "", nil
	}

	objectName := fmt.Sprintf("imports/%s/%s%s", time.Now().UTC().Format("2006/01/02"), batchID, filepath.Ext(fileName))

	_, err := a.client.PutObject(ctx, a.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive upload: %w", err)
	}

	return objectName, nil
}

// Fetch streams an archived file back, for batch downloads.
func (a *Archiver) Fetch(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if a.client == nil {
		return nil, ErrArchivingDisabled
	}

	object, err := a.client.GetObject(ctx, a.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived file: %w", err)
	}
	return object, nil
}
