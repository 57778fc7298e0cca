package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// GCSStore reads and writes objects in Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	// UploadTimeout bounds a single Put.
	UploadTimeout time.Duration
}

// NewGCSStore creates a GCSStore with a two minute upload timeout.
func NewGCSStore() *GCSStore {
	return &GCSStore{UploadTimeout: 2 * time.Minute}
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, gcsScheme) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Fetch downloads the object bytes.
func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Put uploads data. GCS only exposes the object once the writer is closed,
// so a failed upload leaves the previous object in place.
func (s *GCSStore) Put(ctx context.Context, uri string, data []byte) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	var cancel context.CancelFunc
	if s.UploadTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.UploadTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	if err := upload(w, cancel, data); err != nil {
		return fmt.Errorf("upload GCS object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// upload writes data and closes w. On a failed write the writer's context
// is cancelled before Close so the object is not finalized.
func upload(w io.WriteCloser, cancel context.CancelFunc, data []byte) error {
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}
