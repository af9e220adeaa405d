package gcs

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Archiver stores raw aggregator pages in a bucket, one object per page.
type Archiver struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewArchiver uses Application Default Credentials.
func NewArchiver(ctx context.Context, bucket string) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket, now: time.Now}, nil
}

func (a *Archiver) Close() error {
	return a.client.Close()
}

func (a *Archiver) ArchivePage(ctx context.Context, itemID string, page int, raw []byte) error {
	name := ObjectName(itemID, page, a.now())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", a.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", a.bucket, name, err)
	}
	return nil
}

// ObjectName is items/{item}/{yyyy-mm-dd}/{unix}-{page}.json in UTC.
func ObjectName(itemID string, page int, at time.Time) string {
	at = at.UTC()
	return path.Join("items", itemID, at.Format("2006-01-02"), fmt.Sprintf("%d-%d.json", at.Unix(), page))
}
