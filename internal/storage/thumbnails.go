package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/streamflow/internal/backend"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
)

// MaxThumbnailBytes bounds how much of a backend thumbnail is read
const MaxThumbnailBytes = 10 << 20

// ErrThumbnailTooLarge means the backend sent more than MaxThumbnailBytes
var ErrThumbnailTooLarge = errors.New("thumbnail exceeds size limit")

// ThumbnailSource fetches thumbnails from the backend
type ThumbnailSource interface {
	Thumbnail(ctx context.Context, id string) (*backend.Blob, error)
}

// Thumbnails serves video thumbnails from object storage, filling it from
// the backend on a miss. A nil store proxies straight to the backend.
type Thumbnails struct {
	store  ObjectStore
	source ThumbnailSource
	logger *logging.Logger
}

// NewThumbnails creates a thumbnail cache
func NewThumbnails(store ObjectStore, source ThumbnailSource, logger *logging.Logger) *Thumbnails {
	return &Thumbnails{store: store, source: source, logger: logger}
}

// ThumbnailKey is the object key of a video's thumbnail
func ThumbnailKey(videoID string) string {
	return fmt.Sprintf("thumbnails/%s", videoID)
}

// Get returns the thumbnail of videoID
func (t *Thumbnails) Get(ctx context.Context, videoID string) (*Object, error) {
	key := ThumbnailKey(videoID)

	if t.store != nil {
		obj, err := t.store.Get(ctx, key)
		switch {
		case err == nil:
			metrics.RecordCacheAccess("thumbnail", true)
			return obj, nil
		case errors.Is(err, ErrNotFound):
		default:
			t.logger.WithError(err).WithVideoID(videoID).Warn("thumbnail store read failed")
		}
		metrics.RecordCacheAccess("thumbnail", false)
	}

	blob, err := t.source.Thumbnail(ctx, videoID)
	if err != nil {
		return nil, err
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(io.LimitReader(blob.Body, MaxThumbnailBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) > MaxThumbnailBytes {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrThumbnailTooLarge)
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if t.store != nil {
		if err := t.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			t.logger.WithError(err).WithVideoID(videoID).Warn("thumbnail store write failed")
		}
	}

	return &Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Evict removes a stored thumbnail
func (t *Thumbnails) Evict(ctx context.Context, videoID string) {
	if t.store == nil {
		return
	}
	if err := t.store.Delete(ctx, ThumbnailKey(videoID)); err != nil {
		t.logger.WithError(err).WithVideoID(videoID).Warn("thumbnail eviction failed")
	}
}
