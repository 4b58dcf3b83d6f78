package attachment

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/storage"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_uploads_total",
			Help: "Total number of image uploads by bucket and result",
		},
		[]string{"bucket", "result"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_compensations_total",
			Help: "Blobs removed because their metadata row could not be written",
		},
		[]string{"bucket"},
	)

	blobDeleteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_blob_delete_failures_total",
			Help: "Blob deletions that failed and left an orphan in storage",
		},
		[]string{"bucket"},
	)
)

// Record is a stored image: one blob plus its metadata row.
type Record struct {
	ID        string
	ParentID  string
	ImageURL  string
	ObjectKey string
	CreatedAt time.Time
}

// Store persists metadata rows for one image table.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	ListByIDs(ctx context.Context, ids []string) ([]Record, error)
	ListByParent(ctx context.Context, parentID string) ([]Record, error)
	Delete(ctx context.Context, ids []string) error
}

// Manager owns one bucket and its metadata table.
type Manager struct {
	bucket   storage.Bucket
	store    Store
	maxBytes int64
	allowed  []string
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(bucket storage.Bucket, store Store, maxBytes int64, logger *zap.Logger) *Manager {
	return &Manager{
		bucket:   bucket,
		store:    store,
		maxBytes: maxBytes,
		allowed:  ImageTypes,
		logger:   logging.Named(logger, "attachment").With(zap.String("bucket", bucket.Name())),
		now:      time.Now,
	}
}

func (m *Manager) MaxBytes() int64 { return m.maxBytes }

// Validate checks a batch against this manager's limits.
func (m *Manager) Validate(files []File) error {
	return ValidateAll(files, m.maxBytes, m.allowed)
}

// Key builds a collision-resistant storage key scoped under parentID.
func (m *Manager) Key(parentID, contentType string) string {
	return fmt.Sprintf("%s/%d-%s.%s", parentID, m.now().UnixMilli(), uuid.NewString(), Extension(contentType))
}

// Upload 先并发写入所有文件，再逐条插入元数据行。
// If a blob write fails, the blobs already written are removed and nothing is
// inserted. If a row insert fails, that blob and every blob not yet recorded are
// removed; rows inserted before the failure are kept and returned with the error.
func (m *Manager) Upload(ctx context.Context, parentID string, files []File) ([]Record, error) {
	if err := m.Validate(files); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(files))
	urls := make([]string, len(files))
	for i, f := range files {
		keys[i] = m.Key(parentID, f.ContentType)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			url, err := m.bucket.Upload(gctx, keys[i], bytes.NewReader(f.Data), int64(len(f.Data)), normalizeType(f.ContentType))
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		written := make([]string, 0, len(keys))
		for i, url := range urls {
			if url != "" {
				written = append(written, keys[i])
			}
		}
		m.compensate(context.WithoutCancel(ctx), written)
		uploadsTotal.WithLabelValues(m.bucket.Name(), "blob_error").Inc()
		return nil, err
	}

	records := make([]Record, 0, len(files))
	for i := range files {
		rec := Record{ParentID: parentID, ImageURL: urls[i], ObjectKey: keys[i]}
		if err := m.store.Insert(ctx, &rec); err != nil {
			m.compensate(context.WithoutCancel(ctx), keys[i:])
			uploadsTotal.WithLabelValues(m.bucket.Name(), "row_error").Inc()
			return records, fmt.Errorf("insert image metadata: %w", err)
		}
		records = append(records, rec)
		uploadsTotal.WithLabelValues(m.bucket.Name(), "ok").Inc()
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.Before(records[b].CreatedAt)
	})
	return records, nil
}

func (m *Manager) compensate(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	compensationsTotal.WithLabelValues(m.bucket.Name()).Add(float64(len(keys)))
	if err := m.bucket.Remove(ctx, keys); err != nil {
		blobDeleteFailures.WithLabelValues(m.bucket.Name()).Add(float64(len(keys)))
		m.logger.Warn("orphaned blobs after failed upload", zap.Strings("keys", keys), zap.Error(err))
	}
}

// ListByParent returns the images attached to parentID, oldest first.
func (m *Manager) ListByParent(ctx context.Context, parentID string) ([]Record, error) {
	return m.store.ListByParent(ctx, parentID)
}

// RemoveByIDs deletes the blobs and rows of the given images.
func (m *Manager) RemoveByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	records, err := m.store.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	return m.remove(ctx, records)
}

// RemoveByParent deletes every image attached to parentID.
func (m *Manager) RemoveByParent(ctx context.Context, parentID string) error {
	records, err := m.store.ListByParent(ctx, parentID)
	if err != nil {
		return err
	}
	return m.remove(ctx, records)
}

// remove 先删除存储中的文件（失败只记录日志），再删除元数据行（失败会返回）。
func (m *Manager) remove(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	keys := make([]string, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		if key := m.keyOf(rec); key != "" {
			keys = append(keys, key)
		}
	}

	if len(keys) > 0 {
		if err := m.bucket.Remove(ctx, keys); err != nil {
			blobDeleteFailures.WithLabelValues(m.bucket.Name()).Add(float64(len(keys)))
			m.logger.Warn("failed to delete image blobs", zap.Strings("keys", keys), zap.Error(err))
		}
	}

	return m.store.Delete(ctx, ids)
}

func (m *Manager) keyOf(rec Record) string {
	if rec.ObjectKey != "" {
		return rec.ObjectKey
	}
	key, ok := storage.KeyFromURL(m.bucket.Name(), rec.ImageURL)
	if !ok {
		m.logger.Warn("cannot resolve storage key", zap.String("image_id", rec.ID), zap.String("url", rec.ImageURL))
		return ""
	}
	return key
}
