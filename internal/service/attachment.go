package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
	"github.com/jeovahfialho/tradejournal/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultResolveConcurrency = 8

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName replaces every character outside [a-zA-Z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// AttachmentManager stores screenshot bytes in the object store and their
// metadata in the repository.
type AttachmentManager struct {
	repo        domain.TradeRepository
	store       domain.ObjectStore
	now         func() time.Time
	concurrency int
	linkTTL     time.Duration

	mu        sync.Mutex
	lastStamp int64
}

func NewAttachmentManager(repo domain.TradeRepository, store domain.ObjectStore) *AttachmentManager {
	return &AttachmentManager{
		repo:        repo,
		store:       store,
		now:         time.Now,
		concurrency: defaultResolveConcurrency,
		linkTTL:     domain.DefaultAccessTTL,
	}
}

// WithClock replaces the timestamp source used for storage keys.
func (m *AttachmentManager) WithClock(now func() time.Time) *AttachmentManager {
	m.now = now
	return m
}

// WithConcurrency bounds how many links ResolveAll signs at once.
func (m *AttachmentManager) WithConcurrency(n int) *AttachmentManager {
	if n > 0 {
		m.concurrency = n
	}
	return m
}

// WithLinkTTL sets the lifetime used when a caller passes no ttl.
func (m *AttachmentManager) WithLinkTTL(ttl time.Duration) *AttachmentManager {
	if ttl > 0 {
		m.linkTTL = ttl
	}
	return m
}

// nextStamp returns epoch milliseconds, strictly increasing per manager.
func (m *AttachmentManager) nextStamp() int64 {
	ms := m.now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ms <= m.lastStamp {
		ms = m.lastStamp + 1
	}
	m.lastStamp = ms
	return ms
}

// ObjectKey builds {owner}/{trade}/{millis}-{sanitized name}.
func ObjectKey(owner domain.Owner, tradeID string, stamp int64, fileName string) string {
	return fmt.Sprintf("%s/%s/%d-%s", owner, tradeID, stamp, SanitizeFileName(fileName))
}

// Upload stores data under a fresh key and records it against the trade.
// The trade must exist and belong to owner before anything is written.
func (m *AttachmentManager) Upload(ctx context.Context, owner domain.Owner, tradeID string, data []byte, fileName string) (_ *domain.Attachment, err error) {
	ctx, span := tracing.StartSpan(ctx, "attachments.upload",
		attribute.String("trade_id", tradeID),
		attribute.Int("size", len(data)))
	defer func() { tracing.End(span, err) }()

	if _, err := m.repo.Get(ctx, owner, tradeID); err != nil {
		return nil, err
	}

	stamp := m.nextStamp()
	key := ObjectKey(owner, tradeID, stamp, fileName)

	if err := m.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), http.DetectContentType(data)); err != nil {
		metrics.RecordAttachmentUpload("storage_error", len(data))
		return nil, &domain.StorageError{Op: "upload", Key: key, Err: err}
	}

	att := &domain.Attachment{
		TradeID:   tradeID,
		Path:      key,
		CreatedAt: time.UnixMilli(stamp).UTC(),
	}
	if err := m.repo.CreateAttachment(ctx, owner, att); err != nil {
		metrics.RecordAttachmentUpload("metadata_error", len(data))
		logger.WithContext(ctx).Error("attachment metadata write failed, object left in place",
			zap.String("key", key),
			zap.Error(err))
		return nil, &domain.PersistenceError{Op: "attachment_metadata", Orphan: key, Err: err}
	}

	metrics.RecordAttachmentUpload("success", len(data))
	logger.WithContext(ctx).Debug("attachment stored",
		zap.String("trade_id", tradeID),
		zap.String("key", key))

	return att, nil
}

func (m *AttachmentManager) ListForTrade(ctx context.Context, owner domain.Owner, tradeID string) ([]domain.Attachment, error) {
	return m.repo.ListAttachments(ctx, owner, tradeID)
}

// ResolveAccessURL returns a temporary link for att, or nil when the object
// is missing or cannot be signed. A non-positive ttl means the manager's
// link lifetime.
func (m *AttachmentManager) ResolveAccessURL(ctx context.Context, att domain.Attachment, ttl time.Duration) *string {
	if ttl <= 0 {
		ttl = m.linkTTL
	}

	link, err := m.store.SignedURL(ctx, att.Path, ttl)
	if err != nil {
		metrics.RecordSignedURL(false)
		logger.WithContext(ctx).Debug("attachment link unavailable",
			zap.String("key", att.Path),
			zap.Error(err))
		return nil
	}

	metrics.RecordSignedURL(true)
	return &link
}

// ResolveAll signs links for atts concurrently. The result keeps input order.
func (m *AttachmentManager) ResolveAll(ctx context.Context, atts []domain.Attachment, ttl time.Duration) []domain.AttachmentView {
	views := make([]domain.AttachmentView, len(atts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i := range atts {
		i := i
		g.Go(func() error {
			views[i] = domain.AttachmentView{
				Attachment: atts[i],
				URL:        m.ResolveAccessURL(gctx, atts[i], ttl),
			}
			return nil
		})
	}
	_ = g.Wait()

	return views
}

// Remove deletes the stored objects of atts. Failures are logged and skipped.
func (m *AttachmentManager) Remove(ctx context.Context, atts []domain.Attachment) {
	for _, a := range atts {
		if err := m.store.Remove(ctx, a.Path); err != nil {
			logger.WithContext(ctx).Warn("failed to remove attachment object",
				zap.String("key", a.Path),
				zap.Error(err))
		}
	}
}
