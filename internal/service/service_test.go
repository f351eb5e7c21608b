package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/storage/cache"
	"github.com/jeovahfialho/tradejournal/internal/storage/objects"
	"github.com/jeovahfialho/tradejournal/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

var errBucketDown = errors.New("bucket unavailable")

// flakyStore fails the Put calls whose 0-based position is listed in failPuts.
type flakyStore struct {
	domain.ObjectStore

	mu       sync.Mutex
	puts     int
	failPuts map[int]bool
	removed  []string
	signed   []time.Duration
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	n := f.puts
	f.puts++
	f.mu.Unlock()

	if f.failPuts[n] {
		return errBucketDown
	}
	return f.ObjectStore.Put(ctx, key, r, size, contentType)
}

func (f *flakyStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removed = append(f.removed, key)
	f.mu.Unlock()
	return f.ObjectStore.Remove(ctx, key)
}

func (f *flakyStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	f.signed = append(f.signed, ttl)
	f.mu.Unlock()
	return f.ObjectStore.SignedURL(ctx, key, ttl)
}

// brokenMetadataRepo refuses attachment rows.
type brokenMetadataRepo struct {
	domain.TradeRepository
}

func (brokenMetadataRepo) CreateAttachment(context.Context, domain.Owner, *domain.Attachment) error {
	return &domain.PersistenceError{Op: "attachment_create", Err: errors.New("disk full")}
}

type fixture struct {
	repo        *sqlite.TradeRepository
	store       *flakyStore
	cache       *cache.MemoryCache
	attachments *AttachmentManager
	analytics   *AnalyticsService
	trades      *TradeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fs, err := objects.NewFSStore(t.TempDir(), "http://journal.test", []byte("secret"))
	require.NoError(t, err)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	f := &fixture{
		repo:  sqlite.NewTradeRepository(db).WithClock(tick),
		store: &flakyStore{ObjectStore: fs, failPuts: map[int]bool{}},
		cache: cache.NewMemoryCache(time.Minute),
	}
	f.attachments = NewAttachmentManager(f.repo, f.store)
	f.analytics = NewAnalyticsService(f.repo, f.cache)
	f.trades = NewTradeService(f.repo, f.attachments, f.analytics)
	return f
}

func (f *fixture) createTrade(t *testing.T, owner domain.Owner, raw domain.RawTrade) string {
	t.Helper()

	res, err := f.trades.Save(context.Background(), owner, raw, nil)
	require.NoError(t, err)
	require.Nil(t, res.UploadErr)
	return res.Trade.ID
}
