package domain

import (
	"context"
	"io"
	"time"
)

// DefaultAccessTTL is how long a resolved attachment link stays valid.
const DefaultAccessTTL = time.Hour

type Attachment struct {
	ID        string    `db:"id" json:"id"`
	TradeID   string    `db:"trade_id" json:"trade_id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Path      string    `db:"path" json:"path"`
	Caption   *string   `db:"caption" json:"caption"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AttachmentView pairs an attachment with a temporary link. URL is nil when
// the object could not be resolved.
type AttachmentView struct {
	Attachment
	URL *string `json:"url"`
}

// Upload is one file selected for a trade.
type Upload struct {
	FileName string
	Data     []byte
}

// ObjectStore is the private bucket holding attachment bytes. Put must not
// overwrite: an existing key yields ErrDuplicateKey. SignedURL returns
// ErrNotFound when the object does not exist.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}
