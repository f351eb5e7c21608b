package domain

import "context"

// TradeRepository persists trades and their attachment metadata. Every call
// carries the caller's owner identity; implementations must scope every
// statement to it and report foreign rows as ErrNotFound.
type TradeRepository interface {
	Create(ctx context.Context, owner Owner, t *Trade) (string, error)
	Get(ctx context.Context, owner Owner, id string) (*Trade, error)
	List(ctx context.Context, owner Owner, opts ListOptions) ([]Trade, error)
	Update(ctx context.Context, owner Owner, t *Trade) error
	Delete(ctx context.Context, owner Owner, id string) error

	CreateAttachment(ctx context.Context, owner Owner, a *Attachment) error
	ListAttachments(ctx context.Context, owner Owner, tradeID string) ([]Attachment, error)
}
