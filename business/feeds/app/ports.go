// Package app contains application services and port definitions for the feeds context.
package app

import (
	"context"

	"github.com/fd1az/dex-arb-bot/business/feeds/domain"
)

// UpdateHandler receives decoded price updates from a feed. A non-nil
// error tells the feed delivery has failed for good; the feed shuts its
// transport down rather than decoding into the void.
type UpdateHandler func(ctx context.Context, update domain.PriceUpdate) error

// PriceFeed defines the interface for a live DEX price source.
type PriceFeed interface {
	// ID returns the feed identifier, e.g. "bsc-pancakeswap".
	ID() string

	// Connect establishes the transport, retrying per the feed's policy.
	Connect(ctx context.Context) error

	// Disconnect closes the transport and clears subscriptions.
	Disconnect() error

	// Status returns the current feed status.
	Status() domain.FeedStatus

	// Subscribe registers the feed's pools with the venue and routes
	// decoded updates to deliver. Call after Connect; subscriptions are
	// replayed automatically when the transport reconnects.
	Subscribe(ctx context.Context, deliver UpdateHandler) error

	// Pools returns the pool set this feed watches.
	Pools() []domain.PoolSubscription
}
