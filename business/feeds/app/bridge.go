package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// BridgeStats is a snapshot of bridge counters.
type BridgeStats struct {
	Published uint64
	Blocked   uint64
}

// Bridge is the bounded queue between the feeds and the pipeline.
// When the consumer falls behind, Publish suspends the producer until
// a slot frees up; no accepted update is ever discarded.
type Bridge struct {
	logger logger.LoggerInterface

	updates chan domain.PriceUpdate
	done    chan struct{}

	published atomic.Uint64
	blocked   atomic.Uint64
	lastAt    atomic.Int64  // unix nanos of the last published update
	lastBlock atomic.Uint64 // highest block seen across accepted updates

	// closeMu orders in-flight publishes before the channel close.
	closeMu   sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once

	publishedMetric metric.Int64Counter
	blockedMetric   metric.Int64Counter
}

// NewBridge creates a bridge with the given buffer capacity.
func NewBridge(buffer int, log logger.LoggerInterface) (*Bridge, error) {
	if buffer <= 0 {
		buffer = 10000
	}

	meter := otel.Meter("feeds")

	published, err := meter.Int64Counter(
		"feed_updates_published_total",
		metric.WithDescription("Price updates accepted by the bridge"),
	)
	if err != nil {
		return nil, err
	}

	blocked, err := meter.Int64Counter(
		"feed_updates_blocked_total",
		metric.WithDescription("Publishes that had to wait for the consumer"),
	)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		logger:          log,
		updates:         make(chan domain.PriceUpdate, buffer),
		done:            make(chan struct{}),
		publishedMetric: published,
		blockedMetric:   blocked,
	}, nil
}

// Publish enqueues an update, suspending the caller while the bridge is
// full. It returns an error once the bridge is closed or ctx ends; the
// feed must treat either as a delivery failure.
func (b *Bridge) Publish(ctx context.Context, update domain.PriceUpdate) error {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed.Load() {
		return apperror.New(apperror.CodePipelineClosed,
			apperror.WithContext("pool", update.Pool.Hex()))
	}

	select {
	case b.updates <- update:
		b.accept(ctx, update)
		return nil
	default:
	}

	n := b.blocked.Add(1)
	b.blockedMetric.Add(ctx, 1)
	// Log the first stall and then sample, a saturated bridge would
	// otherwise flood the log.
	if n == 1 || n%1000 == 0 {
		b.logger.Warn(ctx, "bridge full, producer waiting",
			"pool", update.Pool.Hex(), "blocked_total", n)
	}

	select {
	case b.updates <- update:
		b.accept(ctx, update)
		return nil
	case <-b.done:
		return apperror.New(apperror.CodePipelineClosed,
			apperror.WithContext("pool", update.Pool.Hex()))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) accept(ctx context.Context, update domain.PriceUpdate) {
	b.published.Add(1)
	b.lastAt.Store(time.Now().UnixNano())
	b.advanceBlock(update.Block)
	b.publishedMetric.Add(ctx, 1)
}

// Updates returns the consumer side of the bridge. The channel closes
// when the bridge closes.
func (b *Bridge) Updates() <-chan domain.PriceUpdate {
	return b.updates
}

// Close stops the bridge. Suspended publishers wake with an error, and
// publishes after Close fail.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		// Wake blocked publishers first; the channel close waits for
		// every in-flight Publish to release closeMu.
		close(b.done)
		b.closeMu.Lock()
		close(b.updates)
		b.closeMu.Unlock()
	})
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Published: b.published.Load(),
		Blocked:   b.blocked.Load(),
	}
}

// advanceBlock raises the high-water block mark. Updates can arrive out
// of order across feeds, the mark never moves backwards.
func (b *Bridge) advanceBlock(block uint64) {
	for {
		cur := b.lastBlock.Load()
		if block <= cur || b.lastBlock.CompareAndSwap(cur, block) {
			return
		}
	}
}

// LastBlock returns the highest block number observed so far, zero if
// no update carried one yet.
func (b *Bridge) LastBlock() uint64 {
	return b.lastBlock.Load()
}

// LastUpdateAt returns the time of the most recent accepted update,
// zero if none arrived yet.
func (b *Bridge) LastUpdateAt() time.Time {
	ns := b.lastAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
