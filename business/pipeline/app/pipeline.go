// Package app contains the normalization and spread pipeline.
package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/business/pipeline/domain"
	scannerApp "github.com/fd1az/dex-arb-bot/business/scanner/app"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// PriceSink receives every normalized price the pipeline derives.
type PriceSink func(ctx context.Context, price domain.NormalizedPrice)

// SpreadSink receives every qualifying cross-venue spread.
type SpreadSink func(ctx context.Context, spread domain.SpreadInfo)

// OpportunitySink receives the ranked opportunity list produced after
// each processed update. Only called when the ranking is non-empty.
type OpportunitySink func(ctx context.Context, opportunities []scannerDomain.ArbitrageOpportunity)

// Pipeline owns the pool state table. Every feed update flows through
// ProcessUpdate, which normalizes the price, refreshes the scanner's
// pool set, and emits spreads and ranked opportunities to the sinks.
type Pipeline struct {
	logger  logger.LoggerInterface
	scanner *scannerApp.Scanner

	minSpreadBps int64

	mu     sync.RWMutex
	states map[domain.PoolKey]domain.PoolState

	priceSink       PriceSink
	spreadSink      SpreadSink
	opportunitySink OpportunitySink

	metrics pipelineMetrics
}

type pipelineMetrics struct {
	updatesProcessed  metric.Int64Counter
	spreadsDetected   metric.Int64Counter
	opportunitiesSeen metric.Int64Counter
	trackedPools      metric.Int64UpDownCounter
}

// NewPipeline creates a pipeline feeding the given scanner. minSpreadBps
// is the emission floor for spread observations.
func NewPipeline(scanner *scannerApp.Scanner, minSpreadBps int64, log logger.LoggerInterface) (*Pipeline, error) {
	meter := otel.Meter("pipeline")

	updates, err := meter.Int64Counter(
		"pipeline_updates_processed_total",
		metric.WithDescription("Feed updates run through the pipeline"),
	)
	if err != nil {
		return nil, err
	}
	spreads, err := meter.Int64Counter(
		"pipeline_spreads_detected_total",
		metric.WithDescription("Cross-venue spreads at or above the emission floor"),
	)
	if err != nil {
		return nil, err
	}
	opportunities, err := meter.Int64Counter(
		"pipeline_opportunities_total",
		metric.WithDescription("Opportunities surfaced by the scanner"),
	)
	if err != nil {
		return nil, err
	}
	tracked, err := meter.Int64UpDownCounter(
		"pipeline_tracked_pools",
		metric.WithDescription("Pools currently held in the state table"),
	)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		logger:       log,
		scanner:      scanner,
		minSpreadBps: minSpreadBps,
		states:       make(map[domain.PoolKey]domain.PoolState),
		metrics: pipelineMetrics{
			updatesProcessed:  updates,
			spreadsDetected:   spreads,
			opportunitiesSeen: opportunities,
			trackedPools:      tracked,
		},
	}, nil
}

// SetPriceSink installs the normalized price consumer. Call before Run.
func (p *Pipeline) SetPriceSink(sink PriceSink) {
	p.priceSink = sink
}

// SetSpreadSink installs the spread consumer. Call before Run.
func (p *Pipeline) SetSpreadSink(sink SpreadSink) {
	p.spreadSink = sink
}

// SetOpportunitySink installs the opportunity consumer. Call before Run.
func (p *Pipeline) SetOpportunitySink(sink OpportunitySink) {
	p.opportunitySink = sink
}

// Run consumes updates until the channel closes or the context ends.
func (p *Pipeline) Run(ctx context.Context, updates <-chan feedsDomain.PriceUpdate) {
	p.logger.Info(ctx, "pipeline consuming updates")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "pipeline stopping", "reason", ctx.Err())
			return
		case u, ok := <-updates:
			if !ok {
				p.logger.Info(ctx, "pipeline stopping, feed bridge closed")
				return
			}
			p.ProcessUpdate(ctx, u)
		}
	}
}

// ProcessUpdate is the single mutator of the pool state table.
func (p *Pipeline) ProcessUpdate(ctx context.Context, u feedsDomain.PriceUpdate) {
	state := domain.PoolState{
		Chain:     u.Chain,
		Exchange:  u.Exchange,
		Pool:      u.Pool,
		Token0:    u.Token0,
		Token1:    u.Token1,
		Reserve0:  u.Reserve0,
		Reserve1:  u.Reserve1,
		Price:     u.Price,
		UpdatedAt: u.Timestamp,
	}

	p.mu.Lock()
	_, known := p.states[state.Key()]
	p.states[state.Key()] = state
	p.mu.Unlock()

	p.metrics.updatesProcessed.Add(ctx, 1)
	if !known {
		p.metrics.trackedPools.Add(ctx, 1)
	}

	normalized := p.normalize(state)
	if p.priceSink != nil {
		p.priceSink(ctx, normalized)
	}

	p.emitSpreads(ctx, state)

	p.scanner.UpdatePool(scannerDomain.PoolReserves{
		Chain:     state.Chain,
		Exchange:  state.Exchange,
		Pool:      state.Pool,
		Token0:    state.Token0,
		Token1:    state.Token1,
		Reserve0:  state.Reserve0,
		Reserve1:  state.Reserve1,
		Price:     state.Price,
		UpdatedAt: state.UpdatedAt,
	})

	opportunities := p.scanner.Scan()
	if len(opportunities) > 0 {
		p.metrics.opportunitiesSeen.Add(ctx, int64(len(opportunities)))
		if p.opportunitySink != nil {
			p.opportunitySink(ctx, opportunities)
		}
	}
}

// normalize derives the depth and confidence metadata for one state.
func (p *Pipeline) normalize(state domain.PoolState) domain.NormalizedPrice {
	liquidity := domain.Liquidity(state.Reserve0, state.Reserve1)
	return domain.NormalizedPrice{
		Chain:      state.Chain,
		Exchange:   state.Exchange,
		Pool:       state.Pool,
		Token0:     state.Token0,
		Token1:     state.Token1,
		Price:      state.Price,
		Liquidity:  liquidity,
		Confidence: domain.ConfidenceFor(liquidity),
		Timestamp:  state.UpdatedAt,
	}
}

// emitSpreads compares the updated pool against every same-pair pool on
// its chain and reports gaps at or above the floor, buy side low.
func (p *Pipeline) emitSpreads(ctx context.Context, updated domain.PoolState) {
	p.mu.RLock()
	counterparts := make([]domain.PoolState, 0, 4)
	for _, other := range p.states {
		if updated.SamePair(other) {
			counterparts = append(counterparts, other)
		}
	}
	p.mu.RUnlock()

	for _, other := range counterparts {
		buy, sell := updated, other
		if sell.Price.Cmp(buy.Price) < 0 {
			buy, sell = sell, buy
		}

		spreadBps := scannerApp.SpreadBps(buy.Price, sell.Price)
		if spreadBps < p.minSpreadBps {
			continue
		}

		info := domain.SpreadInfo{
			Chain:        updated.Chain,
			Token0:       updated.Token0,
			Token1:       updated.Token1,
			BuyExchange:  buy.Exchange,
			BuyPool:      buy.Pool,
			BuyPrice:     buy.Price,
			SellExchange: sell.Exchange,
			SellPool:     sell.Pool,
			SellPrice:    sell.Price,
			SpreadBps:    spreadBps,
			MaxSize:      maxExecutableSize(buy, sell),
		}

		p.metrics.spreadsDetected.Add(ctx, 1)
		if p.spreadSink != nil {
			p.spreadSink(ctx, info)
		}
	}
}

// maxExecutableSize caps a spread at the depth of its shallower side.
func maxExecutableSize(buy, sell domain.PoolState) *uint256.Int {
	buyDepth := domain.Liquidity(buy.Reserve0, buy.Reserve1)
	sellDepth := domain.Liquidity(sell.Reserve0, sell.Reserve1)
	if buyDepth.Cmp(sellDepth) < 0 {
		return buyDepth
	}
	return sellDepth
}

// PoolStateFor returns the tracked state for one pool.
func (p *Pipeline) PoolStateFor(chain feedsDomain.ChainID, pool common.Address) (domain.PoolState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.states[domain.PoolKey{Chain: chain, Pool: pool}]
	return s, ok
}

// ChainPools returns every tracked pool on a chain.
func (p *Pipeline) ChainPools(chain feedsDomain.ChainID) []domain.PoolState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var pools []domain.PoolState
	for key, s := range p.states {
		if key.Chain == chain {
			pools = append(pools, s)
		}
	}
	return pools
}

// PoolCount returns the number of tracked pools.
func (p *Pipeline) PoolCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.states)
}
