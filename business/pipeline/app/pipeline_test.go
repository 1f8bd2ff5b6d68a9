package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/business/pipeline/domain"
	scannerApp "github.com/fd1az/dex-arb-bot/business/scanner/app"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "pipeline-test", nil)
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(scannerApp.NewScanner(scannerApp.DefaultConfig()), 10, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func update(exchange feedsDomain.ExchangeID, pool byte, r0, r1 uint64) feedsDomain.PriceUpdate {
	reserve0 := tokens(r0)
	reserve1 := tokens(r1)
	return feedsDomain.PriceUpdate{
		Timestamp: time.Now(),
		Chain:     feedsDomain.ChainBSC,
		Exchange:  exchange,
		Pool:      common.BytesToAddress([]byte{pool}),
		Token0:    common.BytesToAddress([]byte{0xA0}),
		Token1:    common.BytesToAddress([]byte{0xB0}),
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Price:     feedsDomain.PriceFromReserves(reserve0, reserve1),
	}
}

func TestPipeline_PoolStateUpsert(t *testing.T) {
	p := testPipeline(t)
	ctx := t.Context()

	u := update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000)
	p.ProcessUpdate(ctx, u)

	state, ok := p.PoolStateFor(feedsDomain.ChainBSC, u.Pool)
	if !ok {
		t.Fatal("pool state should be tracked after processing")
	}
	if state.Reserve1.Cmp(tokens(150_000)) != 0 {
		t.Errorf("stored reserve1 = %s, want 150000 tokens", state.Reserve1)
	}

	// Same pool again replaces, never duplicates.
	p.ProcessUpdate(ctx, update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 160_000))
	if got := p.PoolCount(); got != 1 {
		t.Fatalf("expected 1 tracked pool, got %d", got)
	}
	state, _ = p.PoolStateFor(feedsDomain.ChainBSC, u.Pool)
	if state.Reserve1.Cmp(tokens(160_000)) != 0 {
		t.Errorf("reserve1 not replaced, got %s", state.Reserve1)
	}

	pools := p.ChainPools(feedsDomain.ChainBSC)
	if len(pools) != 1 {
		t.Errorf("expected 1 pool on chain, got %d", len(pools))
	}
}

func TestPipeline_EmitsNormalizedPrice(t *testing.T) {
	p := testPipeline(t)

	var got []domain.NormalizedPrice
	p.SetPriceSink(func(_ context.Context, price domain.NormalizedPrice) {
		got = append(got, price)
	})

	p.ProcessUpdate(t.Context(), update(feedsDomain.ExchangePancakeSwap, 0x01, 400_000, 100_000))

	if len(got) != 1 {
		t.Fatalf("expected one normalized price, got %d", len(got))
	}
	price := got[0]
	// sqrt(400k * 100k) = 200k tokens of depth, the 1.0 bucket starts at 1M.
	if price.Liquidity.Cmp(tokens(200_000)) != 0 {
		t.Errorf("liquidity = %s, want 200000 tokens", price.Liquidity)
	}
	if price.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", price.Confidence)
	}
	if price.Price.IsZero() {
		t.Error("normalized price should carry the spot price")
	}
}

func TestPipeline_EmitsSpread(t *testing.T) {
	p := testPipeline(t)
	ctx := t.Context()

	var spreads []domain.SpreadInfo
	p.SetSpreadSink(func(_ context.Context, s domain.SpreadInfo) {
		spreads = append(spreads, s)
	})

	p.ProcessUpdate(ctx, update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	if len(spreads) != 0 {
		t.Fatalf("single pool cannot have a spread, got %d", len(spreads))
	}

	p.ProcessUpdate(ctx, update(feedsDomain.ExchangeBiswap, 0x02, 150_000, 300_000))
	if len(spreads) != 1 {
		t.Fatalf("expected one spread, got %d", len(spreads))
	}

	s := spreads[0]
	if s.BuyExchange != feedsDomain.ExchangePancakeSwap {
		t.Errorf("buy side should be the cheaper venue, got %s", s.BuyExchange)
	}
	if s.SellExchange != feedsDomain.ExchangeBiswap {
		t.Errorf("sell side should be the dearer venue, got %s", s.SellExchange)
	}
	// 1.5 vs 2.0 is a 33.33% gap.
	if s.SpreadBps != 3333 {
		t.Errorf("spread = %d bps, want 3333", s.SpreadBps)
	}
	if s.MaxSize.IsZero() {
		t.Error("spread should carry the shallower pool's depth")
	}
}

func TestPipeline_NoSpreadBelowFloor(t *testing.T) {
	scanner := scannerApp.NewScanner(scannerApp.DefaultConfig())
	p, err := NewPipeline(scanner, 500, testLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	fired := false
	p.SetSpreadSink(func(_ context.Context, _ domain.SpreadInfo) { fired = true })

	ctx := t.Context()
	p.ProcessUpdate(ctx, update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	p.ProcessUpdate(ctx, update(feedsDomain.ExchangeBiswap, 0x02, 100_000, 151_000))

	if fired {
		t.Error("66 bps gap must stay under a 500 bps floor")
	}
}

func TestPipeline_EmitsRankedOpportunities(t *testing.T) {
	p := testPipeline(t)
	ctx := t.Context()

	var rankings [][]scannerDomain.ArbitrageOpportunity
	p.SetOpportunitySink(func(_ context.Context, opps []scannerDomain.ArbitrageOpportunity) {
		rankings = append(rankings, opps)
	})

	p.ProcessUpdate(ctx, update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	p.ProcessUpdate(ctx, update(feedsDomain.ExchangeBiswap, 0x02, 150_000, 300_000))

	if len(rankings) == 0 {
		t.Fatal("diverged pools should surface an opportunity")
	}
	last := rankings[len(rankings)-1]
	if len(last) == 0 || !last[0].IsProfitable() {
		t.Fatal("ranking should lead with a profitable opportunity")
	}
	if last[0].BuyExchange != feedsDomain.ExchangePancakeSwap {
		t.Errorf("buy side should be the cheaper venue, got %s", last[0].BuyExchange)
	}
}

func TestPipeline_RunConsumesUntilClose(t *testing.T) {
	p := testPipeline(t)

	updates := make(chan feedsDomain.PriceUpdate, 4)
	updates <- update(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000)
	updates <- update(feedsDomain.ExchangeBiswap, 0x02, 150_000, 300_000)
	close(updates)

	done := make(chan struct{})
	go func() {
		p.Run(t.Context(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run should return once the channel closes")
	}

	if got := p.PoolCount(); got != 2 {
		t.Errorf("expected both updates processed, got %d pools", got)
	}
}
