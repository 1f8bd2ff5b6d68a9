package app

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
)

func TestScanner_TwoPoolOpportunity(t *testing.T) {
	s := NewScanner(DefaultConfig())

	// PancakeSwap prices token0 at 1.5 token1, Biswap at 2.0. Buying
	// token0 on the cheaper PancakeSwap pool and selling it on Biswap
	// must qualify.
	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	s.UpdatePool(poolFixture(feedsDomain.ExchangeBiswap, 0x02, 150_000, 300_000))

	opportunities := s.Scan()
	if len(opportunities) != 1 {
		t.Fatalf("expected exactly one opportunity, got %d", len(opportunities))
	}

	opp := opportunities[0]
	if opp.BuyExchange != feedsDomain.ExchangePancakeSwap {
		t.Errorf("buy side should be the lower-priced pool, got %s", opp.BuyExchange)
	}
	if opp.SellExchange != feedsDomain.ExchangeBiswap {
		t.Errorf("sell side should be the higher-priced pool, got %s", opp.SellExchange)
	}
	if opp.BuyPrice.Cmp(opp.SellPrice) >= 0 {
		t.Errorf("buy price %s should be below sell price %s", opp.BuyPrice, opp.SellPrice)
	}
	if !opp.IsProfitable() {
		t.Error("emitted opportunity must carry positive profit")
	}
	if opp.SpreadBps < s.cfg.MinSpreadBps {
		t.Errorf("spread %d below configured minimum %d", opp.SpreadBps, s.cfg.MinSpreadBps)
	}
}

func TestScanner_NoOpportunityBelowMinSpread(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSpreadBps = 500
	s := NewScanner(cfg)

	// Roughly 0.7% apart, under the 5% floor.
	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	s.UpdatePool(poolFixture(feedsDomain.ExchangeBiswap, 0x02, 100_000, 151_000))

	if got := s.Scan(); len(got) != 0 {
		t.Errorf("expected no opportunities, got %d", len(got))
	}
}

func TestScanner_SameExchangeSkipped(t *testing.T) {
	s := NewScanner(DefaultConfig())

	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x02, 150_000, 300_000))

	if got := s.Scan(); len(got) != 0 {
		t.Fatalf("same-exchange pair must be skipped by default, got %d", len(got))
	}

	cfg := DefaultConfig()
	cfg.IncludeSameExchange = true
	s2 := NewScanner(cfg)
	s2.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	s2.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x02, 150_000, 300_000))

	if got := s2.Scan(); len(got) == 0 {
		t.Error("same-exchange pair should qualify when enabled")
	}
}

func TestScanner_IlliquidPoolSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLiquidity = 10_000 // tokens of geometric-mean depth
	s := NewScanner(cfg)

	// Deep pool and a two-token puddle with a huge spread.
	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000))
	s.UpdatePool(poolFixture(feedsDomain.ExchangeBiswap, 0x02, 2, 6))

	if got := s.Scan(); len(got) != 0 {
		t.Errorf("puddle pools must not produce opportunities, got %d", len(got))
	}
}

func TestScanner_DifferentPairsNotCompared(t *testing.T) {
	s := NewScanner(DefaultConfig())

	a := poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 100_000, 150_000)
	b := poolFixture(feedsDomain.ExchangeBiswap, 0x02, 150_000, 300_000)
	b.Token1 = common.BytesToAddress([]byte{0xC0}) // different pair

	s.UpdatePool(a)
	s.UpdatePool(b)

	if got := s.Scan(); len(got) != 0 {
		t.Errorf("pools of different pairs must not be compared, got %d", len(got))
	}
}

func TestScanner_UpdateInPlace(t *testing.T) {
	s := NewScanner(DefaultConfig())

	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500))
	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1600))

	if got := s.PoolCount(); got != 1 {
		t.Fatalf("same (pool, exchange) key should update in place, got %d pools", got)
	}

	s.Clear()
	if got := s.PoolCount(); got != 0 {
		t.Errorf("clear should drop all pools, got %d", got)
	}
}

func TestScanner_RankingSortedByProfit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLiquidity = 0
	s := NewScanner(cfg)

	// Two independent pairs with different edges against a common quote.
	small := poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	smallCounter := poolFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 1550)

	big := poolFixture(feedsDomain.ExchangePancakeSwap, 0x03, 1000, 1500)
	big.Token0 = common.BytesToAddress([]byte{0xA1})
	bigCounter := poolFixture(feedsDomain.ExchangeBiswap, 0x04, 1000, 3000)
	bigCounter.Token0 = common.BytesToAddress([]byte{0xA1})

	s.UpdatePool(small)
	s.UpdatePool(smallCounter)
	s.UpdatePool(big)
	s.UpdatePool(bigCounter)

	opportunities := s.Scan()
	if len(opportunities) < 2 {
		t.Fatalf("expected opportunities from both pairs, got %d", len(opportunities))
	}
	for i := 1; i < len(opportunities); i++ {
		if opportunities[i-1].EstimatedProfit.Cmp(opportunities[i].EstimatedProfit) < 0 {
			t.Fatalf("ranking not descending at index %d", i)
		}
	}

	best := s.Best()
	if best == nil {
		t.Fatal("best should surface the top opportunity")
	}
	if best.EstimatedProfit.Cmp(opportunities[0].EstimatedProfit) != 0 {
		t.Error("best must equal the first ranked opportunity")
	}
}

func TestScanner_BestEmpty(t *testing.T) {
	s := NewScanner(DefaultConfig())
	if best := s.Best(); best != nil {
		t.Errorf("empty scanner should have no best opportunity, got %+v", best)
	}
}

func TestScanner_MaxOpportunitiesCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOpportunities = 1
	cfg.MinLiquidity = 0
	cfg.IncludeSameExchange = true
	s := NewScanner(cfg)

	s.UpdatePool(poolFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500))
	s.UpdatePool(poolFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 1600))
	s.UpdatePool(poolFixture(feedsDomain.ExchangeBiswap, 0x03, 1000, 1700))

	if got := s.Scan(); len(got) != 1 {
		t.Errorf("ranking must be capped at 1, got %d", len(got))
	}
}
