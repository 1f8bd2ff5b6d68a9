package app

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/business/scanner/domain"
)

// Config holds opportunity detection thresholds.
type Config struct {
	MinSpreadBps        int64
	MaxSlippageBps      int64
	MinLiquidity        float64 // geometric-mean reserve depth, in whole tokens
	TradeSize           *uint256.Int // probe trade size, denominated in token1
	IncludeSameExchange bool
	MaxOpportunities    int
}

// DefaultConfig returns the thresholds used when nothing is configured:
// 0.1% minimum spread, 0.5% slippage cap, one token per probe trade.
func DefaultConfig() Config {
	return Config{
		MinSpreadBps:     10,
		MaxSlippageBps:   50,
		MinLiquidity:     10_000,
		TradeSize:        uint256.NewInt(1e18),
		MaxOpportunities: 64,
	}
}

type poolKey struct {
	pool     common.Address
	exchange feedsDomain.ExchangeID
}

// Scanner holds the live pool set and evaluates cross-venue spreads on
// demand. Safe for concurrent use.
type Scanner struct {
	cfg Config

	mu    sync.RWMutex
	pools map[poolKey]domain.PoolReserves
}

// NewScanner creates a Scanner. A nil or zero trade size falls back to
// the default probe size.
func NewScanner(cfg Config) *Scanner {
	if cfg.TradeSize == nil || cfg.TradeSize.IsZero() {
		cfg.TradeSize = uint256.NewInt(1e18)
	}
	return &Scanner{
		cfg:   cfg,
		pools: make(map[poolKey]domain.PoolReserves),
	}
}

// UpdatePool replaces or inserts the reserves for one pool.
func (s *Scanner) UpdatePool(p domain.PoolReserves) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[poolKey{pool: p.Pool, exchange: p.Exchange}] = p
}

// Reserves returns the latest reserves for one pool on one exchange.
func (s *Scanner) Reserves(exchange feedsDomain.ExchangeID, pool common.Address) (domain.PoolReserves, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[poolKey{pool: pool, exchange: exchange}]
	return p, ok
}

// PoolCount returns the number of tracked pools.
func (s *Scanner) PoolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

// Clear drops every tracked pool.
func (s *Scanner) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = make(map[poolKey]domain.PoolReserves)
}

// Scan evaluates every unordered pair of same-pair pools in both
// directions and returns the profitable opportunities, sorted by
// estimated profit descending and capped at MaxOpportunities.
func (s *Scanner) Scan() []domain.ArbitrageOpportunity {
	s.mu.RLock()
	byPair := make(map[string][]domain.PoolReserves)
	for _, p := range s.pools {
		k := canonicalPair(p)
		byPair[k] = append(byPair[k], p)
	}
	s.mu.RUnlock()

	var opportunities []domain.ArbitrageOpportunity
	for _, pools := range byPair {
		// Deterministic pairing order regardless of map iteration.
		sort.Slice(pools, func(i, j int) bool {
			if pools[i].Exchange != pools[j].Exchange {
				return pools[i].Exchange < pools[j].Exchange
			}
			return pools[i].Pool.Hex() < pools[j].Pool.Hex()
		})

		for i := 0; i < len(pools); i++ {
			for j := i + 1; j < len(pools); j++ {
				a, b := pools[i], pools[j]
				if a.Pool == b.Pool {
					continue
				}
				if !s.cfg.IncludeSameExchange && a.Exchange == b.Exchange {
					continue
				}
				if !s.liquid(a) || !s.liquid(b) {
					continue
				}
				if opp, ok := s.evaluate(a, b); ok {
					opportunities = append(opportunities, opp)
				}
				if opp, ok := s.evaluate(b, a); ok {
					opportunities = append(opportunities, opp)
				}
			}
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].EstimatedProfit.Cmp(opportunities[j].EstimatedProfit) > 0
	})
	if s.cfg.MaxOpportunities > 0 && len(opportunities) > s.cfg.MaxOpportunities {
		opportunities = opportunities[:s.cfg.MaxOpportunities]
	}
	return opportunities
}

// Best returns the highest-profit opportunity, or nil when none exists.
func (s *Scanner) Best() *domain.ArbitrageOpportunity {
	opportunities := s.Scan()
	if len(opportunities) == 0 {
		return nil
	}
	return &opportunities[0]
}

// evaluate checks the buy-on-a, sell-on-b direction and builds the
// opportunity when spread, slippage, and profit all qualify.
func (s *Scanner) evaluate(buy, sell domain.PoolReserves) (domain.ArbitrageOpportunity, bool) {
	spread := SpreadBps(buy.Price, sell.Price)
	if spread < s.cfg.MinSpreadBps {
		return domain.ArbitrageOpportunity{}, false
	}
	// First hop spends token1 against the buy pool.
	if s.cfg.MaxSlippageBps > 0 && SlippageBps(buy.Reserve1, buy.Reserve0, s.cfg.TradeSize) > s.cfg.MaxSlippageBps {
		return domain.ArbitrageOpportunity{}, false
	}

	profit := ArbitrageProfit(buy, sell, s.cfg.TradeSize)
	if profit.IsZero() {
		return domain.ArbitrageOpportunity{}, false
	}

	ts := buy.UpdatedAt
	if sell.UpdatedAt.After(ts) {
		ts = sell.UpdatedAt
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	return domain.ArbitrageOpportunity{
		Timestamp:       ts,
		Chain:           buy.Chain,
		Pair:            buy.Pair(),
		Token0:          buy.Token0,
		Token1:          buy.Token1,
		BuyExchange:     buy.Exchange,
		BuyPool:         buy.Pool,
		BuyPrice:        buy.Price,
		SellExchange:    sell.Exchange,
		SellPool:        sell.Pool,
		SellPrice:       sell.Price,
		SpreadBps:       spread,
		TradeSize:       s.cfg.TradeSize,
		EstimatedProfit: profit,
	}, true
}

// canonicalPair keys pools by chain and unordered token pair, so two
// venues listing the same pair group together even if their pool
// ordering ever differs.
func canonicalPair(p domain.PoolReserves) string {
	t0, t1 := p.Token0.Hex(), p.Token1.Hex()
	if t1 < t0 {
		t0, t1 = t1, t0
	}
	return fmt.Sprintf("%d:%s/%s", p.Chain, t0, t1)
}

// liquid reports whether the pool's geometric-mean depth clears the
// configured floor.
func (s *Scanner) liquid(p domain.PoolReserves) bool {
	if s.cfg.MinLiquidity <= 0 {
		return true
	}
	depth := math.Sqrt(toFloat(p.Reserve0) * toFloat(p.Reserve1))
	return depth >= s.cfg.MinLiquidity*1e18
}
