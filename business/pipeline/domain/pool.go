// Package domain contains the core domain types for the pipeline context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
)

// PoolKey identifies one pool across chains.
type PoolKey struct {
	Chain feedsDomain.ChainID
	Pool  common.Address
}

// PoolState is the last observed state of one pool.
type PoolState struct {
	Chain     feedsDomain.ChainID
	Exchange  feedsDomain.ExchangeID
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Reserve0  *uint256.Int
	Reserve1  *uint256.Int
	Price     *uint256.Int
	UpdatedAt time.Time
}

// Key returns the state's map key.
func (s PoolState) Key() PoolKey {
	return PoolKey{Chain: s.Chain, Pool: s.Pool}
}

// SamePair reports whether the other pool trades the same token pair on
// the same chain, in either token order, and is not the same pool.
func (s PoolState) SamePair(o PoolState) bool {
	if s.Chain != o.Chain || s.Pool == o.Pool {
		return false
	}
	if s.Token0 == o.Token0 && s.Token1 == o.Token1 {
		return true
	}
	return s.Token0 == o.Token1 && s.Token1 == o.Token0
}

// NormalizedPrice is a pool price enriched with the depth and confidence
// metadata downstream consumers rank by.
type NormalizedPrice struct {
	Chain      feedsDomain.ChainID
	Exchange   feedsDomain.ExchangeID
	Pool       common.Address
	Token0     common.Address
	Token1     common.Address
	Price      *uint256.Int
	Liquidity  *uint256.Int
	Confidence float64
	Timestamp  time.Time
}

// SpreadInfo is one observed cross-venue price gap for a token pair.
type SpreadInfo struct {
	Chain        feedsDomain.ChainID
	Token0       common.Address
	Token1       common.Address
	BuyExchange  feedsDomain.ExchangeID
	BuyPool      common.Address
	BuyPrice     *uint256.Int
	SellExchange feedsDomain.ExchangeID
	SellPool     common.Address
	SellPrice    *uint256.Int
	SpreadBps    int64
	MaxSize      *uint256.Int
}

// Liquidity returns the geometric mean of the two reserves, the depth
// figure confidence scoring buckets on. Reserves large enough to
// overflow the 256-bit product take a big.Int detour.
func Liquidity(reserve0, reserve1 *uint256.Int) *uint256.Int {
	if reserve0 == nil || reserve1 == nil || reserve0.IsZero() || reserve1.IsZero() {
		return uint256.NewInt(0)
	}
	product, overflow := new(uint256.Int).MulOverflow(reserve0, reserve1)
	if overflow {
		wide := new(big.Int).Mul(reserve0.ToBig(), reserve1.ToBig())
		root, _ := uint256.FromBig(wide.Sqrt(wide))
		return root
	}
	return new(uint256.Int).Sqrt(product)
}

// ConfidenceFor buckets a liquidity depth into a confidence score.
// Thresholds are in whole tokens at 18 decimals.
func ConfidenceFor(liquidity *uint256.Int) float64 {
	depth := liquidityTokens(liquidity)
	switch {
	case depth >= 1_000_000:
		return 1.0
	case depth >= 100_000:
		return 0.9
	case depth >= 10_000:
		return 0.7
	default:
		return 0.3
	}
}

func liquidityTokens(liquidity *uint256.Int) float64 {
	if liquidity == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(liquidity.ToBig()).Float64()
	return f / 1e18
}
