// Package domain contains the core domain types for the scanner context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
)

// PoolReserves is the scanner's view of one pool: the latest reserves
// and the derived spot price.
type PoolReserves struct {
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

// Pair returns the token pair in pool order. Pools of the same pair
// share it because AMM factories order tokens by address.
func (p PoolReserves) Pair() string {
	return p.Token0.Hex() + "/" + p.Token1.Hex()
}

// ArbitrageOpportunity is one detected cross-venue price discrepancy:
// buy on the cheaper pool, sell on the dearer one.
type ArbitrageOpportunity struct {
	Timestamp       time.Time
	Chain           feedsDomain.ChainID
	Pair            string
	Token0          common.Address
	Token1          common.Address
	BuyExchange     feedsDomain.ExchangeID
	BuyPool         common.Address
	BuyPrice        *uint256.Int
	SellExchange    feedsDomain.ExchangeID
	SellPool        common.Address
	SellPrice       *uint256.Int
	SpreadBps       int64
	TradeSize       *uint256.Int
	EstimatedProfit *uint256.Int
}

// IsProfitable reports whether the simulated round trip nets more than
// it costs.
func (o ArbitrageOpportunity) IsProfitable() bool {
	return o.EstimatedProfit != nil && !o.EstimatedProfit.IsZero()
}

// SpreadPercent returns the spread as a percentage.
func (o ArbitrageOpportunity) SpreadPercent() float64 {
	return float64(o.SpreadBps) / 100.0
}
