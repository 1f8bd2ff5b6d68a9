// Package domain contains the core domain types for the feeds context.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChainID identifies a blockchain network.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainBSC      ChainID = 56
)

// ExchangeID identifies a DEX venue.
type ExchangeID string

const (
	ExchangePancakeSwap ExchangeID = "pancakeswap"
	ExchangeBiswap      ExchangeID = "biswap"
)

// FeedState represents the lifecycle phase of a price feed.
type FeedState string

const (
	StateDisconnected FeedState = "disconnected"
	StateConnecting   FeedState = "connecting"
	StateConnected    FeedState = "connected"
	StateReconnecting FeedState = "reconnecting"
	StateFailed       FeedState = "failed"
)

// FeedStatus combines the state with its detail: the attempt number
// while reconnecting, the reason once failed.
type FeedStatus struct {
	State   FeedState
	Attempt int
	Reason  string
}

// PoolSubscription describes one pool to watch.
type PoolSubscription struct {
	Pool     common.Address
	Token0   common.Address
	Token1   common.Address
	Exchange ExchangeID
}

// PriceUpdate is one observed pool state change. Reserves carry the raw
// on-chain values; Price is reserve1/reserve0 scaled by 1e18.
type PriceUpdate struct {
	Timestamp time.Time
	Chain     ChainID
	Block     uint64
	Exchange  ExchangeID
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Reserve0  *uint256.Int
	Reserve1  *uint256.Int
	Price     *uint256.Int
}

// Pair returns the token pair in pool order.
func (u PriceUpdate) Pair() string {
	return fmt.Sprintf("%s/%s", u.Token0.Hex(), u.Token1.Hex())
}

// pricePrecision is the 1e18 fixed-point scale shared by prices.
var pricePrecision = uint256.NewInt(1e18)

// PriceFromReserves computes reserve1*1e18/reserve0. A pool with an
// empty reserve0 yields a zero price rather than a division fault.
func PriceFromReserves(reserve0, reserve1 *uint256.Int) *uint256.Int {
	if reserve0 == nil || reserve1 == nil || reserve0.IsZero() {
		return uint256.NewInt(0)
	}
	scaled := new(uint256.Int).Mul(reserve1, pricePrecision)
	return scaled.Div(scaled, reserve0)
}
