// Package app contains the AMM math and the opportunity scanner.
package app

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fd1az/dex-arb-bot/business/scanner/domain"
)

const (
	// bpsScale is the basis-point denominator shared by fee and spread math.
	bpsScale = 10_000

	// DefaultSwapFeeBps is the canonical 0.3% V2 pool fee.
	DefaultSwapFeeBps = 30
)

// SwapOutput computes the constant-product output for a swap of amountIn
// against a pool with the default 0.3% fee:
//
//	out = (amountIn * 9970 * reserveOut) / (reserveIn * 10000 + amountIn * 9970)
//
// Zero inputs yield a zero output. It never panics.
func SwapOutput(reserveIn, reserveOut, amountIn *uint256.Int) *uint256.Int {
	return SwapOutputWithFee(reserveIn, reserveOut, amountIn, DefaultSwapFeeBps)
}

// SwapOutputWithFee is SwapOutput with an explicit pool fee in basis
// points. When the exact 256-bit products overflow it falls back to a
// float64 approximation of the same ratio.
func SwapOutputWithFee(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) *uint256.Int {
	if reserveIn == nil || reserveOut == nil || amountIn == nil {
		return uint256.NewInt(0)
	}
	if reserveIn.IsZero() || amountIn.IsZero() || feeBps >= bpsScale {
		return uint256.NewInt(0)
	}

	feeMul := uint256.NewInt(bpsScale - feeBps)

	amountInWithFee, o1 := new(uint256.Int).MulOverflow(amountIn, feeMul)
	numerator, o2 := new(uint256.Int).MulOverflow(reserveOut, amountInWithFee)
	scaledIn, o3 := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(bpsScale))
	denominator, carry := new(uint256.Int).AddOverflow(scaledIn, amountInWithFee)
	if o1 || o2 || o3 || carry {
		return swapOutputApprox(reserveIn, reserveOut, amountIn, feeBps)
	}
	if denominator.IsZero() {
		return uint256.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}

// swapOutputApprox evaluates the swap formula in float64 space. Only
// reached for reserves far beyond what real pools hold, where relative
// error in the last bits no longer matters.
func swapOutputApprox(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) *uint256.Int {
	rIn := toFloat(reserveIn)
	rOut := toFloat(reserveOut)
	aIn := toFloat(amountIn)

	fee := float64(bpsScale-feeBps) / bpsScale
	denominator := rIn + aIn*fee
	if denominator <= 0 {
		return uint256.NewInt(0)
	}
	return fromFloat(rOut * aIn * fee / denominator)
}

// SlippageBps returns how far, in basis points, the execution price of a
// swap of amountIn falls below the spot price.
func SlippageBps(reserveIn, reserveOut, amountIn *uint256.Int) int64 {
	if reserveIn == nil || amountIn == nil || reserveIn.IsZero() || amountIn.IsZero() {
		return 0
	}

	rIn := toFloat(reserveIn)
	rOut := toFloat(reserveOut)
	aIn := toFloat(amountIn)

	spot := rOut / rIn
	if spot <= 0 {
		return 0
	}

	out := toFloat(SwapOutput(reserveIn, reserveOut, amountIn))
	exec := out / aIn

	return int64((spot - exec) / spot * bpsScale)
}

// OptimalTradeSize estimates the token0 input for a two-hop arbitrage
// between a buy pool and a sell pool using the geometric-mean heuristic
//
//	sqrt(buyR0 * buyR1 * sellR0 * sellR1 * 0.997^2) - buyR0
//
// evaluated in float64 and clamped to zero when no positive size exists.
// Callers cap the result against their own position limits.
func OptimalTradeSize(buyReserve0, buyReserve1, sellReserve0, sellReserve1 *uint256.Int) *uint256.Int {
	r0b := toFloat(buyReserve0)
	r1b := toFloat(buyReserve1)
	r0s := toFloat(sellReserve0)
	r1s := toFloat(sellReserve1)

	const feeFactor = 0.997 * 0.997 // two swaps

	optimal := math.Sqrt(r0b*r1b*r0s*r1s*feeFactor) - r0b
	if optimal <= 0 || math.IsNaN(optimal) {
		return uint256.NewInt(0)
	}
	return fromFloat(optimal)
}

// ArbitrageProfit simulates the round trip for a buy pool priced below a
// sell pool (price being token1 per token0): spend tradeSize of token1
// in the buy pool to acquire token0 cheaply, sell that token0 in the
// sell pool, and return the token1 surplus. A losing trip returns zero.
func ArbitrageProfit(buy, sell domain.PoolReserves, tradeSize *uint256.Int) *uint256.Int {
	token0Received := SwapOutput(buy.Reserve1, buy.Reserve0, tradeSize)
	token1Received := SwapOutput(sell.Reserve0, sell.Reserve1, token0Received)

	if token1Received.Cmp(tradeSize) <= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(token1Received, tradeSize)
}

// SpreadBps returns the buy-to-sell price gap in basis points, truncated
// toward zero. A zero or missing buy price yields zero.
func SpreadBps(buyPrice, sellPrice *uint256.Int) int64 {
	if buyPrice == nil || sellPrice == nil || buyPrice.IsZero() {
		return 0
	}
	buy := toFloat(buyPrice)
	sell := toFloat(sellPrice)
	if buy <= 0 {
		return 0
	}
	return int64((sell - buy) / buy * bpsScale)
}

func toFloat(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}

func fromFloat(f float64) *uint256.Int {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return uint256.NewInt(0)
	}
	i, _ := new(big.Float).SetFloat64(f).Int(nil)
	v, overflow := uint256.FromBig(i)
	if overflow {
		return uint256.NewInt(0)
	}
	return v
}
