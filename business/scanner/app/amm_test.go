package app

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/business/scanner/domain"
)

func TestSwapOutput_KnownBounds(t *testing.T) {
	reserveIn := uint256.NewInt(1e18)
	reserveOut := uint256.NewInt(2e18)
	amountIn := uint256.NewInt(1e17)

	out := SwapOutput(reserveIn, reserveOut, amountIn)

	lower := uint256.NewInt(15e16) // 0.15 token
	upper := uint256.NewInt(2e17)  // 0.20 token
	if out.Cmp(lower) <= 0 || out.Cmp(upper) >= 0 {
		t.Errorf("output %s not strictly between %s and %s", out, lower, upper)
	}
}

func TestSwapOutput_ExactSmallPool(t *testing.T) {
	// out = (1000*100*997) / (1000*1000 + 100*997) = 99700000/1099700 = 90
	out := SwapOutput(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(100))
	if out.Cmp(uint256.NewInt(90)) != 0 {
		t.Errorf("expected 90, got %s", out)
	}
}

func TestSwapOutput_ZeroInputs(t *testing.T) {
	cases := []struct {
		name string
		rIn  *uint256.Int
		rOut *uint256.Int
		aIn  *uint256.Int
	}{
		{"zero reserve in", uint256.NewInt(0), uint256.NewInt(1e18), uint256.NewInt(1e17)},
		{"zero amount in", uint256.NewInt(1e18), uint256.NewInt(1e18), uint256.NewInt(0)},
		{"nil amount in", uint256.NewInt(1e18), uint256.NewInt(1e18), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if out := SwapOutput(tc.rIn, tc.rOut, tc.aIn); !out.IsZero() {
				t.Errorf("expected zero output, got %s", out)
			}
		})
	}
}

func TestSwapOutput_OverflowFallsBackToApproximation(t *testing.T) {
	// reserveOut * amountInWithFee overflows 256 bits; the float path
	// must produce a sane ratio instead of panicking or wrapping.
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)

	out := SwapOutput(huge, huge, huge)
	if out.IsZero() {
		t.Fatal("approximated output should be non-zero")
	}
	// Swapping the full reserve depth nets just under half the pool.
	if out.Cmp(huge) >= 0 {
		t.Errorf("output %s should be below reserve depth %s", out, huge)
	}
}

func TestSwapOutput_NeverExceedsReserveOut(t *testing.T) {
	reserveIn := uint256.NewInt(5e17)
	reserveOut := uint256.NewInt(3e18)

	for _, amount := range []uint64{1, 1e9, 1e18, 5e18} {
		out := SwapOutput(reserveIn, reserveOut, uint256.NewInt(amount))
		if out.Cmp(reserveOut) >= 0 {
			t.Errorf("amount %d drained the pool: out=%s reserveOut=%s", amount, out, reserveOut)
		}
	}
}

func TestSlippageBps_GrowsWithTradeSize(t *testing.T) {
	reserveIn := uint256.NewInt(1e18)
	reserveOut := uint256.NewInt(1e18)
	reserveIn.Mul(reserveIn, uint256.NewInt(1000))
	reserveOut.Mul(reserveOut, uint256.NewInt(1000))

	small := SlippageBps(reserveIn, reserveOut, uint256.NewInt(1e18))
	large := SlippageBps(reserveIn, reserveOut, new(uint256.Int).Mul(uint256.NewInt(1e18), uint256.NewInt(100)))

	if small < 0 || large < 0 {
		t.Fatalf("slippage must be non-negative, got %d and %d", small, large)
	}
	if large <= small {
		t.Errorf("larger trades should slip more: small=%d large=%d", small, large)
	}
}

func TestSlippageBps_ZeroTrade(t *testing.T) {
	if got := SlippageBps(uint256.NewInt(1e18), uint256.NewInt(1e18), uint256.NewInt(0)); got != 0 {
		t.Errorf("expected zero slippage for zero trade, got %d", got)
	}
}

func TestOptimalTradeSize_DeepPools(t *testing.T) {
	buyR0 := mulTokens(1000)
	buyR1 := mulTokens(1000)
	sellR0 := mulTokens(1000)
	sellR1 := mulTokens(1200)

	size := OptimalTradeSize(buyR0, buyR1, sellR0, sellR1)
	if size.IsZero() {
		t.Fatal("expected positive size for deep pools")
	}
	if size.Cmp(buyR0) <= 0 {
		t.Errorf("geometric mean of deep pools should exceed the buy reserve, got %s", size)
	}
}

func TestOptimalTradeSize_ZeroForShallowPools(t *testing.T) {
	// sqrt(1 * 0.997^2) < 1, so the heuristic clamps to zero.
	one := uint256.NewInt(1)
	size := OptimalTradeSize(one, one, one, one)
	if !size.IsZero() {
		t.Errorf("single-wei pools leave no size, got %s", size)
	}
}

func TestArbitrageProfit_RoundTrip(t *testing.T) {
	buy := domain.PoolReserves{Reserve0: mulTokens(1000), Reserve1: mulTokens(1500)}
	sell := domain.PoolReserves{Reserve0: mulTokens(1000), Reserve1: mulTokens(2000)}

	// Token0 costs 1.5 token1 in the buy pool and fetches 2.0 in the
	// sell pool; one token1 in should come back with a surplus.
	profit := ArbitrageProfit(buy, sell, uint256.NewInt(1e18))
	if profit.IsZero() {
		t.Fatal("expected positive profit from 1.5 vs 2.0 priced pools")
	}
}

func TestArbitrageProfit_LosingTripIsZero(t *testing.T) {
	buy := domain.PoolReserves{Reserve0: mulTokens(1000), Reserve1: mulTokens(2000)}
	sell := domain.PoolReserves{Reserve0: mulTokens(1000), Reserve1: mulTokens(1500)}

	profit := ArbitrageProfit(buy, sell, uint256.NewInt(1e18))
	if !profit.IsZero() {
		t.Errorf("reversed direction should lose, got profit %s", profit)
	}
}

func TestSpreadBps(t *testing.T) {
	base := new(uint256.Int).Lsh(uint256.NewInt(1), 60)
	up := new(uint256.Int).Add(base, new(uint256.Int).Rsh(base, 2))   // +25%
	down := new(uint256.Int).Sub(base, new(uint256.Int).Rsh(base, 2)) // -25%

	cases := []struct {
		name string
		buy  *uint256.Int
		sell *uint256.Int
		want int64
	}{
		{"quarter up", base, up, 2500},
		{"quarter down", base, down, -2500},
		{"equal", base, base, 0},
		{"zero buy price", uint256.NewInt(0), base, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SpreadBps(tc.buy, tc.sell); got != tc.want {
				t.Errorf("SpreadBps(%s, %s) = %d, want %d", tc.buy, tc.sell, got, tc.want)
			}
		})
	}
}

// mulTokens returns n whole tokens at 18 decimals.
func mulTokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

// poolFixture builds a scanner pool for tests in this package.
func poolFixture(exchange feedsDomain.ExchangeID, pool byte, r0, r1 uint64) domain.PoolReserves {
	reserve0 := mulTokens(r0)
	reserve1 := mulTokens(r1)
	return domain.PoolReserves{
		Chain:     feedsDomain.ChainBSC,
		Exchange:  exchange,
		Pool:      common.BytesToAddress([]byte{pool}),
		Token0:    common.BytesToAddress([]byte{0xA0}),
		Token1:    common.BytesToAddress([]byte{0xB0}),
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Price:     feedsDomain.PriceFromReserves(reserve0, reserve1),
		UpdatedAt: time.Now(),
	}
}
