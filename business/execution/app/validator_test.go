package app

import (
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	scannerApp "github.com/fd1az/dex-arb-bot/business/scanner/app"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

type poolMapSource map[string]scannerDomain.PoolReserves

func (s poolMapSource) Reserves(exchange feedsDomain.ExchangeID, pool common.Address) (scannerDomain.PoolReserves, bool) {
	p, ok := s[string(exchange)+pool.Hex()]
	return p, ok
}

func (s poolMapSource) put(p scannerDomain.PoolReserves) {
	s[string(p.Exchange)+p.Pool.Hex()] = p
}

func testValidatorLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func reserveFixture(exchange feedsDomain.ExchangeID, poolByte byte, r0, r1 uint64) scannerDomain.PoolReserves {
	reserve0 := tokens(r0)
	reserve1 := tokens(r1)
	return scannerDomain.PoolReserves{
		Chain:    feedsDomain.ChainBSC,
		Exchange: exchange,
		Pool:     common.BytesToAddress([]byte{poolByte}),
		Token0:   common.BytesToAddress([]byte{0xA0}),
		Token1:   common.BytesToAddress([]byte{0xB0}),
		Reserve0: reserve0,
		Reserve1: reserve1,
		Price:    feedsDomain.PriceFromReserves(reserve0, reserve1),
	}
}

// opportunityFor builds an opportunity whose estimate matches the
// simulation over the given pools exactly.
func opportunityFor(buy, sell scannerDomain.PoolReserves, size *uint256.Int) scannerDomain.ArbitrageOpportunity {
	return scannerDomain.ArbitrageOpportunity{
		Pair:            buy.Pair(),
		BuyExchange:     buy.Exchange,
		BuyPool:         buy.Pool,
		BuyPrice:        buy.Price,
		SellExchange:    sell.Exchange,
		SellPool:        sell.Pool,
		SellPrice:       sell.Price,
		TradeSize:       size,
		EstimatedProfit: scannerApp.ArbitrageProfit(buy, sell, size),
	}
}

func TestValidateAcceptsFreshOpportunity(t *testing.T) {
	buy := reserveFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	sell := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 2000)

	source := poolMapSource{}
	source.put(buy)
	source.put(sell)

	v, err := NewSimValidator(ValidatorConfig{
		MinNetProfit:   uint256.NewInt(0),
		MaxSlippageBps: 100,
		GasCost:        uint256.NewInt(0),
	}, source, testValidatorLogger())
	if err != nil {
		t.Fatalf("NewSimValidator: %v", err)
	}

	opp := opportunityFor(buy, sell, tokens(1))
	if opp.EstimatedProfit.IsZero() {
		t.Fatal("fixture should be profitable")
	}

	res, err := v.Validate(t.Context(), opp)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK, got reason %q", res.Reason)
	}
	if res.SlippageBps != 0 {
		t.Fatalf("identical reserves should have zero slippage, got %d", res.SlippageBps)
	}
	if res.SimulatedProfit.Cmp(opp.EstimatedProfit) != 0 {
		t.Fatalf("simulated %s != estimated %s",
			res.SimulatedProfit, opp.EstimatedProfit)
	}
	if res.NetProfit.Cmp(res.SimulatedProfit) != 0 {
		t.Fatal("zero gas should leave net equal to simulated")
	}
}

func TestValidateRejectsDecayedOpportunity(t *testing.T) {
	buy := reserveFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	sell := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 2000)

	opp := opportunityFor(buy, sell, tokens(1))

	// The sell pool converges toward the buy pool before validation,
	// most of the edge is gone.
	drifted := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 1520)
	source := poolMapSource{}
	source.put(buy)
	source.put(drifted)

	v, err := NewSimValidator(ValidatorConfig{
		MaxSlippageBps: 100,
	}, source, testValidatorLogger())
	if err != nil {
		t.Fatalf("NewSimValidator: %v", err)
	}

	res, err := v.Validate(t.Context(), opp)
	if err == nil {
		t.Fatal("expected slippage error")
	}
	if apperror.GetCode(err) != apperror.CodeSlippageExceeded {
		t.Fatalf("expected SLIPPAGE_EXCEEDED, got %v", apperror.GetCode(err))
	}
	if res.SlippageBps <= 100 {
		t.Fatalf("expected slippage above bound, got %d", res.SlippageBps)
	}
}

func TestValidateUnprofitableAfterGas(t *testing.T) {
	buy := reserveFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	sell := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 2000)

	source := poolMapSource{}
	source.put(buy)
	source.put(sell)

	// Gas far beyond any plausible profit.
	v, err := NewSimValidator(ValidatorConfig{
		MaxSlippageBps: 100,
		GasCost:        tokens(1000),
	}, source, testValidatorLogger())
	if err != nil {
		t.Fatalf("NewSimValidator: %v", err)
	}

	res, err := v.Validate(t.Context(), opportunityFor(buy, sell, tokens(1)))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK {
		t.Fatal("expected economic rejection")
	}
	if res.Reason == "" {
		t.Fatal("rejection should carry a reason")
	}
	if !res.NetProfit.IsZero() {
		t.Fatalf("net profit should be zero, got %s", res.NetProfit)
	}
}

func TestValidateBelowProfitFloor(t *testing.T) {
	buy := reserveFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	sell := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 2000)

	source := poolMapSource{}
	source.put(buy)
	source.put(sell)

	v, err := NewSimValidator(ValidatorConfig{
		MinNetProfit:   tokens(1000),
		MaxSlippageBps: 100,
		GasCost:        uint256.NewInt(0),
	}, source, testValidatorLogger())
	if err != nil {
		t.Fatalf("NewSimValidator: %v", err)
	}

	res, err := v.Validate(t.Context(), opportunityFor(buy, sell, tokens(1)))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK {
		t.Fatal("profit below the floor should not validate")
	}
}

func TestValidateMissingPoolState(t *testing.T) {
	buy := reserveFixture(feedsDomain.ExchangePancakeSwap, 0x01, 1000, 1500)
	sell := reserveFixture(feedsDomain.ExchangeBiswap, 0x02, 1000, 2000)

	// Only the buy side is known.
	source := poolMapSource{}
	source.put(buy)

	v, err := NewSimValidator(DefaultValidatorConfig(), source, testValidatorLogger())
	if err != nil {
		t.Fatalf("NewSimValidator: %v", err)
	}

	_, err = v.Validate(t.Context(), opportunityFor(buy, sell, tokens(1)))
	if apperror.GetCode(err) != apperror.CodeSimulationFailed {
		t.Fatalf("expected SIMULATION_FAILED, got %v", err)
	}
}

func TestProfitSlippageBps(t *testing.T) {
	cases := []struct {
		name     string
		expected uint64
		actual   uint64
		want     int64
	}{
		{"beats estimate", 1000, 1100, 0},
		{"meets estimate", 1000, 1000, 0},
		{"ten percent short", 1000, 900, 1000},
		{"total loss", 1000, 0, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := profitSlippageBps(uint256.NewInt(tc.expected), uint256.NewInt(tc.actual))
			if got != tc.want {
				t.Fatalf("profitSlippageBps(%d, %d) = %d, want %d",
					tc.expected, tc.actual, got, tc.want)
			}
		})
	}
}
