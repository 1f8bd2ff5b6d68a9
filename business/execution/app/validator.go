// Package app contains the execution ports and the simulation-based
// validator that gates relay submission.
package app

import (
	"context"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arb-bot/business/execution/domain"
	scannerApp "github.com/fd1az/dex-arb-bot/business/scanner/app"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

const bpsScale = 10_000

// ValidatorConfig holds the safety bounds applied before submission.
// Amounts are token1 wei; profits assume token1 is the wrapped native
// token, so gas and profit share a unit.
type ValidatorConfig struct {
	// MinNetProfit is the floor for profit after gas.
	MinNetProfit *uint256.Int
	// MaxSlippageBps caps how far the re-simulated profit may fall
	// below the profit the scanner estimated.
	MaxSlippageBps int64
	// GasCost is the projected cost of landing the bundle.
	GasCost *uint256.Int
}

// DefaultValidatorConfig returns the stock bounds: 0.001 token1
// minimum net profit, 1% slippage, 400k gas at 3 gwei.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinNetProfit:   uint256.NewInt(1e15),
		MaxSlippageBps: 100,
		GasCost:        uint256.NewInt(400_000 * 3_000_000_000),
	}
}

// SimValidator re-runs the two-hop swap against the latest reserves and
// rejects opportunities whose edge has decayed since detection.
type SimValidator struct {
	cfg      ValidatorConfig
	reserves ReserveSource
	logger   logger.LoggerInterface

	validations metric.Int64Counter
}

var _ Validator = (*SimValidator)(nil)

// NewSimValidator creates a validator over the given reserve source.
func NewSimValidator(cfg ValidatorConfig, reserves ReserveSource, log logger.LoggerInterface) (*SimValidator, error) {
	if cfg.MinNetProfit == nil {
		cfg.MinNetProfit = uint256.NewInt(0)
	}
	if cfg.GasCost == nil {
		cfg.GasCost = uint256.NewInt(0)
	}

	validations, err := otel.Meter("execution").Int64Counter(
		"execution_validations_total",
		metric.WithDescription("Opportunity validations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &SimValidator{
		cfg:         cfg,
		reserves:    reserves,
		logger:      log,
		validations: validations,
	}, nil
}

// Validate re-simulates the round trip with current reserves. The
// result carries the simulated numbers even when validation fails; a
// non-nil error means a hard stop (stale state or slippage breach),
// OK=false with a nil error means the trade is merely not worth taking.
func (v *SimValidator) Validate(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.ValidationResult, error) {
	res := domain.ValidationResult{
		SimulatedProfit: uint256.NewInt(0),
		GasCost:         v.cfg.GasCost,
		NetProfit:       uint256.NewInt(0),
	}

	buy, ok := v.reserves.Reserves(opp.BuyExchange, opp.BuyPool)
	if !ok {
		v.count(ctx, "stale")
		return res, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithMessage("buy pool state unavailable"),
			apperror.WithContext("pool", opp.BuyPool.Hex()))
	}
	sell, ok := v.reserves.Reserves(opp.SellExchange, opp.SellPool)
	if !ok {
		v.count(ctx, "stale")
		return res, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithMessage("sell pool state unavailable"),
			apperror.WithContext("pool", opp.SellPool.Hex()))
	}

	expected := opp.EstimatedProfit
	if expected == nil || expected.IsZero() {
		v.count(ctx, "stale")
		return res, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithMessage("opportunity carries no estimated profit"))
	}

	simulated := scannerApp.ArbitrageProfit(buy, sell, opp.TradeSize)
	res.SimulatedProfit = simulated
	res.SlippageBps = profitSlippageBps(expected, simulated)

	if v.cfg.MaxSlippageBps > 0 && res.SlippageBps > v.cfg.MaxSlippageBps {
		v.count(ctx, "slippage")
		v.logger.Warn(ctx, "opportunity decayed past slippage bound",
			"pair", opp.Pair,
			"expected", expected.String(),
			"simulated", simulated.String(),
			"slippage_bps", res.SlippageBps)
		return res, apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext("slippage_bps", res.SlippageBps),
			apperror.WithContext("max_bps", v.cfg.MaxSlippageBps))
	}

	if simulated.Cmp(v.cfg.GasCost) <= 0 {
		res.Reason = "gas cost exceeds simulated profit"
		v.count(ctx, "unprofitable")
		return res, nil
	}
	res.NetProfit = new(uint256.Int).Sub(simulated, v.cfg.GasCost)

	if res.NetProfit.Cmp(v.cfg.MinNetProfit) < 0 {
		res.Reason = "net profit below floor"
		v.count(ctx, "unprofitable")
		return res, nil
	}

	res.OK = true
	v.count(ctx, "ok")
	return res, nil
}

func (v *SimValidator) count(ctx context.Context, outcome string) {
	v.validations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// profitSlippageBps measures how far actual fell short of expected, in
// basis points of expected. Meeting or beating the estimate is zero.
func profitSlippageBps(expected, actual *uint256.Int) int64 {
	if actual.Cmp(expected) >= 0 {
		return 0
	}
	shortfall := new(uint256.Int).Sub(expected, actual)
	shortfall.Mul(shortfall, uint256.NewInt(bpsScale))
	shortfall.Div(shortfall, expected)
	if !shortfall.IsUint64() {
		return int64(^uint64(0) >> 1)
	}
	return int64(shortfall.Uint64())
}
