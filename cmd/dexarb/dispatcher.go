package main

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	executionApp "github.com/fd1az/dex-arb-bot/business/execution/app"
	"github.com/fd1az/dex-arb-bot/business/pipeline/infra/console"
	riskApp "github.com/fd1az/dex-arb-bot/business/risk/app"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// dispatcher consumes ranked opportunities from the pipeline and walks
// the best one through risk admission, re-validation, and relay
// submission. A nil submitter leaves the bot in detection-only mode.
type dispatcher struct {
	logger    logger.LoggerInterface
	reporter  *console.Reporter
	risk      *riskApp.Manager
	validator executionApp.Validator
	submitter executionApp.Submitter
}

func newDispatcher(log logger.LoggerInterface, reporter *console.Reporter,
	risk *riskApp.Manager, validator executionApp.Validator, submitter executionApp.Submitter) *dispatcher {
	return &dispatcher{
		logger:    log,
		reporter:  reporter,
		risk:      risk,
		validator: validator,
		submitter: submitter,
	}
}

// handle is installed as the pipeline's opportunity sink.
func (d *dispatcher) handle(ctx context.Context, opps []scannerDomain.ArbitrageOpportunity) {
	d.reporter.ReportOpportunities(ctx, opps)
	if d.submitter == nil || len(opps) == 0 {
		return
	}

	best := opps[0]

	if err := d.risk.CanTrade(ctx); err != nil {
		d.logger.Debug(ctx, "trade blocked", "pair", best.Pair, "error", err)
		return
	}

	size := weiTokens(best.TradeSize)
	decision, err := d.risk.Check(ctx, size)
	if err != nil {
		d.logger.Warn(ctx, "risk check failed", "pair", best.Pair, "error", err)
		return
	}
	if !decision.Allowed {
		d.logger.Debug(ctx, "trade denied", "pair", best.Pair, "reason", decision.Reason)
		return
	}

	res, err := d.validator.Validate(ctx, best)
	if err != nil {
		d.logger.Warn(ctx, "validation failed", "pair", best.Pair, "error", err)
		return
	}
	if !res.OK {
		d.logger.Debug(ctx, "opportunity not worth taking",
			"pair", best.Pair, "reason", res.Reason)
		return
	}

	// Positions are booked in trade-size units at a unit entry price, so
	// exposure tracks committed capital directly.
	entry := decimal.NewFromInt(1)
	id, err := d.risk.OpenPosition(ctx, best.BuyPool, size, entry)
	if err != nil {
		d.logger.Warn(ctx, "position rejected", "pair", best.Pair, "error", err)
		return
	}

	exec, err := d.submitter.Submit(ctx, best)
	if err != nil {
		d.risk.RecordFailure(ctx, err)
		if _, closeErr := d.risk.ClosePosition(ctx, id, entry); closeErr != nil {
			d.logger.Error(ctx, "failed to release position", "error", closeErr)
		}
		return
	}

	d.risk.RecordSuccess(ctx)
	d.reporter.ReportExecution(exec)

	// No settlement watcher exists, so the simulated net profit is booked
	// once the relay accepts the bundle.
	exit := entry
	if size.IsPositive() {
		exit = exit.Add(weiTokens(res.NetProfit).Div(size))
	}
	if _, err := d.risk.ClosePosition(ctx, id, exit); err != nil {
		d.logger.Warn(ctx, "position close reported halt", "error", err)
	}
}

// weiTokens converts a wei amount to whole tokens.
func weiTokens(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -18)
}
