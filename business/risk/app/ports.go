// Package app contains the risk manager and its admission port.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arb-bot/business/risk/domain"
)

// AdmissionChecker gates proposed trades before they reach execution.
type AdmissionChecker interface {
	// CanTrade reports whether trading is enabled at all: not halted,
	// breaker closed, cooldown elapsed.
	CanTrade(ctx context.Context) error

	// Check evaluates one proposed position size against the limits.
	Check(ctx context.Context, proposed decimal.Decimal) (domain.Decision, error)
}
