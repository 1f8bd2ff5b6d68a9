// Package domain contains the core domain types for the risk context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RiskLimits bounds what the admission checker lets through. Monetary
// amounts are denominated in the quote token, whole units.
type RiskLimits struct {
	MaxPositionSize        decimal.Decimal
	MaxTotalExposure       decimal.Decimal
	MaxConcurrentPositions int
	MaxHourlyLoss          decimal.Decimal
	MaxDailyLoss           decimal.Decimal
	FailureCooldown        time.Duration
}

// DefaultLimits returns conservative limits for an unconfigured run.
func DefaultLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:        decimal.NewFromInt(50),
		MaxTotalExposure:       decimal.NewFromInt(200),
		MaxConcurrentPositions: 5,
		MaxHourlyLoss:          decimal.NewFromInt(5),
		MaxDailyLoss:           decimal.NewFromInt(20),
		FailureCooldown:        5 * time.Second,
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an approving decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a rejecting decision with its reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Position is one open trade being tracked for exposure.
type Position struct {
	ID         uint64
	Token      common.Address
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// Metrics is a snapshot of the manager's risk posture.
type Metrics struct {
	TotalExposure decimal.Decimal
	PositionCount int
	HourlyLoss    decimal.Decimal
	DailyLoss     decimal.Decimal
	Halted        bool
}
