package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arb-bot/business/risk/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/circuitbreaker"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// Manager enforces the risk limits: position sizing, total exposure,
// loss caps with hourly and daily windows, a failure cooldown, and a
// breaker that halts trading after consecutive execution failures.
type Manager struct {
	logger  logger.LoggerInterface
	limits  domain.RiskLimits
	breaker *circuitbreaker.Breaker[struct{}]
	now     func() time.Time

	mu            sync.Mutex
	positions     map[uint64]domain.Position
	nextID        uint64
	exposure      decimal.Decimal
	hourlyLoss    decimal.Decimal
	dailyLoss     decimal.Decimal
	hourStart     time.Time
	dayStart      time.Time
	halted        bool
	haltReason    string
	cooldownUntil time.Time

	metrics managerMetrics
}

var _ AdmissionChecker = (*Manager)(nil)

type managerMetrics struct {
	denied        metric.Int64Counter
	halts         metric.Int64Counter
	openPositions metric.Int64UpDownCounter
}

// NewManager creates a risk manager. breakerCfg tunes the consecutive
// failure halt; zero values fall back to the package defaults.
func NewManager(limits domain.RiskLimits, breakerCfg circuitbreaker.Config, log logger.LoggerInterface) (*Manager, error) {
	if breakerCfg.Name == "" {
		breakerCfg = circuitbreaker.DefaultConfig("risk")
	}

	meter := otel.Meter("risk")

	denied, err := meter.Int64Counter(
		"risk_admission_denied_total",
		metric.WithDescription("Trade proposals denied by the risk manager"),
	)
	if err != nil {
		return nil, err
	}
	halts, err := meter.Int64Counter(
		"risk_halts_total",
		metric.WithDescription("Times trading was halted"),
	)
	if err != nil {
		return nil, err
	}
	openPositions, err := meter.Int64UpDownCounter(
		"risk_open_positions",
		metric.WithDescription("Positions currently open"),
	)
	if err != nil {
		return nil, err
	}

	now := time.Now
	return &Manager{
		logger:    log,
		limits:    limits,
		breaker:   circuitbreaker.New[struct{}](breakerCfg),
		now:       now,
		positions: make(map[uint64]domain.Position),
		nextID:    1,
		hourStart: now(),
		dayStart:  now(),
		metrics: managerMetrics{
			denied:        denied,
			halts:         halts,
			openPositions: openPositions,
		},
	}, nil
}

// CanTrade reports whether trading is enabled: not halted, the failure
// breaker closed, and any cooldown elapsed.
func (m *Manager) CanTrade(ctx context.Context) error {
	m.mu.Lock()
	halted, reason := m.halted, m.haltReason
	cooldownUntil := m.cooldownUntil
	m.mu.Unlock()

	if halted {
		return apperror.New(apperror.CodeTradingHalted,
			apperror.WithContext("reason", reason))
	}
	if m.breaker.State() == gobreaker.StateOpen {
		return apperror.New(apperror.CodeTradingHalted,
			apperror.WithContext("reason", "consecutive execution failures"))
	}
	if now := m.now(); now.Before(cooldownUntil) {
		return apperror.New(apperror.CodeCooldownActive,
			apperror.WithContext("remaining", cooldownUntil.Sub(now).String()))
	}
	return nil
}

// Check evaluates one proposed position size against the limits.
func (m *Manager) Check(ctx context.Context, proposed decimal.Decimal) (domain.Decision, error) {
	if proposed.Sign() <= 0 {
		return domain.Decision{}, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext("proposed", proposed.String()))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if proposed.GreaterThan(m.limits.MaxPositionSize) {
		return m.deny(ctx, "size",
			fmt.Sprintf("position size %s exceeds max %s", proposed, m.limits.MaxPositionSize)), nil
	}
	if m.exposure.Add(proposed).GreaterThan(m.limits.MaxTotalExposure) {
		return m.deny(ctx, "exposure",
			fmt.Sprintf("exposure %s would exceed max %s", m.exposure.Add(proposed), m.limits.MaxTotalExposure)), nil
	}
	if len(m.positions) >= m.limits.MaxConcurrentPositions {
		return m.deny(ctx, "concurrency",
			fmt.Sprintf("max concurrent positions (%d) reached", m.limits.MaxConcurrentPositions)), nil
	}
	return domain.Allow(), nil
}

// deny counts and builds a rejection. Caller holds the lock.
func (m *Manager) deny(ctx context.Context, kind, reason string) domain.Decision {
	m.metrics.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", kind)))
	return domain.Deny(reason)
}

// OpenPosition admits and registers a new position, returning its id.
func (m *Manager) OpenPosition(ctx context.Context, token common.Address, size, entryPrice decimal.Decimal) (uint64, error) {
	if err := m.CanTrade(ctx); err != nil {
		return 0, err
	}
	decision, err := m.Check(ctx, size)
	if err != nil {
		return 0, err
	}
	if !decision.Allowed {
		return 0, apperror.New(apperror.CodePositionLimitExceeded,
			apperror.WithMessage(decision.Reason))
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.positions[id] = domain.Position{
		ID:         id,
		Token:      token,
		Size:       size,
		EntryPrice: entryPrice,
		OpenedAt:   m.now(),
	}
	m.exposure = m.exposure.Add(size)
	m.mu.Unlock()

	m.metrics.openPositions.Add(ctx, 1)
	m.logger.Info(ctx, "position opened", "id", id, "size", size.String())
	return id, nil
}

// ClosePosition settles a position at exitPrice and returns the PnL.
// Losses accumulate into the hourly and daily windows; breaching either
// cap halts trading and the halt is reported alongside the PnL.
func (m *Manager) ClosePosition(ctx context.Context, id uint64, exitPrice decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	position, ok := m.positions[id]
	if !ok {
		m.mu.Unlock()
		return decimal.Zero, apperror.New(apperror.CodeNotFound,
			apperror.WithContext("position", id))
	}
	delete(m.positions, id)
	m.exposure = m.exposure.Sub(position.Size)
	if m.exposure.Sign() < 0 {
		m.exposure = decimal.Zero
	}

	pnl := exitPrice.Sub(position.EntryPrice).Mul(position.Size)

	var haltErr error
	if pnl.Sign() < 0 {
		loss := pnl.Neg()
		m.rollWindows()
		m.hourlyLoss = m.hourlyLoss.Add(loss)
		m.dailyLoss = m.dailyLoss.Add(loss)

		if m.hourlyLoss.GreaterThan(m.limits.MaxHourlyLoss) {
			haltErr = m.haltLocked(ctx, "hourly loss limit exceeded")
		} else if m.dailyLoss.GreaterThan(m.limits.MaxDailyLoss) {
			haltErr = m.haltLocked(ctx, "daily loss limit exceeded")
		}
	}
	m.mu.Unlock()

	m.metrics.openPositions.Add(ctx, -1)
	m.logger.Info(ctx, "position closed", "id", id, "pnl", pnl.String())
	return pnl, haltErr
}

// rollWindows resets loss accumulators whose window has passed. Caller
// holds the lock.
func (m *Manager) rollWindows() {
	now := m.now()
	if now.Sub(m.hourStart) >= time.Hour {
		m.hourlyLoss = decimal.Zero
		m.hourStart = now
	}
	if now.Sub(m.dayStart) >= 24*time.Hour {
		m.dailyLoss = decimal.Zero
		m.dayStart = now
	}
}

// RecordFailure feeds one failed execution into the breaker and arms
// the failure cooldown.
func (m *Manager) RecordFailure(ctx context.Context, cause error) {
	m.mu.Lock()
	m.cooldownUntil = m.now().Add(m.limits.FailureCooldown)
	m.mu.Unlock()

	m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, cause
	})
	m.logger.Warn(ctx, "execution failure recorded", "error", cause)
}

// RecordSuccess feeds one successful execution into the breaker.
func (m *Manager) RecordSuccess(ctx context.Context) {
	m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, nil
	})
}

// Halt stops all trading until Resume.
func (m *Manager) Halt(ctx context.Context, reason string) {
	m.mu.Lock()
	m.haltLocked(ctx, reason)
	m.mu.Unlock()
}

// haltLocked flips the halt flag. Caller holds the lock.
func (m *Manager) haltLocked(ctx context.Context, reason string) error {
	if !m.halted {
		m.halted = true
		m.haltReason = reason
		m.metrics.halts.Add(ctx, 1)
		m.logger.Error(ctx, "trading halted", "reason", reason)
	}
	return apperror.New(apperror.CodeTradingHalted,
		apperror.WithContext("reason", reason))
}

// Resume lifts a halt. Loss windows keep their accumulated totals.
func (m *Manager) Resume(ctx context.Context) {
	m.mu.Lock()
	m.halted = false
	m.haltReason = ""
	m.mu.Unlock()
	m.logger.Info(ctx, "trading resumed")
}

// Metrics returns a snapshot of the current risk posture.
func (m *Manager) Metrics() domain.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Metrics{
		TotalExposure: m.exposure,
		PositionCount: len(m.positions),
		HourlyLoss:    m.hourlyLoss,
		DailyLoss:     m.dailyLoss,
		Halted:        m.halted,
	}
}
