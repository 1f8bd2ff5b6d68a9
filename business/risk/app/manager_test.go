package app

import (
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arb-bot/business/risk/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/circuitbreaker"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "risk-test", nil)
}

func testManager(t *testing.T, limits domain.RiskLimits) *Manager {
	t.Helper()
	m, err := NewManager(limits, circuitbreaker.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestManager_CheckAllowsWithinLimits(t *testing.T) {
	m := testManager(t, domain.DefaultLimits())

	decision, err := m.Check(t.Context(), dec(10))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("10 of 50 max should be allowed, denied: %s", decision.Reason)
	}
}

func TestManager_CheckDeniesOversizedPosition(t *testing.T) {
	m := testManager(t, domain.DefaultLimits())

	decision, err := m.Check(t.Context(), dec(51))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.Allowed {
		t.Error("51 of 50 max should be denied")
	}
}

func TestManager_CheckRejectsNonPositiveSize(t *testing.T) {
	m := testManager(t, domain.DefaultLimits())

	if _, err := m.Check(t.Context(), dec(0)); apperror.GetCode(err) != apperror.CodeInvalidTradeSize {
		t.Errorf("zero size should fail with invalid trade size, got %v", err)
	}
}

func TestManager_ExposureAccumulates(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxTotalExposure = dec(100)
	m := testManager(t, limits)
	ctx := t.Context()
	token := common.BytesToAddress([]byte{0x01})

	for i := 0; i < 2; i++ {
		if _, err := m.OpenPosition(ctx, token, dec(40), dec(1)); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	// 80 held, 40 more would breach 100.
	decision, err := m.Check(ctx, dec(40))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.Allowed {
		t.Error("exposure breach should be denied")
	}

	snapshot := m.Metrics()
	if !snapshot.TotalExposure.Equal(dec(80)) {
		t.Errorf("exposure = %s, want 80", snapshot.TotalExposure)
	}
	if snapshot.PositionCount != 2 {
		t.Errorf("position count = %d, want 2", snapshot.PositionCount)
	}
}

func TestManager_ConcurrentPositionCap(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxConcurrentPositions = 2
	limits.MaxTotalExposure = dec(1000)
	m := testManager(t, limits)
	ctx := t.Context()
	token := common.BytesToAddress([]byte{0x01})

	for i := 0; i < 2; i++ {
		if _, err := m.OpenPosition(ctx, token, dec(1), dec(1)); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	if _, err := m.OpenPosition(ctx, token, dec(1), dec(1)); err == nil {
		t.Error("third position should exceed the concurrency cap")
	}
}

func TestManager_ClosePositionReleasesExposureAndComputesPnL(t *testing.T) {
	m := testManager(t, domain.DefaultLimits())
	ctx := t.Context()
	token := common.BytesToAddress([]byte{0x01})

	id, err := m.OpenPosition(ctx, token, dec(10), dec(2))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	pnl, err := m.ClosePosition(ctx, id, dec(3))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	// 10 units, entry 2, exit 3.
	if !pnl.Equal(dec(10)) {
		t.Errorf("pnl = %s, want 10", pnl)
	}
	if got := m.Metrics().TotalExposure; !got.IsZero() {
		t.Errorf("exposure after close = %s, want 0", got)
	}
}

func TestManager_CloseUnknownPosition(t *testing.T) {
	m := testManager(t, domain.DefaultLimits())

	if _, err := m.ClosePosition(t.Context(), 42, dec(1)); apperror.GetCode(err) != apperror.CodeNotFound {
		t.Errorf("unknown id should fail with not found, got %v", err)
	}
}

func TestManager_LossCapHaltsTrading(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxHourlyLoss = dec(5)
	m := testManager(t, limits)
	ctx := t.Context()
	token := common.BytesToAddress([]byte{0x01})

	id, err := m.OpenPosition(ctx, token, dec(10), dec(2))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Exit at 1 loses 10, beyond the 5 cap.
	if _, err := m.ClosePosition(ctx, id, dec(1)); apperror.GetCode(err) != apperror.CodeTradingHalted {
		t.Fatalf("loss breach should halt, got %v", err)
	}

	if err := m.CanTrade(ctx); apperror.GetCode(err) != apperror.CodeTradingHalted {
		t.Errorf("halted manager should refuse trades, got %v", err)
	}
	if !m.Metrics().Halted {
		t.Error("metrics should report the halt")
	}

	m.Resume(ctx)
	if err := m.CanTrade(ctx); err != nil {
		t.Errorf("resume should lift the halt, got %v", err)
	}
}

func TestManager_FailureCooldown(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.FailureCooldown = time.Hour
	m := testManager(t, limits)
	ctx := t.Context()

	clock := time.Now()
	m.now = func() time.Time { return clock }

	m.RecordFailure(ctx, apperror.New(apperror.CodeRelaySubmitFailed))

	if err := m.CanTrade(ctx); apperror.GetCode(err) != apperror.CodeCooldownActive {
		t.Fatalf("cooldown should block trading, got %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if err := m.CanTrade(ctx); err != nil {
		t.Errorf("elapsed cooldown should allow trading, got %v", err)
	}
}

func TestManager_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.FailureCooldown = 0
	m, err := NewManager(limits, circuitbreaker.Config{
		Name:         "risk-test",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 1.0,
		MinRequests:  3,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		m.RecordFailure(ctx, apperror.New(apperror.CodeRelaySubmitFailed))
	}

	if err := m.CanTrade(ctx); apperror.GetCode(err) != apperror.CodeTradingHalted {
		t.Errorf("open breaker should halt trading, got %v", err)
	}
}

func TestManager_HourlyWindowRolls(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxHourlyLoss = dec(100)
	m := testManager(t, limits)
	ctx := t.Context()
	token := common.BytesToAddress([]byte{0x01})

	clock := time.Now()
	m.now = func() time.Time { return clock }

	id, _ := m.OpenPosition(ctx, token, dec(10), dec(2))
	m.ClosePosition(ctx, id, dec(1)) // lose 10

	if got := m.Metrics().HourlyLoss; !got.Equal(dec(10)) {
		t.Fatalf("hourly loss = %s, want 10", got)
	}

	clock = clock.Add(2 * time.Hour)
	id, _ = m.OpenPosition(ctx, token, dec(10), dec(2))
	m.ClosePosition(ctx, id, dec(1))

	// Window rolled, only the fresh loss counts.
	if got := m.Metrics().HourlyLoss; !got.Equal(dec(10)) {
		t.Errorf("hourly loss after roll = %s, want 10", got)
	}
	if got := m.Metrics().DailyLoss; !got.Equal(dec(20)) {
		t.Errorf("daily loss = %s, want 20", got)
	}
}
