// Package risk implements the risk bounded context: admission checks,
// exposure tracking, and the trading halt switch.
package risk

import (
	"context"
	"time"

	"github.com/fd1az/dex-arb-bot/business/risk/app"
	riskDI "github.com/fd1az/dex-arb-bot/business/risk/di"
	"github.com/fd1az/dex-arb-bot/business/risk/domain"
	"github.com/fd1az/dex-arb-bot/internal/circuitbreaker"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/di"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the risk manager with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.Manager, func(sr di.ServiceRegistry) *app.Manager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		limits := domain.DefaultLimits()
		limits.MaxPositionSize = cfg.Risk.MaxTradeSizeDecimal()
		limits.MaxTotalExposure = cfg.Risk.MaxExposureDecimal()
		limits.FailureCooldown = cfg.Risk.Cooldown

		breakerCfg := circuitbreaker.Config{
			Name:         "risk",
			MaxRequests:  1,
			Interval:     time.Hour,
			Timeout:      cfg.Risk.HaltTimeout,
			FailureRatio: 1.0,
			MinRequests:  uint32(cfg.Risk.MaxConsecutiveFailures),
		}

		manager, err := app.NewManager(limits, breakerCfg, log)
		if err != nil {
			panic("failed to create risk manager: " + err.Error())
		}
		return manager
	})
	return nil
}

// Startup is a no-op: the manager is a passive service consulted by the
// execution wiring.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	return nil
}
