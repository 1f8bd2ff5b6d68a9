// Package scanner implements the scanner bounded context: pure AMM math
// and the cross-venue opportunity scanner over the live pool set.
package scanner

import (
	"context"

	"github.com/fd1az/dex-arb-bot/business/scanner/app"
	scannerDI "github.com/fd1az/dex-arb-bot/business/scanner/di"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/di"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

// Module implements the scanner bounded context.
type Module struct{}

// RegisterServices registers the scanner with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, scannerDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)

		scannerCfg := app.DefaultConfig()
		scannerCfg.MinSpreadBps = cfg.Scanner.MinSpreadBps
		scannerCfg.MaxSlippageBps = cfg.Scanner.MaxSlippageBps
		scannerCfg.MinLiquidity = cfg.Scanner.MinLiquidity
		scannerCfg.IncludeSameExchange = cfg.Scanner.AllowSameExchange
		if cfg.Scanner.MaxOpportunities > 0 {
			scannerCfg.MaxOpportunities = cfg.Scanner.MaxOpportunities
		}

		return app.NewScanner(scannerCfg)
	})
	return nil
}

// Startup is a no-op: the scanner is a passive service fed by the
// pipeline module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	return nil
}
