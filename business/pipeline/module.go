// Package pipeline implements the pipeline bounded context: it owns the
// pool state table and turns raw feed updates into normalized prices,
// spreads, and ranked opportunities.
package pipeline

import (
	"context"

	feedsDI "github.com/fd1az/dex-arb-bot/business/feeds/di"
	"github.com/fd1az/dex-arb-bot/business/pipeline/app"
	pipelineDI "github.com/fd1az/dex-arb-bot/business/pipeline/di"
	scannerDI "github.com/fd1az/dex-arb-bot/business/scanner/di"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/di"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

// Module implements the pipeline bounded context.
type Module struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RegisterServices registers the pipeline with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pipelineDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		scanner := scannerDI.GetScanner(sr)

		p, err := app.NewPipeline(scanner, cfg.Scanner.MinSpreadBps, log)
		if err != nil {
			panic("failed to create pipeline: " + err.Error())
		}
		return p
	})
	return nil
}

// Startup connects the pipeline to the feed bridge and starts the
// consumer loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	p := pipelineDI.GetPipeline(mono.Services())
	bridge := feedsDI.GetBridge(mono.Services())

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		p.Run(runCtx, bridge.Updates())
	}()

	return nil
}

// Shutdown stops the consumer loop and waits for it to drain.
func (m *Module) Shutdown(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
