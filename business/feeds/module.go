// Package feeds implements the feeds bounded context: live DEX price
// sources and the bridge that fans their updates into the pipeline.
package feeds

import (
	"context"
	"time"

	"github.com/fd1az/dex-arb-bot/business/feeds/app"
	feedsDI "github.com/fd1az/dex-arb-bot/business/feeds/di"
	"github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/business/feeds/infra/dexws"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/di"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

// Module implements the feeds bounded context.
type Module struct {
	feeds  []app.PriceFeed
	bridge *app.Bridge
}

// RegisterServices registers all feeds services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, feedsDI.Bridge, func(sr di.ServiceRegistry) *app.Bridge {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		bridge, err := app.NewBridge(cfg.Feeds.BridgeBuffer, log)
		if err != nil {
			panic("failed to create feed bridge: " + err.Error())
		}
		return bridge
	})

	di.RegisterToken(c, feedsDI.PriceFeeds, func(sr di.ServiceRegistry) []app.PriceFeed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		feedCfg := dexws.Config{
			Chain:          domain.ChainID(cfg.Feeds.ChainID),
			NodeWSURL:      cfg.Feeds.NodeWSURL,
			InitialBackoff: cfg.Feeds.InitialBackoff,
			MaxBackoff:     cfg.Feeds.MaxBackoff,
			MaxReconnects:  cfg.Feeds.MaxReconnects,
			PingInterval:   cfg.Feeds.PingInterval,
			ConnectTimeout: cfg.Feeds.ConnectTimeout,
		}

		var feeds []app.PriceFeed
		for _, name := range cfg.Feeds.Exchanges {
			exchange := domain.ExchangeID(name)
			pools := dexws.DefaultPools(exchange)
			if pools == nil {
				log.Warn(context.Background(), "no pool preset for exchange, skipping",
					"exchange", name)
				continue
			}

			feedCfg.Exchange = exchange
			feed, err := dexws.NewFeed(feedCfg, pools, log)
			if err != nil {
				panic("failed to create feed " + name + ": " + err.Error())
			}
			feeds = append(feeds, feed)
		}
		return feeds
	})

	return nil
}

// Startup connects every feed and routes its updates into the bridge.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	m.bridge = feedsDI.GetBridge(mono.Services())
	m.feeds = feedsDI.GetPriceFeeds(mono.Services())

	for _, feed := range m.feeds {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := feed.Connect(connectCtx)
		cancel()
		if err != nil {
			// The feed keeps retrying in the background; a venue being
			// down must not block the others.
			log.Warn(ctx, "feed connection failed, will retry in background",
				"feed", feed.ID(), "error", err)
			continue
		}

		if err := feed.Subscribe(ctx, m.bridge.Publish); err != nil {
			log.Error(ctx, "feed subscription failed",
				"feed", feed.ID(), "error", err)
			continue
		}

		log.Info(ctx, "feed started",
			"feed", feed.ID(), "pools", len(feed.Pools()))
	}

	return nil
}

// Shutdown disconnects the feeds and closes the bridge.
func (m *Module) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, feed := range m.feeds {
		if err := feed.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.bridge != nil {
		m.bridge.Close()
	}
	return firstErr
}
