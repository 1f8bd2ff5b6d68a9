// Package di contains dependency injection tokens for the feeds context.
package di

import (
	"github.com/fd1az/dex-arb-bot/business/feeds/app"
	"github.com/fd1az/dex-arb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Bridge = di.NewToken[*app.Bridge]("feeds.Bridge")
)

// Private dependency tokens - internal to the feeds module
var (
	PriceFeeds = di.NewToken[[]app.PriceFeed]("feeds:priceFeeds")
)

// Helper functions for type-safe access
func GetBridge(c di.ServiceRegistry) *app.Bridge {
	return di.GetToken(c, Bridge)
}

func GetPriceFeeds(c di.ServiceRegistry) []app.PriceFeed {
	return di.GetToken(c, PriceFeeds)
}
