// Package di contains dependency injection tokens for the pipeline context.
package di

import (
	"github.com/fd1az/dex-arb-bot/business/pipeline/app"
	"github.com/fd1az/dex-arb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pipeline = di.NewToken[*app.Pipeline]("pipeline.Pipeline")
)

// Helper functions for type-safe access
func GetPipeline(c di.ServiceRegistry) *app.Pipeline {
	return di.GetToken(c, Pipeline)
}
