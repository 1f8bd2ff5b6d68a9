// Package di contains dependency injection tokens for the scanner context.
package di

import (
	"github.com/fd1az/dex-arb-bot/business/scanner/app"
	"github.com/fd1az/dex-arb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scanner = di.NewToken[*app.Scanner]("scanner.Scanner")
)

// Helper functions for type-safe access
func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}
