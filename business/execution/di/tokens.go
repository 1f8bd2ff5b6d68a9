// Package di contains dependency injection tokens for the execution
// context.
package di

import (
	"github.com/fd1az/dex-arb-bot/business/execution/app"
	"github.com/fd1az/dex-arb-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Validator = di.NewToken[app.Validator]("execution.Validator")
	Submitter = di.NewToken[app.Submitter]("execution.Submitter")
)

// Helper functions for type-safe access
func GetValidator(c di.ServiceRegistry) app.Validator {
	return di.GetToken(c, Validator)
}

func GetSubmitter(c di.ServiceRegistry) app.Submitter {
	return di.GetToken(c, Submitter)
}
