package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-arb-bot/business/execution/domain"
	feedsDomain "github.com/fd1az/dex-arb-bot/business/feeds/domain"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
)

// ReserveSource supplies the latest reserves for a pool. The scanner's
// live pool set satisfies it.
type ReserveSource interface {
	Reserves(exchange feedsDomain.ExchangeID, pool common.Address) (scannerDomain.PoolReserves, bool)
}

// Validator re-checks a detected opportunity against current state and
// the configured safety bounds before it is handed to a submitter.
type Validator interface {
	Validate(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.ValidationResult, error)
}

// BundleBuilder turns an opportunity into signed transactions ready for
// relay submission.
type BundleBuilder interface {
	Build(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.Bundle, error)
}

// Submitter delivers a validated opportunity to an execution venue.
type Submitter interface {
	Submit(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.ExecutionResult, error)
}
