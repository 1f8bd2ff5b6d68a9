// Package execution implements the execution bounded context: pre-trade
// validation and bundle submission to a builder relay.
package execution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arb-bot/business/execution/app"
	executionDI "github.com/fd1az/dex-arb-bot/business/execution/di"
	"github.com/fd1az/dex-arb-bot/business/execution/infra/relay"
	feedsDI "github.com/fd1az/dex-arb-bot/business/feeds/di"
	scannerDI "github.com/fd1az/dex-arb-bot/business/scanner/di"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/di"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the validator and the relay submitter.
// Resolving the submitter with the relay disabled is a wiring error;
// callers consult config before touching it.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Validator, func(sr di.ServiceRegistry) app.Validator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		vcfg := app.DefaultValidatorConfig()
		vcfg.MinNetProfit = tokenWei(cfg.Risk.MinProfit)
		vcfg.MaxSlippageBps = cfg.Scanner.MaxSlippageBps
		vcfg.GasCost = gasCost(cfg.Relay.GasLimit, cfg.Relay.GasPriceGwei)

		validator, err := app.NewSimValidator(vcfg, scannerDI.GetScanner(sr), log)
		if err != nil {
			panic("failed to create validator: " + err.Error())
		}
		return validator
	})

	di.RegisterToken(c, executionDI.Submitter, func(sr di.ServiceRegistry) app.Submitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bridge := feedsDI.GetBridge(sr)

		builder, err := relay.NewTxBuilder(relay.BuilderConfig{
			ChainID:           cfg.Feeds.ChainID,
			Executor:          common.HexToAddress(cfg.Relay.ExecutorAddress),
			GasLimit:          cfg.Relay.GasLimit,
			GasPrice:          gweiToWei(cfg.Relay.GasPriceGwei),
			TargetBlockOffset: cfg.Relay.TargetBlockOffset,
		}, cfg.Relay.PrivateKey, bridge.LastBlock, log)
		if err != nil {
			panic("failed to create bundle builder: " + err.Error())
		}

		submitter, err := relay.NewSubmitter(relay.Config{
			URL:         cfg.Relay.URL,
			Timeout:     cfg.Relay.Timeout,
			RateLimit:   cfg.Relay.RateLimit,
			Burst:       cfg.Relay.Burst,
			MaxAttempts: cfg.Relay.MaxAttempts,
		}, builder, log)
		if err != nil {
			panic("failed to create relay submitter: " + err.Error())
		}
		return submitter
	})

	return nil
}

// Startup is a no-op: both services are passive and resolved by the
// execution wiring downstream of the opportunity sink.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	return nil
}

// tokenWei converts a whole-token amount to wei.
func tokenWei(amount float64) *uint256.Int {
	wei := decimal.NewFromFloat(amount).Mul(decimal.New(1, 18)).BigInt()
	v, overflow := uint256.FromBig(wei)
	if overflow || wei.Sign() < 0 {
		return uint256.NewInt(0)
	}
	return v
}

// gweiToWei converts a gwei price to wei.
func gweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Mul(decimal.New(1, 9)).BigInt()
}

func gasCost(gasLimit uint64, gasPriceGwei float64) *uint256.Int {
	price, overflow := uint256.FromBig(gweiToWei(gasPriceGwei))
	if overflow {
		return uint256.NewInt(0)
	}
	return price.Mul(price, uint256.NewInt(gasLimit))
}
