// Package relay implements bundle construction and submission to a
// block builder relay.
package relay

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/dex-arb-bot/business/execution/app"
	"github.com/fd1az/dex-arb-bot/business/execution/domain"
	scannerDomain "github.com/fd1az/dex-arb-bot/business/scanner/domain"
	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// executeSig is the executor contract entrypoint the bundle calls.
const executeSig = "executeArbitrage(address,address,uint256)"

// BuilderConfig holds the transaction parameters shared by every
// bundle.
type BuilderConfig struct {
	ChainID           uint64
	Executor          common.Address
	GasLimit          uint64
	GasPrice          *big.Int
	TargetBlockOffset uint64
}

// BlockSource reports the latest observed block height. The feed
// bridge's high-water mark satisfies it.
type BlockSource func() uint64

// TxBuilder signs one executor call per opportunity. The nonce is
// tracked locally; seed it with SetNonce before the first build.
type TxBuilder struct {
	cfg      BuilderConfig
	key      *ecdsa.PrivateKey
	from     common.Address
	selector []byte
	latest   BlockSource
	logger   logger.LoggerInterface

	nonce atomic.Uint64
}

var _ app.BundleBuilder = (*TxBuilder)(nil)

// NewTxBuilder creates a builder signing with the given hex-encoded
// private key.
func NewTxBuilder(cfg BuilderConfig, privateKeyHex string, latest BlockSource, log logger.LoggerInterface) (*TxBuilder, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithMessage("relay: invalid private key"),
			apperror.WithCause(err))
	}
	if cfg.GasPrice == nil || cfg.GasPrice.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithMessage("relay: gas price must be positive"))
	}

	return &TxBuilder{
		cfg:      cfg,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		selector: crypto.Keccak256([]byte(executeSig))[:4],
		latest:   latest,
		logger:   log,
	}, nil
}

// From returns the signer address.
func (b *TxBuilder) From() common.Address {
	return b.from
}

// SetNonce seeds the local nonce counter with the account's next nonce.
func (b *TxBuilder) SetNonce(n uint64) {
	b.nonce.Store(n)
}

// Build signs a single executor call spending the opportunity's trade
// size through the buy and sell pools, targeting the next block after
// the latest observed one.
func (b *TxBuilder) Build(ctx context.Context, opp scannerDomain.ArbitrageOpportunity) (domain.Bundle, error) {
	head := b.latest()
	if head == 0 {
		return domain.Bundle{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithMessage("relay: no block height observed yet"))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    b.nonce.Add(1) - 1,
		GasPrice: b.cfg.GasPrice,
		Gas:      b.cfg.GasLimit,
		To:       &b.cfg.Executor,
		Value:    big.NewInt(0),
		Data:     b.calldata(opp),
	})

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(b.cfg.ChainID))
	signed, err := types.SignTx(tx, signer, b.key)
	if err != nil {
		return domain.Bundle{}, apperror.New(apperror.CodeRelaySubmitFailed,
			apperror.WithMessage("relay: signing failed"),
			apperror.WithCause(err))
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return domain.Bundle{}, apperror.New(apperror.CodeRelaySubmitFailed,
			apperror.WithMessage("relay: encoding failed"),
			apperror.WithCause(err))
	}

	offset := b.cfg.TargetBlockOffset
	if offset == 0 {
		offset = 1
	}

	b.logger.Debug(ctx, "built bundle",
		"pair", opp.Pair,
		"target_block", head+offset,
		"tx_hash", signed.Hash().Hex())

	return domain.Bundle{
		Txs:         []string{hexutil.Encode(raw)},
		TargetBlock: head + offset,
	}, nil
}

// calldata packs selector plus (buyPool, sellPool, amountIn) as three
// 32-byte words.
func (b *TxBuilder) calldata(opp scannerDomain.ArbitrageOpportunity) []byte {
	data := make([]byte, 0, 4+3*32)
	data = append(data, b.selector...)
	data = append(data, common.LeftPadBytes(opp.BuyPool.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(opp.SellPool.Bytes(), 32)...)
	var size [32]byte
	if opp.TradeSize != nil {
		size = opp.TradeSize.Bytes32()
	}
	data = append(data, size[:]...)
	return data
}
