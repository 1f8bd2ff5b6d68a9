package dexws

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dex-arb-bot/business/feeds/domain"
	"github.com/fd1az/dex-arb-bot/internal/asset"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// Token addresses come from the shared registry.
var (
	TokenWBNB = asset.AddrWBNB
	TokenUSDT = asset.AddrUSDT
	TokenBUSD = asset.AddrBUSD
	TokenUSDC = asset.AddrUSDC
	TokenETH  = asset.AddrETH
	TokenBTCB = asset.AddrBTCB
)

// PancakeSwap V2 pair addresses.
var (
	pancakeWBNBUSDT = common.HexToAddress("0x16b9a82891338f9bA80E2D6970FddA79D1eb0daE")
	pancakeWBNBBUSD = common.HexToAddress("0x58F876857a02D6762E0101bb5C46A8c1ED44Dc16")
	pancakeWBNBUSDC = common.HexToAddress("0xd99c7F6C65857AC913a8f880A4cb84032AB2FC5b")
	pancakeUSDTBUSD = common.HexToAddress("0x7EFaEf62fDdCCa950418312c6C91Aef321375A00")
	pancakeETHWBNB  = common.HexToAddress("0x74E4716E431f45807DCF19f284c7aA99F18a4fbc")
	pancakeBTCBWBNB = common.HexToAddress("0x61EB789d75A95CAa3fF50ed7E47b96c132fEc082")
)

// Biswap pair addresses.
var (
	biswapWBNBUSDT = common.HexToAddress("0x8840C6252e2e86e545deFb6da98B2a0E26d8C1BA")
	biswapWBNBBUSD = common.HexToAddress("0xaCAac9311b0096E04Dfe96b6D87dec867d3883Dc")
	biswapUSDTBUSD = common.HexToAddress("0xDA8ceb724A06819c0A5cDb4304ea0cB27F8304cF")
)

// PancakeSwapPools returns the default PancakeSwap pool set.
func PancakeSwapPools() []domain.PoolSubscription {
	ex := domain.ExchangePancakeSwap
	return []domain.PoolSubscription{
		{Pool: pancakeWBNBUSDT, Token0: TokenWBNB, Token1: TokenUSDT, Exchange: ex},
		{Pool: pancakeWBNBBUSD, Token0: TokenWBNB, Token1: TokenBUSD, Exchange: ex},
		{Pool: pancakeWBNBUSDC, Token0: TokenWBNB, Token1: TokenUSDC, Exchange: ex},
		{Pool: pancakeUSDTBUSD, Token0: TokenUSDT, Token1: TokenBUSD, Exchange: ex},
		{Pool: pancakeETHWBNB, Token0: TokenETH, Token1: TokenWBNB, Exchange: ex},
		{Pool: pancakeBTCBWBNB, Token0: TokenBTCB, Token1: TokenWBNB, Exchange: ex},
	}
}

// BiswapPools returns the default Biswap pool set.
func BiswapPools() []domain.PoolSubscription {
	ex := domain.ExchangeBiswap
	return []domain.PoolSubscription{
		{Pool: biswapWBNBUSDT, Token0: TokenWBNB, Token1: TokenUSDT, Exchange: ex},
		{Pool: biswapWBNBBUSD, Token0: TokenWBNB, Token1: TokenBUSD, Exchange: ex},
		{Pool: biswapUSDTBUSD, Token0: TokenUSDT, Token1: TokenBUSD, Exchange: ex},
	}
}

// DefaultPools returns the preset pool set for a known exchange, nil
// otherwise.
func DefaultPools(exchange domain.ExchangeID) []domain.PoolSubscription {
	switch exchange {
	case domain.ExchangePancakeSwap:
		return PancakeSwapPools()
	case domain.ExchangeBiswap:
		return BiswapPools()
	default:
		return nil
	}
}

// NewPancakeSwapFeed creates a feed preconfigured with the default
// PancakeSwap pools.
func NewPancakeSwapFeed(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	cfg.Chain = domain.ChainBSC
	cfg.Exchange = domain.ExchangePancakeSwap
	return NewFeed(cfg, PancakeSwapPools(), log)
}

// NewBiswapFeed creates a feed preconfigured with the default Biswap
// pools.
func NewBiswapFeed(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	cfg.Chain = domain.ChainBSC
	cfg.Exchange = domain.ExchangeBiswap
	return NewFeed(cfg, BiswapPools(), log)
}
