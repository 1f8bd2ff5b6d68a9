package asset

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ChainBSC is the BNB Smart Chain mainnet id.
const ChainBSC = 56

// Well-known BSC token addresses.
var (
	AddrWBNB = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	AddrUSDT = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	AddrBUSD = common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56")
	AddrUSDC = common.HexToAddress("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d")
	AddrETH  = common.HexToAddress("0x2170Ed0880ac9A755fd29B2688956BD959F933F8")
	AddrBTCB = common.HexToAddress("0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c")
	AddrCAKE = common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
)

// Well-known BSC tokens.
var (
	WBNB = Token{Chain: ChainBSC, Address: AddrWBNB, Symbol: "WBNB", Name: "Wrapped BNB", Decimals: 18}
	USDT = Token{Chain: ChainBSC, Address: AddrUSDT, Symbol: "USDT", Name: "Tether USD", Decimals: 18}
	BUSD = Token{Chain: ChainBSC, Address: AddrBUSD, Symbol: "BUSD", Name: "Binance USD", Decimals: 18}
	USDC = Token{Chain: ChainBSC, Address: AddrUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 18}
	ETH  = Token{Chain: ChainBSC, Address: AddrETH, Symbol: "ETH", Name: "Binance-Peg Ethereum", Decimals: 18}
	BTCB = Token{Chain: ChainBSC, Address: AddrBTCB, Symbol: "BTCB", Name: "Binance-Peg BTCB", Decimals: 18}
	CAKE = Token{Chain: ChainBSC, Address: AddrCAKE, Symbol: "CAKE", Name: "PancakeSwap Token", Decimals: 18}
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry pre-populated with well-known
// tokens.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, t := range []Token{WBNB, USDT, BUSD, USDC, ETH, BTCB, CAKE} {
			defaultRegistry.Register(t)
		}
	})
	return defaultRegistry
}
