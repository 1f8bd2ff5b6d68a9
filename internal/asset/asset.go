// Package asset holds token metadata for the chains the bot watches.
// Addresses are identity; symbols and decimals are display metadata.
package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes one ERC-20 token on one chain.
type Token struct {
	Chain    uint64
	Address  common.Address
	Symbol   string
	Name     string
	Decimals uint8
}

type tokenKey struct {
	chain   uint64
	address common.Address
}

// Registry is a thread-safe registry of known tokens.
type Registry struct {
	mu     sync.RWMutex
	tokens map[tokenKey]Token
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[tokenKey]Token)}
}

// Register adds or replaces a token.
func (r *Registry) Register(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenKey{chain: t.Chain, address: t.Address}] = t
}

// Lookup retrieves a token by chain and address.
func (r *Registry) Lookup(chain uint64, address common.Address) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[tokenKey{chain: chain, address: address}]
	return t, ok
}

// SymbolFor returns the token symbol, or a shortened address for
// unknown tokens.
func (r *Registry) SymbolFor(chain uint64, address common.Address) string {
	if t, ok := r.Lookup(chain, address); ok {
		return t.Symbol
	}
	hex := address.Hex()
	return fmt.Sprintf("%s..%s", hex[:6], hex[len(hex)-4:])
}

// PairLabel renders a trading pair as "WBNB/USDT".
func (r *Registry) PairLabel(chain uint64, token0, token1 common.Address) string {
	return r.SymbolFor(chain, token0) + "/" + r.SymbolFor(chain, token1)
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
