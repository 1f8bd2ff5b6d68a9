// Package domain contains the core domain types for the execution
// context.
package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// ValidationResult is the outcome of re-simulating an opportunity
// against the latest pool state before any capital is committed.
// Amounts are denominated in token1 wei.
type ValidationResult struct {
	SimulatedProfit *uint256.Int
	GasCost         *uint256.Int
	NetProfit       *uint256.Int
	SlippageBps     int64
	OK              bool
	Reason          string
}

// Bundle is a set of signed raw transactions targeting one block.
// Txs carry 0x-prefixed RLP-encoded transactions in execution order.
type Bundle struct {
	Txs          []string
	TargetBlock  uint64
	MinTimestamp uint64
	MaxTimestamp uint64
}

// ExecutionResult reports what a relay accepted. Success means the
// relay took the bundle, not that it landed on chain; RealizedProfit
// stays nil until settlement is observed.
type ExecutionResult struct {
	BundleHash     string
	TxHash         string
	Success        bool
	RealizedProfit *uint256.Int
	GasUsed        uint64
	SubmittedAt    time.Time
}
