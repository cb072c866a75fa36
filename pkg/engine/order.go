package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vkotenev/zapwatch/pkg/chain"
)

// Mode selects the trade direction of a limit order.
type Mode int

const (
	Buy Mode = iota
	Sell
)

func (m Mode) String() string {
	switch m {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Status is the order lifecycle state. Transitions are monotonic:
// Active → Executing → Filled|Errored, with Stopped reachable only before a
// claim.
type Status int

const (
	Active Status = iota
	Executing
	Filled
	Errored
	Stopped
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Executing:
		return "executing"
	case Filled:
		return "filled"
	case Errored:
		return "errored"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Order is one running limit order. The identifying fields are immutable;
// the lifecycle fields are guarded by mu because ticks, stops, and the API
// listing run on different goroutines.
type Order struct {
	ID          string
	Mode        Mode
	TargetAsset common.Address
	PoolAddress common.Address
	VaultAddr   common.Address
	Threshold   float64
	BuyAmount   *big.Int // wei committed on buy; nil for sell
	Wallet      *chain.Wallet

	mu           sync.Mutex
	status       Status
	claimed      bool
	lastActionAt time.Time // zero until an execution attempt completes
}

func (o *Order) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// ThresholdMet evaluates the mode-specific trigger: buy below-or-at, sell
// above-or-at.
func (o *Order) ThresholdMet(price float64) bool {
	if o.Mode == Buy {
		return price <= o.Threshold
	}
	return price >= o.Threshold
}

// TryClaim atomically claims the order's single execution slot. Succeeds
// only when the order is still active, unclaimed, and outside the cooldown
// window; the winner owns the execution exclusively and no later tick can
// claim again.
func (o *Order) TryClaim(now time.Time, cooldown time.Duration) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != Active || o.claimed {
		return false
	}
	if !o.lastActionAt.IsZero() && now.Sub(o.lastActionAt) < cooldown {
		return false
	}
	o.claimed = true
	o.status = Executing
	return true
}

// Finalize records the outcome of the one execution attempt.
func (o *Order) Finalize(st Status, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = st
	o.lastActionAt = now
}

// MarkStopped transitions Active → Stopped. Refused once the order is
// claimed: an in-flight transaction is never abandoned, it finalizes to
// Filled or Errored on its own.
func (o *Order) MarkStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != Active || o.claimed {
		return false
	}
	o.status = Stopped
	return true
}

func (o *Order) validate() error {
	if o.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if o.Wallet == nil {
		return fmt.Errorf("wallet is required")
	}
	if o.Mode == Buy && (o.BuyAmount == nil || o.BuyAmount.Sign() <= 0) {
		return fmt.Errorf("buy amount must be positive")
	}
	zero := common.Address{}
	if o.TargetAsset == zero || o.PoolAddress == zero || o.VaultAddr == zero {
		return fmt.Errorf("asset, pool, and vault addresses are required")
	}
	return nil
}
