package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetNotInPool means the target asset matches neither side of the
	// pair. A configuration mistake, never transient.
	ErrAssetNotInPool = errors.New("asset not found in pool pair")

	// ErrExecutionRejected means the transaction mined but the vault reverted
	// or refused the trade.
	ErrExecutionRejected = errors.New("execution rejected")

	// ErrRetryExhausted wraps the last transient error after all attempts.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// RejectReason is the best-effort diagnosis attached to ErrExecutionRejected.
type RejectReason string

const (
	RejectUnknown     RejectReason = "unknown"
	RejectNoFunds     RejectReason = "insufficient funds"
	RejectNoPosition  RejectReason = "no position to sell"
	RejectIlliquidity RejectReason = "pool illiquidity"
)

// RejectedError carries the transaction hash and diagnosis of a failed
// receipt. Unwraps to ErrExecutionRejected.
type RejectedError struct {
	TxHash string
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("execution rejected (%s): tx %s", e.Reason, e.TxHash)
}

func (e *RejectedError) Unwrap() error { return ErrExecutionRejected }
