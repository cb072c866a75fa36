package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/vkotenev/zapwatch/pkg/util"
)

// ETHClient is the subset of ethclient.Client the engine touches. Tests
// substitute a fake.
type ETHClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TransientFunc decides whether an RPC error is worth retrying. Pluggable
// because the stale-read signature is node-specific.
type TransientFunc func(error) bool

// DefaultTransient matches rate-limit responses and the empty-revert
// artifact some nodes return right after a write.
func DefaultTransient(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		if code == -32005 || code == 429 {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "missing revert data"),
		strings.Contains(msg, "could not decode result data"):
		// Stale node state after a recent write.
		return true
	}
	return false
}

// Client wraps an ETHClient with bounded linear-backoff retry. Every read
// the engine performs goes through it; writes are sent exactly once.
type Client struct {
	eth       ETHClient
	clock     util.Clock
	attempts  int
	baseDelay time.Duration
	transient TransientFunc
	log       *zap.SugaredLogger
}

type ClientOption func(*Client)

func WithClock(c util.Clock) ClientOption {
	return func(cl *Client) { cl.clock = c }
}

func WithRetryPolicy(attempts int, baseDelay time.Duration) ClientOption {
	return func(cl *Client) {
		cl.attempts = attempts
		cl.baseDelay = baseDelay
	}
}

func WithTransientFunc(f TransientFunc) ClientOption {
	return func(cl *Client) { cl.transient = f }
}

func NewClient(eth ETHClient, log *zap.SugaredLogger, opts ...ClientOption) *Client {
	c := &Client{
		eth:       eth,
		clock:     util.RealClock{},
		attempts:  3,
		baseDelay: time.Second,
		transient: DefaultTransient,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the RPC endpoint and wraps the connection.
func Dial(rpcURL string, log *zap.SugaredLogger, opts ...ClientOption) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return NewClient(eth, log, opts...), nil
}

// withRetry runs fn up to c.attempts times, sleeping baseDelay*attempt
// between transient failures. Non-transient errors propagate immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var last error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if !c.transient(last) {
			return last
		}
		if attempt == c.attempts {
			break
		}
		delay := time.Duration(attempt) * c.baseDelay
		if c.log != nil {
			c.log.Warnw("rpc_retry", "op", op, "attempt", attempt, "delay_ms", delay.Milliseconds(), "err", last)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(delay):
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrRetryExhausted, op, last)
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "chain_id", func() error {
		var e error
		out, e = c.eth.ChainID(ctx)
		return e
	})
	return out, err
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, "call_contract", func() error {
		var e error
		out, e = c.eth.CallContract(ctx, msg, nil)
		return e
	})
	return out, err
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "suggest_gas_price", func() error {
		var e error
		out, e = c.eth.SuggestGasPrice(ctx)
		return e
	})
	return out, err
}

func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "suggest_gas_tip", func() error {
		var e error
		out, e = c.eth.SuggestGasTipCap(ctx)
		return e
	})
	return out, err
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "balance_at", func() error {
		var e error
		out, e = c.eth.BalanceAt(ctx, account, nil)
		return e
	})
	return out, err
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "pending_nonce", func() error {
		var e error
		out, e = c.eth.PendingNonceAt(ctx, account)
		return e
	})
	return out, err
}

// SendTransaction submits the signed transaction once. Never retried: a
// failed submission surfaces as an order error instead of risking a double
// spend.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

// WaitReceipt polls for the transaction receipt until it appears or the
// timeout elapses.
func (c *Client) WaitReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	deadline := c.clock.Now().Add(timeout)
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !c.transient(err) {
			return nil, err
		}
		if c.clock.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for transaction receipt: %s", txHash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(2 * time.Second):
		}
	}
}
