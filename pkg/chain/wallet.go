package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a signing capability bound to one address. Orders share wallets
// by reference; signing and nonce selection are serialized per wallet so
// concurrent orders never collide on nonces.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu sync.Mutex
}

func NewWallet(privateKeyHex string) (*Wallet, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}
	return &Wallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

func (w *Wallet) Address() common.Address { return w.address }

// SignAndSend claims the wallet's next pending nonce, signs the transaction
// built by buildTx, and submits it to the node, all under the wallet lock.
// The lock must span nonce read through send: the node's pending nonce only
// advances once it has received the transaction, so releasing earlier would
// let a second caller read the same nonce. chainID selects the signer.
func (w *Wallet) SignAndSend(ctx context.Context, client *Client, chainID *big.Int, buildTx func(nonce uint64) *types.Transaction) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	tx := buildTx(nonce)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed, nil
}

// WalletRegistry is the process-scoped set of registered wallets, shared by
// reference across orders.
type WalletRegistry struct {
	mu     sync.RWMutex
	byAddr map[common.Address]*Wallet
}

func NewWalletRegistry() *WalletRegistry {
	return &WalletRegistry{byAddr: make(map[common.Address]*Wallet)}
}

func (r *WalletRegistry) Add(w *Wallet) {
	r.mu.Lock()
	r.byAddr[w.Address()] = w
	r.mu.Unlock()
}

func (r *WalletRegistry) Get(addr common.Address) (*Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byAddr[addr]
	return w, ok
}

func (r *WalletRegistry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.byAddr))
	for addr := range r.byAddr {
		out = append(out, addr)
	}
	return out
}
