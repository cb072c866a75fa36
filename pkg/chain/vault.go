package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const receiptTimeout = 120 * time.Second

// VaultCaller submits buy (zap-in) and sell (exit-and-sell) calls to a
// vault contract and interprets the receipt. All slippage minimums are the
// permissive floor: the engine trades certainty of execution for price
// protection, which is what the single-shot threshold model wants.
type VaultCaller struct {
	client  *Client
	chainID *big.Int
	log     *zap.SugaredLogger
}

func NewVaultCaller(ctx context.Context, client *Client, log *zap.SugaredLogger) (*VaultCaller, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return &VaultCaller{client: client, chainID: chainID, log: log}, nil
}

// SubmitBuy sends a zapIn committing nativeAmount wei and waits for the
// receipt. Returns the transaction hash on success.
func (v *VaultCaller) SubmitBuy(ctx context.Context, wallet *Wallet, vault, asset common.Address, nativeAmount *big.Int, fees FeeParams) (common.Hash, error) {
	vaultABI := GetVaultABI()
	data, err := vaultABI.Pack("zapIn", asset, big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack zapIn: %w", err)
	}

	hash, err := v.submit(ctx, wallet, vault, nativeAmount, data, fees)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			rej.Reason = v.diagnoseBuy(ctx, wallet, nativeAmount)
		}
		return hash, err
	}
	return hash, nil
}

// SubmitSell sends an exitAndSell unwinding the vault's position in asset.
func (v *VaultCaller) SubmitSell(ctx context.Context, wallet *Wallet, vault, asset common.Address, fees FeeParams) (common.Hash, error) {
	vaultABI := GetVaultABI()
	data, err := vaultABI.Pack("exitAndSell", asset, big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack exitAndSell: %w", err)
	}

	hash, err := v.submit(ctx, wallet, vault, nil, data, fees)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			rej.Reason = v.diagnoseSell(ctx, vault, asset)
		}
		return hash, err
	}
	return hash, nil
}

// TokenBalance reads the vault's held balance of token.
func (v *VaultCaller) TokenBalance(ctx context.Context, vault, token common.Address) (*big.Int, error) {
	vaultABI := GetVaultABI()
	data, err := vaultABI.Pack("getTokenBalance", token)
	if err != nil {
		return nil, err
	}
	out, err := v.client.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: data})
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	if err := vaultABI.UnpackIntoInterface(&balance, "getTokenBalance", out); err != nil {
		return nil, err
	}
	return balance, nil
}

// submit builds, signs, sends, and confirms one transaction. Submission is
// never retried; a failed send surfaces as-is.
func (v *VaultCaller) submit(ctx context.Context, wallet *Wallet, to common.Address, value *big.Int, data []byte, fees FeeParams) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	signed, err := wallet.SignAndSend(ctx, v.client, v.chainID, func(nonce uint64) *types.Transaction {
		if fees.Legacy() {
			return types.NewTx(&types.LegacyTx{
				Nonce:    nonce,
				To:       &to,
				Value:    value,
				Gas:      fees.GasLimit,
				GasPrice: fees.GasPrice,
				Data:     data,
			})
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   v.chainID,
			Nonce:     nonce,
			To:        &to,
			Value:     value,
			Gas:       fees.GasLimit,
			GasFeeCap: fees.GasFeeCap,
			GasTipCap: fees.GasTipCap,
			Data:      data,
		})
	})
	if err != nil {
		return common.Hash{}, err
	}

	hash := signed.Hash()
	if v.log != nil {
		v.log.Infow("tx_sent", "hash", hash.Hex(), "to", to.Hex(), "gas_used_limit", fees.GasLimit)
	}

	receipt, err := v.client.WaitReceipt(ctx, hash, receiptTimeout)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, &RejectedError{TxHash: hash.Hex(), Reason: RejectUnknown}
	}
	if v.log != nil {
		v.log.Infow("tx_confirmed", "hash", hash.Hex(), "gas_used", receipt.GasUsed)
	}
	return hash, nil
}

// diagnoseBuy distinguishes empty wallets from pool problems. Best effort:
// any read failure keeps the reason unknown.
func (v *VaultCaller) diagnoseBuy(ctx context.Context, wallet *Wallet, nativeAmount *big.Int) RejectReason {
	balance, err := v.client.BalanceAt(ctx, wallet.Address())
	if err != nil {
		return RejectUnknown
	}
	if balance.Cmp(nativeAmount) < 0 {
		return RejectNoFunds
	}
	return RejectIlliquidity
}

func (v *VaultCaller) diagnoseSell(ctx context.Context, vault, asset common.Address) RejectReason {
	balance, err := v.TokenBalance(ctx, vault, asset)
	if err != nil {
		return RejectUnknown
	}
	if balance.Sign() == 0 {
		return RejectNoPosition
	}
	return RejectIlliquidity
}
