package chain

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/vkotenev/zapwatch/params"
)

// FeeParams is what a submission carries: either the EIP-1559 pair or a
// legacy flat price, never both.
type FeeParams struct {
	GasFeeCap *big.Int // max fee per gas (EIP-1559)
	GasTipCap *big.Int // max priority fee per gas (EIP-1559)
	GasPrice  *big.Int // legacy
	GasLimit  uint64
}

// Legacy reports which fee model the params were built for.
func (f FeeParams) Legacy() bool { return f.GasPrice != nil }

// GasPolicy gates submission on the current network fee level and builds
// fee parameters for the profile's gas model.
type GasPolicy struct {
	client  *Client
	profile params.NetworkProfile
	log     *zap.SugaredLogger
}

func NewGasPolicy(client *Client, profile params.NetworkProfile, log *zap.SugaredLogger) *GasPolicy {
	return &GasPolicy{client: client, profile: profile, log: log}
}

// ceilingWei converts the configured gwei ceiling once per check.
func (g *GasPolicy) ceilingWei() *big.Float {
	return new(big.Float).Mul(
		big.NewFloat(g.profile.MaxGasPriceGwei),
		big.NewFloat(1e9),
	)
}

// Acceptable returns false when the current fee level sits above the
// configured ceiling. Not an error: the caller skips the tick and the order
// stays active.
func (g *GasPolicy) Acceptable(ctx context.Context) (bool, error) {
	current, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return false, err
	}
	ok := FeeBelowCeiling(current, g.profile.MaxGasPriceGwei)
	if !ok && g.log != nil {
		g.log.Infow("gas_above_ceiling",
			"current_wei", current.String(),
			"ceiling_gwei", g.profile.MaxGasPriceGwei)
	}
	return ok, nil
}

// FeeBelowCeiling compares a wei fee value against a gwei ceiling.
func FeeBelowCeiling(feeWei *big.Int, ceilingGwei float64) bool {
	ceiling := new(big.Float).Mul(big.NewFloat(ceilingGwei), big.NewFloat(1e9))
	return new(big.Float).SetInt(feeWei).Cmp(ceiling) <= 0
}

// FeeParams builds submission fee parameters for the profile's gas model,
// preferring network-reported values and falling back to the profile when
// the network read fails.
func (g *GasPolicy) FeeParams(ctx context.Context) FeeParams {
	if !g.profile.SupportsPriorityFee {
		price := g.profile.LegacyGasPrice
		if price == nil {
			suggested, err := g.client.SuggestGasPrice(ctx)
			if err != nil {
				if g.log != nil {
					g.log.Warnw("gas_price_fallback", "err", err)
				}
				suggested = big.NewInt(500_000_000) // 0.5 gwei
			}
			price = suggested
		}
		return FeeParams{GasPrice: price, GasLimit: g.profile.GasLimit}
	}

	feeCap, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		if g.log != nil {
			g.log.Warnw("fee_cap_fallback", "err", err)
		}
		feeCap = big.NewInt(2_000_000_000) // 2 gwei
	}
	tipCap, err := g.client.SuggestGasTipCap(ctx)
	if err != nil {
		if g.log != nil {
			g.log.Warnw("tip_cap_fallback", "err", err)
		}
		tipCap = big.NewInt(1_000_000_000) // 1 gwei
	}
	// Tip can never exceed the total cap.
	if tipCap.Cmp(feeCap) > 0 {
		tipCap = new(big.Int).Set(feeCap)
	}
	return FeeParams{GasFeeCap: feeCap, GasTipCap: tipCap, GasLimit: g.profile.GasLimit}
}
