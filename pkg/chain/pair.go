package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// PairCaller reads UniswapV2-style pools and derives a spot price for one
// side of the pair. Pure reads, no side effects.
type PairCaller struct {
	client *Client
}

// Reserves is a snapshot of a pool's two sides.
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
	Token0   common.Address
	Token1   common.Address
}

func NewPairCaller(client *Client) *PairCaller {
	return &PairCaller{client: client}
}

// Quote returns the spot price of asset denominated in the pair's other
// token: otherReserve / assetReserve. Returns ErrAssetNotInPool when asset
// matches neither token slot.
func (p *PairCaller) Quote(ctx context.Context, pool, asset common.Address) (float64, error) {
	res, err := p.fetch(ctx, pool)
	if err != nil {
		return 0, err
	}
	return PriceFromReserves(res, asset)
}

// fetch issues the three pool reads concurrently; the slots are independent
// views of the same contract.
func (p *PairCaller) fetch(ctx context.Context, pool common.Address) (Reserves, error) {
	pairABI := GetPairABI()
	var res Reserves

	type result struct {
		name string
		data []byte
		err  error
	}
	results := make(chan result, 3)
	for _, name := range []string{"getReserves", "token0", "token1"} {
		go func(name string) {
			data, err := pairABI.Pack(name)
			if err != nil {
				results <- result{name: name, err: err}
				return
			}
			out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data})
			results <- result{name: name, data: out, err: err}
		}(name)
	}

	for i := 0; i < 3; i++ {
		r := <-results
		if r.err != nil {
			return Reserves{}, fmt.Errorf("pair %s %s: %w", pool.Hex(), r.name, r.err)
		}
		switch r.name {
		case "getReserves":
			vals, err := pairABI.Unpack("getReserves", r.data)
			if err != nil {
				return Reserves{}, fmt.Errorf("unpack getReserves: %w", err)
			}
			res.Reserve0 = vals[0].(*big.Int)
			res.Reserve1 = vals[1].(*big.Int)
		case "token0":
			vals, err := pairABI.Unpack("token0", r.data)
			if err != nil {
				return Reserves{}, fmt.Errorf("unpack token0: %w", err)
			}
			res.Token0 = vals[0].(common.Address)
		case "token1":
			vals, err := pairABI.Unpack("token1", r.data)
			if err != nil {
				return Reserves{}, fmt.Errorf("unpack token1: %w", err)
			}
			res.Token1 = vals[0].(common.Address)
		}
	}
	return res, nil
}

// PriceFromReserves matches asset against the pair slots (case-insensitive,
// addresses are canonical bytes) and divides the opposite reserve by the
// asset reserve. The price is advisory, so float division is fine here.
func PriceFromReserves(res Reserves, asset common.Address) (float64, error) {
	var assetReserve, otherReserve *big.Int
	switch asset {
	case res.Token0:
		assetReserve, otherReserve = res.Reserve0, res.Reserve1
	case res.Token1:
		assetReserve, otherReserve = res.Reserve1, res.Reserve0
	default:
		return 0, fmt.Errorf("%w: %s", ErrAssetNotInPool, asset.Hex())
	}

	if assetReserve == nil || assetReserve.Sign() == 0 {
		return 0, fmt.Errorf("pool has zero reserve for %s", asset.Hex())
	}

	price := new(big.Float).Quo(
		new(big.Float).SetInt(otherReserve),
		new(big.Float).SetInt(assetReserve),
	)
	f, _ := price.Float64()
	return f, nil
}
