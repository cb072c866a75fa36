package chain

import (
	"fmt"
	"math/big"
)

var weiPerNative = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ParseNative converts a decimal native-currency amount ("0.01") to wei.
func ParseNative(amount string) (*big.Int, error) {
	f, ok := new(big.Float).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if f.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	wei, _ := new(big.Float).Mul(f, weiPerNative).Int(nil)
	return wei, nil
}

// FormatNative converts wei to a decimal native-currency string.
func FormatNative(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerNative)
	return f.Text('f', 6)
}
