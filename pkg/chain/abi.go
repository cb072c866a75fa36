package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// UniswapV2-style pair ABI: reserve pair plus the two token slots.
const pairABIJSON = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"name": "reserve0", "type": "uint112"},
			{"name": "reserve1", "type": "uint112"},
			{"name": "blockTimestampLast", "type": "uint32"}
		],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token0",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token1",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	}
]`

// Vault (MultiZap) ABI: single-call buy (zapIn, payable) and sell
// (exitAndSell), plus the balance views used for revert diagnosis.
const vaultABIJSON = `[
	{
		"constant": false,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amountOutMinToken", "type": "uint256"},
			{"name": "amountTokenMin", "type": "uint256"},
			{"name": "amountNativeMin", "type": "uint256"}
		],
		"name": "zapIn",
		"outputs": [],
		"payable": true,
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amountTokenMin", "type": "uint256"},
			{"name": "amountNativeMin", "type": "uint256"},
			{"name": "amountOutMinNative", "type": "uint256"}
		],
		"name": "exitAndSell",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "token", "type": "address"}],
		"name": "getTokenBalance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "token", "type": "address"}],
		"name": "getLpBalance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	}
]`

// GetPairABI returns the parsed pair ABI
func GetPairABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		panic("failed to parse pair ABI: " + err.Error())
	}
	return parsed
}

// GetVaultABI returns the parsed vault ABI
func GetVaultABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		panic("failed to parse vault ABI: " + err.Error())
	}
	return parsed
}
