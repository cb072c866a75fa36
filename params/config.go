package params

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// NetworkProfile holds the immutable per-chain parameters. Built once at
// startup and shared read-only after that.
type NetworkProfile struct {
	Name           string
	ChainID        int64
	RPCURL         string
	RouterAddress  string
	FactoryAddress string
	NativeCurrency string

	// SupportsPriorityFee selects the EIP-1559 fee model; chains without it
	// (BSC) use a flat legacy gas price.
	SupportsPriorityFee bool

	// LegacyGasPrice, when non-nil, overrides the network-suggested price on
	// legacy chains.
	LegacyGasPrice *big.Int

	GasLimit uint64

	// MaxGasPriceGwei is the submit-or-defer ceiling: ticks whose current
	// network fee exceeds it are skipped, not failed.
	MaxGasPriceGwei float64
}

// Engine holds the scheduling knobs of the order watcher.
type Engine struct {
	// CheckInterval paces each order's price polling.
	CheckInterval time.Duration
	// Cooldown is the minimum spacing between engine-level actions per order.
	Cooldown time.Duration
	// RetryAttempts / RetryBaseDelay bound the RPC resilience wrapper.
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type Config struct {
	Networks       map[string]NetworkProfile
	DefaultNetwork string
	Engine         Engine

	APIAddr string
	DataDir string
	LogFile string
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func Default() Config {
	return Config{
		Networks: map[string]NetworkProfile{
			"ETH": {
				Name:                "Ethereum",
				ChainID:             1,
				RPCURL:              "https://eth.llamarpc.com",
				RouterAddress:       "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
				FactoryAddress:      "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				NativeCurrency:      "ETH",
				SupportsPriorityFee: true,
				LegacyGasPrice:      nil, // auto
				GasLimit:            2_000_000,
				MaxGasPriceGwei:     50,
			},
			"BSC": {
				Name:                "Binance Smart Chain",
				ChainID:             56,
				RPCURL:              "https://bsc-dataseed1.binance.org",
				RouterAddress:       "0x10ED43C718714eb63d5aA57B78B54704E256024E",
				FactoryAddress:      "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73",
				NativeCurrency:      "BNB",
				SupportsPriorityFee: false,
				LegacyGasPrice:      gwei(5),
				GasLimit:            2_000_000,
				MaxGasPriceGwei:     50,
			},
			"BASE": {
				Name:                "Base",
				ChainID:             8453,
				RPCURL:              "https://mainnet.base.org",
				RouterAddress:       "0x4752ba5dbc23f44d87826276bf6fd6b1c372ad24",
				FactoryAddress:      "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6",
				NativeCurrency:      "ETH",
				SupportsPriorityFee: true,
				LegacyGasPrice:      nil,
				GasLimit:            2_000_000,
				MaxGasPriceGwei:     50,
			},
		},
		DefaultNetwork: "BSC",
		Engine: Engine{
			CheckInterval:  5 * time.Second,
			Cooldown:       15 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: time.Second,
		},
		APIAddr: ":8080",
		DataDir: "data",
		LogFile: "data/watcher.log",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment
// variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("DEFAULT_NETWORK"); v != "" {
		cfg.DefaultNetwork = strings.ToUpper(v)
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	if ms := os.Getenv("CHECK_INTERVAL_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			cfg.Engine.CheckInterval = time.Duration(n) * time.Millisecond
		}
	}
	if ms := os.Getenv("COOLDOWN_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			cfg.Engine.Cooldown = time.Duration(n) * time.Millisecond
		}
	}
	if n := os.Getenv("RETRY_ATTEMPTS"); n != "" {
		if att, err := strconv.Atoi(n); err == nil && att > 0 {
			cfg.Engine.RetryAttempts = att
		}
	}

	// Per-network overrides: <NET>_RPC_URL, <NET>_ROUTER_ADDRESS,
	// <NET>_GAS_PRICE_GWEI, <NET>_GAS_LIMIT, <NET>_MAX_GAS_PRICE_GWEI.
	for name, profile := range cfg.Networks {
		if v := os.Getenv(name + "_RPC_URL"); v != "" {
			profile.RPCURL = v
		}
		if v := os.Getenv(name + "_ROUTER_ADDRESS"); v != "" {
			profile.RouterAddress = v
		}
		if v := os.Getenv(name + "_FACTORY_ADDRESS"); v != "" {
			profile.FactoryAddress = v
		}
		if v := os.Getenv(name + "_GAS_PRICE_GWEI"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				profile.LegacyGasPrice = gwei(n)
			}
		}
		if v := os.Getenv(name + "_GAS_LIMIT"); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				profile.GasLimit = n
			}
		}
		if v := os.Getenv(name + "_MAX_GAS_PRICE_GWEI"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				profile.MaxGasPriceGwei = f
			}
		}
		cfg.Networks[name] = profile
	}

	return cfg
}

// Profile returns the named network profile, falling back to the default
// network when name is empty or unknown names error out.
func (c Config) Profile(name string) (NetworkProfile, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	p, ok := c.Networks[strings.ToUpper(name)]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("unknown network %q", name)
	}
	return p, nil
}
