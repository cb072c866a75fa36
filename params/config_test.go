package params

import (
	"math/big"
	"testing"
	"time"
)

func TestDefaultNetworks(t *testing.T) {
	cfg := Default()

	for _, name := range []string{"ETH", "BSC", "BASE"} {
		if _, ok := cfg.Networks[name]; !ok {
			t.Errorf("missing default network %s", name)
		}
	}

	bsc := cfg.Networks["BSC"]
	if bsc.SupportsPriorityFee {
		t.Error("BSC should use the legacy fee model")
	}
	if bsc.LegacyGasPrice == nil || bsc.LegacyGasPrice.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Errorf("BSC legacy gas price = %v, want 5 gwei", bsc.LegacyGasPrice)
	}

	eth := cfg.Networks["ETH"]
	if !eth.SupportsPriorityFee {
		t.Error("ETH should use the dynamic fee model")
	}

	if cfg.Engine.CheckInterval != 5*time.Second {
		t.Errorf("check interval = %v, want 5s", cfg.Engine.CheckInterval)
	}
	if cfg.Engine.Cooldown != 15*time.Second {
		t.Errorf("cooldown = %v, want 15s", cfg.Engine.Cooldown)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_NETWORK", "eth")
	t.Setenv("BSC_RPC_URL", "https://rpc.example.test")
	t.Setenv("BSC_GAS_PRICE_GWEI", "3")
	t.Setenv("BSC_MAX_GAS_PRICE_GWEI", "25.5")
	t.Setenv("CHECK_INTERVAL_MS", "2500")

	cfg := LoadFromEnv("testdata/absent.env")

	if cfg.DefaultNetwork != "ETH" {
		t.Errorf("default network = %s, want ETH", cfg.DefaultNetwork)
	}
	bsc := cfg.Networks["BSC"]
	if bsc.RPCURL != "https://rpc.example.test" {
		t.Errorf("rpc url = %s", bsc.RPCURL)
	}
	if bsc.LegacyGasPrice.Cmp(big.NewInt(3_000_000_000)) != 0 {
		t.Errorf("gas price = %s, want 3 gwei", bsc.LegacyGasPrice)
	}
	if bsc.MaxGasPriceGwei != 25.5 {
		t.Errorf("max gas price = %v, want 25.5", bsc.MaxGasPriceGwei)
	}
	if cfg.Engine.CheckInterval != 2500*time.Millisecond {
		t.Errorf("check interval = %v, want 2.5s", cfg.Engine.CheckInterval)
	}
}

func TestProfileLookup(t *testing.T) {
	cfg := Default()

	p, err := cfg.Profile("bsc")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.ChainID != 56 {
		t.Errorf("chain id = %d, want 56", p.ChainID)
	}

	// Empty name falls back to the default network
	p, err = cfg.Profile("")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Name != cfg.Networks[cfg.DefaultNetwork].Name {
		t.Errorf("fallback profile = %s", p.Name)
	}

	if _, err := cfg.Profile("SOLANA"); err == nil {
		t.Error("unknown network should error")
	}
}
