package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vkotenev/zapwatch/params"
	"github.com/vkotenev/zapwatch/pkg/api"
	"github.com/vkotenev/zapwatch/pkg/chain"
	"github.com/vkotenev/zapwatch/pkg/engine"
	"github.com/vkotenev/zapwatch/pkg/storage"
	"github.com/vkotenev/zapwatch/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (console, file, and a ring for the API's log stream)
	logRing := util.NewLogRing(500)
	logger, err := util.NewLoggerWithRing(cfg.LogFile, logRing)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	profile, err := cfg.Profile(os.Getenv("NETWORK"))
	if err != nil {
		sugar.Fatalw("network_config_invalid", "err", err)
	}
	sugar.Infow("network_selected",
		"network", profile.Name,
		"chain_id", profile.ChainID,
		"rpc", profile.RPCURL,
		"max_gas_price_gwei", profile.MaxGasPriceGwei)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Chain: RPC client with retry, pool oracle, gas policy, vault ----
	client, err := chain.Dial(profile.RPCURL, sugar,
		chain.WithRetryPolicy(cfg.Engine.RetryAttempts, cfg.Engine.RetryBaseDelay))
	if err != nil {
		sugar.Fatalw("rpc_dial_failed", "rpc", profile.RPCURL, "err", err)
	}

	oracle := chain.NewPairCaller(client)
	gas := chain.NewGasPolicy(client, profile, sugar)

	vault, err := chain.NewVaultCaller(ctx, client, sugar)
	if err != nil {
		sugar.Fatalw("chain_id_fetch_failed", "err", err)
	}

	// ---- Storage: trade journal ----
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		sugar.Fatalw("data_dir_create_failed", "dir", cfg.DataDir, "err", err)
	}
	journal, err := storage.OpenJournal(filepath.Join(cfg.DataDir, "trades"))
	if err != nil {
		sugar.Fatalw("journal_open_failed", "err", err)
	}
	defer journal.Close()

	// ---- Engine: order registry ----
	wallets := chain.NewWalletRegistry()
	registry := engine.NewRegistry(oracle, gas, vault, engine.Config{
		CheckInterval: cfg.Engine.CheckInterval,
		Cooldown:      cfg.Engine.Cooldown,
	}, sugar)

	// ---- API Server ----
	apiServer := api.NewServer(api.Deps{
		Registry: registry,
		Wallets:  wallets,
		Client:   client,
		Vault:    vault,
		Gas:      gas,
		Journal:  journal,
		Logs:     logRing,
		Logger:   sugar,
	})

	// Hook engine to API server and journal: fan events out as they happen
	registry.OnPrice = apiServer.BroadcastPrice
	registry.OnOrderUpdate = apiServer.BroadcastOrderUpdate
	registry.OnTrade = func(t engine.Trade) {
		if err := journal.SaveTrade(t); err != nil {
			sugar.Errorw("trade_journal_write_failed", "order_id", t.OrderID, "err", err)
		}
		apiServer.BroadcastTrade(t)
	}

	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("watcher_started",
		"network", profile.Name,
		"check_interval_ms", cfg.Engine.CheckInterval.Milliseconds(),
		"cooldown_ms", cfg.Engine.Cooldown.Milliseconds())

	<-ctx.Done()
	sugar.Info("shutting_down")

	// Give in-flight ticks a bounded window to finish.
	done := make(chan struct{})
	go func() {
		registry.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		sugar.Warn("shutdown_timed_out")
	}
}
