package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vkotenev/zapwatch/pkg/chain"
	"github.com/vkotenev/zapwatch/pkg/util"
)

// PriceSource quotes a target asset's spot price from a pool.
type PriceSource interface {
	Quote(ctx context.Context, pool, asset common.Address) (float64, error)
}

// FeeGate decides submit-or-defer and builds fee parameters.
type FeeGate interface {
	Acceptable(ctx context.Context) (bool, error)
	FeeParams(ctx context.Context) chain.FeeParams
}

// Submitter sends the single buy or sell transaction.
type Submitter interface {
	SubmitBuy(ctx context.Context, wallet *chain.Wallet, vault, asset common.Address, nativeAmount *big.Int, fees chain.FeeParams) (common.Hash, error)
	SubmitSell(ctx context.Context, wallet *chain.Wallet, vault, asset common.Address, fees chain.FeeParams) (common.Hash, error)
}

// Config carries the registry's scheduling knobs.
type Config struct {
	CheckInterval time.Duration
	Cooldown      time.Duration
}

// Registry owns the set of active orders and drives each one's polling
// loop: quote → threshold → gas gate → claim → submit. Failures stay local
// to their order; the registry itself never stops on a bad tick.
type Registry struct {
	oracle    PriceSource
	gas       FeeGate
	submitter Submitter
	clock     util.Clock
	log       *zap.SugaredLogger

	interval time.Duration
	cooldown time.Duration

	// Event hooks, wired by the host process. Per-order emissions come from
	// that order's goroutine, so a single order's events stay causally
	// ordered.
	OnPrice       func(PriceUpdate)
	OnOrderUpdate func(OrderUpdate)
	OnTrade       func(Trade)

	mu     sync.Mutex
	orders map[string]*managed
	seq    atomic.Int64
	wg     sync.WaitGroup
}

type managed struct {
	order  *Order
	cancel context.CancelFunc
}

func NewRegistry(oracle PriceSource, gas FeeGate, submitter Submitter, cfg Config, log *zap.SugaredLogger) *Registry {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	return &Registry{
		oracle:    oracle,
		gas:       gas,
		submitter: submitter,
		clock:     util.RealClock{},
		log:       log,
		interval:  cfg.CheckInterval,
		cooldown:  cfg.Cooldown,
		orders:    make(map[string]*managed),
	}
}

// SetClock substitutes the time source. Call before Create.
func (r *Registry) SetClock(c util.Clock) { r.clock = c }

// Create registers the order and starts its polling loop. The returned id
// is time-derived and unique for the process lifetime.
func (r *Registry) Create(ctx context.Context, o *Order) (string, error) {
	if err := o.validate(); err != nil {
		return "", fmt.Errorf("invalid order: %w", err)
	}

	o.ID = fmt.Sprintf("%d-%d", r.clock.Now().UnixMilli(), r.seq.Add(1))
	o.status = Active

	runCtx, cancel := context.WithCancel(ctx)
	m := &managed{order: o, cancel: cancel}

	r.mu.Lock()
	r.orders[o.ID] = m
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, m)

	if r.log != nil {
		r.log.Infow("order_created",
			"order_id", o.ID,
			"mode", o.Mode.String(),
			"asset", o.TargetAsset.Hex(),
			"threshold", o.Threshold)
	}
	return o.ID, nil
}

// Stop cancels an order's future ticks. Returns false when the order is
// unknown or already claimed; a claimed order's transaction is in flight
// and will finalize on its own.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	m, ok := r.orders[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if !m.order.MarkStopped() {
		return false
	}
	m.cancel()
	r.remove(id)
	r.emitOrderUpdate(m.order)
	if r.log != nil {
		r.log.Infow("order_stopped", "order_id", id)
	}
	return true
}

// List snapshots the currently registered orders.
func (r *Registry) List() []OrderUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OrderUpdate, 0, len(r.orders))
	for _, m := range r.orders {
		out = append(out, OrderUpdate{
			OrderID:   m.order.ID,
			Status:    m.order.Status().String(),
			Timestamp: r.clock.Now().UnixMilli(),
		})
	}
	return out
}

// Close cancels every order's loop and waits for the goroutines to drain.
// In-flight ticks run to completion; no new ticks are taken.
func (r *Registry) Close() {
	r.mu.Lock()
	for _, m := range r.orders {
		m.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// run is the per-order loop. A tick executes to completion before the next
// one is taken, so ticks of the same order never overlap; intervals that
// elapse mid-tick are dropped by the ticker.
func (r *Registry) run(ctx context.Context, m *managed) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := r.tick(ctx, m.order); done {
				return
			}
		}
	}
}

// tick runs one pass of the pipeline. Returns true when the order reached a
// terminal state and the loop should exit.
func (r *Registry) tick(ctx context.Context, o *Order) bool {
	price, err := r.oracle.Quote(ctx, o.PoolAddress, o.TargetAsset)
	if err != nil {
		if errors.Is(err, chain.ErrAssetNotInPool) {
			// Misconfigured pool: no point polling it again.
			r.finalize(o, Errored, Trade{})
			return true
		}
		if r.log != nil {
			r.log.Warnw("price_read_failed", "order_id", o.ID, "err", err)
		}
		return false
	}

	r.emitPrice(o, price)

	if !o.ThresholdMet(price) {
		return false
	}

	ok, err := r.gas.Acceptable(ctx)
	if err != nil {
		if r.log != nil {
			r.log.Warnw("gas_read_failed", "order_id", o.ID, "err", err)
		}
		return false
	}
	if !ok {
		// Deliberate skip, order stays active.
		return false
	}

	if !o.TryClaim(r.clock.Now(), r.cooldown) {
		return false
	}

	if r.log != nil {
		r.log.Infow("order_claimed",
			"order_id", o.ID,
			"mode", o.Mode.String(),
			"price", price,
			"threshold", o.Threshold)
	}

	fees := r.gas.FeeParams(ctx)

	var hash common.Hash
	var subErr error
	switch o.Mode {
	case Buy:
		hash, subErr = r.submitter.SubmitBuy(ctx, o.Wallet, o.VaultAddr, o.TargetAsset, o.BuyAmount, fees)
	case Sell:
		hash, subErr = r.submitter.SubmitSell(ctx, o.Wallet, o.VaultAddr, o.TargetAsset, fees)
	}

	if subErr != nil {
		if r.log != nil {
			r.log.Errorw("order_execution_failed", "order_id", o.ID, "err", subErr)
		}
		r.finalize(o, Errored, Trade{})
		return true
	}

	r.finalize(o, Filled, Trade{
		OrderID:   o.ID,
		Mode:      o.Mode.String(),
		Asset:     o.TargetAsset.Hex(),
		TxHash:    hash.Hex(),
		Price:     price,
		Timestamp: r.clock.Now().UnixMilli(),
	})
	return true
}

// finalize records the terminal state, publishes it exactly once, and drops
// the order from the registry.
func (r *Registry) finalize(o *Order, st Status, trade Trade) {
	o.Finalize(st, r.clock.Now())
	r.remove(o.ID)
	if st == Filled && r.OnTrade != nil {
		r.OnTrade(trade)
	}
	r.emitOrderUpdate(o)
	if r.log != nil {
		r.log.Infow("order_finalized", "order_id", o.ID, "status", st.String())
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.orders, id)
	r.mu.Unlock()
}

func (r *Registry) emitPrice(o *Order, price float64) {
	if r.OnPrice == nil {
		return
	}
	if o.Status() != Active {
		return
	}
	r.OnPrice(PriceUpdate{
		OrderID:   o.ID,
		Asset:     o.TargetAsset.Hex(),
		Price:     price,
		Timestamp: r.clock.Now().UnixMilli(),
	})
}

func (r *Registry) emitOrderUpdate(o *Order) {
	if r.OnOrderUpdate == nil {
		return
	}
	r.OnOrderUpdate(OrderUpdate{
		OrderID:   o.ID,
		Status:    o.Status().String(),
		Timestamp: r.clock.Now().UnixMilli(),
	})
}
