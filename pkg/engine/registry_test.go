package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vkotenev/zapwatch/pkg/chain"
)

// testWallet builds a wallet from a throwaway key.
func testWallet(t *testing.T) *chain.Wallet {
	t.Helper()
	w, err := chain.NewWallet("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("test wallet: %v", err)
	}
	return w
}

// fakeClock advances only when told to, keeping tick timing deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeOracle struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (f *fakeOracle) Quote(ctx context.Context, pool, asset common.Address) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.err
}

func (f *fakeOracle) set(price float64) {
	f.mu.Lock()
	f.price = price
	f.mu.Unlock()
}

type fakeGas struct {
	acceptable bool
	err        error
}

func (f *fakeGas) Acceptable(ctx context.Context) (bool, error) { return f.acceptable, f.err }
func (f *fakeGas) FeeParams(ctx context.Context) chain.FeeParams {
	return chain.FeeParams{GasPrice: big.NewInt(1_000_000_000), GasLimit: 2_000_000}
}

type fakeSubmitter struct {
	mu    sync.Mutex
	buys  int
	sells int
	err   error
	hash  common.Hash
}

func (f *fakeSubmitter) SubmitBuy(ctx context.Context, wallet *chain.Wallet, vault, asset common.Address, nativeAmount *big.Int, fees chain.FeeParams) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys++
	return f.hash, f.err
}

func (f *fakeSubmitter) SubmitSell(ctx context.Context, wallet *chain.Wallet, vault, asset common.Address, fees chain.FeeParams) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sells++
	return f.hash, f.err
}

func (f *fakeSubmitter) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buys, f.sells
}

func testAddr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func testOrder(t *testing.T, mode Mode, threshold float64) *Order {
	t.Helper()
	o := &Order{
		Mode:        mode,
		TargetAsset: testAddr(1),
		PoolAddress: testAddr(2),
		VaultAddr:   testAddr(3),
		Threshold:   threshold,
		Wallet:      testWallet(t),
	}
	if mode == Buy {
		o.BuyAmount = big.NewInt(1_000_000_000_000_000_000)
	}
	return o
}

func newTestRegistry(oracle PriceSource, gas FeeGate, sub Submitter) (*Registry, *fakeClock) {
	r := NewRegistry(oracle, gas, sub, Config{CheckInterval: time.Hour, Cooldown: 15 * time.Second}, nil)
	clock := newFakeClock()
	r.SetClock(clock)
	return r, clock
}

// register puts the order under the registry without starting its loop, so
// tests can drive ticks directly.
func register(r *Registry, o *Order) {
	o.ID = "test-" + o.Mode.String()
	o.status = Active
	r.mu.Lock()
	r.orders[o.ID] = &managed{order: o, cancel: func() {}}
	r.mu.Unlock()
}

func TestTickBuyTriggersOnce(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{hash: common.HexToHash("0xabc")}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, sub)

	var trades []Trade
	var updates []OrderUpdate
	r.OnTrade = func(tr Trade) { trades = append(trades, tr) }
	r.OnOrderUpdate = func(u OrderUpdate) { updates = append(updates, u) }

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	done := r.tick(context.Background(), o)
	if !done {
		t.Fatal("tick should report terminal state")
	}

	buys, sells := sub.counts()
	if buys != 1 || sells != 0 {
		t.Errorf("submissions = %d buys / %d sells, want exactly 1 buy", buys, sells)
	}
	if o.Status() != Filled {
		t.Errorf("status = %v, want Filled", o.Status())
	}
	if len(trades) != 1 {
		t.Fatalf("trades emitted = %d, want 1", len(trades))
	}
	if trades[0].TxHash != common.HexToHash("0xabc").Hex() {
		t.Errorf("trade hash = %s", trades[0].TxHash)
	}
	if len(updates) != 1 || updates[0].Status != "filled" {
		t.Errorf("updates = %+v, want one filled", updates)
	}
	if len(r.List()) != 0 {
		t.Error("filled order should be removed from registry")
	}
}

func TestTickSellWaitsForThreshold(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, sub)

	o := testOrder(t, Sell, 0.05)
	register(r, o)

	// Below the sell threshold: nothing happens
	if done := r.tick(context.Background(), o); done {
		t.Fatal("tick below threshold should not finish the order")
	}
	if _, sells := sub.counts(); sells != 0 {
		t.Fatal("no submission expected below threshold")
	}

	// Reserve shift pushes the price through the threshold
	oracle.set(0.06)
	if done := r.tick(context.Background(), o); !done {
		t.Fatal("tick above threshold should finish the order")
	}
	if _, sells := sub.counts(); sells != 1 {
		t.Errorf("sells = %d, want 1", sells)
	}
	if o.Status() != Filled {
		t.Errorf("status = %v, want Filled", o.Status())
	}
}

func TestTickGasGateDefers(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{}
	gas := &fakeGas{acceptable: false}
	r, _ := newTestRegistry(oracle, gas, sub)

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	if done := r.tick(context.Background(), o); done {
		t.Fatal("gas-deferred tick should keep the order alive")
	}
	if buys, _ := sub.counts(); buys != 0 {
		t.Error("no submission expected while gas is above ceiling")
	}
	if o.Status() != Active {
		t.Errorf("status = %v, want Active", o.Status())
	}

	// Fees drop, next tick executes
	gas.acceptable = true
	if done := r.tick(context.Background(), o); !done {
		t.Fatal("tick after gas drop should execute")
	}
	if buys, _ := sub.counts(); buys != 1 {
		t.Errorf("buys = %d, want 1", buys)
	}
}

func TestTickGasReadErrorDefers(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{}
	r, _ := newTestRegistry(oracle, &fakeGas{err: errors.New("rpc down")}, sub)

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	if done := r.tick(context.Background(), o); done {
		t.Fatal("gas read failure should keep the order alive")
	}
	if o.Status() != Active {
		t.Errorf("status = %v, want Active", o.Status())
	}
}

func TestTickSubmitFailureErrorsOnce(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{err: errors.New("execution reverted")}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, sub)

	var trades []Trade
	var updates []OrderUpdate
	r.OnTrade = func(tr Trade) { trades = append(trades, tr) }
	r.OnOrderUpdate = func(u OrderUpdate) { updates = append(updates, u) }

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	if done := r.tick(context.Background(), o); !done {
		t.Fatal("failed submission is terminal")
	}
	if o.Status() != Errored {
		t.Errorf("status = %v, want Errored", o.Status())
	}
	if len(trades) != 0 {
		t.Error("no trade event expected on failure")
	}
	if len(updates) != 1 || updates[0].Status != "errored" {
		t.Errorf("updates = %+v, want one errored", updates)
	}

	// The claim is spent: re-ticking must not submit again
	buys, _ := sub.counts()
	r.tick(context.Background(), o)
	if b, _ := sub.counts(); b != buys {
		t.Error("second tick resubmitted after terminal state")
	}
}

func TestTickAssetNotInPool(t *testing.T) {
	oracle := &fakeOracle{err: chain.ErrAssetNotInPool}
	sub := &fakeSubmitter{}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, sub)

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	if done := r.tick(context.Background(), o); !done {
		t.Fatal("asset missing from pool is terminal")
	}
	if o.Status() != Errored {
		t.Errorf("status = %v, want Errored", o.Status())
	}
}

func TestTickTransientQuoteErrorKeepsPolling(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection reset")}
	sub := &fakeSubmitter{}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, sub)

	o := testOrder(t, Buy, 0.02)
	register(r, o)

	if done := r.tick(context.Background(), o); done {
		t.Fatal("quote failure should not finish the order")
	}
	if o.Status() != Active {
		t.Errorf("status = %v, want Active", o.Status())
	}
}

func TestNoPriceEventAfterStop(t *testing.T) {
	oracle := &fakeOracle{price: 0.5}
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, &fakeSubmitter{})

	var prices []PriceUpdate
	r.OnPrice = func(u PriceUpdate) { prices = append(prices, u) }

	o := testOrder(t, Buy, 0.02)
	register(r, o)
	o.MarkStopped()

	r.tick(context.Background(), o)
	if len(prices) != 0 {
		t.Errorf("price events after stop = %d, want 0", len(prices))
	}
}

func TestCreateAndStop(t *testing.T) {
	oracle := &fakeOracle{price: 0.5} // above buy threshold, never triggers
	r, _ := newTestRegistry(oracle, &fakeGas{acceptable: true}, &fakeSubmitter{})

	var updates []OrderUpdate
	var mu sync.Mutex
	r.OnOrderUpdate = func(u OrderUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := r.Create(ctx, testOrder(t, Buy, 0.02))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("empty order id")
	}
	if got := len(r.List()); got != 1 {
		t.Fatalf("list length = %d, want 1", got)
	}

	if !r.Stop(id) {
		t.Fatal("stop should succeed")
	}
	if r.Stop(id) {
		t.Error("second stop should report false")
	}
	if got := len(r.List()); got != 0 {
		t.Errorf("list length after stop = %d, want 0", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 1 || updates[0].Status != "stopped" {
		t.Errorf("updates = %+v, want one stopped", updates)
	}

	r.Close()
}

func TestCreateRejectsInvalidOrder(t *testing.T) {
	r, _ := newTestRegistry(&fakeOracle{}, &fakeGas{}, &fakeSubmitter{})
	_, err := r.Create(context.Background(), &Order{Mode: Buy})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestOrderLoopEndToEnd(t *testing.T) {
	oracle := &fakeOracle{price: 0.01}
	sub := &fakeSubmitter{hash: common.HexToHash("0xdef")}
	r := NewRegistry(oracle, &fakeGas{acceptable: true}, sub,
		Config{CheckInterval: 5 * time.Millisecond, Cooldown: time.Millisecond}, nil)

	tradeCh := make(chan Trade, 1)
	r.OnTrade = func(tr Trade) { tradeCh <- tr }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := r.Create(ctx, testOrder(t, Buy, 0.02))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case tr := <-tradeCh:
		if tr.OrderID != id {
			t.Errorf("trade order id = %s, want %s", tr.OrderID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade")
	}

	if buys, _ := sub.counts(); buys != 1 {
		t.Errorf("buys = %d, want 1", buys)
	}
	r.Close()
}
