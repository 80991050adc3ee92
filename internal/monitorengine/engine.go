// Package monitorengine is the monitor scheduler and execution engine (spec
// component C6, the core of the repository): a process-singleton registry
// of per-monitor worker goroutines for both simple and swing monitors,
// their crash/restart recovery (C9), and the decision logic that turns a
// market-data observation into a trade action, a webhook notification, and
// a persisted state transition.
package monitorengine

import (
	"context"
	"sync"
	"time"

	"github.com/oreoft/meme-trade-bot/internal/addressnormalizer"
	"github.com/oreoft/meme-trade-bot/internal/changefilter"
	"github.com/oreoft/meme-trade-bot/internal/marketdata"
	"github.com/oreoft/meme-trade-bot/internal/notifier"
	"github.com/oreoft/meme-trade-bot/internal/store"
	"github.com/oreoft/meme-trade-bot/internal/trader"
)

// PostTradeCooldown is the single named constant backing both the swing
// monitor's trade-cooldown gate and the simple monitor's post-trade sleep
// in multiple-execution mode. The source coded these as two independent
// literal 60s sleeps; this engine treats them as one constant (spec §9).
// It is a var, not a const, so tests can shrink it instead of waiting out
// a real minute between trade legs.
var PostTradeCooldown = 60 * time.Second

// rentReserveSOL is kept unspent on an all-in buy so the new token
// account's rent doesn't starve the wallet immediately after purchase.
const rentReserveSOL = 0.0021

// MarketDataSource is the subset of marketdata.Client the engine depends
// on, satisfied directly by *marketdata.Client.
type MarketDataSource interface {
	GetMarketData(address string) (*marketdata.MarketData, error)
}

// TraderAPI is the subset of trader.Trader the engine depends on,
// satisfied directly by *trader.Trader. Defining it here, at the point of
// use, lets tests substitute a fake wallet without any network access.
type TraderAPI interface {
	TokenBalance(ctx context.Context, tokenAddress string) (float64, error)
	NativeBalance(ctx context.Context) (float64, error)
	Decimals(ctx context.Context, tokenAddress string) (int, error)
	SellTokenForNative(ctx context.Context, tokenAddress string, percentage float64) trader.TradeResult
	BuyTokenForNative(ctx context.Context, tokenAddress string, percentage float64) trader.TradeResult
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*trader.Quote, error)
	SwapExact(ctx context.Context, quote *trader.Quote) trader.TradeResult
}

// NotifierAPI is the subset of notifier.Client the engine depends on,
// satisfied directly by *notifier.Client.
type NotifierAPI interface {
	Startup(webhookURL, name string) bool
	PriceAlert(webhookURL string, info notifier.PriceInfo, name string, thresholdReached bool, side string, percentChange *float64) bool
	Trade(webhookURL, txHash string, amount, usdValue float64, name, symbol, side string) bool
	Error(webhookURL, message, name string) bool
	Completion(webhookURL, title, body string) bool
}

// TraderFactory builds a TraderAPI bound to the wallet derived from a
// private key's at-rest-encrypted secret. The engine never touches key
// material directly; cmd/monitorengine wires the concrete decrypt-and-sign
// implementation (cryptoutil + walletkey) behind this seam.
type TraderFactory func(encryptedSecret string) (TraderAPI, error)

// workerHandle is the registry's cancellation token for one running
// worker goroutine (spec §4.6.1's "alive flag", reimplemented as a
// cancellable context per the design notes' structured-concurrency
// option).
type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the process-singleton monitor scheduler. Construct it once
// via New and call RecoverAll once at process start.
type Engine struct {
	st            *store.Store
	market        MarketDataSource
	notify        NotifierAPI
	filter        *changefilter.Filter
	traderFactory TraderFactory

	mu            sync.Mutex
	runningSimple map[uint]*workerHandle
	runningSwing  map[uint]*workerHandle

	recoverOnce sync.Once
}

// New builds an Engine. filter may be shared with other collaborators
// that need the same token-address-keyed de-duplication window.
func New(st *store.Store, market MarketDataSource, notify NotifierAPI, filter *changefilter.Filter, traderFactory TraderFactory) *Engine {
	return &Engine{
		st:            st,
		market:        market,
		notify:        notify,
		filter:        filter,
		traderFactory: traderFactory,
		runningSimple: make(map[uint]*workerHandle),
		runningSwing:  make(map[uint]*workerHandle),
	}
}

// StartSimple starts the worker for simple monitor id, returning
// (false, "already running") if one is already live.
func (e *Engine) StartSimple(id uint) (bool, string) {
	handle := &workerHandle{done: make(chan struct{})}
	e.mu.Lock()
	if _, ok := e.runningSimple[id]; ok {
		e.mu.Unlock()
		return false, "already running"
	}
	e.runningSimple[id] = handle
	e.mu.Unlock()

	m, err := e.st.GetSimpleMonitor(id)
	if err != nil {
		e.dropSimpleSlot(id)
		return false, err.Error()
	}
	if err := e.st.SetSimpleMonitorStatus(id, store.StatusMonitoring); err != nil {
		e.dropSimpleSlot(id)
		return false, err.Error()
	}
	e.notify.Startup(m.WebhookURL, m.Name)

	ctx, cancel := context.WithCancel(context.Background())
	handle.cancel = cancel

	go func() {
		defer close(handle.done)
		e.runSimpleWorker(ctx, id)
		e.clearSimple(id, handle)
	}()

	return true, "started"
}

// StopSimple cancels the worker for id (if any), marks the record stopped,
// and does not wait for the worker to exit — it self-reconciles. Calling
// StopSimple on an already-stopped monitor is a no-op that still reports
// success.
func (e *Engine) StopSimple(id uint) (bool, string) {
	e.mu.Lock()
	handle, ok := e.runningSimple[id]
	if ok {
		delete(e.runningSimple, id)
	}
	e.mu.Unlock()
	if ok {
		handle.cancel()
	}

	if err := e.st.SetSimpleMonitorStatus(id, store.StatusStopped); err != nil {
		return false, err.Error()
	}
	e.cleanupFilter()
	return true, "stopped"
}

// StartSwing starts the worker for swing monitor id, returning
// (false, "already running") if one is already live.
func (e *Engine) StartSwing(id uint) (bool, string) {
	handle := &workerHandle{done: make(chan struct{})}
	e.mu.Lock()
	if _, ok := e.runningSwing[id]; ok {
		e.mu.Unlock()
		return false, "already running"
	}
	e.runningSwing[id] = handle
	e.mu.Unlock()

	m, err := e.st.GetSwingMonitor(id)
	if err != nil {
		e.dropSwingSlot(id)
		return false, err.Error()
	}
	if err := e.st.SetSwingMonitorStatus(id, store.StatusMonitoring); err != nil {
		e.dropSwingSlot(id)
		return false, err.Error()
	}
	e.notify.Startup(m.WebhookURL, m.Name)

	ctx, cancel := context.WithCancel(context.Background())
	handle.cancel = cancel

	go func() {
		defer close(handle.done)
		e.runSwingWorker(ctx, id)
		e.clearSwing(id, handle)
	}()

	return true, "started"
}

// StopSwing is StopSimple's symmetric counterpart for swing monitors.
func (e *Engine) StopSwing(id uint) (bool, string) {
	e.mu.Lock()
	handle, ok := e.runningSwing[id]
	if ok {
		delete(e.runningSwing, id)
	}
	e.mu.Unlock()
	if ok {
		handle.cancel()
	}

	if err := e.st.SetSwingMonitorStatus(id, store.StatusStopped); err != nil {
		return false, err.Error()
	}
	e.cleanupFilter()
	return true, "stopped"
}

// IsRunningSimple reports whether a worker is currently registered for id.
func (e *Engine) IsRunningSimple(id uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runningSimple[id]
	return ok
}

// IsRunningSwing reports whether a swing worker is currently registered
// for id.
func (e *Engine) IsRunningSwing(id uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runningSwing[id]
	return ok
}

// StopAll cancels every running worker and clears the change filter.
func (e *Engine) StopAll() {
	e.mu.Lock()
	simpleIDs := make([]uint, 0, len(e.runningSimple))
	for id := range e.runningSimple {
		simpleIDs = append(simpleIDs, id)
	}
	swingIDs := make([]uint, 0, len(e.runningSwing))
	for id := range e.runningSwing {
		swingIDs = append(swingIDs, id)
	}
	e.mu.Unlock()

	for _, id := range simpleIDs {
		e.StopSimple(id)
	}
	for _, id := range swingIDs {
		e.StopSwing(id)
	}
	e.filter.Clear()
}

func (e *Engine) dropSimpleSlot(id uint) {
	e.mu.Lock()
	delete(e.runningSimple, id)
	e.mu.Unlock()
}

func (e *Engine) dropSwingSlot(id uint) {
	e.mu.Lock()
	delete(e.runningSwing, id)
	e.mu.Unlock()
}

// clearSimple removes id's registry entry, but only if it still belongs to
// handle (a Stop/Start race may have already replaced it), then demotes an
// unexpectedly-terminated monitor back to stopped. Completion and explicit
// Stop calls have already set their own terminal status before the worker
// observes cancellation, so this is a no-op for the common paths.
func (e *Engine) clearSimple(id uint, handle *workerHandle) {
	e.mu.Lock()
	if cur, ok := e.runningSimple[id]; ok && cur == handle {
		delete(e.runningSimple, id)
	}
	e.mu.Unlock()

	if m, err := e.st.GetSimpleMonitor(id); err == nil && m.Status == store.StatusMonitoring {
		_ = e.st.SetSimpleMonitorStatus(id, store.StatusStopped)
	}
	e.cleanupFilter()
}

func (e *Engine) clearSwing(id uint, handle *workerHandle) {
	e.mu.Lock()
	if cur, ok := e.runningSwing[id]; ok && cur == handle {
		delete(e.runningSwing, id)
	}
	e.mu.Unlock()

	if m, err := e.st.GetSwingMonitor(id); err == nil && m.Status == store.StatusMonitoring {
		_ = e.st.SetSwingMonitorStatus(id, store.StatusStopped)
	}
	e.cleanupFilter()
}

// buildTrader resolves privateKeyID to its encrypted secret and hands it
// to the configured TraderFactory, which decrypts and derives the wallet.
func (e *Engine) buildTrader(privateKeyID uint) (TraderAPI, error) {
	pk, err := e.st.GetPrivateKey(privateKeyID)
	if err != nil {
		return nil, err
	}
	return e.traderFactory(pk.Secret)
}

// cleanupFilter removes ChangeFilter entries for addresses no longer
// referenced by any currently-running monitor (spec §4.5).
func (e *Engine) cleanupFilter() {
	e.mu.Lock()
	simpleIDs := make([]uint, 0, len(e.runningSimple))
	for id := range e.runningSimple {
		simpleIDs = append(simpleIDs, id)
	}
	swingIDs := make([]uint, 0, len(e.runningSwing))
	for id := range e.runningSwing {
		swingIDs = append(swingIDs, id)
	}
	e.mu.Unlock()

	inUse := make(map[string]struct{}, len(simpleIDs)+len(swingIDs))
	for _, id := range simpleIDs {
		if m, err := e.st.GetSimpleMonitor(id); err == nil {
			inUse[addressnormalizer.Normalize(m.TokenAddress)] = struct{}{}
		}
	}
	for _, id := range swingIDs {
		if m, err := e.st.GetSwingMonitor(id); err == nil {
			inUse[addressnormalizer.Normalize(m.WatchTokenAddress)] = struct{}{}
		}
	}
	e.filter.CleanupUnused(inUse)
}

func checkInterval(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// sleepOrDone sleeps for d, returning false as soon as ctx is canceled —
// the suspension point every worker wait passes through so cancellation
// is observed promptly instead of only at the top of the next iteration.
func (e *Engine) sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// balanceOf reads the wallet's balance of address, routing native-mint
// addresses to NativeBalance since the RPC node has no SPL token account
// for wrapped-native lookups in this trader.
func (e *Engine) balanceOf(ctx context.Context, tr TraderAPI, address string) (float64, error) {
	if addressnormalizer.IsNative(address) {
		return tr.NativeBalance(ctx)
	}
	return tr.TokenBalance(ctx, address)
}
