package monitorengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oreoft/meme-trade-bot/internal/addressnormalizer"
	"github.com/oreoft/meme-trade-bot/internal/marketdata"
	"github.com/oreoft/meme-trade-bot/internal/notifier"
	"github.com/oreoft/meme-trade-bot/internal/store"
)

// runSimpleWorker is the per-monitor loop for a buy or sell simple
// monitor (spec §4.6.2). It runs until ctx is canceled or the monitor
// reaches a terminal state.
func (e *Engine) runSimpleWorker(ctx context.Context, id uint) {
	m0, err := e.st.GetSimpleMonitor(id)
	if err != nil {
		log.Error().Err(err).Uint("monitor", id).Msg("simple worker: load monitor failed")
		return
	}

	tr, err := e.buildTrader(m0.PrivateKeyID)
	if err != nil {
		log.Error().Err(err).Uint("monitor", id).Msg("simple worker: build trader failed")
		_ = e.st.SetSimpleMonitorStatus(id, store.StatusError)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := e.st.GetSimpleMonitor(id)
		if err != nil {
			log.Error().Err(err).Uint("monitor", id).Msg("simple worker: reload monitor failed")
			return
		}

		terminate, sleepFor := e.simpleIteration(ctx, m, tr)
		if terminate {
			return
		}
		if !e.sleepOrDone(ctx, sleepFor) {
			return
		}
	}
}

// simpleIteration runs one observe-decide-act cycle and reports whether
// the worker should terminate, plus how long it should sleep before the
// next iteration otherwise. Any unhandled fault flips status to "error"
// and is treated as a non-terminating failure so the worker can self-heal
// on the next tick (spec §4.6.6, FatalWorkerError).
func (e *Engine) simpleIteration(ctx context.Context, m *store.SimpleMonitor, tr TraderAPI) (terminate bool, sleepFor time.Duration) {
	interval := checkInterval(m.CheckIntervalSeconds)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint("monitor", m.ID).Msg("simple worker: unhandled fault")
			_ = e.st.SetSimpleMonitorStatus(m.ID, store.StatusError)
			terminate, sleepFor = false, interval
		}
	}()

	addr := addressnormalizer.Normalize(m.TokenAddress)
	md, err := e.market.GetMarketData(addr)
	if err != nil || md == nil {
		return false, interval
	}

	if err := e.st.RecordSimpleObservation(m.ID, md.Price, md.MarketCap, time.Now()); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("simple worker: record observation failed")
	}

	var thresholdReached bool
	switch m.Kind {
	case store.MonitorKindSell:
		thresholdReached = md.MarketCap >= m.Threshold
	case store.MonitorKindBuy:
		thresholdReached = md.MarketCap < m.Threshold
	default:
		_ = e.st.SetSimpleMonitorStatus(m.ID, store.StatusError)
		return false, interval
	}

	actionTaken := "monitoring"
	if thresholdReached {
		actionTaken = "阈值达到"
	}
	price, marketCap := md.Price, md.MarketCap
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID:  &m.ID,
		Price:            &price,
		MarketCap:        &marketCap,
		ThresholdReached: thresholdReached,
		ActionTaken:      actionTaken,
		MonitorType:      "normal",
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("simple worker: append log failed")
	}

	if !thresholdReached {
		if notify, pct := e.filter.Observe(addr, md.MarketCap); notify {
			e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
				Price: md.Price, MarketCap: md.MarketCap, Threshold: m.Threshold, Symbol: m.TokenSymbol,
			}, m.Name, false, string(m.Kind), pct)
		}
		return false, interval
	}

	if m.Kind == store.MonitorKindSell {
		return e.simpleSellTrigger(ctx, m, tr, md, interval)
	}
	return e.simpleBuyTrigger(ctx, m, tr, md, interval)
}

// simpleSellTrigger executes the sell branch of §4.6.2 once the market
// cap has crossed the threshold upward.
func (e *Engine) simpleSellTrigger(ctx context.Context, m *store.SimpleMonitor, tr TraderAPI, md *marketdata.MarketData, interval time.Duration) (bool, time.Duration) {
	e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
		Price: md.Price, MarketCap: md.MarketCap, Threshold: m.Threshold, Symbol: m.TokenSymbol,
	}, m.Name, true, "sell", nil)

	bal, err := tr.TokenBalance(ctx, m.TokenAddress)
	if err != nil {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("check token balance failed: %v", err), m.Name)
		return false, interval
	}

	if bal <= 0 {
		if m.PreSniper {
			return false, interval
		}
		e.completeSimple(m, "token balance is zero",
			fmt.Sprintf("[%s] monitor completed", m.Name),
			fmt.Sprintf("[%s] token balance is zero, monitor stopped automatically.", m.Name))
		return true, 0
	}

	effective := m.Percentage
	if m.ExecutionMode == store.ExecutionModeMultiple && bal*md.Price < m.MinimumHoldUSD {
		effective = 1.0
	}

	result := tr.SellTokenForNative(ctx, m.TokenAddress, effective)
	if !result.Success {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("sell execution failed: %s", result.Err), m.Name)
		return false, interval
	}

	amount := bal * effective
	usdValue := amount * md.Price
	txHash := result.TxHash
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID: &m.ID, Price: &md.Price, MarketCap: &md.MarketCap,
		ThresholdReached: true, ActionTaken: "自动出售", TxHash: &txHash, MonitorType: "normal",
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("simple worker: append trade log failed")
	}
	e.notify.Trade(m.WebhookURL, txHash, amount, usdValue, m.Name, m.TokenSymbol, "sell")

	if m.ExecutionMode == store.ExecutionModeSingle || effective >= 1.0 {
		e.completeSimple(m, "sell task complete",
			fmt.Sprintf("[%s] monitor completed", m.Name),
			fmt.Sprintf("[%s] sell task finished, monitor stopped automatically.", m.Name))
		return true, 0
	}
	return false, PostTradeCooldown
}

// simpleBuyTrigger executes the buy branch of §4.6.2 once the market cap
// has dropped below the threshold.
func (e *Engine) simpleBuyTrigger(ctx context.Context, m *store.SimpleMonitor, tr TraderAPI, md *marketdata.MarketData, interval time.Duration) (bool, time.Duration) {
	e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
		Price: md.Price, MarketCap: md.MarketCap, Threshold: m.Threshold, Symbol: m.TokenSymbol,
	}, m.Name, true, "buy", nil)

	solBal, err := tr.NativeBalance(ctx)
	if err != nil {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("check native balance failed: %v", err), m.Name)
		return false, interval
	}

	buyAmount := solBal * m.Percentage
	if m.Percentage == 1 {
		buyAmount -= rentReserveSOL
	}
	if solBal <= 0 || buyAmount <= 0 {
		e.completeSimple(m, "native balance insufficient",
			fmt.Sprintf("[%s] monitor completed", m.Name),
			fmt.Sprintf("[%s] native balance is insufficient to buy, monitor stopped automatically.", m.Name))
		return true, 0
	}

	solUSD := 0.0
	if solMD, err := e.market.GetMarketData(addressnormalizer.NativeMint); err == nil && solMD != nil {
		solUSD = solMD.Price
	}
	estimatedUSD := buyAmount * solUSD

	if m.MaxBuyUSD > 0 && m.AccumulatedBuyUSD+estimatedUSD > m.MaxBuyUSD {
		e.completeSimple(m, "cumulative buy cap reached",
			fmt.Sprintf("[%s] cumulative buy cap reached", m.Name),
			fmt.Sprintf("[%s] cumulative buy amount has reached its cap, monitor stopped automatically.", m.Name))
		return true, 0
	}

	effective := m.Percentage
	if m.ExecutionMode == store.ExecutionModeMultiple && solUSD > 0 {
		minHoldSOL := m.MinimumHoldUSD / solUSD
		if solBal-buyAmount < minHoldSOL {
			effective = 1.0
		}
	}

	result := tr.BuyTokenForNative(ctx, m.TokenAddress, effective)
	if !result.Success {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("buy execution failed: %s", result.Err), m.Name)
		return false, interval
	}

	txHash := result.TxHash
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID: &m.ID, Price: &md.Price, MarketCap: &md.MarketCap,
		ThresholdReached: true, ActionTaken: "自动买入", TxHash: &txHash, MonitorType: "normal",
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("simple worker: append trade log failed")
	}
	e.notify.Trade(m.WebhookURL, txHash, buyAmount, estimatedUSD, m.Name, m.TokenSymbol, "buy")

	if err := e.st.AddAccumulatedBuyUSD(m.ID, estimatedUSD); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("simple worker: persist accumulated buy usd failed")
	}

	if m.ExecutionMode == store.ExecutionModeSingle || effective >= 1.0 {
		e.completeSimple(m, "buy task complete",
			fmt.Sprintf("[%s] monitor completed", m.Name),
			fmt.Sprintf("[%s] buy task finished, monitor stopped automatically.", m.Name))
		return true, 0
	}
	return false, PostTradeCooldown
}

// completeSimple commits the completed status before sending the
// completion notification, per spec §4.6.6's ordering guarantee.
func (e *Engine) completeSimple(m *store.SimpleMonitor, reason, title, body string) {
	if err := e.st.SetSimpleMonitorStatus(m.ID, store.StatusCompleted); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("complete simple monitor: status update failed")
	}
	log.Info().Uint("monitor", m.ID).Str("reason", reason).Msg("simple monitor completed")
	e.notify.Completion(m.WebhookURL, title, body)
}
