package monitorengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oreoft/meme-trade-bot/internal/addressnormalizer"
	"github.com/oreoft/meme-trade-bot/internal/marketdata"
	"github.com/oreoft/meme-trade-bot/internal/notifier"
	"github.com/oreoft/meme-trade-bot/internal/store"
	"github.com/oreoft/meme-trade-bot/internal/trader"
)

// runSwingWorker is the per-monitor loop for a swing monitor oscillating
// between a watch token and a trade token (spec §4.6.3). Unlike simple
// monitors, a swing monitor never self-completes: it keeps oscillating
// until explicitly stopped.
func (e *Engine) runSwingWorker(ctx context.Context, id uint) {
	m0, err := e.st.GetSwingMonitor(id)
	if err != nil {
		log.Error().Err(err).Uint("monitor", id).Msg("swing worker: load monitor failed")
		return
	}

	tr, err := e.buildTrader(m0.PrivateKeyID)
	if err != nil {
		log.Error().Err(err).Uint("monitor", id).Msg("swing worker: build trader failed")
		_ = e.st.SetSwingMonitorStatus(id, store.StatusError)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := e.st.GetSwingMonitor(id)
		if err != nil {
			log.Error().Err(err).Uint("monitor", id).Msg("swing worker: reload monitor failed")
			return
		}

		sleepFor := e.swingIteration(ctx, m, tr)
		if !e.sleepOrDone(ctx, sleepFor) {
			return
		}
	}
}

// swingIteration runs one observe-decide-act cycle for a swing monitor and
// reports how long to sleep before the next one.
func (e *Engine) swingIteration(ctx context.Context, m *store.SwingMonitor, tr TraderAPI) (sleepFor time.Duration) {
	interval := checkInterval(m.CheckIntervalSeconds)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint("monitor", m.ID).Msg("swing worker: unhandled fault")
			_ = e.st.SetSwingMonitorStatus(m.ID, store.StatusError)
			sleepFor = interval
		}
	}()

	watchAddr := addressnormalizer.Normalize(m.WatchTokenAddress)
	md, err := e.market.GetMarketData(watchAddr)
	if err != nil || md == nil {
		return interval
	}

	value := md.Price
	if m.PriceType == store.PriceTypeMarketCap {
		value = md.MarketCap
	}

	if err := e.st.RecordSwingObservation(m.ID, md.Price, md.MarketCap, time.Now()); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("swing worker: record observation failed")
	}

	priceType := string(m.PriceType)
	actionType := "monitoring"
	actionTaken := actionType
	thresholdReached := value >= m.SellThreshold || value <= m.BuyThreshold
	if value >= m.SellThreshold {
		actionTaken = "sell"
	} else if value <= m.BuyThreshold {
		actionTaken = "buy"
	}
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID:   &m.ID,
		ThresholdReached:  thresholdReached,
		ActionTaken:       actionTaken,
		MonitorType:       "swing",
		PriceType:         &priceType,
		CurrentValue:      &value,
		SellThreshold:     &m.SellThreshold,
		BuyThreshold:      &m.BuyThreshold,
		ActionType:        &actionType,
		WatchTokenAddress: &m.WatchTokenAddress,
		TradeTokenAddress: &m.TradeTokenAddress,
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("swing worker: append log failed")
	}

	if value >= m.SellThreshold {
		watchBal, err := e.balanceOf(ctx, tr, m.WatchTokenAddress)
		if err != nil {
			e.notify.Error(m.WebhookURL, fmt.Sprintf("check watch token balance failed: %v", err), m.Name)
			return interval
		}
		if watchBal <= 0 {
			return interval
		}
		e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
			Price: md.Price, MarketCap: md.MarketCap, Threshold: m.SellThreshold, Symbol: m.WatchTokenSymbol,
		}, m.Name, true, "sell", nil)
		return e.swingSellTrigger(ctx, m, tr, watchBal, md.Price, interval)
	}
	if value <= m.BuyThreshold {
		return e.swingBuyTrigger(ctx, m, tr, md, interval)
	}

	if notify, pct := e.filter.Observe(watchAddr, md.MarketCap); notify {
		e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
			Price: md.Price, MarketCap: md.MarketCap, Threshold: m.SellThreshold, Symbol: m.WatchTokenSymbol,
		}, m.Name, false, "swing", pct)
	}
	return interval
}

// swingSellTrigger converts the held watch-token position into the trade
// token once value has crossed SellThreshold upward.
func (e *Engine) swingSellTrigger(ctx context.Context, m *store.SwingMonitor, tr TraderAPI, watchBal, watchPrice float64, interval time.Duration) time.Duration {
	pct := m.SellPercentage
	if m.AllInThresholdUSD > 0 && watchBal*watchPrice <= m.AllInThresholdUSD {
		pct = 1.0
	}

	result, amount := e.executeSwingTrade(ctx, tr, m.WatchTokenAddress, m.TradeTokenAddress, watchBal, pct)
	if !result.Success {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("swing sell execution failed: %s", result.Err), m.Name)
		return interval
	}

	usdValue := amount * watchPrice
	txHash := result.TxHash
	side := "sell"
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID: &m.ID, ThresholdReached: true, ActionTaken: "自动出售", TxHash: &txHash, MonitorType: "swing",
		ActionType: &side, SellThreshold: &m.SellThreshold, BuyThreshold: &m.BuyThreshold,
		WatchTokenAddress: &m.WatchTokenAddress, TradeTokenAddress: &m.TradeTokenAddress,
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("swing worker: append trade log failed")
	}
	e.notify.Trade(m.WebhookURL, txHash, amount, usdValue, m.Name, m.WatchTokenSymbol, "sell")
	return PostTradeCooldown
}

// swingBuyTrigger converts the held trade-token position back into the
// watch token once value has dropped to or below BuyThreshold.
func (e *Engine) swingBuyTrigger(ctx context.Context, m *store.SwingMonitor, tr TraderAPI, md *marketdata.MarketData, interval time.Duration) time.Duration {
	tradeBal, err := e.balanceOf(ctx, tr, m.TradeTokenAddress)
	if err != nil {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("check trade token balance failed: %v", err), m.Name)
		return interval
	}
	if tradeBal <= 0 {
		return interval
	}
	e.notify.PriceAlert(m.WebhookURL, notifier.PriceInfo{
		Price: md.Price, MarketCap: md.MarketCap, Threshold: m.BuyThreshold, Symbol: m.WatchTokenSymbol,
	}, m.Name, true, "buy", nil)

	pct := m.BuyPercentage
	tradeUSD := tradeBal
	if tradeMD, err := e.market.GetMarketData(addressnormalizer.Normalize(m.TradeTokenAddress)); err == nil && tradeMD != nil {
		tradeUSD = tradeBal * tradeMD.Price
	}
	if m.AllInThresholdUSD > 0 && tradeUSD <= m.AllInThresholdUSD {
		pct = 1.0
	}

	result, amount := e.executeSwingTrade(ctx, tr, m.TradeTokenAddress, m.WatchTokenAddress, tradeBal, pct)
	if !result.Success {
		e.notify.Error(m.WebhookURL, fmt.Sprintf("swing buy execution failed: %s", result.Err), m.Name)
		return interval
	}

	txHash := result.TxHash
	side := "buy"
	if err := e.st.AppendLog(&store.MonitorLog{
		MonitorRecordID: &m.ID, ThresholdReached: true, ActionTaken: "自动买入", TxHash: &txHash, MonitorType: "swing",
		ActionType: &side, SellThreshold: &m.SellThreshold, BuyThreshold: &m.BuyThreshold,
		WatchTokenAddress: &m.WatchTokenAddress, TradeTokenAddress: &m.TradeTokenAddress,
	}); err != nil {
		log.Error().Err(err).Uint("monitor", m.ID).Msg("swing worker: append trade log failed")
	}
	e.notify.Trade(m.WebhookURL, txHash, amount, tradeUSD*pct, m.Name, m.WatchTokenSymbol, "buy")
	return PostTradeCooldown
}

// executeSwingTrade quotes and swaps pct of balance from fromAddr to
// toAddr, returning the trade result and the from-side amount swapped.
func (e *Engine) executeSwingTrade(ctx context.Context, tr TraderAPI, fromAddr, toAddr string, balance, pct float64) (result trader.TradeResult, amount float64) {
	amount = balance * pct
	decimals, err := tr.Decimals(ctx, fromAddr)
	if err != nil {
		return trader.TradeResult{Success: false, Err: err.Error()}, 0
	}

	rawAmount := decimal.NewFromFloat(amount).Shift(int32(decimals)).Round(0)
	if !rawAmount.IsPositive() {
		return trader.TradeResult{Success: false, Err: "computed zero swap amount"}, 0
	}

	quote, err := tr.Quote(ctx, addressnormalizer.Normalize(fromAddr), addressnormalizer.Normalize(toAddr), uint64(rawAmount.IntPart()))
	if err != nil {
		return trader.TradeResult{Success: false, Err: err.Error()}, 0
	}

	return tr.SwapExact(ctx, quote), amount
}
