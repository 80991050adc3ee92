package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetPrivateKey(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "main-wallet", Secret: "sealed-secret", Public: "pub123"}
	assert.NoError(t, s.CreatePrivateKey(pk))
	assert.NotZero(t, pk.ID)

	got, err := s.GetPrivateKey(pk.ID)
	assert.NoError(t, err)
	assert.Equal(t, "main-wallet", got.Nickname)
}

func TestGetPrivateKeyNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPrivateKey(999)
	assert.Error(t, err)
	var notFound *monitorerrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeletePrivateKeyForbiddenWhenInUse(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "used", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	monitor := &SimpleMonitor{
		Name: "watch-1", PrivateKeyID: pk.ID, TokenAddress: "tokenA",
		Kind: MonitorKindSell, Threshold: 1000, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	assert.NoError(t, s.CreateSimpleMonitor(monitor))

	err := s.DeletePrivateKey(pk.ID)
	assert.Error(t, err)
	var valErr *monitorerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestDeletePrivateKeyLogicalWhenUnused(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "unused", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	assert.NoError(t, s.DeletePrivateKey(pk.ID))

	_, err := s.GetPrivateKey(pk.ID)
	assert.Error(t, err, "logically deleted keys are excluded from live lookups")
}

func TestAccumulatedBuyUSDIsAdditive(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "buyer", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	monitor := &SimpleMonitor{
		Name: "buy-1", PrivateKeyID: pk.ID, TokenAddress: "tokenB",
		Kind: MonitorKindBuy, Threshold: 500, Percentage: 1.0,
		ExecutionMode: ExecutionModeMultiple, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5, MaxBuyUSD: 1000,
	}
	assert.NoError(t, s.CreateSimpleMonitor(monitor))

	assert.NoError(t, s.AddAccumulatedBuyUSD(monitor.ID, 40))
	assert.NoError(t, s.AddAccumulatedBuyUSD(monitor.ID, 10))

	got, err := s.GetSimpleMonitor(monitor.ID)
	assert.NoError(t, err)
	assert.InDelta(t, 50.0, got.AccumulatedBuyUSD, 0.0001)
}

func TestRecordSimpleObservationUpdatesLastSeenFields(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))
	monitor := &SimpleMonitor{
		Name: "m", PrivateKeyID: pk.ID, TokenAddress: "tokenC",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	assert.NoError(t, s.CreateSimpleMonitor(monitor))

	now := time.Now()
	assert.NoError(t, s.RecordSimpleObservation(monitor.ID, 0.05, 150000, now))

	got, err := s.GetSimpleMonitor(monitor.ID)
	assert.NoError(t, err)
	assert.InDelta(t, 0.05, *got.LastPrice, 0.0001)
	assert.InDelta(t, 150000, *got.LastMarketCap, 0.0001)
	assert.NotNil(t, got.LastCheckAt)
}

func TestSwingMonitorRejectsInvertedThresholds(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k2", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	m := &SwingMonitor{
		Name: "swing-1", PrivateKeyID: pk.ID,
		WatchTokenAddress: "W", TradeTokenAddress: "T",
		PriceType: PriceTypePrice, SellThreshold: 1.0, BuyThreshold: 2.0,
		SellPercentage: 1.0, BuyPercentage: 1.0, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	err := s.CreateSwingMonitor(m)
	assert.Error(t, err)
}

func TestCreateSimpleMonitorRejectsOutOfRangePercentage(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k4", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	monitor := &SimpleMonitor{
		Name: "bad-pct", PrivateKeyID: pk.ID, TokenAddress: "tokenF",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 1.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	err := s.CreateSimpleMonitor(monitor)
	assert.Error(t, err)
	var valErr *monitorerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.Zero(t, monitor.ID, "rejected monitor must not be persisted")
}

func TestCreateSimpleMonitorRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k5", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	monitor := &SimpleMonitor{
		Name: "bad-kind", PrivateKeyID: pk.ID, TokenAddress: "tokenG",
		Kind: "hold", Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	err := s.CreateSimpleMonitor(monitor)
	assert.Error(t, err)
}

func TestCreateSimpleMonitorSellKindZeroesBuyBudget(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k6", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	monitor := &SimpleMonitor{
		Name: "sell-with-stale-budget", PrivateKeyID: pk.ID, TokenAddress: "tokenH",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5, MaxBuyUSD: 1000, AccumulatedBuyUSD: 40,
	}
	assert.NoError(t, s.CreateSimpleMonitor(monitor))
	assert.Zero(t, monitor.MaxBuyUSD)
	assert.Zero(t, monitor.AccumulatedBuyUSD)

	got, err := s.GetSimpleMonitor(monitor.ID)
	assert.NoError(t, err)
	assert.Zero(t, got.MaxBuyUSD)
	assert.Zero(t, got.AccumulatedBuyUSD)
}

func TestCreateSwingMonitorRejectsOutOfRangePercentage(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k7", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	m := &SwingMonitor{
		Name: "swing-bad-pct", PrivateKeyID: pk.ID,
		WatchTokenAddress: "W", TradeTokenAddress: "T",
		PriceType: PriceTypePrice, SellThreshold: 2.0, BuyThreshold: 1.0,
		SellPercentage: 0, BuyPercentage: 1.0, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	err := s.CreateSwingMonitor(m)
	assert.Error(t, err)
}

func TestCreateSwingMonitorRejectsUnknownPriceType(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k8", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))

	m := &SwingMonitor{
		Name: "swing-bad-price-type", PrivateKeyID: pk.ID,
		WatchTokenAddress: "W", TradeTokenAddress: "T",
		PriceType: "volume", SellThreshold: 2.0, BuyThreshold: 1.0,
		SellPercentage: 1.0, BuyPercentage: 1.0, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	err := s.CreateSwingMonitor(m)
	assert.Error(t, err)
}

func TestAppendAndListLogsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k3", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))
	monitor := &SimpleMonitor{
		Name: "m3", PrivateKeyID: pk.ID, TokenAddress: "tokenD",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	assert.NoError(t, s.CreateSimpleMonitor(monitor))

	assert.NoError(t, s.AppendLog(&MonitorLog{MonitorRecordID: &monitor.ID, ActionTaken: "monitoring"}))
	time.Sleep(time.Millisecond)
	assert.NoError(t, s.AppendLog(&MonitorLog{MonitorRecordID: &monitor.ID, ActionTaken: "threshold reached"}))

	logs, err := s.ListLogs(LogFilter{MonitorRecordID: &monitor.ID})
	assert.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, "threshold reached", logs[0].ActionTaken)
}

func TestDeleteAllLogsClearsEveryMonitor(t *testing.T) {
	s := newTestStore(t)

	pk := &PrivateKey{Nickname: "k9", Secret: "s", Public: "p"}
	assert.NoError(t, s.CreatePrivateKey(pk))
	m1 := &SimpleMonitor{
		Name: "m1", PrivateKeyID: pk.ID, TokenAddress: "tokenI",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	m2 := &SimpleMonitor{
		Name: "m2", PrivateKeyID: pk.ID, TokenAddress: "tokenJ",
		Kind: MonitorKindSell, Threshold: 100, Percentage: 0.5,
		ExecutionMode: ExecutionModeSingle, WebhookURL: "https://example.com/hook",
		CheckIntervalSeconds: 5,
	}
	assert.NoError(t, s.CreateSimpleMonitor(m1))
	assert.NoError(t, s.CreateSimpleMonitor(m2))
	assert.NoError(t, s.AppendLog(&MonitorLog{MonitorRecordID: &m1.ID, ActionTaken: "monitoring"}))
	assert.NoError(t, s.AppendLog(&MonitorLog{MonitorRecordID: &m2.ID, ActionTaken: "monitoring"}))

	assert.NoError(t, s.DeleteAllLogs())

	logs, err := s.ListLogs(LogFilter{})
	assert.NoError(t, err)
	assert.Empty(t, logs)
}

func TestTokenMetaCacheWriteOnce(t *testing.T) {
	s := newTestStore(t)

	row := &TokenMetaCache{Address: "tokenE", Data: `{"name":"Example"}`, UpdatedAt: 1700000000}
	assert.NoError(t, s.PutTokenMeta(row))

	got, err := s.GetTokenMeta("tokenE")
	assert.NoError(t, err)
	assert.Equal(t, `{"name":"Example"}`, got.Data)

	missing, err := s.GetTokenMeta("does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConfigUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.UpsertConfig("API_KEY", "xxx", "birdeye api key", ConfigTypeString))
	cfg, err := s.GetConfig("API_KEY")
	assert.NoError(t, err)
	assert.Equal(t, "xxx", cfg.Value)

	assert.NoError(t, s.UpsertConfig("API_KEY", "yyy", "birdeye api key", ConfigTypeString))
	cfg, err = s.GetConfig("API_KEY")
	assert.NoError(t, err)
	assert.Equal(t, "yyy", cfg.Value)

	assert.NoError(t, s.DeleteConfig("API_KEY"))
	cfg, err = s.GetConfig("API_KEY")
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}
