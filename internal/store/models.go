// Package store is the GORM-backed persistence layer for every entity in
// the monitor engine's data model: private keys, simple monitors, swing
// monitors, monitor logs, the token-metadata cache, and process config.
package store

import (
	"time"

	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
)

// PrivateKey is a user-owned Solana keypair. Delete is logical: deleted
// rows are kept for audit but excluded from every live lookup.
type PrivateKey struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Nickname  string    `gorm:"not null;index;comment:unique among non-deleted rows"`
	Secret    string    `gorm:"type:text;not null;comment:AES-GCM sealed ed25519 secret, base64"`
	Public    string    `gorm:"not null;comment:base58 ed25519 public address"`
	Deleted   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PrivateKey) TableName() string { return "private_keys" }

// MonitorKind distinguishes the two simple-monitor directions.
type MonitorKind string

const (
	MonitorKindBuy  MonitorKind = "buy"
	MonitorKindSell MonitorKind = "sell"
)

// ExecutionMode controls whether a monitor stops after its first trade or
// keeps running with a cooldown.
type ExecutionMode string

const (
	ExecutionModeSingle   ExecutionMode = "single"
	ExecutionModeMultiple ExecutionMode = "multiple"
)

// MonitorStatus is the lifecycle state of any monitor record.
type MonitorStatus string

const (
	StatusStopped    MonitorStatus = "stopped"
	StatusMonitoring MonitorStatus = "monitoring"
	StatusError      MonitorStatus = "error"
	StatusCompleted  MonitorStatus = "completed"
)

// SimpleMonitor watches one token and trades in one direction when its
// market cap crosses Threshold.
type SimpleMonitor struct {
	ID                   uint          `gorm:"primaryKey;autoIncrement"`
	Name                 string        `gorm:"not null"`
	PrivateKeyID         uint          `gorm:"not null;index"`
	TokenAddress         string        `gorm:"not null;index"`
	TokenName            string
	TokenSymbol          string
	TokenLogoURI         string
	TokenDecimals        int
	Kind                 MonitorKind   `gorm:"not null;default:sell"`
	Threshold            float64       `gorm:"not null"`
	Percentage           float64       `gorm:"not null;comment:fraction of balance traded, (0,1]"`
	ExecutionMode        ExecutionMode `gorm:"not null;default:single"`
	MinimumHoldUSD       float64       `gorm:"not null;default:50"`
	PreSniper            bool          `gorm:"not null;default:false"`
	MaxBuyUSD            float64       `gorm:"not null;default:0;comment:0 = unlimited, buy-kind only"`
	AccumulatedBuyUSD    float64       `gorm:"not null;default:0"`
	WebhookURL           string        `gorm:"not null"`
	CheckIntervalSeconds int           `gorm:"not null;default:5"`
	Status               MonitorStatus `gorm:"not null;default:stopped;index"`
	CreatedAt            time.Time     `gorm:"autoCreateTime"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime"`
	LastCheckAt          *time.Time
	LastPrice            *float64
	LastMarketCap        *float64
}

func (SimpleMonitor) TableName() string { return "monitor_records" }

// Validate checks the invariants spec §8 requires of every SimpleMonitor
// row before it is persisted: percentage and threshold ranges, a minimum
// check interval, a recognized kind, and the sell-kind zero-budget rule.
func (m *SimpleMonitor) Validate() error {
	if m.Percentage <= 0 || m.Percentage > 1 {
		return &monitorerrors.ValidationError{Field: "percentage", Reason: "must be in (0, 1]"}
	}
	if m.Threshold <= 0 {
		return &monitorerrors.ValidationError{Field: "threshold", Reason: "must be greater than 0"}
	}
	if m.CheckIntervalSeconds < 1 {
		return &monitorerrors.ValidationError{Field: "check_interval_seconds", Reason: "must be at least 1"}
	}
	switch m.Kind {
	case MonitorKindBuy, MonitorKindSell:
	default:
		return &monitorerrors.ValidationError{Field: "kind", Reason: "must be buy or sell"}
	}
	if m.Kind == MonitorKindSell {
		m.MaxBuyUSD = 0
		m.AccumulatedBuyUSD = 0
	}
	if m.Kind == MonitorKindBuy {
		m.PreSniper = false
	}
	return nil
}

// PriceType selects whether a swing monitor compares price or market cap
// against its thresholds.
type PriceType string

const (
	PriceTypePrice     PriceType = "price"
	PriceTypeMarketCap PriceType = "market_cap"
)

// SwingMonitor oscillates a wallet's holdings between WatchTokenAddress and
// TradeTokenAddress as the watched metric crosses either threshold.
type SwingMonitor struct {
	ID                   uint          `gorm:"primaryKey;autoIncrement"`
	Name                 string        `gorm:"not null"`
	PrivateKeyID         uint          `gorm:"not null;index"`
	WatchTokenAddress    string        `gorm:"not null"`
	WatchTokenName       string
	WatchTokenSymbol     string
	WatchTokenLogoURI    string
	WatchTokenDecimals   int
	TradeTokenAddress    string        `gorm:"not null"`
	TradeTokenName       string
	TradeTokenSymbol     string
	TradeTokenLogoURI    string
	TradeTokenDecimals   int
	PriceType            PriceType     `gorm:"not null;default:market_cap"`
	SellThreshold        float64       `gorm:"not null"`
	BuyThreshold         float64       `gorm:"not null"`
	SellPercentage       float64       `gorm:"not null"`
	BuyPercentage        float64       `gorm:"not null"`
	WebhookURL           string        `gorm:"not null"`
	CheckIntervalSeconds int           `gorm:"not null;default:5"`
	AllInThresholdUSD    float64       `gorm:"not null;default:50"`
	Status               MonitorStatus `gorm:"not null;default:stopped;index"`
	CreatedAt            time.Time     `gorm:"autoCreateTime"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime"`
	LastCheckAt          *time.Time
	LastWatchPrice       *float64
	LastWatchMarketCap   *float64
}

func (SwingMonitor) TableName() string { return "swing_monitor_records" }

// Validate checks the invariants spec §8 requires of every SwingMonitor
// row: sell_threshold strictly above buy_threshold, both percentages in
// (0,1], a minimum check interval, and a recognized price type.
func (m *SwingMonitor) Validate() error {
	if m.SellThreshold <= m.BuyThreshold {
		return &monitorerrors.ValidationError{Field: "sell_threshold", Reason: "must be greater than buy_threshold"}
	}
	if m.SellPercentage <= 0 || m.SellPercentage > 1 {
		return &monitorerrors.ValidationError{Field: "sell_percentage", Reason: "must be in (0, 1]"}
	}
	if m.BuyPercentage <= 0 || m.BuyPercentage > 1 {
		return &monitorerrors.ValidationError{Field: "buy_percentage", Reason: "must be in (0, 1]"}
	}
	if m.CheckIntervalSeconds < 1 {
		return &monitorerrors.ValidationError{Field: "check_interval_seconds", Reason: "must be at least 1"}
	}
	switch m.PriceType {
	case PriceTypePrice, PriceTypeMarketCap:
	default:
		return &monitorerrors.ValidationError{Field: "price_type", Reason: "must be price or market_cap"}
	}
	return nil
}

// MonitorLog is an append-only observation/action row, shared between
// simple and swing monitors (distinguished by MonitorType).
type MonitorLog struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	MonitorRecordID   *uint     `gorm:"index"`
	Timestamp         time.Time `gorm:"autoCreateTime;index"`
	Price             *float64
	MarketCap         *float64
	ThresholdReached  bool `gorm:"not null;default:false"`
	ActionTaken       string
	TxHash            *string
	MonitorType       string `gorm:"not null;default:normal;comment:normal or swing"`
	PriceType         *string
	CurrentValue      *float64
	SellThreshold     *float64
	BuyThreshold      *float64
	ActionType        *string
	WatchTokenAddress *string
	TradeTokenAddress *string
}

func (MonitorLog) TableName() string { return "monitor_logs" }

// TokenMetaCache holds permanently-cached token metadata, serialized as
// JSON in Data. Once written, an address is never re-fetched.
type TokenMetaCache struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	Address   string  `gorm:"uniqueIndex;not null"`
	Data      string  `gorm:"type:text;not null;comment:json-serialized TokenMeta"`
	UpdatedAt float64 `gorm:"not null;comment:unix timestamp"`
}

func (TokenMetaCache) TableName() string { return "token_meta_data" }

// ConfigType marks how Config.Value should be coerced on read.
type ConfigType string

const (
	ConfigTypeString  ConfigType = "string"
	ConfigTypeNumber  ConfigType = "number"
	ConfigTypeBoolean ConfigType = "boolean"
	ConfigTypeJSON    ConfigType = "json"
)

// Config is a single flat key/value process-configuration row.
type Config struct {
	ID          uint       `gorm:"primaryKey;autoIncrement"`
	Key         string     `gorm:"uniqueIndex;not null"`
	Value       string     `gorm:"type:text"`
	Description string
	ConfigType  ConfigType `gorm:"not null;default:string"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (Config) TableName() string { return "configs" }
