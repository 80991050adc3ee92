package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oreoft/meme-trade-bot/internal/monitorerrors"
)

// Store wraps a GORM connection and exposes the typed queries the monitor
// engine and its collaborators need.
type Store struct {
	db *gorm.DB
}

var allModels = []any{
	&PrivateKey{},
	&SimpleMonitor{},
	&SwingMonitor{},
	&MonitorLog{},
	&TokenMetaCache{},
	&Config{},
}

// NewSQLiteStore opens (or creates) an embedded single-node SQLite
// database at path and auto-migrates the schema. path may be ":memory:"
// for tests.
func NewSQLiteStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return newStoreWithDB(db)
}

// NewMySQLStore opens a MySQL-backed store for multi-instance deployments.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func NewMySQLStore(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql store: %w", err)
	}
	return newStoreWithDB(db)
}

func newStoreWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying GORM handle for callers that need advanced
// queries beyond this package's typed surface.
func (s *Store) DB() *gorm.DB { return s.db }

// --- PrivateKey -----------------------------------------------------------

// CreatePrivateKey inserts a new key row.
func (s *Store) CreatePrivateKey(pk *PrivateKey) error {
	if err := s.db.Create(pk).Error; err != nil {
		return wrapValidationOrStorage("create private key", err)
	}
	return nil
}

// GetPrivateKey fetches a non-deleted key by id.
func (s *Store) GetPrivateKey(id uint) (*PrivateKey, error) {
	var pk PrivateKey
	err := s.db.Where("id = ? AND deleted = ?", id, false).First(&pk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &monitorerrors.NotFoundError{Kind: "private_key", ID: id}
	}
	if err != nil {
		return nil, &monitorerrors.StorageError{Op: "get private key", Err: err}
	}
	return &pk, nil
}

// ListPrivateKeys returns every non-deleted key.
func (s *Store) ListPrivateKeys() ([]PrivateKey, error) {
	var keys []PrivateKey
	if err := s.db.Where("deleted = ?", false).Find(&keys).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list private keys", Err: err}
	}
	return keys, nil
}

// UpdatePrivateKey persists changes to an existing key row.
func (s *Store) UpdatePrivateKey(pk *PrivateKey) error {
	if err := s.db.Save(pk).Error; err != nil {
		return wrapValidationOrStorage("update private key", err)
	}
	return nil
}

// DeletePrivateKey logically deletes a key, refusing if any live simple or
// swing monitor still references it.
func (s *Store) DeletePrivateKey(id uint) error {
	var simpleCount, swingCount int64
	if err := s.db.Model(&SimpleMonitor{}).Where("private_key_id = ?", id).Count(&simpleCount).Error; err != nil {
		return &monitorerrors.StorageError{Op: "count simple monitors for key", Err: err}
	}
	if err := s.db.Model(&SwingMonitor{}).Where("private_key_id = ?", id).Count(&swingCount).Error; err != nil {
		return &monitorerrors.StorageError{Op: "count swing monitors for key", Err: err}
	}
	if simpleCount > 0 || swingCount > 0 {
		return &monitorerrors.ValidationError{Field: "private_key_id", Reason: "key is referenced by a live monitor"}
	}

	if err := s.db.Model(&PrivateKey{}).Where("id = ?", id).Update("deleted", true).Error; err != nil {
		return &monitorerrors.StorageError{Op: "delete private key", Err: err}
	}
	return nil
}

// --- SimpleMonitor ---------------------------------------------------------

func (s *Store) CreateSimpleMonitor(m *SimpleMonitor) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.db.Create(m).Error; err != nil {
		return wrapValidationOrStorage("create simple monitor", err)
	}
	return nil
}

func (s *Store) GetSimpleMonitor(id uint) (*SimpleMonitor, error) {
	var m SimpleMonitor
	err := s.db.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &monitorerrors.NotFoundError{Kind: "simple_monitor", ID: id}
	}
	if err != nil {
		return nil, &monitorerrors.StorageError{Op: "get simple monitor", Err: err}
	}
	return &m, nil
}

// ListSimpleMonitors returns every simple monitor record.
func (s *Store) ListSimpleMonitors() ([]SimpleMonitor, error) {
	var monitors []SimpleMonitor
	if err := s.db.Find(&monitors).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list simple monitors", Err: err}
	}
	return monitors, nil
}

// ListSimpleMonitorsByStatus returns simple monitors in the given status.
func (s *Store) ListSimpleMonitorsByStatus(status MonitorStatus) ([]SimpleMonitor, error) {
	var monitors []SimpleMonitor
	if err := s.db.Where("status = ?", status).Find(&monitors).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list simple monitors by status", Err: err}
	}
	return monitors, nil
}

func (s *Store) UpdateSimpleMonitor(m *SimpleMonitor) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.db.Save(m).Error; err != nil {
		return wrapValidationOrStorage("update simple monitor", err)
	}
	return nil
}

// SetSimpleMonitorStatus atomically updates status and is always committed
// before any notification is sent (spec §4.6.6).
func (s *Store) SetSimpleMonitorStatus(id uint, status MonitorStatus) error {
	if err := s.db.Model(&SimpleMonitor{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return &monitorerrors.StorageError{Op: "set simple monitor status", Err: err}
	}
	return nil
}

// RecordSimpleObservation persists the last-seen price/market-cap/check
// timestamp for a simple monitor in a single update.
func (s *Store) RecordSimpleObservation(id uint, price, marketCap float64, checkedAt time.Time) error {
	updates := map[string]any{
		"last_price":      price,
		"last_market_cap": marketCap,
		"last_check_at":   checkedAt,
	}
	if err := s.db.Model(&SimpleMonitor{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return &monitorerrors.StorageError{Op: "record simple monitor observation", Err: err}
	}
	return nil
}

// AddAccumulatedBuyUSD increments the persisted accumulated-buy counter by
// delta, transactionally, since it is read by the next iteration's cap
// check (spec Design Notes: persisted value is authoritative).
func (s *Store) AddAccumulatedBuyUSD(id uint, delta float64) error {
	err := s.db.Model(&SimpleMonitor{}).Where("id = ?", id).
		Update("accumulated_buy_usd", gorm.Expr("accumulated_buy_usd + ?", delta)).Error
	if err != nil {
		return &monitorerrors.StorageError{Op: "accumulate buy usd", Err: err}
	}
	return nil
}

// DeleteSimpleMonitorLogs deletes every log row for a monitor id.
func (s *Store) DeleteSimpleMonitorLogs(id uint) error {
	if err := s.db.Where("monitor_record_id = ?", id).Delete(&MonitorLog{}).Error; err != nil {
		return &monitorerrors.StorageError{Op: "delete simple monitor logs", Err: err}
	}
	return nil
}

// DeleteAllLogs truncates every log row regardless of owning monitor, the
// global counterpart to DeleteSimpleMonitorLogs's per-record delete.
func (s *Store) DeleteAllLogs() error {
	if err := s.db.Where("1 = 1").Delete(&MonitorLog{}).Error; err != nil {
		return &monitorerrors.StorageError{Op: "delete all monitor logs", Err: err}
	}
	return nil
}

// --- SwingMonitor ----------------------------------------------------------

func (s *Store) CreateSwingMonitor(m *SwingMonitor) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.db.Create(m).Error; err != nil {
		return wrapValidationOrStorage("create swing monitor", err)
	}
	return nil
}

func (s *Store) GetSwingMonitor(id uint) (*SwingMonitor, error) {
	var m SwingMonitor
	err := s.db.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &monitorerrors.NotFoundError{Kind: "swing_monitor", ID: id}
	}
	if err != nil {
		return nil, &monitorerrors.StorageError{Op: "get swing monitor", Err: err}
	}
	return &m, nil
}

func (s *Store) ListSwingMonitors() ([]SwingMonitor, error) {
	var monitors []SwingMonitor
	if err := s.db.Find(&monitors).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list swing monitors", Err: err}
	}
	return monitors, nil
}

func (s *Store) ListSwingMonitorsByStatus(status MonitorStatus) ([]SwingMonitor, error) {
	var monitors []SwingMonitor
	if err := s.db.Where("status = ?", status).Find(&monitors).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list swing monitors by status", Err: err}
	}
	return monitors, nil
}

func (s *Store) UpdateSwingMonitor(m *SwingMonitor) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.db.Save(m).Error; err != nil {
		return wrapValidationOrStorage("update swing monitor", err)
	}
	return nil
}

// RecordSwingObservation persists the last-seen watch price/market-cap/check
// timestamp for a swing monitor in a single update.
func (s *Store) RecordSwingObservation(id uint, watchPrice, watchMarketCap float64, checkedAt time.Time) error {
	updates := map[string]any{
		"last_watch_price":      watchPrice,
		"last_watch_market_cap": watchMarketCap,
		"last_check_at":         checkedAt,
	}
	if err := s.db.Model(&SwingMonitor{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return &monitorerrors.StorageError{Op: "record swing monitor observation", Err: err}
	}
	return nil
}

func (s *Store) SetSwingMonitorStatus(id uint, status MonitorStatus) error {
	if err := s.db.Model(&SwingMonitor{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return &monitorerrors.StorageError{Op: "set swing monitor status", Err: err}
	}
	return nil
}

// --- MonitorLog ------------------------------------------------------------

// AppendLog inserts a log row. Failures here are the caller's
// responsibility to log-and-swallow per spec §4.6.6; this method still
// returns the error so callers can decide.
func (s *Store) AppendLog(log *MonitorLog) error {
	if err := s.db.Create(log).Error; err != nil {
		return &monitorerrors.StorageError{Op: "append monitor log", Err: err}
	}
	return nil
}

// LogFilter narrows a paginated log read.
type LogFilter struct {
	MonitorRecordID *uint
	MonitorType     *string
	ActionTypes     []string
	Offset, Limit   int
}

// ListLogs returns logs matching filter, newest first.
func (s *Store) ListLogs(filter LogFilter) ([]MonitorLog, error) {
	q := s.db.Model(&MonitorLog{})
	if filter.MonitorRecordID != nil {
		q = q.Where("monitor_record_id = ?", *filter.MonitorRecordID)
	}
	if filter.MonitorType != nil {
		q = q.Where("monitor_type = ?", *filter.MonitorType)
	}
	if len(filter.ActionTypes) > 0 {
		q = q.Where("action_type IN ?", filter.ActionTypes)
	}
	q = q.Order("timestamp DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var logs []MonitorLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list monitor logs", Err: err}
	}
	return logs, nil
}

// --- TokenMetaCache ---------------------------------------------------------

// GetTokenMeta returns the cached row for address, or nil if absent.
func (s *Store) GetTokenMeta(address string) (*TokenMetaCache, error) {
	var row TokenMetaCache
	err := s.db.Where("address = ?", address).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &monitorerrors.StorageError{Op: "get token meta cache", Err: err}
	}
	return &row, nil
}

// PutTokenMeta writes (or overwrites) the cache row for address. Since
// TokenMetaCache has no invalidation, overwriting only happens if a caller
// explicitly chooses to refresh — the engine itself never does.
func (s *Store) PutTokenMeta(row *TokenMetaCache) error {
	existing, err := s.GetTokenMeta(row.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		row.ID = existing.ID
		if err := s.db.Save(row).Error; err != nil {
			return &monitorerrors.StorageError{Op: "update token meta cache", Err: err}
		}
		return nil
	}
	if err := s.db.Create(row).Error; err != nil {
		return &monitorerrors.StorageError{Op: "create token meta cache", Err: err}
	}
	return nil
}

// --- Config ------------------------------------------------------------

// GetConfig returns the raw config row, or nil if absent.
func (s *Store) GetConfig(key string) (*Config, error) {
	var cfg Config
	err := s.db.Where("key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &monitorerrors.StorageError{Op: "get config", Err: err}
	}
	return &cfg, nil
}

// ListConfigs returns every config row.
func (s *Store) ListConfigs() ([]Config, error) {
	var cfgs []Config
	if err := s.db.Find(&cfgs).Error; err != nil {
		return nil, &monitorerrors.StorageError{Op: "list configs", Err: err}
	}
	return cfgs, nil
}

// UpsertConfig creates or overwrites the row for key.
func (s *Store) UpsertConfig(key, value, description string, configType ConfigType) error {
	existing, err := s.GetConfig(key)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Value = value
		existing.Description = description
		existing.ConfigType = configType
		if err := s.db.Save(existing).Error; err != nil {
			return &monitorerrors.StorageError{Op: "update config", Err: err}
		}
		return nil
	}
	cfg := &Config{Key: key, Value: value, Description: description, ConfigType: configType}
	if err := s.db.Create(cfg).Error; err != nil {
		return &monitorerrors.StorageError{Op: "create config", Err: err}
	}
	return nil
}

// DeleteConfig removes the row for key, if present.
func (s *Store) DeleteConfig(key string) error {
	if err := s.db.Where("key = ?", key).Delete(&Config{}).Error; err != nil {
		return &monitorerrors.StorageError{Op: "delete config", Err: err}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	return sqlDB.Close()
}

func wrapValidationOrStorage(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &monitorerrors.ValidationError{Field: op, Reason: err.Error()}
	}
	return &monitorerrors.StorageError{Op: op, Err: err}
}
