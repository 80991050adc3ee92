// Package configregistry is the flat key/value process configuration
// store. It seeds defaults on first run, coerces values by their declared
// type on read, and fans out refresh notifications to every collaborator
// that subscribes, mirroring the observer wiring the teacher used for its
// strategy-reload hook.
package configregistry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/oreoft/meme-trade-bot/internal/store"
)

// Default seeds written on first run, matching the process's well-known
// configuration surface.
var defaults = []struct {
	key, value, description string
	configType              store.ConfigType
}{
	{"API_KEY", "", "birdeye api key", store.ConfigTypeString},
	{"CHAIN_HEADER", "solana", "chain identifier sent as x-chain", store.ConfigTypeString},
	{"RPC_URL", "https://api.mainnet-beta.solana.com", "solana rpc node address", store.ConfigTypeString},
	{"JUPITER_API_URL", "https://quote-api.jup.ag/v6", "jupiter swap api base url", store.ConfigTypeString},
	{"SLIPPAGE_BPS", "100", "swap slippage in basis points (100 = 1%)", store.ConfigTypeNumber},
}

// Subscriber is implemented by any component that caches configuration
// values and needs to re-read them after an update.
type Subscriber interface {
	RefreshConfig() error
}

// Registry is the process-wide configuration store, backed by a Store and
// fanning out refreshes to its subscribers.
type Registry struct {
	st *store.Store

	mu          sync.Mutex
	subscribers []Subscriber
}

// New opens a Registry over st and seeds any default key that does not yet
// exist.
func New(st *store.Store) (*Registry, error) {
	return NewWithSeed(st, nil)
}

// NewWithSeed is New, except any key present in seed overrides this
// package's built-in default value before it is written — used by
// cmd/monitorengine to let the YAML config file supply the first-run
// values for API_KEY/CHAIN_HEADER/RPC_URL/JUPITER_API_URL/SLIPPAGE_BPS without
// duplicating the seeding logic.
func NewWithSeed(st *store.Store, seed map[string]string) (*Registry, error) {
	r := &Registry{st: st}
	for _, d := range defaults {
		existing, err := st.GetConfig(d.key)
		if err != nil {
			return nil, fmt.Errorf("seed default config %s: %w", d.key, err)
		}
		if existing != nil {
			continue
		}
		value := d.value
		if override, ok := seed[d.key]; ok && override != "" {
			value = override
		}
		if err := st.UpsertConfig(d.key, value, d.description, d.configType); err != nil {
			return nil, fmt.Errorf("seed default config %s: %w", d.key, err)
		}
	}
	return r, nil
}

// Register adds subscriber to the set notified by RefreshAll. Registering
// the same subscriber twice is a no-op.
func (r *Registry) Register(subscriber Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subscribers {
		if s == subscriber {
			return
		}
	}
	r.subscribers = append(r.subscribers, subscriber)
}

// RefreshAll calls RefreshConfig on every registered subscriber, logging
// but not propagating individual failures, and returns how many succeeded.
func (r *Registry) RefreshAll() int {
	r.mu.Lock()
	subscribers := make([]Subscriber, len(r.subscribers))
	copy(subscribers, r.subscribers)
	r.mu.Unlock()

	refreshed := 0
	for _, s := range subscribers {
		if err := s.RefreshConfig(); err != nil {
			log.Error().Err(err).Msg("refresh subscriber config failed")
			continue
		}
		refreshed++
	}
	log.Info().Int("refreshed", refreshed).Int("total", len(subscribers)).Msg("config refresh complete")
	return refreshed
}

// GetString returns a config value as stored, or fallback if absent. The
// stored type is not checked.
func (r *Registry) GetString(key, fallback string) string {
	cfg, err := r.st.GetConfig(key)
	if err != nil || cfg == nil {
		return fallback
	}
	return cfg.Value
}

// GetFloat returns a number-typed config value, or fallback if absent or
// unparsable.
func (r *Registry) GetFloat(key string, fallback float64) float64 {
	cfg, err := r.st.GetConfig(key)
	if err != nil || cfg == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(cfg.Value, 64)
	if err != nil {
		return fallback
	}
	return v
}

// GetBool returns a boolean-typed config value, or fallback if absent.
func (r *Registry) GetBool(key string, fallback bool) bool {
	cfg, err := r.st.GetConfig(key)
	if err != nil || cfg == nil {
		return fallback
	}
	switch cfg.Value {
	case "true", "1", "yes", "on", "True", "TRUE":
		return true
	case "false", "0", "no", "off", "False", "FALSE":
		return false
	default:
		return fallback
	}
}

// GetJSON unmarshals a json-typed config value into out, returning false
// if the key is absent or the value does not parse.
func (r *Registry) GetJSON(key string, out any) bool {
	cfg, err := r.st.GetConfig(key)
	if err != nil || cfg == nil {
		return false
	}
	return json.Unmarshal([]byte(cfg.Value), out) == nil
}

// Set writes key, then fans out a refresh to every subscriber so the new
// value takes effect without a process restart.
func (r *Registry) Set(key, value, description string, configType store.ConfigType) error {
	if err := r.st.UpsertConfig(key, value, description, configType); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	r.RefreshAll()
	return nil
}

// List returns every configured key/value row.
func (r *Registry) List() ([]store.Config, error) {
	cfgs, err := r.st.ListConfigs()
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return cfgs, nil
}

// Delete removes key, then fans out a refresh.
func (r *Registry) Delete(key string) error {
	if err := r.st.DeleteConfig(key); err != nil {
		return fmt.Errorf("delete config %s: %w", key, err)
	}
	r.RefreshAll()
	return nil
}
