// Package configs loads the process's static YAML configuration, layered
// with environment overrides, the way the teacher's configs/config.go does
// for its contract-client/strategy shape.
package configs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DatabaseYAMLData selects and parametrizes the storage backend.
type DatabaseYAMLData struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "mysql"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// Config is the entire static configuration structure from config.yml,
// overridable by environment variables (e.g. CONFIG_RPC, CONFIG_API_KEY).
type Config struct {
	RPC               string            `yaml:"rpc" mapstructure:"rpc"`
	JupiterAPIURL     string            `yaml:"jupiter_api_url" mapstructure:"jupiter_api_url"`
	APIKey            string            `yaml:"api_key" mapstructure:"api_key"`
	ChainHeader       string            `yaml:"chain_header" mapstructure:"chain_header"`
	SlippageBps       int               `yaml:"slippage_bps" mapstructure:"slippage_bps"`
	Database          DatabaseYAMLData `yaml:"database" mapstructure:"database"`
	WebhookDefaultURL string            `yaml:"webhook_default_url" mapstructure:"webhook_default_url"`
}

// LoadConfig reads and parses path (YAML) into a Config, then overlays any
// matching CONFIG_* environment variable (e.g. CONFIG_RPC overrides `rpc`,
// CONFIG_DATABASE_DSN overrides `database.dsn`).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CONFIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain_header", "solana")
	v.SetDefault("slippage_bps", 100)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "monitor.db")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &config, nil
}

// WatchAndRefresh wires fsnotify (via viper.WatchConfig) to onChange, so an
// operator editing config.yml on disk triggers a config refresh without a
// process restart. This is an explicit, opt-in watcher, not a reactive
// invalidation path: nothing calls onChange except this one file-change
// event source.
func WatchAndRefresh(path string, onChange func()) {
	v := viper.New()
	v.SetConfigFile(path)
	v.OnConfigChange(func(fsnotify.Event) { onChange() })
	v.WatchConfig()
}

// DefaultConfigSeed returns the subset of Config that overrides
// ConfigRegistry's built-in first-run defaults (API_KEY, CHAIN_HEADER,
// RPC_URL, JUPITER_API_URL, SLIPPAGE_BPS), keyed the same way the registry's
// default table is.
func (c *Config) DefaultConfigSeed() map[string]string {
	return map[string]string{
		"API_KEY":         c.APIKey,
		"CHAIN_HEADER":    c.ChainHeader,
		"RPC_URL":         c.RPC,
		"JUPITER_API_URL": c.JupiterAPIURL,
		"SLIPPAGE_BPS":    strconv.Itoa(c.SlippageBps),
	}
}
