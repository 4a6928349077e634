package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StageProduction = "production"
	StageStaging    = "staging"
)

type Config struct {
	Stage     string                  `yaml:"stage"`
	Log       LoggingConfig           `yaml:"log"`
	Markets   map[string]MarketConfig `yaml:"markets"`
	Strategy  StrategyConfig          `yaml:"strategy"`
	Risk      RiskConfig              `yaml:"risk"`
	FTX       FTXConfig               `yaml:"ftx"`
	Perp      PerpConfig              `yaml:"perp"`
	State     StateConfig             `yaml:"state"`
	Metrics   MetricsConfig           `yaml:"metrics"`
	Health    HealthConfig            `yaml:"health"`
	Timescale TimescaleConfig         `yaml:"timescale"`
	Telegram  TelegramConfig          `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MarketConfig is keyed by the on-chain base symbol (e.g. "vETH").
type MarketConfig struct {
	IsEnabled                    bool    `yaml:"is_enabled"`
	FTXMarketName                string  `yaml:"ftx_market_name"`
	OrderAmount                  float64 `yaml:"order_amount"`
	ShortTriggerSpread           float64 `yaml:"short_trigger_spread"`
	LongTriggerSpread            float64 `yaml:"long_trigger_spread"`
	IsEmergencyReduceModeEnabled bool    `yaml:"is_emergency_reduce_mode_enabled"`
}

type StrategyConfig struct {
	BalanceCheckInterval         time.Duration `yaml:"balance_check_interval"`
	PriceCheckInterval           time.Duration `yaml:"price_check_interval"`
	EmergencyReduceCheckInterval time.Duration `yaml:"emergency_reduce_check_interval"`
	EmergencyReduceSleep         time.Duration `yaml:"emergency_reduce_sleep"`
	EmergencyReduceAmount        float64       `yaml:"emergency_reduce_amount"`
	ImbalanceDebounce            time.Duration `yaml:"imbalance_debounce"`
	DustUSDSize                  float64       `yaml:"dust_usd_size"`
}

type RiskConfig struct {
	FTXMinMarginRatio        float64 `yaml:"ftx_min_margin_ratio"`
	FTXEmergencyMarginRatio  float64 `yaml:"ftx_emergency_margin_ratio"`
	PerpMinMarginRatio       float64 `yaml:"perp_min_margin_ratio"`
	PerpEmergencyMarginRatio float64 `yaml:"perp_emergency_margin_ratio"`
	ArbitrageMaxGasFeeETH    float64 `yaml:"arbitrage_max_gas_fee_eth"`
	BalanceMaxGasFeeETH      float64 `yaml:"balance_max_gas_fee_eth"`
}

type FTXConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PerpConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	ChainID        int64         `yaml:"chain_id"`
	MetadataURL    string        `yaml:"metadata_url"`
	ReferralURL    string        `yaml:"referral_url"`
	RPCTimeout     time.Duration `yaml:"rpc_timeout"`
	TxTimeout      time.Duration `yaml:"tx_timeout"`
	DepositOnStart bool          `yaml:"deposit_on_start"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type HealthConfig struct {
	MaxAge      time.Duration `yaml:"max_age"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

// EnabledMarkets returns the enabled market names in a stable order.
func (c *Config) EnabledMarkets() []string {
	names := make([]string, 0, len(c.Markets))
	for name, m := range c.Markets {
		if m.IsEnabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func applyDefaults(cfg *Config) {
	if cfg.Stage == "" {
		cfg.Stage = StageProduction
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Strategy.BalanceCheckInterval == 0 {
		cfg.Strategy.BalanceCheckInterval = 3 * time.Second
	}
	if cfg.Strategy.PriceCheckInterval == 0 {
		cfg.Strategy.PriceCheckInterval = 5 * time.Second
	}
	if cfg.Strategy.EmergencyReduceCheckInterval == 0 {
		cfg.Strategy.EmergencyReduceCheckInterval = 10 * time.Second
	}
	if cfg.Strategy.EmergencyReduceSleep == 0 {
		cfg.Strategy.EmergencyReduceSleep = 30 * time.Second
	}
	if cfg.Strategy.ImbalanceDebounce == 0 {
		cfg.Strategy.ImbalanceDebounce = 30 * time.Second
	}
	if cfg.Strategy.DustUSDSize == 0 {
		cfg.Strategy.DustUSDSize = 100
	}
	if cfg.FTX.BaseURL == "" {
		cfg.FTX.BaseURL = "https://ftx.com/api"
	}
	if cfg.FTX.Timeout == 0 {
		cfg.FTX.Timeout = 60 * time.Second
	}
	if cfg.Perp.ChainID == 0 {
		cfg.Perp.ChainID = 10
	}
	if cfg.Perp.MetadataURL == "" {
		cfg.Perp.MetadataURL = "https://metadata.perp.exchange/v2/optimism.json"
	}
	if cfg.Perp.RPCTimeout == 0 {
		cfg.Perp.RPCTimeout = 10 * time.Second
	}
	if cfg.Perp.TxTimeout == 0 {
		cfg.Perp.TxTimeout = 2 * time.Minute
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/perp-ftx-arb.db"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Health.MaxAge == 0 {
		cfg.Health.MaxAge = 5 * time.Minute
	}
	if cfg.Health.RedisPrefix == "" {
		cfg.Health.RedisPrefix = "perp-ftx-arb:alive:"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("ARB_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("ARB_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if rpcURL := strings.TrimSpace(os.Getenv("ARB_RPC_URL")); rpcURL != "" {
		cfg.Perp.RPCURL = rpcURL
	}
}

func validate(cfg *Config) error {
	names := cfg.EnabledMarkets()
	if len(names) == 0 {
		return errors.New("at least one enabled market is required")
	}
	for _, name := range names {
		m := cfg.Markets[name]
		if strings.TrimSpace(m.FTXMarketName) == "" {
			return fmt.Errorf("markets.%s.ftx_market_name is required", name)
		}
		if m.OrderAmount <= 0 {
			return fmt.Errorf("markets.%s.order_amount must be > 0", name)
		}
		if m.ShortTriggerSpread <= m.LongTriggerSpread {
			return fmt.Errorf("markets.%s.short_trigger_spread must be > long_trigger_spread", name)
		}
	}
	if cfg.Strategy.BalanceCheckInterval < 0 || cfg.Strategy.PriceCheckInterval < 0 ||
		cfg.Strategy.EmergencyReduceCheckInterval < 0 || cfg.Strategy.EmergencyReduceSleep < 0 {
		return errors.New("strategy intervals must be >= 0")
	}
	if cfg.Strategy.ImbalanceDebounce < 0 {
		return errors.New("strategy.imbalance_debounce must be >= 0")
	}
	if cfg.Strategy.EmergencyReduceAmount < 0 {
		return errors.New("strategy.emergency_reduce_amount must be >= 0")
	}
	if cfg.Strategy.DustUSDSize < 0 {
		return errors.New("strategy.dust_usd_size must be >= 0")
	}
	if cfg.Risk.FTXEmergencyMarginRatio > cfg.Risk.FTXMinMarginRatio {
		return errors.New("risk.ftx_emergency_margin_ratio exceeds risk.ftx_min_margin_ratio")
	}
	if cfg.Risk.PerpEmergencyMarginRatio > cfg.Risk.PerpMinMarginRatio {
		return errors.New("risk.perp_emergency_margin_ratio exceeds risk.perp_min_margin_ratio")
	}
	if cfg.Risk.ArbitrageMaxGasFeeETH <= 0 {
		return errors.New("risk.arbitrage_max_gas_fee_eth must be > 0")
	}
	if cfg.Risk.BalanceMaxGasFeeETH <= 0 {
		return errors.New("risk.balance_max_gas_fee_eth must be > 0")
	}
	if strings.TrimSpace(cfg.Perp.RPCURL) == "" {
		return errors.New("perp.rpc_url is required")
	}
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram token and chat_id are required when telegram is enabled")
	}
	return nil
}
