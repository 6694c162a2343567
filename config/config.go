package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/autotrader/broker/paper"
	"github.com/rustyeddy/autotrader/engine"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
)

// Config is the complete trader configuration.
type Config struct {
	Log        LogConfig                 `json:"log" yaml:"log"`
	Metrics    MetricsConfig             `json:"metrics" yaml:"metrics"`
	Engine     EngineConfig              `json:"engine" yaml:"engine"`
	Paper      PaperConfig               `json:"paper" yaml:"paper"`
	Journal    JournalConfig             `json:"journal" yaml:"journal"`
	Strategies []engine.ActivationConfig `json:"strategies" yaml:"strategies"`
}

type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

type EngineConfig struct {
	ConfirmInterval    string `json:"confirm_interval" yaml:"confirm_interval"`
	ConfirmMaxAttempts int    `json:"confirm_max_attempts" yaml:"confirm_max_attempts"` // 0 = unbounded
	MaxClockSkew       string `json:"max_clock_skew" yaml:"max_clock_skew"`
	FillGapTick        bool   `json:"fill_gap_tick" yaml:"fill_gap_tick"`
	MaxGapCandles      int    `json:"max_gap_candles" yaml:"max_gap_candles"` // 0 = default
}

// PaperConfig describes the in-process exchange.
type PaperConfig struct {
	Name           string             `json:"name" yaml:"name"`
	Balances       map[string]float64 `json:"balances" yaml:"balances"`
	Contracts      []PaperContract    `json:"contracts" yaml:"contracts"`
	FillAfterPolls int                `json:"fill_after_polls" yaml:"fill_after_polls"`
	HistoryCandles int                `json:"history_candles" yaml:"history_candles"`
	TickInterval   string             `json:"tick_interval" yaml:"tick_interval"`
	Spread         float64            `json:"spread" yaml:"spread"`
	Volatility     float64            `json:"volatility" yaml:"volatility"`
	Seed           int64              `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type PaperContract struct {
	market.ContractSpec `yaml:",inline"`
	SeedPrice           float64 `json:"seed_price" yaml:"seed_price"`
}

type JournalConfig struct {
	Kind string `json:"kind" yaml:"kind"` // none, csv or sqlite
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
// on top of the defaults. Lists and maps in the file replace the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	cfg.Strategies = nil
	cfg.Paper.Contracts = nil
	cfg.Paper.Balances = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration and names the offending field.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}

	if _, err := duration("engine.confirm_interval", c.Engine.ConfirmInterval); err != nil {
		return err
	}
	if _, err := duration("engine.max_clock_skew", c.Engine.MaxClockSkew); err != nil {
		return err
	}
	if c.Engine.ConfirmMaxAttempts < 0 {
		return fmt.Errorf("engine.confirm_max_attempts must not be negative")
	}
	if c.Engine.MaxGapCandles < 0 {
		return fmt.Errorf("engine.max_gap_candles must not be negative")
	}

	if err := c.Paper.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Journal.Kind) {
	case "", journal.KindNone:
	case journal.KindCSV, journal.KindSQLite:
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path is required for %s journals", c.Journal.Kind)
		}
	default:
		return fmt.Errorf("journal.kind must be none, csv or sqlite")
	}

	symbols := map[string]bool{}
	for _, pc := range c.Paper.Contracts {
		symbols[pc.Symbol] = true
	}
	for i, s := range c.Strategies {
		if _, _, err := s.Validate(); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if s.Exchange != c.Paper.Name {
			return fmt.Errorf("strategies[%d].exchange: unknown exchange %q", i, s.Exchange)
		}
		if !symbols[s.Symbol] {
			return fmt.Errorf("strategies[%d].symbol: %q is not listed on %s", i, s.Symbol, s.Exchange)
		}
	}
	return nil
}

func (p PaperConfig) validate() error {
	if p.Name == "" {
		return fmt.Errorf("paper.name is required")
	}
	if len(p.Contracts) == 0 {
		return fmt.Errorf("paper.contracts must list at least one contract")
	}
	seen := map[string]bool{}
	for i, pc := range p.Contracts {
		if _, err := market.NewContract(pc.ContractSpec); err != nil {
			return fmt.Errorf("paper.contracts[%d]: %w", i, err)
		}
		if seen[pc.Symbol] {
			return fmt.Errorf("paper.contracts[%d]: duplicate symbol %s", i, pc.Symbol)
		}
		seen[pc.Symbol] = true
		if pc.SeedPrice <= 0 {
			return fmt.Errorf("paper.contracts[%d].seed_price must be positive", i)
		}
	}
	for asset, bal := range p.Balances {
		if bal < 0 {
			return fmt.Errorf("paper.balances.%s must not be negative", asset)
		}
	}
	if p.FillAfterPolls < 0 {
		return fmt.Errorf("paper.fill_after_polls must not be negative")
	}
	if p.HistoryCandles <= 0 {
		return fmt.Errorf("paper.history_candles must be positive")
	}
	if p.Spread < 0 || p.Volatility < 0 {
		return fmt.Errorf("paper.spread and paper.volatility must not be negative")
	}
	if _, err := duration("paper.tick_interval", p.TickInterval); err != nil {
		return err
	}
	return nil
}

// EngineOptions converts the engine section. Journal and logbook are left
// for the caller to attach.
func (c *Config) EngineOptions() (engine.Options, error) {
	interval, err := duration("engine.confirm_interval", c.Engine.ConfirmInterval)
	if err != nil {
		return engine.Options{}, err
	}
	skew, err := duration("engine.max_clock_skew", c.Engine.MaxClockSkew)
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		ConfirmInterval:    interval,
		ConfirmMaxAttempts: c.Engine.ConfirmMaxAttempts,
		MaxClockSkew:       skew,
		FillGapTick:        c.Engine.FillGapTick,
		MaxGapCandles:      c.Engine.MaxGapCandles,
	}, nil
}

// PaperExchange builds the configured paper exchange with its contracts
// listed and seeded.
func (c *Config) PaperExchange() (*paper.Exchange, error) {
	tick, err := duration("paper.tick_interval", c.Paper.TickInterval)
	if err != nil {
		return nil, err
	}
	ex := paper.New(paper.Config{
		Name:           c.Paper.Name,
		Balances:       c.Paper.Balances,
		FillAfterPolls: c.Paper.FillAfterPolls,
		HistoryCandles: c.Paper.HistoryCandles,
		Spread:         c.Paper.Spread,
		Volatility:     c.Paper.Volatility,
		TickInterval:   tick,
		Seed:           c.Paper.Seed,
	})
	for i, pc := range c.Paper.Contracts {
		if _, err := ex.AddContract(pc.ContractSpec, pc.SeedPrice); err != nil {
			return nil, fmt.Errorf("paper.contracts[%d]: %w", i, err)
		}
	}
	return ex, nil
}

// duration parses a non-negative duration; empty means zero.
func duration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// Default returns a runnable paper-trading setup.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Console: true},
		Engine: EngineConfig{
			ConfirmInterval:    engine.DefaultConfirmInterval.String(),
			ConfirmMaxAttempts: engine.DefaultConfirmMaxAttempts,
			MaxClockSkew:       engine.DefaultMaxClockSkew.String(),
			MaxGapCandles:      engine.DefaultMaxGapCandles,
		},
		Paper: PaperConfig{
			Name:     "paper",
			Balances: map[string]float64{"USDT": 10000, "XBT": 1},
			Contracts: []PaperContract{
				{
					ContractSpec: market.ContractSpec{
						Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT",
						TickSize: 0.01, LotSize: 0.001, Model: "linear", Multiplier: 1,
					},
					SeedPrice: 3000,
				},
				{
					ContractSpec: market.ContractSpec{
						Symbol: "XBTUSD", BaseAsset: "XBT", QuoteAsset: "USD",
						TickSize: 0.5, LotSize: 100, Model: "inverse", Multiplier: 1,
					},
					SeedPrice: 60000,
				},
				{
					ContractSpec: market.ContractSpec{
						Symbol: "ETHUSD", BaseAsset: "ETH", QuoteAsset: "USD", MarginAsset: "XBT",
						TickSize: 0.05, LotSize: 1, Model: "quanto", Multiplier: 0.000001,
					},
					SeedPrice: 3000,
				},
			},
			FillAfterPolls: 1,
			HistoryCandles: 200,
			TickInterval:   "1s",
			Spread:         0.0002,
			Volatility:     0.0005,
		},
		Journal: JournalConfig{Kind: journal.KindNone},
		Strategies: []engine.ActivationConfig{
			{
				Exchange: "paper", Symbol: "ETHUSDT", Timeframe: "1m", Strategy: "breakout",
				BalancePct: 10, TakeProfit: 1.5, StopLoss: 1,
				Params: map[string]float64{"min_volume": 0.5},
			},
			{
				Exchange: "paper", Symbol: "XBTUSD", Timeframe: "5m", Strategy: "technical",
				BalancePct: 10, TakeProfit: 2, StopLoss: 1,
				Params: map[string]float64{"ema_fast": 12, "ema_slow": 26, "ema_signal": 9, "rsi_length": 14},
			},
		},
	}
}
