package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"smabot/internal/indicator"
	"smabot/internal/selector"
	"smabot/internal/strategy"
)

// ErrInvalidConfiguration marks settings that must stop the bot at startup.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Mode string

const (
	ModeStream Mode = "stream"
	ModePaper  Mode = "paper"
)

type StrategyConfig struct {
	FastPeriod    int     `yaml:"fast_period"`
	SlowPeriod    int     `yaml:"slow_period"`
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	ADXPeriod     int     `yaml:"adx_period"`
	ADXThreshold  float64 `yaml:"adx_threshold"`
	ATRPeriod     int     `yaml:"atr_period"`
	HistoryBars   int     `yaml:"history_bars"`
}

func (s StrategyConfig) Periods() indicator.Periods {
	return indicator.Periods{
		Fast: s.FastPeriod,
		Slow: s.SlowPeriod,
		RSI:  s.RSIPeriod,
		ADX:  s.ADXPeriod,
		ATR:  s.ATRPeriod,
	}
}

func (s StrategyConfig) Thresholds() strategy.Thresholds {
	return strategy.Thresholds{RSIOverbought: s.RSIOverbought, ADXThreshold: s.ADXThreshold}
}

type RiskConfig struct {
	RiskPerTrade  float64       `yaml:"risk_per_trade"`
	MaxDrawdown   float64       `yaml:"max_drawdown"`
	ATRMultiplier float64       `yaml:"atr_multiplier"`
	LotSize       float64       `yaml:"lot_size"`
	StopLossATR   float64       `yaml:"stop_loss_atr"`
	TakeProfitATR float64       `yaml:"take_profit_atr"`
	MaxNotional   float64       `yaml:"max_notional"`
	Cooldown      time.Duration `yaml:"cooldown"`
	KillSwitch    bool          `yaml:"kill_switch"`
	PaperEquity   float64       `yaml:"paper_equity"`
}

type SelectionConfig struct {
	Symbols               []string        `yaml:"symbols"`
	MinCapitalPerPosition float64         `yaml:"min_capital_per_position"`
	MaxPositions          int             `yaml:"max_positions"`
	RankByMomentum        bool            `yaml:"rank_by_momentum"`
	Tiers                 []selector.Tier `yaml:"universe_tiers"`
}

type OrderConfig struct {
	Type          string `yaml:"type"`
	TimeInForce   string `yaml:"time_in_force"`
	ExtendedHours bool   `yaml:"extended_hours"`
	Brackets      bool   `yaml:"brackets"`
}

type ScheduleConfig struct {
	IterationCron  string `yaml:"iteration_cron"`
	BeforeOpenCron string `yaml:"before_open_cron"`
	AfterCloseCron string `yaml:"after_close_cron"`
	Timezone       string `yaml:"timezone"`
	RunOnStart     bool   `yaml:"run_on_start"`
}

type Config struct {
	Mode           Mode            `yaml:"mode"`
	Feed           string          `yaml:"feed"`
	Strategy       StrategyConfig  `yaml:"strategy"`
	Risk           RiskConfig      `yaml:"risk"`
	Selection      SelectionConfig `yaml:"selection"`
	Orders         OrderConfig     `yaml:"orders"`
	Schedule       ScheduleConfig  `yaml:"schedule"`
	DecisionsPath  string          `yaml:"decisions_path"`
	DecisionsDB    string          `yaml:"decisions_db"`
	CheckpointPath string          `yaml:"checkpoint_path"`
	Reconcile      time.Duration   `yaml:"reconcile_interval"`
	MetricsAddr    string          `yaml:"metrics_addr"`
	PaperBaseURL   string          `yaml:"paper_base_url"`
	APIKey         string          `yaml:"-"`
	APISecret      string          `yaml:"-"`
}

// Default returns the daily SMA momentum settings.
func Default() Config {
	return Config{
		Mode: ModeStream,
		Feed: "iex",
		Strategy: StrategyConfig{
			FastPeriod:    10,
			SlowPeriod:    30,
			RSIPeriod:     14,
			RSIOverbought: 70,
			ADXPeriod:     14,
			ADXThreshold:  20,
			ATRPeriod:     14,
			HistoryBars:   200,
		},
		Risk: RiskConfig{
			RiskPerTrade:  0.02,
			MaxDrawdown:   0.20,
			ATRMultiplier: 2,
			LotSize:       1,
			StopLossATR:   1.5,
			TakeProfitATR: 2,
			PaperEquity:   5000,
		},
		Selection: SelectionConfig{
			MinCapitalPerPosition: 1000,
			MaxPositions:          3,
			Tiers: []selector.Tier{
				{MinCapital: 0, Symbols: []string{"VOO", "QQQ", "GLD"}},
				{MinCapital: 5000, Symbols: []string{"SPY", "QQQ", "GLD"}},
				{MinCapital: 25000, Symbols: []string{"QQQ", "XLK", "XLV", "XLE", "VOO", "SPY", "GLD"}},
			},
		},
		Orders: OrderConfig{
			Type:        "market",
			TimeInForce: "day",
			Brackets:    true,
		},
		Schedule: ScheduleConfig{
			IterationCron:  "0 45 15 * * 1-5",
			BeforeOpenCron: "0 0 9 * * 1-5",
			AfterCloseCron: "0 5 16 * * 1-5",
			Timezone:       "America/New_York",
		},
		DecisionsPath:  "decisions.ndjson",
		CheckpointPath: "checkpoint.json",
		Reconcile:      time.Minute,
		MetricsAddr:    ":9090",
		PaperBaseURL:   "https://paper-api.alpaca.markets",
	}
}

// Load builds the configuration once at startup. Later sources win:
// defaults, YAML file, environment, then flags given on the command line.
func Load() (Config, error) {
	var configPath string
	var envPath string

	flagged := Default()
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&envPath, "env-file", ".env", "path to .env file")
	bindFlags(flag.CommandLine, &flagged)
	flag.Parse()

	loadDotEnvIfPresent(envPath)

	cfg := Default()
	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	cfg.Mode = normalizeMode(string(cfg.Mode))

	apply := flag.NewFlagSet("apply", flag.ContinueOnError)
	bindFlags(apply, &cfg)
	var applyErr error
	flag.Visit(func(f *flag.Flag) {
		if apply.Lookup(f.Name) == nil {
			return
		}
		if err := apply.Set(f.Name, f.Value.String()); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("flag -%s: %w", f.Name, err)
		}
	})
	if applyErr != nil {
		return cfg, applyErr
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var((*modeValue)(&cfg.Mode), "mode", "run mode: stream or paper")
	fs.StringVar(&cfg.Feed, "feed", cfg.Feed, "market data feed: iex or sip")
	fs.Var((*listValue)(&cfg.Selection.Symbols), "symbols", "comma separated symbols, overrides capital tiers")

	fs.IntVar(&cfg.Strategy.FastPeriod, "fast-period", cfg.Strategy.FastPeriod, "fast SMA period")
	fs.IntVar(&cfg.Strategy.SlowPeriod, "slow-period", cfg.Strategy.SlowPeriod, "slow SMA period")
	fs.IntVar(&cfg.Strategy.RSIPeriod, "rsi-period", cfg.Strategy.RSIPeriod, "RSI period")
	fs.Float64Var(&cfg.Strategy.RSIOverbought, "rsi-overbought", cfg.Strategy.RSIOverbought, "RSI overbought threshold")
	fs.IntVar(&cfg.Strategy.ADXPeriod, "adx-period", cfg.Strategy.ADXPeriod, "ADX period")
	fs.Float64Var(&cfg.Strategy.ADXThreshold, "adx-threshold", cfg.Strategy.ADXThreshold, "minimum ADX to enter")
	fs.IntVar(&cfg.Strategy.ATRPeriod, "atr-period", cfg.Strategy.ATRPeriod, "ATR period")
	fs.IntVar(&cfg.Strategy.HistoryBars, "history-bars", cfg.Strategy.HistoryBars, "bars of history per symbol")

	fs.Float64Var(&cfg.Risk.RiskPerTrade, "risk-per-trade", cfg.Risk.RiskPerTrade, "fraction of equity risked per trade")
	fs.Float64Var(&cfg.Risk.MaxDrawdown, "max-drawdown", cfg.Risk.MaxDrawdown, "drawdown fraction that halts trading")
	fs.Float64Var(&cfg.Risk.ATRMultiplier, "atr-multiplier", cfg.Risk.ATRMultiplier, "ATR multiple used as stop distance for sizing")
	fs.Float64Var(&cfg.Risk.LotSize, "lot-size", cfg.Risk.LotSize, "minimum tradable unit")
	fs.Float64Var(&cfg.Risk.MaxNotional, "max-notional", cfg.Risk.MaxNotional, "max notional per order, 0 disables")
	fs.DurationVar(&cfg.Risk.Cooldown, "cooldown", cfg.Risk.Cooldown, "cooldown between trades per symbol")
	fs.BoolVar(&cfg.Risk.KillSwitch, "kill-switch", cfg.Risk.KillSwitch, "if true, never place orders")

	fs.Float64Var(&cfg.Selection.MinCapitalPerPosition, "min-capital-per-position", cfg.Selection.MinCapitalPerPosition, "capital required per concurrent position")
	fs.IntVar(&cfg.Selection.MaxPositions, "max-positions", cfg.Selection.MaxPositions, "max concurrent positions")
	fs.BoolVar(&cfg.Selection.RankByMomentum, "rank", cfg.Selection.RankByMomentum, "rank universe by risk-adjusted momentum")

	fs.StringVar(&cfg.Orders.Type, "order-type", cfg.Orders.Type, "order type: market or limit")
	fs.StringVar(&cfg.Orders.TimeInForce, "time-in-force", cfg.Orders.TimeInForce, "time in force: day or gtc")
	fs.BoolVar(&cfg.Orders.ExtendedHours, "extended-hours", cfg.Orders.ExtendedHours, "allow extended hours (limit+day only)")
	fs.BoolVar(&cfg.Orders.Brackets, "brackets", cfg.Orders.Brackets, "attach ATR stop-loss and take-profit legs to entries")

	fs.StringVar(&cfg.Schedule.IterationCron, "iteration-cron", cfg.Schedule.IterationCron, "cron spec (with seconds) for the trading iteration")
	fs.BoolVar(&cfg.Schedule.RunOnStart, "run-on-start", cfg.Schedule.RunOnStart, "run one iteration immediately in paper mode")

	fs.StringVar(&cfg.DecisionsPath, "decisions-path", cfg.DecisionsPath, "path to decisions log")
	fs.StringVar(&cfg.DecisionsDB, "decisions-db", cfg.DecisionsDB, "optional SQLite file for decisions")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint-path", cfg.CheckpointPath, "path to checkpoint file")
	fs.DurationVar(&cfg.Reconcile, "reconcile-interval", cfg.Reconcile, "how often open orders and positions are refreshed in paper mode")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for /metrics, empty disables")
	fs.StringVar(&cfg.PaperBaseURL, "paper-base-url", cfg.PaperBaseURL, "paper trading base URL")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIKey = firstEnv("APCA_API_KEY_ID", "ALPACA_API_KEY")
	cfg.APISecret = firstEnv("APCA_API_SECRET_KEY", "ALPACA_API_SECRET")
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.PaperBaseURL = v
	}
	if v := os.Getenv("SMABOT_MODE"); v != "" {
		cfg.Mode = normalizeMode(v)
	}
	if v := os.Getenv("SMABOT_SYMBOLS"); v != "" {
		cfg.Selection.Symbols = splitList(v)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func validate(cfg Config) error {
	if err := check(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

func check(cfg Config) error {
	if cfg.Mode != ModeStream && cfg.Mode != ModePaper {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		if cfg.Mode == ModePaper {
			return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required in paper mode")
		}
	}
	periods := cfg.Strategy.Periods()
	if err := periods.Validate(); err != nil {
		return err
	}
	if cfg.Strategy.HistoryBars <= periods.Lookback() {
		return fmt.Errorf("history-bars %d must exceed indicator lookback %d", cfg.Strategy.HistoryBars, periods.Lookback())
	}
	if err := cfg.Strategy.Thresholds().Validate(); err != nil {
		return err
	}
	if cfg.Risk.RiskPerTrade <= 0 || cfg.Risk.RiskPerTrade > 0.5 {
		return fmt.Errorf("risk-per-trade %.4f must be > 0 and <= 0.5", cfg.Risk.RiskPerTrade)
	}
	if cfg.Risk.MaxDrawdown <= 0 || cfg.Risk.MaxDrawdown >= 1 {
		return fmt.Errorf("max-drawdown %.4f must be within (0, 1)", cfg.Risk.MaxDrawdown)
	}
	if cfg.Risk.ATRMultiplier <= 0 {
		return fmt.Errorf("atr-multiplier must be > 0")
	}
	if cfg.Risk.LotSize <= 0 {
		return fmt.Errorf("lot-size must be > 0")
	}
	if cfg.Risk.StopLossATR <= 0 || cfg.Risk.TakeProfitATR <= 0 {
		return fmt.Errorf("stop-loss and take-profit ATR multiples must be > 0")
	}
	if cfg.Risk.MaxNotional < 0 {
		return fmt.Errorf("max-notional must be >= 0")
	}
	if cfg.Risk.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0")
	}
	if cfg.Selection.MinCapitalPerPosition < 0 {
		return fmt.Errorf("min-capital-per-position must be >= 0")
	}
	if cfg.Selection.MaxPositions <= 0 {
		return fmt.Errorf("max-positions must be > 0")
	}
	if len(cfg.Selection.Symbols) == 0 && len(cfg.Selection.Tiers) == 0 {
		return fmt.Errorf("either symbols or universe_tiers must be set")
	}
	if cfg.Orders.Type != "market" && cfg.Orders.Type != "limit" {
		return fmt.Errorf("unsupported order type: %s", cfg.Orders.Type)
	}
	if cfg.Orders.TimeInForce != "day" && cfg.Orders.TimeInForce != "gtc" {
		return fmt.Errorf("unsupported time in force: %s", cfg.Orders.TimeInForce)
	}
	if cfg.Mode == ModePaper && cfg.Schedule.IterationCron == "" {
		return fmt.Errorf("iteration-cron is required in paper mode")
	}
	if cfg.Mode == ModePaper && cfg.Reconcile <= 0 {
		return fmt.Errorf("reconcile-interval must be > 0")
	}
	return nil
}

func normalizeMode(v string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(v)))
}

type modeValue Mode

func (m *modeValue) String() string {
	if m == nil {
		return ""
	}
	return string(*m)
}

func (m *modeValue) Set(v string) error {
	*m = modeValue(normalizeMode(v))
	return nil
}

type listValue []string

func (l *listValue) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listValue) Set(v string) error {
	*l = splitList(v)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
