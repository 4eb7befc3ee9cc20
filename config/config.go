// Package config loads and validates the TOML run configuration of
// spec.md §6, following the retrieved sherwood config package's
// Validate()/ValidationError aggregation pattern — re-platformed from
// .env/environment variables onto TOML, since spec.md's config format is
// a file passed on the CLI, not process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/midastrader/midas/symbol"
)

// ValidationError aggregates every configuration problem found during
// Validate, so operators fix everything in one pass instead of
// iterating error-by-error, matching the retrieved ValidationError.
type ValidationError struct {
	Errors []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%d configuration error(s):\n  - %s",
		len(ve.Errors), strings.Join(ve.Errors, "\n  - "))
}

// General holds the [general] section of spec.md §6's config file.
type General struct {
	StrategyName  string  `toml:"strategy_name"`
	Capital       float64 `toml:"capital"`
	DataType      string  `toml:"data_type"` // "ohlcv_bar" | "bbo_quote"
	Start         string  `toml:"start"`     // RFC3339
	End           string  `toml:"end"`       // RFC3339
	Schema        string  `toml:"schema"`
	RiskFreeRate  float64 `toml:"risk_free_rate"`
	OutputPath    string  `toml:"output_path"`
	SessionDBPath string  `toml:"session_db_path"` // defaults next to output_path when empty
}

// SymbolConfig is the TOML shape of one [[symbols]] entry, decoded
// separately from symbol.Symbol so the domain type stays free of TOML
// struct tags and this package owns the wire/parse concern.
type SymbolConfig struct {
	MidasTicker  string `toml:"midas_ticker"`
	BrokerTicker string `toml:"broker_ticker"`
	DataTicker   string `toml:"data_ticker"`

	SecurityType string `toml:"security_type"`
	Currency     string `toml:"currency"`
	Venue        string `toml:"venue"`

	FeesPerUnit        float64 `toml:"fees_per_unit"`
	QuantityMultiplier float64 `toml:"quantity_multiplier"`
	PriceMultiplier    float64 `toml:"price_multiplier"`
	InitialMargin      float64 `toml:"initial_margin"`
	SlippageFactor     float64 `toml:"slippage_factor"`
	TickSize           float64 `toml:"tick_size"`

	DayOpen  string `toml:"day_open"`  // "HH:MM" local exchange time
	DayClose string `toml:"day_close"` // "HH:MM" local exchange time

	FutureExpiryMonths []string `toml:"future_expiry_months"`
	FutureTermDayRule  string   `toml:"future_term_day_rule"`
	FutureCalendar     string   `toml:"future_calendar"`
	FutureContractSize float64  `toml:"future_contract_size"`
}

// Strategy is the [strategy] section: Name is the plugin registry key
// (original_source's class_name, minus the module path since Go
// strategies register themselves by name instead of being imported by
// file path), Params is passed straight through to the strategy's
// constructor.
type Strategy struct {
	Name   string                 `toml:"name"`
	Params map[string]interface{} `toml:"params"`
}

// Risk is the optional [risk] section, same shape as Strategy.
type Risk struct {
	Name   string                 `toml:"name"`
	Params map[string]interface{} `toml:"params"`
}

// DataSource is the [data_source] section: exactly one of Path or URL
// must be set, selecting between a recorded file and an HTTP endpoint.
type DataSource struct {
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

// Broker is the [broker] section, live-mode connection details. APIKey
// is read from the MIDAS_API_KEY environment variable, never from the
// file itself, per spec.md §6's Environment note.
type Broker struct {
	RestURL   string `toml:"rest_url"`
	StreamURL string `toml:"stream_url"`
	APIKey    string `toml:"-"`
}

// Config is the full TOML configuration, mirroring spec.md §6's section
// layout.
type Config struct {
	General    General        `toml:"general"`
	Symbols    []SymbolConfig `toml:"symbols"`
	Strategy   Strategy       `toml:"strategy"`
	Risk       *Risk          `toml:"risk"`
	DataSource DataSource     `toml:"data_source"`
	Broker     Broker         `toml:"broker"`
}

// Load reads and decodes a TOML config file from path, then populates
// environment-sourced fields and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Broker.APIKey = os.Getenv("MIDAS_API_KEY")
	if cfg.Broker.RestURL == "" {
		cfg.Broker.RestURL = os.Getenv("MIDAS_URL")
	}
	if cfg.General.SessionDBPath == "" && cfg.General.OutputPath != "" {
		cfg.General.SessionDBPath = filepath.Join(filepath.Dir(cfg.General.OutputPath), "sessions.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section's invariants and aggregates every
// violation into a single ValidationError, following the retrieved
// Config.Validate's fail-once-with-everything shape.
func (c *Config) Validate() error {
	var errs []string

	if c.General.StrategyName == "" {
		errs = append(errs, "general.strategy_name is required")
	}
	if c.General.Capital <= 0 {
		errs = append(errs, fmt.Sprintf("general.capital must be > 0, got %v", c.General.Capital))
	}
	if c.General.DataType != "ohlcv_bar" && c.General.DataType != "bbo_quote" {
		errs = append(errs, fmt.Sprintf("general.data_type %q must be 'ohlcv_bar' or 'bbo_quote'", c.General.DataType))
	}
	if _, err := time.Parse(time.RFC3339, c.General.Start); c.General.Start != "" && err != nil {
		errs = append(errs, fmt.Sprintf("general.start %q is not RFC3339: %v", c.General.Start, err))
	}
	if _, err := time.Parse(time.RFC3339, c.General.End); c.General.End != "" && err != nil {
		errs = append(errs, fmt.Sprintf("general.end %q is not RFC3339: %v", c.General.End, err))
	}
	if c.General.OutputPath == "" {
		errs = append(errs, "general.output_path is required")
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "at least one [[symbols]] entry is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		errs = append(errs, validateSymbol(s)...)
		if s.MidasTicker != "" {
			if seen[s.MidasTicker] {
				errs = append(errs, fmt.Sprintf("duplicate symbol midas_ticker %q", s.MidasTicker))
			}
			seen[s.MidasTicker] = true
		}
	}

	if c.Strategy.Name == "" {
		errs = append(errs, "strategy.name is required")
	}

	if c.DataSource.Path == "" && c.DataSource.URL == "" {
		errs = append(errs, "data_source must set either path or url")
	}
	if c.DataSource.Path != "" && c.DataSource.URL != "" {
		errs = append(errs, "data_source must set only one of path or url, not both")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// validateSymbol checks one [[symbols]] entry's invariants.
func validateSymbol(s SymbolConfig) []string {
	var errs []string
	if s.MidasTicker == "" {
		errs = append(errs, "symbol midas_ticker is required")
		return errs
	}
	switch symbol.SecurityType(s.SecurityType) {
	case symbol.Stock, symbol.Future, symbol.Option:
	default:
		errs = append(errs, fmt.Sprintf("symbol %s: invalid security_type %q", s.MidasTicker, s.SecurityType))
	}
	if s.QuantityMultiplier <= 0 {
		errs = append(errs, fmt.Sprintf("symbol %s: quantity_multiplier must be > 0", s.MidasTicker))
	}
	if s.PriceMultiplier <= 0 {
		errs = append(errs, fmt.Sprintf("symbol %s: price_multiplier must be > 0", s.MidasTicker))
	}
	if symbol.SecurityType(s.SecurityType) == symbol.Future {
		if s.FutureContractSize <= 0 {
			errs = append(errs, fmt.Sprintf("symbol %s: future_contract_size must be > 0", s.MidasTicker))
		}
		if s.FutureCalendar == "" {
			errs = append(errs, fmt.Sprintf("symbol %s: future_calendar is required", s.MidasTicker))
		}
	}
	return errs
}

// BuildSymbol converts one decoded SymbolConfig into the symbol package's
// registration type.
func BuildSymbol(s SymbolConfig) symbol.Symbol {
	return symbol.Symbol{
		BrokerTicker:       s.BrokerTicker,
		DataTicker:         s.DataTicker,
		MidasTicker:        s.MidasTicker,
		SecurityType:       symbol.SecurityType(s.SecurityType),
		Currency:           symbol.Currency(s.Currency),
		Venue:              s.Venue,
		FeesPerUnit:        s.FeesPerUnit,
		QuantityMultiplier: s.QuantityMultiplier,
		PriceMultiplier:    s.PriceMultiplier,
		InitialMargin:      s.InitialMargin,
		SlippageFactor:     s.SlippageFactor,
		TickSize:           s.TickSize,
		TradingSessions:    parseTradingSession(s.DayOpen, s.DayClose),
		Future: symbol.FutureDetails{
			ExpiryMonths: s.FutureExpiryMonths,
			TermDayRule:  s.FutureTermDayRule,
			Calendar:     s.FutureCalendar,
			ContractSize: s.FutureContractSize,
		},
	}
}

// parseTradingSession parses "HH:MM" clock strings into offsets from
// local midnight; unparseable or empty values default to zero (midnight).
func parseTradingSession(open, close string) symbol.TradingSession {
	return symbol.TradingSession{
		DayOpen:  parseClock(open),
		DayClose: parseClock(close),
	}
}

func parseClock(clock string) time.Duration {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}
