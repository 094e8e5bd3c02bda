// Package config loads and validates the battery optimizer's
// configuration, grounded on the teacher's scheduler/config.go (JSON file
// with custom Duration marshaling and an explicit Validate pass).
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

// Config is the full set of tunables for a running optimizer instance.
type Config struct {
	// Tick/solve settings
	TickInterval time.Duration `json:"tick_interval"` // how often the dispatcher re-solves
	SolveTimeout time.Duration `json:"solve_timeout"` // per-solve cancellation deadline
	DryRun       bool          `json:"dry_run"`       // compute actions but never invoke hardware hooks

	// Battery parameters
	Battery optimizer.BatteryParameters `json:"battery"`

	// Load history / entity settings
	LoadEntityID    string        `json:"load_entity_id"`
	HistoryLookback time.Duration `json:"history_lookback"`

	// Tariff provider (ENTSO-E)
	SecurityToken          string  `json:"security_token"`
	UrlFormat              string  `json:"url_format"`
	Location               string  `json:"location"`
	ImportPriceOperatorFee float64 `json:"import_price_operator_fee"`
	ImportPriceDeliveryFee float64 `json:"import_price_delivery_fee"`
	ExportPriceOperatorFee float64 `json:"export_price_operator_fee"`

	// PV / weather provider
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	PeakPowerKw     float64       `json:"peak_power_kw"`
	UserAgent       string        `json:"user_agent"`
	WeatherCacheTTL time.Duration `json:"weather_cache_ttl"`

	// Hardware
	PlantModbusAddress string `json:"plant_modbus_address"` // empty disables hardware hooks

	// Persistence
	PostgresConnString string `json:"postgres_conn_string"` // empty disables persistence

	// Diagnostics
	DiagnosticsPort int `json:"diagnostics_port"` // 0 disables the HTTP/WebSocket surface

	// Logging
	LogLevel  string `json:"log_level"`  // debug, info, warn, error
	LogFormat string `json:"log_format"` // text, json
}

// DefaultConfig returns a configuration with the defaults spec.md §3
// documents for battery parameters, plus sane ambient defaults.
func DefaultConfig() *Config {
	return &Config{
		TickInterval: 5 * time.Minute,
		SolveTimeout: 30 * time.Second,
		DryRun:       false,
		Battery: optimizer.BatteryParameters{
			CapacityKwh:     27.0,
			MaxChargeKw:     6.3,
			MaxDischargeKw:  6.3,
			InverterLimitKw: 10.0,
			SocMinPct:       0,
			SocMaxPct:       100,
			SocGridPct:      5,
		},
		LoadEntityID:           "sensor.total_consumption",
		HistoryLookback:        5 * 24 * time.Hour,
		UrlFormat:              "https://web-api.tp.entsoe.eu/api?documentType=A44&out_Domain=10YLV-1001A00074&in_Domain=10YLV-1001A00074&periodStart=%s&periodEnd=%s&securityToken=%s",
		Location:               "CET",
		ImportPriceOperatorFee: 8.5,
		ImportPriceDeliveryFee: 40.0,
		ExportPriceOperatorFee: 17.0,
		Latitude:               56.9496, // Riga, Latvia
		Longitude:              24.1052,
		PeakPowerKw:            10.0,
		UserAgent:              "battery-optimizer/1.0 (ops@example.com)",
		WeatherCacheTTL:        1 * time.Hour,
		DiagnosticsPort:        0,
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config: open file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader, applying
// defaults for any field absent from the JSON document.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a JSON file.
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("config: create file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("config: encode JSON: %w", err)
	}
	return nil
}

// Validate checks the configuration against the ConfigInvalid taxonomy
// spec.md §7 names (battery parameters) plus the ambient settings a
// running service needs.
func (c *Config) Validate() error {
	if err := c.Battery.Validate(); err != nil {
		return fmt.Errorf("%w: %v", optimizer.ErrConfigInvalid, err)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be greater than 0, got: %s", c.TickInterval)
	}
	if c.SolveTimeout <= 0 {
		return fmt.Errorf("solve_timeout must be greater than 0, got: %s", c.SolveTimeout)
	}
	if c.LoadEntityID == "" {
		return fmt.Errorf("load_entity_id cannot be empty")
	}
	if c.HistoryLookback <= 0 {
		return fmt.Errorf("history_lookback must be greater than 0, got: %s", c.HistoryLookback)
	}
	if c.UrlFormat == "" {
		return fmt.Errorf("url_format cannot be empty")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}
	if c.PeakPowerKw < 0 {
		return fmt.Errorf("peak_power_kw must be non-negative, got: %f", c.PeakPowerKw)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	if c.WeatherCacheTTL <= 0 {
		return fmt.Errorf("weather_cache_ttl must be greater than 0, got: %s", c.WeatherCacheTTL)
	}
	if c.DiagnosticsPort < 0 || c.DiagnosticsPort > 65535 {
		return fmt.Errorf("diagnostics_port must be between 0 and 65535, got: %d", c.DiagnosticsPort)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}

	return nil
}

// MarshalJSON renders the human-string Duration fields, matching the
// teacher's alias-struct pattern.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		TickInterval    string `json:"tick_interval"`
		SolveTimeout    string `json:"solve_timeout"`
		HistoryLookback string `json:"history_lookback"`
		WeatherCacheTTL string `json:"weather_cache_ttl"`
	}{
		Alias:           (*Alias)(c),
		TickInterval:    c.TickInterval.String(),
		SolveTimeout:    c.SolveTimeout.String(),
		HistoryLookback: c.HistoryLookback.String(),
		WeatherCacheTTL: c.WeatherCacheTTL.String(),
	})
}

// UnmarshalJSON parses the human-string Duration fields back into
// time.Duration, matching the teacher's alias-struct pattern.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		TickInterval    string `json:"tick_interval"`
		SolveTimeout    string `json:"solve_timeout"`
		HistoryLookback string `json:"history_lookback"`
		WeatherCacheTTL string `json:"weather_cache_ttl"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.TickInterval != "" {
		if c.TickInterval, err = time.ParseDuration(aux.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval: %w", err)
		}
	}
	if aux.SolveTimeout != "" {
		if c.SolveTimeout, err = time.ParseDuration(aux.SolveTimeout); err != nil {
			return fmt.Errorf("invalid solve_timeout: %w", err)
		}
	}
	if aux.HistoryLookback != "" {
		if c.HistoryLookback, err = time.ParseDuration(aux.HistoryLookback); err != nil {
			return fmt.Errorf("invalid history_lookback: %w", err)
		}
	}
	if aux.WeatherCacheTTL != "" {
		if c.WeatherCacheTTL, err = time.ParseDuration(aux.WeatherCacheTTL); err != nil {
			return fmt.Errorf("invalid weather_cache_ttl: %w", err)
		}
	}

	return nil
}

// String returns an indented JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
