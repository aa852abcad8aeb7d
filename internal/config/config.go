// Package config handles loading and resolving licznik configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags --username / --password
//  2. Environment variables LICZNIK_USERNAME / LICZNIK_PASSWORD
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

const (
	DefaultConfigFile   = "config.json"
	DefaultFormat       = "table"
	DefaultTimeout      = 10 * time.Second
	DefaultRate         = 1.0
	DefaultBackfillDays = 10
	DefaultMaxDays      = 60
	DefaultScanInterval = 300 // minutes; the portal updates once a day

	EnvUsername = "LICZNIK_USERNAME"
	EnvPassword = "LICZNIK_PASSWORD"
	EnvDBPath   = "LICZNIK_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	Username        string   `json:"username"`
	Password        string   `json:"password,omitempty"`
	BaseURL         string   `json:"base_url,omitempty"`
	MeterNumber     string   `json:"meter_number"`
	MeterID         string   `json:"meter_id"`
	PPENumber       string   `json:"ppe_number,omitempty"`
	Zones           []string `json:"zones"`
	Modes           []string `json:"modes"`
	BackfillDays    int      `json:"days_to_backfill,omitempty"`
	MaxDaysPerRun   int      `json:"max_days_per_run,omitempty"`
	ScanIntervalMin int      `json:"scan_interval_minutes,omitempty"`
	Timeout         string   `json:"timeout,omitempty"`
	Rate            float64  `json:"rate,omitempty"`
	DBPath          string   `json:"db_path,omitempty"`
	DefaultFormat   string   `json:"default_format,omitempty"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Username string
	Password string
	BaseURL  string

	// MeterNumber is the number printed on the contract; MeterID is the
	// portal-internal id used in chart calls.
	MeterNumber string
	MeterID     string
	PPENumber   string

	SelectedZones []string
	SelectedModes []model.Mode

	BackfillDays  int
	MaxDaysPerRun int
	ScanInterval  time.Duration

	Format     string
	Timeout    time.Duration
	Rate       float64
	DBPath     string
	ConfigPath string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagUsername/flagPassword are the CLI flag values (empty if not set).
func Load(flagUsername, flagPassword string) (*Config, error) {
	cfg := &Config{
		Format:        DefaultFormat,
		Timeout:       DefaultTimeout,
		Rate:          DefaultRate,
		BackfillDays:  DefaultBackfillDays,
		MaxDaysPerRun: DefaultMaxDays,
		ScanInterval:  DefaultScanInterval * time.Minute,
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		if err := applyFile(cfg, f, path); err != nil {
			return nil, err
		}
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flags (highest priority)
	if flagUsername != "" {
		cfg.Username = flagUsername
	}
	if flagPassword != "" {
		cfg.Password = flagPassword
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".licznik", "licznik.db")
		}
	}

	// Everything defaults to consumed-only when modes are not configured.
	if len(cfg.SelectedModes) == 0 {
		cfg.SelectedModes = []model.Mode{model.ModeEnergyConsumed}
	}

	return cfg, nil
}

// Validate returns an error if the fields every portal command needs are
// missing.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return errors.New(
			"portal credentials not found.\n\n" +
				"Set them one of these ways:\n" +
				"  1. CLI flags:       licznik --username U --password P ...\n" +
				"  2. Environment:     export LICZNIK_USERNAME=U LICZNIK_PASSWORD=P\n" +
				"  3. config.json:     {\"username\": \"U\", \"password\": \"P\"}",
		)
	}
	return nil
}

// ValidateMeter additionally requires a resolved meter id (sync, firstdate).
func (c *Config) ValidateMeter() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MeterID == "" {
		return errors.New("no meter selected: set meter_id in config.json or pass --meter (see `licznik meters`)")
	}
	return nil
}

// RedactedPassword returns a masked password, safe for logging and display.
func (c *Config) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "****"
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s", path)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) error {
	cfg.ConfigPath = path
	if f.Username != "" {
		cfg.Username = f.Username
	}
	if f.Password != "" {
		cfg.Password = f.Password
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.MeterNumber != "" {
		cfg.MeterNumber = f.MeterNumber
	}
	if f.MeterID != "" {
		cfg.MeterID = f.MeterID
	}
	if f.PPENumber != "" {
		cfg.PPENumber = f.PPENumber
	}
	if len(f.Zones) > 0 {
		cfg.SelectedZones = f.Zones
	}
	for _, m := range f.Modes {
		mode, err := model.ParseMode(m)
		if err != nil {
			return fmt.Errorf("config.json: %w", err)
		}
		cfg.SelectedModes = append(cfg.SelectedModes, mode)
	}
	if f.BackfillDays > 0 {
		cfg.BackfillDays = f.BackfillDays
	}
	if f.MaxDaysPerRun > 0 {
		cfg.MaxDaysPerRun = f.MaxDaysPerRun
	}
	if f.ScanIntervalMin > 0 {
		cfg.ScanInterval = time.Duration(f.ScanIntervalMin) * time.Minute
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	return nil
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `licznik config init`.
func Template() File {
	return File{
		Username:        "",
		MeterNumber:     "",
		MeterID:         "",
		Zones:           []string{"Strefa 1"},
		Modes:           []string{"consumed"},
		BackfillDays:    DefaultBackfillDays,
		MaxDaysPerRun:   DefaultMaxDays,
		ScanIntervalMin: DefaultScanInterval,
		Timeout:         "10s",
		Rate:            DefaultRate,
		DefaultFormat:   DefaultFormat,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
