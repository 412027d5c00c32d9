// Package config loads application settings from defaults, an optional YAML
// file, ASSESSMENT_* environment variables and command-line flags, in
// increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/audio"
	"github.com/saraylo/assessment-trainer/internal/location"
	"github.com/saraylo/assessment-trainer/internal/storage"
)

const envPrefix = "ASSESSMENT"

type Config struct {
	User           UserConfig        `mapstructure:"user"`
	Locale         string            `mapstructure:"locale"`
	SampleInterval time.Duration     `mapstructure:"sample_interval"`
	Zones          ZonesConfig       `mapstructure:"zones"`
	Audio          AudioConfig       `mapstructure:"audio"`
	Provider       ProviderConfig    `mapstructure:"provider"`
	Storage        StorageConfig     `mapstructure:"storage"`
	Calibration    CalibrationConfig `mapstructure:"calibration"`
	Export         ExportConfig      `mapstructure:"export"`
	Server         ServerConfig      `mapstructure:"server"`
	Log            LogConfig         `mapstructure:"log"`
}

type UserConfig struct {
	ID string `mapstructure:"id"`
}

type ZonesConfig struct {
	// TimeScale shortens or stretches every zone, for demos.
	TimeScale float64 `mapstructure:"time_scale"`
}

type AudioConfig struct {
	Muted   bool   `mapstructure:"muted"`
	Command string `mapstructure:"command"`
}

type ProviderConfig struct {
	Kind      string          `mapstructure:"kind"`
	Simulated SimulatedConfig `mapstructure:"simulated"`
	Replay    ReplayConfig    `mapstructure:"replay"`
	BLE       BLEConfig       `mapstructure:"ble"`
}

type SimulatedConfig struct {
	Speed   float64 `mapstructure:"speed"`
	Jitter  float64 `mapstructure:"jitter"`
	Dropout float64 `mapstructure:"dropout"`
}

type ReplayConfig struct {
	File string `mapstructure:"file"`
}

type BLEConfig struct {
	Address     string        `mapstructure:"address"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
}

type StorageConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

type CalibrationConfig struct {
	RequireValid bool `mapstructure:"require_valid"`
}

type ExportConfig struct {
	FitDir  string `mapstructure:"fit_dir"`
	XlsxDir string `mapstructure:"xlsx_dir"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Stderr     bool   `mapstructure:"stderr"`
}

// New returns a viper instance with every default registered and the
// environment bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("user.id", "default")
	v.SetDefault("locale", string(audio.LocaleRU))
	v.SetDefault("sample_interval", assessment.DefaultSampleInterval)
	v.SetDefault("zones.time_scale", 1.0)
	v.SetDefault("audio.muted", false)
	v.SetDefault("audio.command", "")
	v.SetDefault("provider.kind", string(location.KindSimulated))
	v.SetDefault("provider.simulated.speed", 2.5)
	v.SetDefault("provider.simulated.jitter", 0.2)
	v.SetDefault("provider.simulated.dropout", 0.0)
	v.SetDefault("provider.replay.file", "")
	v.SetDefault("provider.ble.address", "")
	v.SetDefault("provider.ble.scan_timeout", 30*time.Second)
	v.SetDefault("storage.kind", string(storage.KindFile))
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("calibration.require_valid", false)
	v.SetDefault("export.fit_dir", "")
	v.SetDefault("export.xlsx_dir", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.stderr", true)
}

// flagBindings maps command-line flags to configuration keys.
var flagBindings = []struct {
	key, flag string
}{
	{"user.id", "user"},
	{"locale", "locale"},
	{"sample_interval", "interval"},
	{"zones.time_scale", "time-scale"},
	{"audio.muted", "mute"},
	{"audio.command", "tts-command"},
	{"provider.kind", "provider"},
	{"provider.simulated.speed", "speed"},
	{"provider.replay.file", "replay-file"},
	{"provider.ble.address", "ble-address"},
	{"storage.kind", "storage"},
	{"storage.path", "storage-path"},
	{"storage.dsn", "storage-dsn"},
	{"calibration.require_valid", "require-valid"},
	{"export.fit_dir", "fit-dir"},
	{"export.xlsx_dir", "xlsx-dir"},
	{"server.enabled", "server"},
	{"server.addr", "addr"},
	{"log.file", "log-file"},
}

// RegisterFlags adds the session flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("user", "default", "user id the calibration is stored for")
	fs.String("locale", "ru", "voice prompt language (ru|en)")
	fs.Duration("interval", assessment.DefaultSampleInterval, "speed sampling interval")
	fs.Float64("time-scale", 1.0, "zone duration multiplier (demo use)")
	fs.Bool("mute", false, "disable voice prompts")
	fs.String("tts-command", "", "text-to-speech command (espeak-ng, say)")
	fs.String("provider", "simulated", "speed source (simulated|replay|ble)")
	fs.Float64("speed", 2.5, "simulated speed in m/s")
	fs.String("replay-file", "", "CSV track to replay")
	fs.String("ble-address", "", "footpod address; empty picks the first RSC sensor found")
	fs.String("storage", "file", "calibration store (file|sqlite|postgres)")
	fs.String("storage-path", "", "store file path")
	fs.String("storage-dsn", "", "postgres connection string")
	fs.Bool("require-valid", false, "persist only profiles that pass validation")
	fs.String("fit-dir", "", "directory for FIT exports; empty disables export")
	fs.String("xlsx-dir", "", "directory for workbook exports; empty disables export")
	fs.Bool("server", false, "serve the control API")
	fs.String("addr", "127.0.0.1:8080", "control API listen address")
	fs.String("log-file", "", "rotate logs into this file")
}

// BindFlags binds every registered flag present in fs to its key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range flagBindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

// Load reads configFile, or config.yaml from the data directory when empty,
// and decodes the merged settings.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".assessment-trainer"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.User.ID) == "" {
		problems = append(problems, "user.id must not be empty")
	}
	switch audio.Locale(c.Locale) {
	case audio.LocaleRU, audio.LocaleEN:
	default:
		problems = append(problems, fmt.Sprintf("locale %q is not one of ru, en", c.Locale))
	}
	if c.SampleInterval <= 0 {
		problems = append(problems, "sample_interval must be positive")
	}
	if c.Zones.TimeScale <= 0 {
		problems = append(problems, "zones.time_scale must be positive")
	}

	kind, err := location.ParseKind(c.Provider.Kind)
	if err != nil {
		problems = append(problems, err.Error())
	}
	switch kind {
	case location.KindSimulated:
		if c.Provider.Simulated.Speed < 0 {
			problems = append(problems, "provider.simulated.speed must not be negative")
		}
		if c.Provider.Simulated.Dropout < 0 || c.Provider.Simulated.Dropout >= 1 {
			problems = append(problems, "provider.simulated.dropout must be in [0, 1)")
		}
	case location.KindReplay:
		if c.Provider.Replay.File == "" {
			problems = append(problems, "provider.replay.file is required for the replay provider")
		}
	case location.KindBLE:
		if c.Provider.BLE.ScanTimeout <= 0 {
			problems = append(problems, "provider.ble.scan_timeout must be positive")
		}
	}

	switch storage.Kind(strings.ToLower(c.Storage.Kind)) {
	case storage.KindFile, storage.KindSQLite:
	case storage.KindPostgres:
		if c.Storage.DSN == "" {
			problems = append(problems, "storage.dsn is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.kind %q is not one of file, sqlite, postgres", c.Storage.Kind))
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		problems = append(problems, "server.addr is required when the server is enabled")
	}
	if c.Log.MaxSizeMB <= 0 {
		problems = append(problems, "log.max_size_mb must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, ", "))
	}
	return nil
}

// TrainingZones returns the protocol zones scaled by zones.time_scale.
func (c *Config) TrainingZones() []assessment.TrainingZone {
	zones := assessment.DefaultZones()
	if c.Zones.TimeScale > 0 && c.Zones.TimeScale != 1 {
		zones = assessment.ScaleZones(zones, c.Zones.TimeScale)
	}
	return zones
}

// StorageOptions converts the storage section.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Kind: storage.Kind(c.Storage.Kind),
		Path: c.Storage.Path,
		DSN:  c.Storage.DSN,
	}
}
