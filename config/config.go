// Package config handles loading and managing application configuration
// from YAML files, an optional .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EncoderConfig controls the capacity-bounded QR encoder.
type EncoderConfig struct {
	MaxPayloadBytes int    `yaml:"max_payload_bytes"`
	SourcePath      string `yaml:"source_path"`
	OutputPath      string `yaml:"output_path"`
	QRVersion       int    `yaml:"qr_version"`
	ErrorCorrection string `yaml:"error_correction_level"`
	ModuleSize      int    `yaml:"module_size"`
}

// ServerConfig controls the static file server.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	Root         string   `yaml:"root"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	MaxUpload    int64    `yaml:"max_upload_bytes"`
}

// Config holds all application configuration values.
type Config struct {
	Encoder    EncoderConfig `yaml:"encoder"`
	Server     ServerConfig  `yaml:"server"`
	DataDir    string        `yaml:"data_dir"`
	WebhookURL string        `yaml:"webhook_url"`
	LogLevel   string        `yaml:"log_level"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshalling
// from human-readable strings like "30s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Defaults returns a Config populated with the values the tools historically
// hardcoded.
func Defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Encoder: EncoderConfig{
			MaxPayloadBytes: 2240,
			SourcePath:      "output.mp4",
			OutputPath:      "audioQR_sample.png",
			QRVersion:       20,
			ErrorCorrection: "L",
			ModuleSize:      2,
		},
		Server: ServerConfig{
			Port:         8000,
			Root:         ".",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{60 * time.Second},
			MaxUpload:    10 << 20,
		},
		DataDir:  filepath.Join(homeDir, ".audioqr"),
		LogLevel: "info",
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist. A .env file in the working directory
// is loaded first when present; AUDIOQR_* environment variables then override
// any file or default values.
func Load(path string) (*Config, error) {
	// Missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies AUDIOQR_* environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("AUDIOQR_MAX_PAYLOAD_BYTES", &cfg.Encoder.MaxPayloadBytes)
	setString("AUDIOQR_SOURCE_PATH", &cfg.Encoder.SourcePath)
	setString("AUDIOQR_OUTPUT_PATH", &cfg.Encoder.OutputPath)
	setInt("AUDIOQR_QR_VERSION", &cfg.Encoder.QRVersion)
	setString("AUDIOQR_ERROR_CORRECTION", &cfg.Encoder.ErrorCorrection)
	setInt("AUDIOQR_MODULE_SIZE", &cfg.Encoder.ModuleSize)

	setInt("AUDIOQR_PORT", &cfg.Server.Port)
	setString("AUDIOQR_ROOT", &cfg.Server.Root)
	if v := os.Getenv("AUDIOQR_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Server.MaxUpload = n
		}
	}

	setString("AUDIOQR_DATA_DIR", &cfg.DataDir)
	setString("AUDIOQR_WEBHOOK_URL", &cfg.WebhookURL)
	setString("AUDIOQR_LOG_LEVEL", &cfg.LogLevel)
}

// EnsureDataDir creates the DataDir if it does not already exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	return nil
}

// HistoryPath is the location of the encode history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
