package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

const (
	DefaultCLIConfigFileName = ".xenctl.yaml"
	DefaultServerAddr        = "localhost:8080"
)

// Database holds the Postgres connection settings.
type Database struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

// Broker holds the NATS connection settings.
type Broker struct {
	URL string `yaml:"url" env:"NATS_URL"`
}

// Admin configures the HTTP admin surface.
type Admin struct {
	Addr   string `yaml:"addr" env:"ADMIN_ADDR"`
	APIKey string `yaml:"api_key" env:"ADMIN_API_KEY"`
}

// Config is the full daemon configuration. Values resolve in three layers:
// built-in defaults, then the YAML file, then environment overrides.
type Config struct {
	Database Database `yaml:"database"`
	Broker   Broker   `yaml:"broker"`
	Admin    Admin    `yaml:"admin"`

	Producer pipeline.ProducerConfig `yaml:"producer"`
	Consumer pipeline.ConsumerConfig `yaml:"consumer"`
	Vendor   vendorsim.Config        `yaml:"vendor"`

	LogFile    string        `yaml:"log_file" env:"LOG_FILE"`
	StaleAfter time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
}

func DefaultConfig() *Config {
	return &Config{
		Broker:     Broker{URL: "nats://localhost:4222"},
		Admin:      Admin{Addr: ":8080"},
		Producer:   pipeline.DefaultProducerConfig(),
		Consumer:   pipeline.DefaultConsumerConfig(),
		Vendor:     vendorsim.DefaultConfig(),
		StaleAfter: 10 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required")
	}
	if c.Admin.Addr == "" {
		return fmt.Errorf("admin.addr is required")
	}
	if math.IsNaN(c.Vendor.SuccessRate) || c.Vendor.SuccessRate < 0 || c.Vendor.SuccessRate > 1 {
		return fmt.Errorf("vendor.success_rate must be within [0, 1]")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}
	return nil
}

// Load builds the daemon configuration from path. A missing file is not an
// error; defaults plus environment carry a containerized deployment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// CLIConfig configures the xenctl command-line client.
type CLIConfig struct {
	ServerAddr string `yaml:"server_addr"`
	APIKey     string `yaml:"api_key"`
}

func DefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		ServerAddr: DefaultServerAddr,
	}
}

func (c *CLIConfig) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	return nil
}

// LoadCLI reads the xenctl configuration, defaulting to ~/.xenctl.yaml. A
// missing file yields the defaults.
func LoadCLI(path string) (*CLIConfig, error) {
	cfg := DefaultCLIConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultCLIConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if addr := os.Getenv("XENCTL_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}
	if key := os.Getenv("XENCTL_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
