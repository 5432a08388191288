package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerbench/ledgerbench/internal/history"
	"github.com/ledgerbench/ledgerbench/internal/logger"
)

// ComposeConfig locates the docker compose stack under test. Teardown and
// startup commands are derived from File and Project unless overridden.
type ComposeConfig struct {
	File        string `mapstructure:"file"`
	Project     string `mapstructure:"project"`
	UpCommand   string `mapstructure:"up_command"`
	DownCommand string `mapstructure:"down_command"`
}

// Up returns the startup command line.
func (c ComposeConfig) Up() string {
	if c.UpCommand != "" {
		return c.UpCommand
	}
	return c.base() + " up -d --build"
}

// Down returns the teardown command line.
func (c ComposeConfig) Down() string {
	if c.DownCommand != "" {
		return c.DownCommand
	}
	return c.base() + " down -v --remove-orphans"
}

func (c ComposeConfig) base() string {
	cmd := "docker compose"
	if c.File != "" {
		cmd += " -f " + c.File
	}
	if c.Project != "" {
		cmd += " -p " + c.Project
	}
	return cmd
}

// ReadinessConfig bounds the wait for essential services.
type ReadinessConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Deadline time.Duration `mapstructure:"deadline"`
}

// WarmupConfig shapes the pre-run traffic.
type WarmupConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ClientIDs      []int         `mapstructure:"client_ids"`
	Rounds         int           `mapstructure:"rounds"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig points at the ledger store to reset.
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LoadTestConfig describes the external load-test runner invocation.
type LoadTestConfig struct {
	Command string   `mapstructure:"command"`
	WorkDir string   `mapstructure:"workdir"`
	Env     []string `mapstructure:"env"`
}

// SnapshotConfig tunes the background resource snapshot logger.
type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the top-level TOML structure.
type Config struct {
	Services  []string        `mapstructure:"services"`
	Compose   ComposeConfig   `mapstructure:"compose"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Warmup    WarmupConfig    `mapstructure:"warmup"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LoadTest  LoadTestConfig  `mapstructure:"loadtest"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Log       logger.Config   `mapstructure:"log"`
	History   history.Config  `mapstructure:"history"`
}

// Load reads and validates the TOML config at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configs that cannot produce a meaningful run. The service
// list and its health-check semantics are deliberately configuration, never
// hardcoded: they are tied to whatever compose manifest is under test.
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return errors.New("config: services must list at least one compose service to watch")
	}
	if c.Warmup.BaseURL == "" {
		return errors.New("config: warmup.base_url is required")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.LoadTest.Command == "" {
		return errors.New("config: loadtest.command is required")
	}
	if c.Warmup.Rounds < 0 {
		return fmt.Errorf("config: warmup.rounds must not be negative, got %d", c.Warmup.Rounds)
	}
	for _, id := range c.Warmup.ClientIDs {
		if id <= 0 {
			return fmt.Errorf("config: warmup.client_ids must be positive, got %d", id)
		}
	}
	return nil
}
