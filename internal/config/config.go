package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DataConfig holds on-disk data locations
type DataConfig struct {
	CacheFile string `mapstructure:"cache_file"` // record database
	DebugDir  string `mapstructure:"debug_dir"`  // diagnostic page dumps
}

// CrawlConfig holds crawl tuning
type CrawlConfig struct {
	Backoff time.Duration `mapstructure:"backoff"` // base retry delay
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			CacheFile: filepath.Join(defaultDataPath(), "records.db"),
			DebugDir:  filepath.Join(defaultDataPath(), "debug"),
		},
		Crawl: CrawlConfig{
			Backoff: 5 * time.Second,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "fleahist.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "fleahist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "fleahist")
	}
}

// defaultConfigPath returns the default config file directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "fleahist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "fleahist")
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("FLEAHIST")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// EnsureDataDirs creates the directories the configured paths live in.
func (c *Config) EnsureDataDirs() error {
	for _, dir := range []string{
		filepath.Dir(c.Data.CacheFile),
		c.Data.DebugDir,
		filepath.Dir(c.Logging.File),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}
