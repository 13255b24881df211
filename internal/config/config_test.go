package config_test

import (
	"testing"
	"time"

	"fleahist/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotEmpty(t, cfg.Data.CacheFile)
	assert.NotEmpty(t, cfg.Data.DebugDir)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Crawl.Backoff)
}
