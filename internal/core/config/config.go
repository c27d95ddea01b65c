package config

import (
	"time"

	"github.com/vietddude/ethtracker/internal/infra/etherscan"
	redisclient "github.com/vietddude/ethtracker/internal/infra/redis"
	"github.com/vietddude/ethtracker/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Etherscan etherscan.Config   `yaml:"etherscan"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
	Reports   ReportsConfig      `yaml:"reports"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int     `yaml:"port"`
	APIKey         string  `yaml:"api_key"`          // shared secret for the X-API-Key header
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`   // per-IP request rate, 0 disables
	RateLimitBurst int     `yaml:"rate_limit_burst"` // per-IP burst
}

// ReportsConfig holds report generation settings.
type ReportsConfig struct {
	Dir              string        `yaml:"dir"`                // output directory for CSV files
	BlockWindowSize  uint64        `yaml:"block_window_size"`  // blocks per segmentation window
	InterWindowDelay time.Duration `yaml:"inter_window_delay"` // pacing between windows
	DedupWindow      time.Duration `yaml:"dedup_window"`       // reuse jobs newer than this
	FallbackBlock    uint64        `yaml:"fallback_block"`     // chain tip estimate when the upstream is unreachable
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
