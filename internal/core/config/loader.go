package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Etherscan.APIKey == "" {
		return nil, fmt.Errorf("etherscan.api_key is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 20
	}

	if cfg.Etherscan.BaseURL == "" {
		cfg.Etherscan.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if cfg.Etherscan.ChainID == 0 {
		cfg.Etherscan.ChainID = 1
	}
	if cfg.Etherscan.RateLimit == 0 {
		cfg.Etherscan.RateLimit = 5.0
	}
	if cfg.Etherscan.PageSize == 0 {
		cfg.Etherscan.PageSize = 1000
	}
	if cfg.Etherscan.PaginationCeiling == 0 {
		cfg.Etherscan.PaginationCeiling = 10000
	}
	if cfg.Etherscan.MaxRetries == 0 {
		cfg.Etherscan.MaxRetries = 3
	}
	if cfg.Etherscan.Timeout == 0 {
		cfg.Etherscan.Timeout = 30 * time.Second
	}
	if cfg.Etherscan.DailyQuota == 0 {
		cfg.Etherscan.DailyQuota = 100000
	}
	if cfg.Etherscan.CacheTTL == 0 {
		cfg.Etherscan.CacheTTL = 5 * time.Minute
	}

	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = "/tmp/reports"
	}
	if cfg.Reports.BlockWindowSize == 0 {
		cfg.Reports.BlockWindowSize = 1500000
	}
	if cfg.Reports.InterWindowDelay == 0 {
		cfg.Reports.InterWindowDelay = 200 * time.Millisecond
	}
	if cfg.Reports.DedupWindow == 0 {
		cfg.Reports.DedupWindow = 24 * time.Hour
	}
	if cfg.Reports.FallbackBlock == 0 {
		cfg.Reports.FallbackBlock = 20000000
	}
}
