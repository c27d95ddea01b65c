package domain

import "time"

// APIUsage is one usage-log row, written per authenticated API request.
type APIUsage struct {
	WalletAddress  string    `json:"wallet_address"`
	Endpoint       string    `json:"endpoint"`
	RequestedAt    time.Time `json:"request_timestamp"`
	ResponseTimeMs int       `json:"response_time_ms"`
	StatusCode     int       `json:"status_code"`
	IPAddress      string    `json:"ip_address"`
}

// EndpointCount is a per-endpoint aggregate.
type EndpointCount struct {
	Endpoint      string  `json:"endpoint"`
	Requests      int     `json:"requests"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// WalletCount is a per-wallet aggregate.
type WalletCount struct {
	WalletAddress string `json:"wallet_address"`
	Requests      int    `json:"requests"`
}
