// internal/model/stats.go
package model

// Stats is the derived, point-in-time view of one container stats snapshot.
// Byte quantities are expressed in kilobytes (1 KB = 1024 bytes).
type Stats struct {
	// CPU
	CPUPercent float64 `json:"cpu_percent"`

	// Memory (page cache excluded from usage)
	MemoryUsageKB float64 `json:"memory_usage_kb"`
	MemoryLimitKB float64 `json:"memory_limit_kb"`
	MemoryPercent float64 `json:"memory_percent"`

	// Network, summed over all interfaces
	NetworkTxKB float64 `json:"network_tx_kb"`
	NetworkRxKB float64 `json:"network_rx_kb"`

	// Format 2006-01-02T15:04:05, UTC or local time
	Timestamp string `json:"timestamp"`
}

// ContainerStats pairs a derived record with the container it was sampled from.
type ContainerStats struct {
	Container string `json:"container"`
	Stats
}
