package stats

import "github.com/docker/docker/api/types"

// NetworkTotals sums transmitted and received bytes over every interface
// attached to the container.
func NetworkTotals(networks map[string]types.NetworkStats) (tx, rx uint64) {
	for _, network := range networks {
		tx += network.TxBytes
		rx += network.RxBytes
	}
	return tx, rx
}
