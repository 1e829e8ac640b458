// Package stats turns raw Docker stats snapshots into derived metrics.
//
// Everything here is a pure function of its input, apart from the clock read
// for the record timestamp. Deriving is safe for concurrent use.
package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"k8s.io/utils/clock"

	"github.com/rusenback/docker-stats/internal/model"
)

// TimestampLayout is the sortable, second precision layout of model.Stats.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05"

// bytesPerKB is the divisor for byte to kilobyte conversion.
const bytesPerKB = 1024

// ErrNilSnapshot is returned when Derive is called without a snapshot.
var ErrNilSnapshot = errors.New("nil stats snapshot")

// Options controls a single derivation.
type Options struct {
	// UseUTC stamps records in UTC instead of local time.
	UseUTC bool
}

// DefaultOptions returns the options used when the caller has no preference.
func DefaultOptions() Options {
	return Options{UseUTC: true}
}

// Deriver derives model.Stats from raw snapshots.
type Deriver struct {
	clock clock.PassiveClock
}

// NewDeriver creates a Deriver that reads the time from c.
func NewDeriver(c clock.PassiveClock) *Deriver {
	return &Deriver{clock: c}
}

var defaultDeriver = NewDeriver(clock.RealClock{})

// Derive derives a record from s using the system clock.
func Derive(s *types.StatsJSON, opts Options) (model.Stats, error) {
	return defaultDeriver.Derive(s, opts)
}

// Derive computes CPU, memory and network metrics from s and stamps the
// result with the current time.
func (d *Deriver) Derive(s *types.StatsJSON, opts Options) (model.Stats, error) {
	if s == nil {
		return model.Stats{}, ErrNilSnapshot
	}

	memUsage := MemoryUsageNoCache(s.MemoryStats)
	memLimit := s.MemoryStats.Limit
	memPercent, err := MemoryPercent(memUsage, memLimit)
	if err != nil {
		return model.Stats{}, fmt.Errorf("memory percentage: %w", err)
	}

	tx, rx := NetworkTotals(s.Networks)

	return model.Stats{
		CPUPercent:    CPUPercent(s),
		MemoryUsageKB: ToKilobytes(memUsage),
		MemoryLimitKB: ToKilobytes(memLimit),
		MemoryPercent: memPercent,
		NetworkTxKB:   ToKilobytes(tx),
		NetworkRxKB:   ToKilobytes(rx),
		Timestamp:     FormatTimestamp(d.clock.Now(), opts.UseUTC),
	}, nil
}

// ToKilobytes converts bytes to kilobytes.
func ToKilobytes(b uint64) float64 {
	return float64(b) / bytesPerKB
}

// FormatTimestamp renders t with TimestampLayout in UTC or local time.
func FormatTimestamp(t time.Time, utc bool) string {
	if utc {
		return t.UTC().Format(TimestampLayout)
	}
	return t.Local().Format(TimestampLayout)
}
