package stats

import (
	"errors"

	"github.com/docker/docker/api/types"
)

// ErrInvalidLimit is returned when a snapshot carries no memory limit, which
// leaves the memory percentage undefined.
var ErrInvalidLimit = errors.New("invalid memory limit")

// cacheCounter names a memory.stat counter holding reclaimable, file backed
// page cache and the cgroup generation that reports it.
type cacheCounter struct {
	name   string
	cgroup string
}

// Checked in order, the first usable counter wins. New accounting schemes go
// at the end.
var cacheCounters = []cacheCounter{
	{name: "total_inactive_file", cgroup: "v1"},
	{name: "inactive_file", cgroup: "v2"},
}

// InactiveFile looks up the inactive file cache counter that should be
// subtracted from mem.Usage. A counter is only usable when it is strictly
// smaller than the raw usage; anything else would produce a zero or negative
// footprint and is ignored.
func InactiveFile(mem types.MemoryStats) (value uint64, cgroup string, ok bool) {
	for _, c := range cacheCounters {
		v, found := mem.Stats[c.name]
		if found && v < mem.Usage {
			return v, c.cgroup, true
		}
	}
	return 0, "", false
}

// MemoryUsageNoCache returns the container's memory usage without the
// inactive file cache, matching what `docker stats` shows. Falls back to the
// raw usage when no usable cache counter exists.
func MemoryUsageNoCache(mem types.MemoryStats) uint64 {
	if cache, _, ok := InactiveFile(mem); ok {
		return mem.Usage - cache
	}
	return mem.Usage
}

// MemoryPercent returns usage as a percentage of limit.
func MemoryPercent(usage, limit uint64) (float64, error) {
	if limit == 0 {
		return 0, ErrInvalidLimit
	}
	return float64(usage) / float64(limit) * 100.0, nil
}
