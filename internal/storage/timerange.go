package storage

import (
	"fmt"
	"time"
)

// TimeRange represents different time window options
type TimeRange int

const (
	Range30Min TimeRange = iota
	Range1Hour
	Range6Hour
	Range1Day
	Range1Week
)

var timeRanges = []TimeRange{Range30Min, Range1Hour, Range6Hour, Range1Day, Range1Week}

func (t TimeRange) String() string {
	switch t {
	case Range30Min:
		return "30min"
	case Range1Hour:
		return "1hour"
	case Range6Hour:
		return "6hours"
	case Range1Day:
		return "1day"
	case Range1Week:
		return "1week"
	default:
		return "unknown"
	}
}

// Duration returns the time duration for the range
func (t TimeRange) Duration() time.Duration {
	switch t {
	case Range30Min:
		return 30 * time.Minute
	case Range1Hour:
		return 1 * time.Hour
	case Range6Hour:
		return 6 * time.Hour
	case Range1Day:
		return 24 * time.Hour
	case Range1Week:
		return 7 * 24 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// BucketSize returns the aggregation bucket in seconds, 0 for full resolution
func (t TimeRange) BucketSize() int64 {
	switch t {
	case Range1Hour:
		return 30
	case Range6Hour:
		return 300
	case Range1Day:
		return 600
	case Range1Week:
		return 3600
	default:
		return 0
	}
}

// ParseTimeRange parses the String form of a TimeRange
func ParseTimeRange(s string) (TimeRange, error) {
	for _, t := range timeRanges {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown time range %q (want one of 30min, 1hour, 6hours, 1day, 1week)", s)
}
