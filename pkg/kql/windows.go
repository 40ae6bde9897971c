package kql

import (
	"sort"
	"time"
)

// TimeWindow pairs the API timespan with the equivalent KQL ago() argument.
// Both are needed: the timespan bounds the query server-side, the ago()
// string filters inside the template.
type TimeWindow struct {
	Timespan time.Duration
	Ago      string
}

var timeWindows = map[string]TimeWindow{
	"last_1h":  {Timespan: time.Hour, Ago: "1h"},
	"last_24h": {Timespan: 24 * time.Hour, Ago: "24h"},
	"last_3d":  {Timespan: 3 * 24 * time.Hour, Ago: "3d"},
	"last_7d":  {Timespan: 7 * 24 * time.Hour, Ago: "7d"},
	"last_14d": {Timespan: 14 * 24 * time.Hour, Ago: "14d"},
	"last_30d": {Timespan: 30 * 24 * time.Hour, Ago: "30d"},
}

// Window looks up a named time window.
func Window(name string) (TimeWindow, bool) {
	w, ok := timeWindows[name]
	return w, ok
}

// WindowNames returns the valid window names, sorted, for error messages and
// tool schemas.
func WindowNames() []string {
	names := make([]string, 0, len(timeWindows))
	for name := range timeWindows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BinSize picks the trend bucket width for a time window: hourly buckets for
// windows up to a day, daily buckets beyond that.
func BinSize(windowName string) string {
	switch windowName {
	case "last_1h", "last_24h":
		return "1h"
	default:
		return "1d"
	}
}

// Default and maximum result limits per operation. Requested limits are
// clamped, never rejected.
const (
	DefaultIncidentLimit    = 20
	MaxIncidentLimit        = 100
	DefaultAlertLimit       = 20
	MaxAlertLimit           = 100
	DefaultDetailAlertLimit = 50
	MaxDetailAlertLimit     = 200
	DefaultTrendLimit       = 365
	MaxTrendLimit           = 365
	DefaultTopEntityLimit   = 10
	MaxTopEntityLimit       = 50

	// NameLookupLimit caps incident title-substring matches.
	NameLookupLimit = 10
)

// ClampLimit applies the default for non-positive limits and caps at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
