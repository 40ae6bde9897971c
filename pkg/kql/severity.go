package kql

import "strings"

// SeverityOrder lists Sentinel's severity levels from lowest to highest.
// Sentinel has exactly four levels; there is no Critical.
var SeverityOrder = [4]string{"Informational", "Low", "Medium", "High"}

// SeverityFilter returns a KQL-safe comma-separated string of quoted severity
// values at or above the given threshold, e.g. "'Medium','High'". An invalid
// threshold defaults to all severities.
func SeverityFilter(minSeverity string) string {
	idx := 0
	for i, s := range SeverityOrder {
		if s == minSeverity {
			idx = i
			break
		}
	}
	quoted := make([]string, 0, len(SeverityOrder)-idx)
	for _, s := range SeverityOrder[idx:] {
		quoted = append(quoted, "'"+s+"'")
	}
	return strings.Join(quoted, ",")
}
