package models

import (
	"fmt"
	"time"
)

// RelativeTime renders a timestamp as a human-friendly phrase for analysts
// scanning incident lists: "just now", "5 minutes ago", "yesterday at
// 3:14 PM", "4 days ago", then "Feb 18, 2026" beyond a week.
func RelativeTime(t time.Time) string {
	return relativeTo(t, time.Now().UTC())
}

func relativeTo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	delta := now.Sub(t.UTC())
	switch {
	case delta < time.Minute:
		return "just now"
	case delta < time.Hour:
		return plural(int(delta.Minutes()), "minute")
	case delta < 24*time.Hour:
		return plural(int(delta.Hours()), "hour")
	case delta < 48*time.Hour:
		return "yesterday at " + t.UTC().Format("3:04 PM")
	case delta < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(delta.Hours()/24))
	default:
		return t.UTC().Format("Jan 02, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
