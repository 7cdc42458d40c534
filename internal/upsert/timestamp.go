package upsert

import (
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e10 seconds is in the year 2286, so anything larger must be milliseconds.
const epochMillisThreshold = 10_000_000_000

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 string or an epoch integer (seconds or
// milliseconds). It reports false when raw is empty or unparseable. Results
// are in UTC; zoneless strings are taken as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > epochMillisThreshold {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !strings.ContainsAny(raw, "-:") {
		if f > epochMillisThreshold {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return time.Unix(int64(f), 0).UTC(), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resolveTimes applies the created/updated fallback chain. created falls back
// to updated then now; updated falls back to created then now.
func resolveTimes(rawCreated, rawUpdated string, now time.Time) (created, updated time.Time) {
	c, cok := ParseTimestamp(rawCreated)
	u, uok := ParseTimestamp(rawUpdated)

	switch {
	case cok:
		created = c
	case uok:
		created = u
	default:
		created = now
	}

	switch {
	case uok:
		updated = u
	case cok:
		updated = c
	default:
		updated = now
	}
	return created, updated
}
