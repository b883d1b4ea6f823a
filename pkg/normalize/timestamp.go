package normalize

import (
	"strings"
	"time"
)

// isoLayouts are the ISO-8601-first parse attempts, most specific first.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// dayFirstLayouts is the locale-ambiguous fallback for exports that write
// day before month.
var dayFirstLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"2/1/2006 15:04",
	"2/1/2006",
}

// parseTimestamp tries the ordered strategy chain: ISO-8601 first, then the
// day-first heuristic. The result is normalized to UTC with the zone marker
// stripped (timestamps are stored as timezone-naive UTC instants).
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// normalizeTimestamp parses a timestamp cell, substituting the ingest
// instant on total failure. A bad timestamp never rejects a row.
func normalizeTimestamp(s string, now time.Time) time.Time {
	if t, ok := parseTimestamp(s); ok {
		return t
	}

	return now.UTC()
}
