package cmn

import (
	"strings"
	"time"
)

// NormalizeUTC converts t to UTC. Per spec.md §9, any timestamp that is
// about to cross into a tz-aware storage column must be explicit UTC.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// exifDateLayout is the format EXIF DateTimeOriginal/DateTimeDigitized use:
// "2006:01:02 15:04:05", no zone.
const exifDateLayout = "2006:01:02 15:04:05"

// ParseEXIFTimestamp parses an EXIF date string and assumes it is UTC, per
// the Design Note in spec.md §9: EXIF carries no zone, and "assume UTC" is
// the only policy that is safe against a tz-aware column. Ambiguous or
// empty inputs are rejected rather than silently coerced to a zero time.
func ParseEXIFTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, NewDecode("exif_timestamp_empty", "empty EXIF timestamp", nil)
	}
	if strings.HasPrefix(raw, "0000:") {
		return time.Time{}, NewDecode("exif_timestamp_unset", "EXIF timestamp is the unset sentinel", nil)
	}
	t, err := time.ParseInLocation(exifDateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, NewDecode("exif_timestamp_unparseable", "could not parse EXIF timestamp", err)
	}
	return t, nil
}
