// Package meterdata reads aggregate power readings from exported meter
// histories and prepares them for gsp.Disaggregate.
//
// Supported inputs are CSV with a header row and JSON arrays of
// {timestamp, power} objects, including the nested history format written
// by Home Assistant (last_changed / state). Power is always in watts.
package meterdata

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/monitoring"
)

// ErrUnsupportedFormat is returned by LoadFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported meter data format")

// Options controls parsing.
type Options struct {
	// Location is used for timestamps that carry no UTC offset.
	// Nil means UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// naiveLayouts are tried, in order, for timestamps without an offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC 3339 text, naive date-times interpreted in
// loc, and unix epoch seconds (fractional seconds allowed).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return epochSeconds(secs)
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func epochSeconds(secs float64) (time.Time, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return time.Time{}, fmt.Errorf("invalid epoch seconds %v", secs)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}

// parsePower parses a reading. ok is false for non-numeric meter states
// such as "unavailable", which are skipped rather than treated as errors.
func parsePower(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Sanitize drops samples with a zero timestamp or a non-finite power and
// returns how many were dropped. The order of the remaining samples is kept.
func Sanitize(samples []gsp.PowerSample) ([]gsp.PowerSample, int) {
	out := make([]gsp.PowerSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.IsZero() || math.IsNaN(s.Power) || math.IsInf(s.Power, 0) {
			continue
		}
		out = append(out, s)
	}
	return out, len(samples) - len(out)
}

// LoadFile reads path as CSV or JSON according to its extension and
// sanitises the result.
func LoadFile(path string, opts Options) ([]gsp.PowerSample, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open meter data: %w", err)
	}
	defer f.Close()

	var samples []gsp.PowerSample
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		samples, err = ReadCSV(f, opts)
	case ".json":
		samples, err = ReadJSON(f, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	clean, dropped := Sanitize(samples)
	if dropped > 0 {
		monitoring.Logf("meterdata: dropped %d non-finite samples from %s", dropped, path)
	}
	return clean, nil
}
