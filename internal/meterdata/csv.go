package meterdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/monitoring"
)

// Accepted header names, matched case-insensitively.
var (
	timestampColumns = []string{"timestamp", "time", "last_changed", "datetime"}
	powerColumns     = []string{"power", "watts", "state", "value"}
)

// ReadCSV parses a header row followed by one reading per row. Rows whose
// power is not numeric are skipped; a malformed timestamp is an error.
func ReadCSV(r io.Reader, opts Options) ([]gsp.PowerSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	tsCol := findColumn(header, timestampColumns)
	pwCol := findColumn(header, powerColumns)
	if tsCol < 0 || pwCol < 0 {
		return nil, fmt.Errorf("CSV header %v needs a timestamp and a power column", header)
	}

	loc := opts.location()
	var samples []gsp.PowerSample
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if tsCol >= len(rec) || pwCol >= len(rec) {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(tsCol, pwCol)+1, len(rec))
		}

		power, ok := parsePower(rec[pwCol])
		if !ok {
			skipped++
			continue
		}
		ts, err := ParseTimestamp(rec[tsCol], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, gsp.PowerSample{Timestamp: ts, Power: power})
	}

	if skipped > 0 {
		monitoring.Logf("meterdata: skipped %d CSV rows with non-numeric power", skipped)
	}
	return samples, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}
