package meterdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/monitoring"
)

// jsonReading accepts both the plain {timestamp, power} shape and the Home
// Assistant history shape {last_changed, state}.
type jsonReading struct {
	Timestamp   json.RawMessage `json:"timestamp"`
	LastChanged string          `json:"last_changed"`
	Power       json.RawMessage `json:"power"`
	State       string          `json:"state"`
}

// ReadJSON parses an array of readings. A nested array of arrays, as
// returned by the Home Assistant history API, is flattened.
func ReadJSON(r io.Reader, opts Options) ([]gsp.PowerSample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	readings, err := decodeReadings(data)
	if err != nil {
		return nil, err
	}

	loc := opts.location()
	samples := make([]gsp.PowerSample, 0, len(readings))
	skipped := 0
	for i, rd := range readings {
		power, ok := rd.power()
		if !ok {
			skipped++
			continue
		}
		tsText, err := rd.timestampText()
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		ts, err := ParseTimestamp(tsText, loc)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		samples = append(samples, gsp.PowerSample{Timestamp: ts, Power: power})
	}

	if skipped > 0 {
		monitoring.Logf("meterdata: skipped %d JSON readings with non-numeric power", skipped)
	}
	return samples, nil
}

func decodeReadings(data []byte) ([]jsonReading, error) {
	var nested [][]jsonReading
	if err := json.Unmarshal(data, &nested); err == nil {
		var flat []jsonReading
		for _, series := range nested {
			flat = append(flat, series...)
		}
		return flat, nil
	}
	var flat []jsonReading
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse JSON readings: %w", err)
	}
	return flat, nil
}

func (rd jsonReading) power() (float64, bool) {
	raw := bytes.TrimSpace(rd.Power)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if rd.State == "" {
			return 0, false
		}
		return parsePower(rd.State)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parsePower(s)
	}
	return 0, false
}

func (rd jsonReading) timestampText() (string, error) {
	raw := bytes.TrimSpace(rd.Timestamp)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if rd.LastChanged == "" {
			return "", fmt.Errorf("missing timestamp")
		}
		return rd.LastChanged, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("timestamp must be a string or number, got %s", raw)
}
