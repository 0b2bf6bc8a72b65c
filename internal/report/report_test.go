package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/units"
)

var testEpoch = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func testData() ([]gsp.PowerSample, *gsp.Result) {
	powers := []float64{100, 2100, 2100, 100, 100}
	samples := make([]gsp.PowerSample, len(powers))
	for i, p := range powers {
		samples[i] = gsp.PowerSample{Timestamp: testEpoch.Add(time.Duration(i) * time.Minute), Power: p}
	}
	result := &gsp.Result{
		NumAppliances: 1,
		Appliances: []gsp.Appliance{{
			ID:          1,
			OnMean:      2000,
			OffMean:     -2000,
			EnergyWh:    66.7,
			Activations: 1,
			EventPairs:  []gsp.EventPair{{On: 0, Off: 2}},
			Timeseries: []gsp.TimeseriesPoint{
				{Timestamp: samples[0].Timestamp, Power: 2000},
				{Timestamp: samples[1].Timestamp, Power: 2000},
				{Timestamp: samples[2].Timestamp, Power: 2000},
			},
		}},
	}
	return samples, result
}

func TestApplianceTrack(t *testing.T) {
	t.Parallel()
	samples, result := testData()
	got := applianceTrack(samples, result.Appliances[0])
	assert.Equal(t, []float64{2000, 2000, 2000, 0, 0}, got)
}

func TestWritePNG(t *testing.T) {
	t.Parallel()
	samples, result := testData()
	path := filepath.Join(t.TempDir(), "report.png")

	require.NoError(t, WritePNG(path, samples, result, Options{Units: units.KW}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestWritePNG_NoSamples(t *testing.T) {
	t.Parallel()
	err := WritePNG(filepath.Join(t.TempDir(), "empty.png"), nil, nil, Options{})
	assert.ErrorIs(t, err, errNoSamples)
}

func TestWriteHTML(t *testing.T) {
	t.Parallel()
	samples, result := testData()

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, samples, result, Options{Title: "Kitchen circuit"}))

	html := buf.String()
	assert.Contains(t, html, "Kitchen circuit")
	assert.Contains(t, html, "aggregate")
	assert.Contains(t, html, "appliance 1")
	assert.Contains(t, html, "Energy per appliance")
}

func TestWriteHTML_EmptyResult(t *testing.T) {
	t.Parallel()
	samples, _ := testData()

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, samples, &gsp.Result{Message: gsp.MessageNoEvents}, Options{}))

	html := buf.String()
	assert.Contains(t, html, gsp.MessageNoEvents)
	assert.False(t, strings.Contains(html, "Energy per appliance"))
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()
	var o Options
	assert.Equal(t, "Appliance disaggregation", o.title())
	assert.Equal(t, units.W, o.units())
	assert.Equal(t, time.UTC, o.location())

	assert.Equal(t, units.W, Options{Units: "hp"}.units())
}

func TestGenerateColors(t *testing.T) {
	t.Parallel()
	assert.Nil(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
}
