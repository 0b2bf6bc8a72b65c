// Package report renders a disaggregation result next to the aggregate
// series it came from, as a static PNG or an interactive HTML page.
package report

import (
	"errors"
	"time"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/units"
)

var errNoSamples = errors.New("report: no samples to plot")

// Options controls rendering.
type Options struct {
	Title string
	// Units is the display power unit (units.W, units.KW or units.MW).
	Units string
	// Location is used for time labels. Nil means UTC.
	Location *time.Location
}

func (o Options) title() string {
	if o.Title == "" {
		return "Appliance disaggregation"
	}
	return o.Title
}

func (o Options) units() string {
	if !units.IsValid(o.Units) {
		return units.W
	}
	return o.Units
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// applianceTrack returns a's reconstructed power aligned with samples,
// zero outside its cycles.
func applianceTrack(samples []gsp.PowerSample, a gsp.Appliance) []float64 {
	byTime := make(map[int64]float64, len(a.Timeseries))
	for _, p := range a.Timeseries {
		byTime[p.Timestamp.UnixNano()] += p.Power
	}
	track := make([]float64, len(samples))
	for i, s := range samples {
		track[i] = byTime[s.Timestamp.UnixNano()]
	}
	return track
}
