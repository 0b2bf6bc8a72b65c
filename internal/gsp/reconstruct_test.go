package gsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		delta []float64
		pair  EventPair
		want  []float64
	}{
		{"flat", []float64{0, 300, 0, 0, -300}, EventPair{1, 4}, []float64{300, 300, 300, 300}},
		{"ramp_down", []float64{300, 0, 0, 0, -100}, EventPair{0, 4}, []float64{300, 250, 200, 150, 100}},
		{"ramp_up", []float64{100, 0, -200}, EventPair{0, 2}, []float64{100, 150, 200}},
		{"adjacent", []float64{120.4, -119.6}, EventPair{0, 1}, []float64{120, 120}},
		{"rounds_interior", []float64{100, 0, 0, -101}, EventPair{0, 3}, []float64{100, 100, 101, 101}},
		{"degenerate", []float64{100, -100}, EventPair{1, 1}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReconstructCycle(tc.delta, tc.pair))
		})
	}
}

func TestReconstructCycle_BoundaryLaw(t *testing.T) {
	t.Parallel()

	delta := []float64{0, 1234.56, 0, 0, 0, 0, 0, -987.65}
	values := ReconstructCycle(delta, EventPair{1, 7})
	require.Len(t, values, 7)

	assert.Equal(t, 1235.0, values[0])
	assert.Equal(t, 988.0, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.LessOrEqual(t, values[i], values[i-1], "interior must be monotonic")
		assert.GreaterOrEqual(t, values[i], 988.0)
	}
}

func TestReconstruct(t *testing.T) {
	t.Parallel()

	samples := makeSamples(100, 400, 400, 400, 400, 100, 100, 250, 250, 100)
	delta := DeltaSeries(samples)
	pairs := []EventPair{{6, 8}, {0, 4}}

	got := Reconstruct(samples, delta, pairs)

	require.Len(t, got.Points, 8)
	assert.Equal(t, samples[0].Timestamp, got.Points[0].Timestamp, "cycles are emitted in ON order")
	assert.Equal(t, samples[4].Timestamp, got.Points[4].Timestamp)
	assert.Equal(t, samples[6].Timestamp, got.Points[5].Timestamp)
	assert.Equal(t, 150.0, got.Points[5].Power)

	assert.Equal(t, 300.0, got.MaxPower)
	assert.InDelta(t, (5*300.0+3*150.0)/8, got.AvgPower, 1e-9)
	// 300 W for 4 minutes plus 150 W for 2 minutes.
	assert.InDelta(t, 300*4.0/60+150*2.0/60, got.EnergyWh, 1e-9)
}

func TestReconstruct_AvgIgnoresZeroValues(t *testing.T) {
	t.Parallel()

	samples := []PowerSample{
		{Timestamp: testEpoch, Power: 0},
		{Timestamp: testEpoch.Add(time.Hour), Power: 0.4},
		{Timestamp: testEpoch.Add(2 * time.Hour), Power: 0.4},
		{Timestamp: testEpoch.Add(3 * time.Hour), Power: 0},
	}
	delta := []float64{0.4, 0, -0.4}

	got := Reconstruct(samples, delta, []EventPair{{0, 2}})

	assert.Len(t, got.Points, 3)
	assert.Zero(t, got.AvgPower)
	assert.Zero(t, got.MaxPower)
	assert.Zero(t, got.EnergyWh)
}

func TestReconstruct_NoPairs(t *testing.T) {
	t.Parallel()

	got := Reconstruct(makeSamples(1, 2), []float64{1}, nil)
	assert.Empty(t, got.Points)
	assert.Zero(t, got.AvgPower)
}
