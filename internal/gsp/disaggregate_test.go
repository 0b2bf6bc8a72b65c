package gsp

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kettleAndFridge returns three repetitions of a 2 kW kettle pulse followed
// by a 150 W fridge cycle on a 100 W base load.
func kettleAndFridge() []PowerSample {
	block := []float64{100, 100, 2100, 2100, 100, 100, 250, 250, 250, 100}
	var powers []float64
	for i := 0; i < 3; i++ {
		powers = append(powers, block...)
	}
	powers = append(powers, 100)
	return makeSamples(powers...)
}

func TestDisaggregate_SingleCleanCycle(t *testing.T) {
	t.Parallel()

	samples := makeSamples(100, 100, 400, 400, 400, 100, 100)
	cfg := DefaultConfig()
	cfg.InstanceLimit = 1

	res, err := Disaggregate(samples, cfg)
	require.NoError(t, err)

	require.Equal(t, 1, res.NumAppliances)
	assert.Empty(t, res.Message)
	require.NotNil(t, res.Config)
	assert.Equal(t, cfg, *res.Config)

	app := res.Appliances[0]
	assert.Equal(t, 1, app.ID)
	assert.Equal(t, 1, app.Activations)
	assert.Equal(t, []EventPair{{On: 1, Off: 4}}, app.EventPairs)

	require.Len(t, app.Timeseries, 4)
	for i, p := range app.Timeseries {
		assert.Equal(t, samples[i+1].Timestamp, p.Timestamp)
		assert.Equal(t, 300.0, p.Power)
	}
	assert.Equal(t, 300.0, app.AvgPower)
	assert.Equal(t, 300.0, app.MaxPower)
	assert.InDelta(t, 15.0, app.EnergyWh, 1e-9)

	assert.Equal(t, 1, res.Stats.PositiveEvents)
	assert.Equal(t, 1, res.Stats.NegativeEvents)
	assert.Equal(t, 2, res.Stats.Clusters)
	assert.Equal(t, 1, res.Stats.ClusterPairs)
}

func TestDisaggregate_KettleAndFridge(t *testing.T) {
	t.Parallel()

	res, err := Disaggregate(kettleAndFridge(), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 2, res.NumAppliances)

	kettle, fridge := res.Appliances[0], res.Appliances[1]
	assert.Equal(t, 1, kettle.ID)
	assert.Equal(t, 3, kettle.Activations)
	assert.Equal(t, []EventPair{{1, 3}, {11, 13}, {21, 23}}, kettle.EventPairs)
	assert.Equal(t, 2000.0, kettle.MaxPower)
	assert.Equal(t, 2000.0, kettle.OnMean)
	assert.Equal(t, -2000.0, kettle.OffMean)
	assert.Len(t, kettle.Timeseries, 9)

	assert.Equal(t, 2, fridge.ID)
	assert.Equal(t, 3, fridge.Activations)
	assert.Equal(t, []EventPair{{5, 8}, {15, 18}, {25, 28}}, fridge.EventPairs)
	assert.Equal(t, 150.0, fridge.AvgPower)
	assert.Len(t, fridge.Timeseries, 12)
}

func TestDisaggregate_UnsortedInput(t *testing.T) {
	t.Parallel()

	samples := kettleAndFridge()
	reversed := make([]PowerSample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}

	want, err := Disaggregate(samples, DefaultConfig())
	require.NoError(t, err)
	got, err := Disaggregate(reversed, DefaultConfig())
	require.NoError(t, err)

	if diff := cmp.Diff(want.Appliances, got.Appliances); diff != "" {
		t.Errorf("unsorted input changed result (-want +got):\n%s", diff)
	}
}

func TestDisaggregate_Deterministic(t *testing.T) {
	t.Parallel()

	// Noisy series with overlapping loads.
	var powers []float64
	seed := uint32(7)
	base := 120.0
	for i := 0; i < 600; i++ {
		seed = seed*1664525 + 1013904223
		r := float64(seed>>8) / float64(1<<24)
		switch {
		case i%37 == 5:
			base += 1500
		case i%37 == 9:
			base -= 1500
		case i%23 == 3:
			base += 420 + 10*r
		case i%23 == 15:
			base -= 420 + 10*r
		}
		powers = append(powers, base+5*r)
	}
	samples := makeSamples(powers...)
	cfg := DefaultConfig()

	first, err := Disaggregate(samples, cfg)
	require.NoError(t, err)
	second, err := Disaggregate(samples, cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Appliances, second.Appliances); diff != "" {
		t.Errorf("repeated run differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.NumAppliances, second.NumAppliances)
	assert.Equal(t, first.Message, second.Message)
}

func TestDisaggregate_BoundaryLaw(t *testing.T) {
	t.Parallel()

	samples := kettleAndFridge()
	delta := DeltaSeries(samples)
	res, err := Disaggregate(samples, DefaultConfig())
	require.NoError(t, err)

	for _, app := range res.Appliances {
		pos := 0
		for _, p := range app.EventPairs {
			n := p.Off - p.On + 1
			cycle := app.Timeseries[pos : pos+n]
			pos += n

			first, last := cycle[0].Power, cycle[n-1].Power
			assert.Equal(t, math.Round(delta[p.On]), first)
			assert.Equal(t, math.Round(math.Abs(delta[p.Off])), last)
			lo, hi := math.Min(first, last), math.Max(first, last)
			for _, v := range cycle {
				assert.GreaterOrEqual(t, v.Power, lo)
				assert.LessOrEqual(t, v.Power, hi)
			}
		}
		assert.Equal(t, len(app.Timeseries), pos)
	}
}

func TestDisaggregate_NoEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []PowerSample
	}{
		{"empty", nil},
		{"single_sample", makeSamples(500)},
		{"flat", makeSamples(100, 100, 100, 100)},
		{"below_threshold", makeSamples(100, 115, 100, 80, 100)},
		{"exactly_threshold", makeSamples(100, 120, 100)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Disaggregate(tc.samples, DefaultConfig())
			require.NoError(t, err)
			assert.Zero(t, res.NumAppliances)
			assert.Empty(t, res.Appliances)
			assert.NotNil(t, res.Appliances)
			assert.Equal(t, MessageNoEvents, res.Message)
			assert.Nil(t, res.Config)
		})
	}
}

func TestDisaggregate_NoAppliances(t *testing.T) {
	t.Parallel()

	// One ON step and nothing else: no negative cluster to pair with.
	res, err := Disaggregate(makeSamples(100, 100, 600, 600), DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, res.NumAppliances)
	assert.Equal(t, MessageNoAppliances, res.Message)

	// Singletons never reach the default instance limit.
	res, err = Disaggregate(makeSamples(100, 400, 400, 100), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, MessageNoAppliances, res.Message)
	assert.Zero(t, res.Stats.SeedClusters)
}

func TestDisaggregate_NoCycles(t *testing.T) {
	t.Parallel()

	// The only OFF step precedes the only ON step.
	cfg := DefaultConfig()
	cfg.InstanceLimit = 1
	res, err := Disaggregate(makeSamples(400, 100, 100, 400), cfg)
	require.NoError(t, err)
	assert.Zero(t, res.NumAppliances)
	assert.Equal(t, MessageNoCycles, res.Message)
}

func TestDisaggregate_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.TPositive = 0

	res, err := Disaggregate(makeSamples(100, 400, 100), cfg)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
