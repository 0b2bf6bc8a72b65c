package gsp

import "time"

// Disaggregate splits an aggregate power series into per-appliance series.
//
// Samples are sorted by timestamp before processing and are assumed finite.
// The only error is an invalid cfg; every empty outcome is a Result with
// NumAppliances == 0 and a Message.
func Disaggregate(samples []PowerSample, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Appliances: []Appliance{}}
	res.Stats.Samples = len(samples)

	start := time.Now()
	sorted := SortSamples(samples)
	delta := DeltaSeries(sorted)
	ev := DetectEvents(delta, cfg.TPositive, cfg.TNegative)
	res.Stats.PositiveEvents = len(ev.Positive)
	res.Stats.NegativeEvents = len(ev.Negative)
	res.Stats.DetectDuration = time.Since(start)
	diagf("%d samples, %d positive and %d negative events", len(sorted), len(ev.Positive), len(ev.Negative))

	if len(ev.All) == 0 {
		res.Message = MessageNoEvents
		return res, nil
	}

	start = time.Now()
	cr := SpectralCluster(delta, ev.All, cfg)
	res.Stats.Clusters = len(cr.Clusters)
	res.Stats.SolveFailures = cr.SolveFailures
	res.Stats.ClusterDuration = time.Since(start)

	start = time.Now()
	bal := BalanceClusters(delta, cr.Clusters, cfg.InstanceLimit)
	res.Stats.SeedClusters = bal.SeedsBeforeBalancing
	res.Stats.BalancedClusters = bal.SeedsAfterBalancing
	res.Stats.ClusterPairs = len(bal.Pairs)
	res.Stats.BalanceDuration = time.Since(start)

	if len(bal.Pairs) == 0 {
		res.Message = MessageNoAppliances
		return res, nil
	}

	start = time.Now()
	for _, cp := range bal.Pairs {
		on := signedMembers(delta, bal.Clusters[cp.Positive], 1)
		off := signedMembers(delta, bal.Clusters[cp.Negative], -1)
		mr := MatchEvents(delta, on, off, cfg.Alpha, cfg.Beta)
		res.Stats.SolveFailures += mr.SolveFailures
		if len(mr.Pairs) == 0 {
			diagf("cluster pair %d/%d matched no cycles", cp.Positive, cp.Negative)
			continue
		}

		series := Reconstruct(sorted, delta, mr.Pairs)
		res.Appliances = append(res.Appliances, Appliance{
			ID:          len(res.Appliances) + 1,
			AvgPower:    series.AvgPower,
			MaxPower:    series.MaxPower,
			Activations: len(mr.Pairs),
			EnergyWh:    series.EnergyWh,
			OnMean:      bal.Stats[cp.Positive].Mean,
			OffMean:     bal.Stats[cp.Negative].Mean,
			EventPairs:  mr.Pairs,
			Timeseries:  series.Points,
		})
	}
	res.Stats.MatchDuration = time.Since(start)
	res.NumAppliances = len(res.Appliances)

	if res.NumAppliances == 0 {
		res.Message = MessageNoCycles
		return res, nil
	}
	used := cfg
	res.Config = &used
	diagf("identified %d appliances", res.NumAppliances)
	return res, nil
}

// signedMembers keeps the cluster members whose step has the given sign.
// Absorption can place an opposite-sign event in a cluster; it can never be
// an ON (or OFF) step of that appliance.
func signedMembers(delta []float64, members []int, sign float64) []int {
	out := make([]int, 0, len(members))
	for _, m := range members {
		if delta[m]*sign > 0 {
			out = append(out, m)
		}
	}
	return out
}
