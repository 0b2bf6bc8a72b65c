package gsp

import "time"

// PowerSample is one reading of the aggregate meter.
type PowerSample struct {
	Timestamp time.Time `json:"timestamp"`
	Power     float64   `json:"power"` // watts
}

// Events holds indices into the delta series whose step exceeds a threshold.
type Events struct {
	Positive []int `json:"positive"`
	Negative []int `json:"negative"`
	All      []int `json:"all"` // sorted union of Positive and Negative
}

// EventPair is one ON->OFF cycle of an appliance. On < Off always holds.
type EventPair struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// ClusterPair links a positive-mean cluster to its negative-mean partner.
// Both indices refer to BalanceResult.Clusters.
type ClusterPair struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// TimeseriesPoint is one reconstructed appliance reading.
type TimeseriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Power     float64   `json:"power"`
}

// Appliance is one disaggregated load. IDs are assigned in detection order
// starting at 1; they carry no appliance identity.
type Appliance struct {
	ID          int               `json:"id"`
	AvgPower    float64           `json:"avg_power"`
	MaxPower    float64           `json:"max_power"`
	Activations int               `json:"activations"`
	EnergyWh    float64           `json:"energy_wh"`
	OnMean      float64           `json:"on_mean"`  // mean ON step of the positive cluster
	OffMean     float64           `json:"off_mean"` // mean OFF step of the negative cluster
	EventPairs  []EventPair       `json:"event_pairs"`
	Timeseries  []TimeseriesPoint `json:"timeseries"`
}

// PipelineStats summarises what each stage produced.
type PipelineStats struct {
	Samples          int           `json:"samples"`
	PositiveEvents   int           `json:"positive_events"`
	NegativeEvents   int           `json:"negative_events"`
	Clusters         int           `json:"clusters"`
	SeedClusters     int           `json:"seed_clusters"`
	BalancedClusters int           `json:"balanced_clusters"`
	ClusterPairs     int           `json:"cluster_pairs"`
	SolveFailures    int           `json:"solve_failures"`
	DetectDuration   time.Duration `json:"detect_duration_ns"`
	ClusterDuration  time.Duration `json:"cluster_duration_ns"`
	BalanceDuration  time.Duration `json:"balance_duration_ns"`
	MatchDuration    time.Duration `json:"match_duration_ns"`
}

// Result is the outcome of Disaggregate. A zero-appliance result carries a
// Message explaining why; a successful one carries the Config it ran with.
type Result struct {
	Appliances    []Appliance   `json:"appliances"`
	NumAppliances int           `json:"num_appliances"`
	Message       string        `json:"message,omitempty"`
	Config        *Config       `json:"config,omitempty"`
	Stats         PipelineStats `json:"stats"`
}

// Benign-empty result messages.
const (
	MessageNoEvents     = "no significant power events detected"
	MessageNoAppliances = "could not identify distinct appliances"
	MessageNoCycles     = "no complete on/off cycles could be matched"
)
