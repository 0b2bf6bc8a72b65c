package gsp

import (
	"errors"
	"fmt"
	"math"
)

// Defaults used by DefaultConfig.
const (
	DefaultSigma               = 20.0
	DefaultRi                  = 0.15
	DefaultTPositive           = 20.0
	DefaultTNegative           = -20.0
	DefaultAlpha               = 0.5
	DefaultBeta                = 0.5
	DefaultInstanceLimit       = 3
	DefaultWindowSize          = 1000
	DefaultMembershipThreshold = 0.98
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid gsp config")

// Config holds the tuning parameters of one disaggregation run.
// Power values are in watts.
type Config struct {
	// Sigma is the base Gaussian kernel width used for event clustering.
	Sigma float64 `json:"sigma"`
	// Ri is the maximum coefficient of variation for a cluster to be
	// accepted before the final scale.
	Ri float64 `json:"ri"`
	// TPositive and TNegative are the event thresholds on the delta series.
	TPositive float64 `json:"t_positive"`
	TNegative float64 `json:"t_negative"`
	// Alpha and Beta weight magnitude against temporal similarity when one
	// ON event has several OFF candidates.
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	// InstanceLimit is the minimum cluster size to count as a seed cluster.
	InstanceLimit int `json:"instance_limit"`
	// WindowSize bounds the number of events per Laplacian solve.
	WindowSize int `json:"window_size"`
	// MembershipThreshold is the smoothed score an event must exceed to
	// join the seed's cluster.
	MembershipThreshold float64 `json:"membership_threshold"`
}

// DefaultConfig returns production defaults. Callers override individual
// fields and rely on Disaggregate to validate the result.
func DefaultConfig() Config {
	return Config{
		Sigma:               DefaultSigma,
		Ri:                  DefaultRi,
		TPositive:           DefaultTPositive,
		TNegative:           DefaultTNegative,
		Alpha:               DefaultAlpha,
		Beta:                DefaultBeta,
		InstanceLimit:       DefaultInstanceLimit,
		WindowSize:          DefaultWindowSize,
		MembershipThreshold: DefaultMembershipThreshold,
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	if !isPositiveFinite(c.Sigma) {
		return fmt.Errorf("%w: sigma must be positive, got %v", ErrInvalidConfig, c.Sigma)
	}
	if !isPositiveFinite(c.Ri) {
		return fmt.Errorf("%w: ri must be positive, got %v", ErrInvalidConfig, c.Ri)
	}
	if !isPositiveFinite(c.TPositive) {
		return fmt.Errorf("%w: t_positive must be positive, got %v", ErrInvalidConfig, c.TPositive)
	}
	if !isPositiveFinite(-c.TNegative) {
		return fmt.Errorf("%w: t_negative must be negative, got %v", ErrInvalidConfig, c.TNegative)
	}
	if c.Alpha < 0 || c.Beta < 0 || math.IsNaN(c.Alpha) || math.IsNaN(c.Beta) {
		return fmt.Errorf("%w: alpha and beta must be non-negative, got %v/%v", ErrInvalidConfig, c.Alpha, c.Beta)
	}
	if c.Alpha+c.Beta == 0 || math.IsInf(c.Alpha+c.Beta, 0) {
		return fmt.Errorf("%w: alpha + beta must be positive and finite", ErrInvalidConfig)
	}
	if c.InstanceLimit < 1 {
		return fmt.Errorf("%w: instance_limit must be at least 1, got %d", ErrInvalidConfig, c.InstanceLimit)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be at least 1, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if !(c.MembershipThreshold > 0 && c.MembershipThreshold < 1) {
		return fmt.Errorf("%w: membership_threshold must be in (0, 1), got %v", ErrInvalidConfig, c.MembershipThreshold)
	}
	return nil
}

// scaleDivisors produce the clustering resolutions sigma/d, coarse to fine.
var scaleDivisors = []float64{1, 2, 4, 8, 14, 32, 64}

// Scales returns the kernel widths used by the spectral clusterer.
func (c Config) Scales() []float64 {
	out := make([]float64, len(scaleDivisors))
	for i, d := range scaleDivisors {
		out[i] = c.Sigma / d
	}
	return out
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
