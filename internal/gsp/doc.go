// Package gsp implements training-less energy disaggregation using graph
// signal processing.
//
// Responsibilities: turning one aggregate power series into step events,
// clustering events of similar magnitude on a Gaussian similarity graph,
// pairing ON clusters with OFF clusters, matching individual ON/OFF events
// and reconstructing a power series per appliance.
// Key types: PowerSample, Config, Result, Appliance.
//
// Data flows strictly forward:
//
//	DetectEvents -> SpectralCluster -> BalanceClusters -> MatchEvents -> Reconstruct
//
// Disaggregate is the single entry point. It is a pure function of its
// inputs; concurrent calls on independent series are safe once logging has
// been configured with SetLogWriters.
//
// No storage, file or network code is allowed in this package.
package gsp
