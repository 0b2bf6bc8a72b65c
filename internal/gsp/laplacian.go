package gsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// pinvRcond is the relative cutoff below which eigenvalues of the grounded
// Laplacian are treated as zero. Nodes whose only link to the seed has
// underflowed land in that null space and receive a score of zero.
const pinvRcond = 1e-15

// SolveError reports a harmonic-extension solve that produced no usable
// solution. Callers treat it as "no cluster from this seed".
type SolveError struct {
	Size   int
	Reason string
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("laplacian solve failed (n=%d): %s", e.Size, e.Reason)
}

// gaussianLaplacian builds L = D - A for a fully connected graph whose edge
// weights are A[i,j] = exp(-((r_i - r_j)/sigma)^2).
func gaussianLaplacian(features []float64, sigma float64) *mat.SymDense {
	n := len(features)
	lap := mat.NewSymDense(n, nil)
	degree := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := (features[i] - features[j]) / sigma
			w := math.Exp(-d * d)
			lap.SetSym(i, j, -w)
			degree[i] += w
			degree[j] += w
		}
	}
	for i, d := range degree {
		lap.SetSym(i, i, d)
	}
	return lap
}

// harmonicExtension fixes node 0 of the graph built from features to label
// and solves L[1:,1:] x = -label * L[1:,0] in the minimum-norm least-squares
// sense. The returned slice holds the smoothed labels of nodes 1..n-1.
func harmonicExtension(features []float64, sigma, label float64) ([]float64, error) {
	n := len(features)
	if n < 2 {
		return nil, nil
	}
	lap := gaussianLaplacian(features, sigma)

	m := n - 1
	sub := mat.NewSymDense(m, nil)
	rhs := make([]float64, m)
	for i := 0; i < m; i++ {
		rhs[i] = -label * lap.At(i+1, 0)
		for j := i; j < m; j++ {
			sub.SetSym(i, j, lap.At(i+1, j+1))
		}
	}
	return pinvSolve(sub, m, rhs)
}

// pinvSolve computes pinv(a) * b for a symmetric m x m matrix through its
// eigendecomposition, discarding eigenvalues below pinvRcond * max|lambda|.
func pinvSolve(a *mat.SymDense, m int, b []float64) ([]float64, error) {
	for i := 0; i < m; i++ {
		if math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			return nil, &SolveError{Size: m, Reason: "non-finite right-hand side"}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, &SolveError{Size: m, Reason: "eigendecomposition did not converge"}
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	maxAbs := 0.0
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	x := make([]float64, m)
	if maxAbs == 0 {
		return x, nil
	}
	cutoff := pinvRcond * maxAbs

	for k, lambda := range values {
		if math.Abs(lambda) <= cutoff {
			continue
		}
		var proj float64
		for i := 0; i < m; i++ {
			proj += vectors.At(i, k) * b[i]
		}
		coef := proj / lambda
		for i := 0; i < m; i++ {
			x[i] += coef * vectors.At(i, k)
		}
	}

	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &SolveError{Size: m, Reason: "non-finite solution"}
		}
	}
	return x, nil
}
