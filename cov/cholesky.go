package cov

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/mehdirezaie/flask/report"
)

// Triangles holds the lower-triangular Cholesky factors L(l) L(l)^T = M(l)
// for l in [Lmin, Lmax].
type Triangles struct {
	N          int
	Lmin, Lmax int
	L          []*mat.TriDense // indexed by l-Lmin
}

// Factor Cholesky-decomposes every matrix with l in [lmin, lmax]. Failures
// are counted and reported per l; any failure makes the whole call fail
// after all multipoles were tried, matching the diagnostics of the
// covariance preparation stage.
func (st *Stack) Factor(rep *report.Reporter, lmin, lmax int) (*Triangles, error) {
	tr := &Triangles{
		N:    st.N,
		Lmin: lmin,
		Lmax: lmax,
		L:    make([]*mat.TriDense, lmax-lmin+1),
	}
	failed := make([]bool, lmax-lmin+1)

	var g errgroup.Group
	for l := lmin; l <= lmax; l++ {
		l := l
		g.Go(func() error {
			var chol mat.Cholesky
			if !chol.Factorize(st.M[l]) {
				failed[l-lmin] = true
				return nil
			}
			lower := mat.NewTriDense(st.N, mat.Lower, nil)
			chol.LTo(lower)
			tr.L[l-lmin] = lower
			return nil
		})
	}
	g.Wait()

	nfail := 0
	for k, bad := range failed {
		if bad {
			rep.Warnf("Cholesky decomposition failed: cov. matrix for "+
				"l=%d is not positive-definite", lmin+k)
			nfail++
		}
	}
	if nfail > 0 {
		return nil, report.Errorf(report.NumericalError,
			"Cholesky decomposition failed %d times", nfail)
	}
	return tr, nil
}

// At returns the factor of multipole l.
func (tr *Triangles) At(l int) *mat.TriDense { return tr.L[l-tr.Lmin] }

// MulVec computes out = L(l) x for the real vector x, using only the lower
// triangle. Used by the harmonic draw on the real and imaginary parts
// separately.
func (tr *Triangles) MulVec(l int, x, out []float64) {
	lower := tr.At(l)
	if len(x) != tr.N || len(out) != tr.N {
		panic("Shape error.")
	}
	for i := 0; i < tr.N; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += lower.At(i, j) * x[j]
		}
		out[i] = sum
	}
}
