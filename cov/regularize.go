package cov

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/mehdirezaie/flask/report"
)

// regNudge is the per-step multiplicative diagonal inflation used by the
// regulariser. It is chosen so that round-off-level indefiniteness is fixed
// in a couple of steps while genuinely indefinite matrices exhaust
// REG_MAXSTEPS instead of being silently rewritten.
const regNudge = 1e-6

// Regularize nudges a towards positive-definiteness by inflating its
// diagonal in small multiplicative steps until a Cholesky factorisation
// succeeds, up to maxSteps steps. It returns the maximum per-entry
// fractional change and the number of steps taken. When maxSteps is reached
// without success the returned error is a NumericalError with status
// "exceeded"; a is left at its last (still indefinite) state.
func Regularize(a *mat.SymDense, maxSteps int) (maxFrac float64, steps int, err error) {
	n := a.SymmetricDim()
	var chol mat.Cholesky

	for steps = 0; ; steps++ {
		if chol.Factorize(a) {
			break
		}
		if steps == maxSteps {
			return maxFrac, steps, report.Errorf(report.NumericalError,
				"regularisation exceeded REG_MAXSTEPS=%d with max. "+
					"change of %g", maxSteps, maxFrac)
		}
		for i := 0; i < n; i++ {
			a.SetSym(i, i, a.At(i, i)*(1+regNudge))
		}
		maxFrac = math.Pow(1+regNudge, float64(steps+1)) - 1
	}
	return maxFrac, steps, nil
}

// RegularizeRange regularises every matrix with l in [lstart, lend] in
// parallel and returns the per-l maximum fractional changes, indexed by
// l-lstart. Any l exceeding the step limit fails the whole call after every
// matrix was processed, naming the worst offender.
func (st *Stack) RegularizeRange(rep *report.Reporter,
	lstart, lend, maxSteps int) ([]float64, error) {
	maxFrac := make([]float64, lend-lstart+1)
	failed := make([]bool, lend-lstart+1)

	var g errgroup.Group
	for l := lstart; l <= lend; l++ {
		l := l
		g.Go(func() error {
			frac, _, err := Regularize(st.M[l], maxSteps)
			maxFrac[l-lstart] = frac
			if err != nil {
				failed[l-lstart] = true
			}
			return nil
		})
	}
	g.Wait()

	nfail := 0
	for k, bad := range failed {
		if bad {
			rep.Warnf("regularisation for l=%d reached REG_MAXSTEPS "+
				"with max. change of %g", lstart+k, maxFrac[k])
			nfail++
		}
	}
	if nfail > 0 {
		return maxFrac, report.Errorf(report.NumericalError,
			"failed to regularise %d covariance matrices", nfail)
	}
	return maxFrac, nil
}

// MinEigenvalue returns the smallest eigenvalue of the l-th matrix.
func (st *Stack) MinEigenvalue(l int) float64 {
	var eig mat.EigenSym
	if !eig.Factorize(st.M[l], false) {
		panic("EigenSym failed to factorize a symmetric matrix.")
	}
	values := eig.Values(nil)
	min := math.Inf(1)
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
