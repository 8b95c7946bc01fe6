/*package cov assembles, validates, regularises and factors the per-multipole
cross-covariance matrices of the auxiliary Gaussian fields. The Stack owns
one symmetric N x N matrix per multipole; the Cholesky triangles produced at
the end are what the harmonic draw consumes.*/
package cov

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/spectra"
)

// Stack is a sequence of N x N symmetric covariance matrices indexed by
// integer l in [0, NLs-1].
type Stack struct {
	N   int
	NLs int
	M   []*mat.SymDense
}

// Assemble builds the covariance stack from a Set whose spectra sit on the
// integer l grid [0, nls-1]. Entries with neither (i,j) nor (j,i) present
// are zeroed when allowMiss is set and are fatal otherwise. When both
// ordered pairs are present, the (i,j) samples win; a warning is emitted if
// the partners disagree beyond rounding.
func Assemble(s *spectra.Set, nls int, allowMiss bool) (*Stack, error) {
	reg := s.Registry()
	rep := s.Reporter()
	n := reg.NFields()
	st := &Stack{N: n, NLs: nls, M: make([]*mat.SymDense, nls)}
	for l := range st.M {
		st.M[l] = mat.NewSymDense(n, nil)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sp := s.Get(i, j)
			mirror := s.Get(j, i)
			switch {
			case sp == nil && mirror == nil:
				if !allowMiss {
					return nil, report.Errorf(report.InputError,
						"[%d, %d] could not be set because [%d, %d] was "+
							"not set either", i, j, j, i)
				}
				continue
			case sp == nil:
				sp = mirror
			case mirror != nil:
				if maxAbsDiff(sp.Cl, mirror.Cl) > symmetryTol*maxAbs(sp.Cl) {
					rep.Warnf("the %s and %s spectra disagree, using "+
						"the former", reg.PairLabel(i, j), reg.PairLabel(j, i))
				}
			}
			if len(sp.Cl) < nls {
				return nil, report.Errorf(report.InputError,
					"the %s spectrum has %d integer-l samples, need %d",
					reg.PairLabel(sp.I, sp.J), len(sp.Cl), nls)
			}
			for l := 0; l < nls; l++ {
				st.M[l].SetSym(i, j, sp.Cl[l])
			}
		}
	}
	return st, nil
}

const symmetryTol = 1e-10

func maxAbs(xs []float64) float64 {
	out := 0.0
	for _, x := range xs {
		out = math.Max(out, math.Abs(x))
	}
	return out
}

func maxAbsDiff(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	out := 0.0
	for i := 0; i < n; i++ {
		out = math.Max(out, math.Abs(xs[i]-ys[i]))
	}
	return out
}

// Validate checks the basic properties of the matrices for l in
// [lmin, lmax]: non-negative diagonals, non-zero diagonals (replaced by
// minDiagFrac times the smallest positive variance when configured), and
// |correlation| <= 1 (variances inflated by (1+badCorrFrac) when violated,
// re-checked, persistent violations warn).
func (st *Stack) Validate(rep *report.Reporter, lmin, lmax int,
	badCorrFrac, minDiagFrac float64) {
	minDiag := math.Inf(1)
	if minDiagFrac > 0 {
		for l := lmin; l <= lmax; l++ {
			for i := 0; i < st.N; i++ {
				v := st.M[l].At(i, i)
				if v > 0 && v < minDiag {
					minDiag = v
				}
			}
		}
	}

	for l := lmin; l <= lmax; l++ {
		m := st.M[l]
		for i := 0; i < st.N; i++ {
			if m.At(i, i) < 0 {
				rep.Warnf("cov. matrix (l=%d) element [%d, %d] is "+
					"negative", l, i, i)
			}
			if m.At(i, i) == 0 {
				if minDiagFrac > 0 && !math.IsInf(minDiag, 1) {
					m.SetSym(i, i, minDiagFrac*minDiag)
				} else {
					rep.Warnf("cov. matrix (l=%d) element [%d, %d] is "+
						"zero", l, i, i)
				}
			}
			for j := i + 1; j < st.N; j++ {
				rho := corr(m, i, j)
				if math.Abs(rho) <= 1 {
					continue
				}
				rep.Infof("cov. matrix (l=%d) element [%d, %d] results "+
					"in correlation %g, fudging variances with BADCORR_FRAC",
					l, i, j, rho)
				m.SetSym(i, i, m.At(i, i)*(1+badCorrFrac))
				m.SetSym(j, j, m.At(j, j)*(1+badCorrFrac))
				if rho = corr(m, i, j); math.Abs(rho) > 1 {
					rep.Warnf("BADCORR_FRAC could not fix the "+
						"correlation of (l=%d) [%d, %d]", l, i, j)
				}
			}
		}
	}
}

func corr(m *mat.SymDense, i, j int) float64 {
	return m.At(i, j) / math.Sqrt(m.At(i, i)*m.At(j, j))
}

// MaxCorrViolation returns the largest |correlation| excess over 1 across
// the given l range, for tests and diagnostics.
func (st *Stack) MaxCorrViolation(lmin, lmax int) float64 {
	out := 0.0
	for l := lmin; l <= lmax; l++ {
		for i := 0; i < st.N; i++ {
			for j := i + 1; j < st.N; j++ {
				if ex := math.Abs(corr(st.M[l], i, j)) - 1; ex > out {
					out = ex
				}
			}
		}
	}
	return out
}
