package spectra

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/interp"

	"github.com/mehdirezaie/flask/math/dlt"
	"github.com/mehdirezaie/flask/report"
)

// badXi marks correlation-function samples whose Gaussianisation argument
// was non-positive. The run is aborted after the loop if any sample was
// marked.
const badXi = -666.0

// Resample puts every spectrum on the integer grid l = 0..lastl by monotone
// interpolation. l=0 is required by the Legendre transform and is set to
// zero. When the input starts above l=1, the dipole is linearly
// extrapolated from the two lowest samples if extrapDipole is set and left
// at zero otherwise; an input that reaches l=1 is interpolated there like
// any other multipole. Other l values outside the input range stay zero.
func (s *Set) Resample(lastl int, extrapDipole bool) error {
	return s.each(func(sp *Spectrum) error {
		var spline interp.FritschButland
		if err := spline.Fit(sp.L, sp.Cl); err != nil {
			return report.Errorf(report.NumericalError,
				"I couldn't interpolate the %s spectrum: %s",
				s.reg.PairLabel(sp.I, sp.J), err.Error())
		}
		lo, hi := sp.L[0], sp.L[len(sp.L)-1]

		cl := make([]float64, lastl+1)
		for l := 1; l <= lastl; l++ {
			fl := float64(l)
			if fl >= lo && fl <= hi {
				cl[l] = spline.Predict(fl)
			}
		}
		if extrapDipole && lo > 1 {
			cl[1] = extrapolateDipole(sp.L, sp.Cl)
		}

		sp.L = make([]float64, lastl+1)
		for l := range sp.L {
			sp.L[l] = float64(l)
		}
		sp.Cl = cl
		return nil
	})
}

// extrapolateDipole continues the low-l tail linearly down to l=1 using the
// two lowest samples. The spectra this is used on start above the dipole,
// so both samples exist (k >= 2 is checked at load time).
func extrapolateDipole(l, cl []float64) float64 {
	slope := (cl[1] - cl[0]) / (l[1] - l[0])
	return cl[0] + (1-l[0])*slope
}

// DumpFunc receives an intermediate (x, y) product of the pair (i, j).
// The hooks write per-pair files; distinct pairs never share a file, so
// they are called from the parallel workers directly.
type DumpFunc func(i, j int, x, y []float64) error

// Hooks bundles the optional intermediate outputs of Gaussianize.
type Hooks struct {
	OnXi  DumpFunc // lognormal correlation function
	OnGXi DumpFunc // associated gaussian correlation function
	OnGCl DumpFunc // associated gaussian C(l)
}

// Gaussianize converts every (resampled) lognormal spectrum to the spectrum
// of the associated Gaussian field through the Cl -> xi -> log(1 + xi/M) ->
// Cl round trip, where M = (mean_i+shift_i)(mean_j+shift_j). A non-positive
// log argument marks the sample, warns, and fails the whole run with a
// DomainError after every pair was processed.
func (s *Set) Gaussianize(tr *dlt.Transform, hooks Hooks) error {
	type failure struct{ i, j, count int }
	var mu sync.Mutex
	failures := []failure{}

	thetas := tr.Thetas()
	for k := range thetas {
		thetas[k] *= 180 / math.Pi
	}

	err := s.each(func(sp *Spectrum) error {
		if len(sp.Cl) != tr.Bandwidth() {
			panic("Spectrum was not resampled to the transform bandwidth.")
		}
		a := s.reg.Field(sp.I)
		b := s.reg.Field(sp.J)
		m := (a.Mean + a.Shift) * (b.Mean + b.Shift)

		xi := make([]float64, tr.NSamples())
		tr.Synthesize(sp.Cl, xi)
		if hooks.OnXi != nil {
			if err := hooks.OnXi(sp.I, sp.J, thetas, xi); err != nil {
				return err
			}
		}

		bad := 0
		for k := range xi {
			arg := 1 + xi[k]/m
			if arg <= 0 {
				xi[k] = badXi
				bad++
				continue
			}
			xi[k] = math.Log(arg)
		}
		if bad > 0 {
			mu.Lock()
			failures = append(failures, failure{sp.I, sp.J, bad})
			mu.Unlock()
		}
		if sp.I == sp.J && xi[0] < 0 {
			s.rep.Warnf("the %s auxiliary field variance is negative",
				s.reg.PairLabel(sp.I, sp.J))
		}
		if hooks.OnGXi != nil {
			if err := hooks.OnGXi(sp.I, sp.J, thetas, xi); err != nil {
				return err
			}
		}

		tr.Analyze(xi, sp.Cl)
		if hooks.OnGCl != nil {
			if err := hooks.OnGCl(sp.I, sp.J, sp.L, sp.Cl); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(failures) > 0 {
		// Report in input order so diagnostics are stable across runs.
		for _, key := range s.order {
			for _, f := range failures {
				if f.i == key[0] && f.j == key[1] {
					s.rep.Warnf("%s: %d xi samples lead to bad log "+
						"arguments, set to %g",
						s.reg.PairLabel(f.i, f.j), f.count, badXi)
				}
			}
		}
		return report.Errorf(report.DomainError,
			"Gaussianisation found bad log arguments in %d spectra",
			len(failures))
	}
	return nil
}

// LognormalCl converts one associated-Gaussian spectrum back to the
// lognormal spectrum with target mean product m: the inverse of the
// Gaussianize round trip. cl is replaced in place.
func LognormalCl(tr *dlt.Transform, cl []float64, m float64) {
	xi := make([]float64, tr.NSamples())
	tr.Synthesize(cl, xi)
	for k := range xi {
		xi[k] = (math.Exp(xi[k]) - 1) * m
	}
	tr.Analyze(xi, cl)
}
