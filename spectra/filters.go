package spectra

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"

	"github.com/mehdirezaie/flask/report"
)

// each runs f over every loaded spectrum in parallel. The spectra are
// disjoint, so f may mutate its argument freely.
func (s *Set) each(f func(sp *Spectrum) error) error {
	var g errgroup.Group
	for _, key := range s.order {
		sp := s.specs[key]
		g.Go(func() error { return f(sp) })
	}
	return g.Wait()
}

// Rescale multiplies every spectrum by a constant factor.
func (s *Set) Rescale(factor float64) {
	s.each(func(sp *Spectrum) error {
		for k := range sp.Cl {
			sp.Cl[k] *= factor
		}
		return nil
	})
}

// GaussianBeam smooths every spectrum with a Gaussian beam of the given
// width in arc-minutes: Cl -> Cl * exp(-l(l+1) sigma^2), sigma in radians.
func (s *Set) GaussianBeam(sigmaArcmin float64) {
	sigma := sigmaArcmin / 60 * math.Pi / 180
	sigma2 := sigma * sigma
	s.each(func(sp *Spectrum) error {
		for k, l := range sp.L {
			sp.Cl[k] *= math.Exp(-l * (l + 1) * sigma2)
		}
		return nil
	})
}

// ApplyPixelWindow multiplies every spectrum by W(l)^2, where wl is the
// pixel window sampled on the integer grid [0, 4 nside]. Values at
// fractional l come from monotone interpolation. Spectra extending past
// 4 nside get a warning and are damped with the last window value there.
func (s *Set) ApplyPixelWindow(wl []float64, nside int) error {
	lmax := 4 * nside
	if len(wl) != lmax+1 {
		return report.Errorf(report.InputError,
			"the pixel window has %d samples, expected %d (4 Nside + 1)",
			len(wl), lmax+1)
	}
	ls := make([]float64, len(wl))
	w2 := make([]float64, len(wl))
	for i := range wl {
		ls[i] = float64(i)
		w2[i] = wl[i] * wl[i]
	}
	var spline interp.FritschButland
	if err := spline.Fit(ls, w2); err != nil {
		return report.Errorf(report.NumericalError,
			"I couldn't fit the pixel window spline: %s", err.Error())
	}

	return s.each(func(sp *Spectrum) error {
		if sp.L[len(sp.L)-1] > float64(lmax) {
			s.rep.Warnf("the %s spectrum overshoots the pixel window "+
				"(l up to %g > 4 Nside = %d)",
				s.reg.PairLabel(sp.I, sp.J), sp.L[len(sp.L)-1], lmax)
		}
		for k, l := range sp.L {
			if l > float64(lmax) {
				sp.Cl[k] *= w2[lmax]
				continue
			}
			sp.Cl[k] *= spline.Predict(l)
		}
		return nil
	})
}

// Suppress applies the exponential high-l suppression
// Cl -> Cl * exp(-(l/lsup)^n).
func (s *Set) Suppress(lsup, n float64) {
	s.each(func(sp *Spectrum) error {
		for k, l := range sp.L {
			sp.Cl[k] *= math.Exp(-math.Pow(l/lsup, n))
		}
		return nil
	})
}
