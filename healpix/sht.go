package healpix

import (
	"math"
	"math/cmplx"

	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/report"
)

// Alm2Map performs the inverse scalar transform: it evaluates the field
// described by alm at every pixel center.
func (p Pixelization) Alm2Map(alm *harmonic.Alm) []float64 {
	lmax := alm.Lmax
	out := make([]float64, p.Npix())
	lam := make([]float64, lmax+1)
	fm := make([]complex128, lmax+1)

	for _, r := range p.rings {
		x := r.Z
		s := math.Sqrt(1 - x*x)

		// Per-ring m sums F_m = sum_l a_lm lambda_lm(x).
		seed := 0.0
		for m := 0; m <= lmax; m++ {
			seed = lambdaTable(m, lmax, x, s, seed, lam)
			sum := complex(0, 0)
			for l := m; l <= lmax; l++ {
				sum += alm.At(l, m) * complex(lam[l], 0)
			}
			fm[m] = sum
		}

		dphi := 2 * math.Pi / float64(r.Count)
		for j := 0; j < r.Count; j++ {
			phi := r.Phi0 + float64(j)*dphi
			e := cmplx.Exp(complex(0, phi))
			val := real(fm[0])
			em := e
			for m := 1; m <= lmax; m++ {
				val += 2 * real(fm[m]*em)
				em *= e
			}
			out[r.First+j] = val
		}
	}
	return out
}

// Map2Alm performs the forward scalar transform by ring quadrature:
// a_lm = sum_p f(p) conj(Y_lm(p)) dOmega, optionally weighting each ring.
// weights, when non-nil, must have 2 Nside entries; entry i applies to ring
// i+1 and to its southern mirror, matching the usual ring-weight layout.
func (p Pixelization) Map2Alm(m []float64, lmax int, weights []float64) (*harmonic.Alm, error) {
	if len(m) != p.Npix() {
		return nil, report.Errorf(report.InputError,
			"the map has %d pixels but the pixelization needs %d",
			len(m), p.Npix())
	}
	if weights != nil && len(weights) != 2*p.Nside {
		return nil, report.Errorf(report.InputError,
			"ring weights have %d entries, expected %d", len(weights),
			2*p.Nside)
	}

	alm := harmonic.NewAlm(lmax)
	domega := p.SolidAngle()
	lam := make([]float64, lmax+1)
	gm := make([]complex128, lmax+1)

	for ri, r := range p.rings {
		x := r.Z
		s := math.Sqrt(1 - x*x)
		w := 1.0
		if weights != nil {
			k := ri
			if k >= 2*p.Nside {
				k = len(p.rings) - 1 - ri
			}
			w = weights[k]
		}

		// G_m = sum_j f_j exp(-i m phi_j).
		for mi := 0; mi <= lmax; mi++ {
			gm[mi] = 0
		}
		dphi := 2 * math.Pi / float64(r.Count)
		for j := 0; j < r.Count; j++ {
			f := m[r.First+j]
			phi := r.Phi0 + float64(j)*dphi
			e := cmplx.Exp(complex(0, -phi))
			em := complex(1, 0)
			for mi := 0; mi <= lmax; mi++ {
				gm[mi] += complex(f, 0) * em
				em *= e
			}
		}

		seed := 0.0
		for mi := 0; mi <= lmax; mi++ {
			seed = lambdaTable(mi, lmax, x, s, seed, lam)
			for l := mi; l <= lmax; l++ {
				alm.Set(l, mi, alm.At(l, mi)+
					complex(lam[l]*w*domega, 0)*gm[mi])
			}
		}
	}

	// The m=0 column is real for a real field; drop the quadrature noise in
	// the imaginary part.
	for l := 0; l <= lmax; l++ {
		alm.Set(l, 0, complex(real(alm.At(l, 0)), 0))
	}
	return alm, nil
}

// UnitRingWeights returns the trivial weight array (all ones).
func UnitRingWeights(nside int) []float64 {
	w := make([]float64, 2*nside)
	for i := range w {
		w[i] = 1
	}
	return w
}
