package healpix

import (
	"math"
	"math/cmplx"

	"github.com/mehdirezaie/flask/harmonic"
)

// Alm2MapSpin2 performs the inverse spin-2 transform of pure E modes with
// identically zero B modes, returning the two shear component maps. The
// spin-2 harmonics are built from the scalar lambda_lm through the W and X
// functions:
//
//	W_lm = -(l(l+1) - 2 m^2/s^2) lambda_lm - 2 (x/s) dlambda_lm/dtheta
//	X_lm = (2m/s) (dlambda_lm/dtheta - (x/s) lambda_lm)
//
// scaled by 1/sqrt((l-1) l (l+1) (l+2)), with
//
//	q = -[ sum_l E_l0 W~_l0 + 2 sum_{m>0} W~_lm Re(E_lm e^{im phi}) ]
//	u = 2 sum_{l, m>0} X~_lm Im(E_lm e^{im phi}).
//
// Modes with l < 2 do not contribute.
func (p Pixelization) Alm2MapSpin2(almE *harmonic.Alm) (q, u []float64) {
	lmax := almE.Lmax
	q = make([]float64, p.Npix())
	u = make([]float64, p.Npix())
	lam := make([]float64, lmax+1)
	fq := make([]complex128, lmax+1)
	fu := make([]complex128, lmax+1)

	for _, r := range p.rings {
		x := r.Z
		s := math.Sqrt(1 - x*x)

		seed := 0.0
		for m := 0; m <= lmax; m++ {
			seed = lambdaTable(m, lmax, x, s, seed, lam)
			sumQ, sumU := complex(0, 0), complex(0, 0)
			for l := m; l <= lmax; l++ {
				if l < 2 {
					continue
				}
				fl, fm := float64(l), float64(m)
				norm := 1 / math.Sqrt((fl-1)*fl*(fl+1)*(fl+2))
				var lam1 float64
				if l > m {
					lam1 = lam[l-1]
				}
				dlam := dLambdaDTheta(l, m, x, s, lam[l], lam1)
				w := -(fl*(fl+1)-2*fm*fm/(s*s))*lam[l] - 2*(x/s)*dlam
				xf := (2 * fm / s) * (dlam - (x/s)*lam[l])
				sumQ += almE.At(l, m) * complex(norm*w, 0)
				sumU += almE.At(l, m) * complex(norm*xf, 0)
			}
			fq[m], fu[m] = sumQ, sumU
		}

		dphi := 2 * math.Pi / float64(r.Count)
		for j := 0; j < r.Count; j++ {
			phi := r.Phi0 + float64(j)*dphi
			e := cmplx.Exp(complex(0, phi))
			qv := -real(fq[0])
			uv := 0.0
			em := e
			for m := 1; m <= lmax; m++ {
				qv -= 2 * real(fq[m]*em)
				uv += 2 * imag(fu[m]*em)
				em *= e
			}
			q[r.First+j] = qv
			u[r.First+j] = uv
		}
	}
	return q, u
}

// Kappa2ShearE converts convergence harmonic coefficients into shear E-mode
// coefficients: gammaE_lm = sqrt((l+2)(l-1)/(l(l+1))) kappa_lm for l >= 2,
// zero below. It can run in place (out == klm).
func Kappa2ShearE(klm, out *harmonic.Alm) {
	if klm.Lmax != out.Lmax {
		panic("Kappa2ShearE needs matching lmax.")
	}
	for l := 0; l <= klm.Lmax; l++ {
		if l < 2 {
			for m := 0; m <= l; m++ {
				out.Set(l, m, 0)
			}
			continue
		}
		fl := float64(l)
		coeff := complex(math.Sqrt((fl+2)*(fl-1)/(fl*(fl+1))), 0)
		for m := 0; m <= l; m++ {
			out.Set(l, m, coeff*klm.At(l, m))
		}
	}
}
