package obs

import (
	"math/cmplx"

	"golang.org/x/exp/rand"
)

// GenEllip combines an intrinsic source ellipticity with the local reduced
// shear g = gamma / (1 - kappa). The intrinsic components are drawn as
// independent Gaussians of width sigma and redrawn until |e_s| < 1; the
// observed ellipticity follows the standard reduced-shear composition, with
// the strong-regime branch for |g| > 1.
func GenEllip(gen *rand.Rand, sigma, kappa, gamma1, gamma2 float64) (e1, e2 float64) {
	g := complex(gamma1, gamma2) / complex(1-kappa, 0)

	var es complex128
	if sigma > 0 {
		for {
			es = complex(gen.NormFloat64()*sigma, gen.NormFloat64()*sigma)
			if cmplx.Abs(es) < 1 {
				break
			}
		}
	}

	var e complex128
	if cmplx.Abs(g) <= 1 {
		e = (es + g) / (1 + cmplx.Conj(g)*es)
	} else {
		e = (1 + g*cmplx.Conj(es)) / (cmplx.Conj(es) + cmplx.Conj(g))
	}
	return real(e), imag(e)
}
