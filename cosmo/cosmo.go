/*package cosmo evaluates the background cosmology needed by the
line-of-sight lensing integration: comoving distances in a w-CDM universe
and the convergence kernel for density slices.*/
package cosmo

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/interp"

	"github.com/mehdirezaie/flask/report"
)

const (
	// CLight is the speed of light in km/s.
	CLight = 299792.458
	// H100 is the Hubble constant in km/s/Mpc for h = 1; distances come
	// out in Mpc/h.
	H100 = 100.0

	zGridMax = 8.0
	zGridN   = 500
)

// Cosmology holds the background parameters and a cached comoving-distance
// table.
type Cosmology struct {
	OmegaM, OmegaL, OmegaK float64
	W                      float64
	GalDensity             float64

	dist interp.FritschButland
}

// New creates a Cosmology from the density parameters and the dark-energy
// equation of state. The curvature is 1 - OmegaM - OmegaL.
func New(omegaM, omegaL, w float64) (*Cosmology, error) {
	if omegaM <= 0 {
		return nil, report.Errorf(report.ConfigError,
			"OMEGA_m must be positive, got %g", omegaM)
	}
	c := &Cosmology{
		OmegaM: omegaM,
		OmegaL: omegaL,
		OmegaK: 1 - omegaM - omegaL,
		W:      w,
	}

	// Tabulate the radial comoving distance once; redshifts beyond the
	// grid are errors at the call sites that matter.
	zs := make([]float64, zGridN+1)
	ds := make([]float64, zGridN+1)
	for i := range zs {
		zs[i] = zGridMax * float64(i) / zGridN
		ds[i] = CLight / H100 * quad.Fixed(func(z float64) float64 {
			return 1 / c.E(z)
		}, 0, zs[i], 40, quad.Legendre{}, 0)
	}
	if err := c.dist.Fit(zs, ds); err != nil {
		return nil, report.Errorf(report.NumericalError,
			"I couldn't tabulate comoving distances: %s", err.Error())
	}
	return c, nil
}

// E evaluates H(z)/H0 for the w-CDM background.
func (c *Cosmology) E(z float64) float64 {
	a := 1 + z
	return math.Sqrt(c.OmegaM*a*a*a + c.OmegaK*a*a +
		c.OmegaL*math.Pow(a, 3*(1+c.W)))
}

// ComDist returns the radial comoving distance in Mpc/h.
func (c *Cosmology) ComDist(z float64) (float64, error) {
	if z < 0 || z > zGridMax {
		return 0, report.Errorf(report.DomainError,
			"z=%g is beyond the tabulated range [0, %g]", z, zGridMax)
	}
	return c.dist.Predict(z), nil
}

// TransverseDist converts a radial comoving distance into the transverse
// comoving distance, honouring curvature.
func (c *Cosmology) TransverseDist(chi float64) float64 {
	switch {
	case c.OmegaK == 0:
		return chi
	case c.OmegaK > 0:
		f := CLight / H100 / math.Sqrt(c.OmegaK)
		return f * math.Sinh(chi/f)
	default:
		f := CLight / H100 / math.Sqrt(-c.OmegaK)
		return f * math.Sin(chi/f)
	}
}

// KappaWeightByZ evaluates the lensing kernel for a lens at z and sources
// at zSource:
//
//	(3/2) (H0/c)^2 OmegaM (1+z) D(chi) D(chi_s - chi) / D(chi_s) * dChi/dz,
//
// with chi and chi_s the comoving distances of lens and source and D the
// transverse comoving distance.
func (c *Cosmology) KappaWeightByZ(z, zSource float64) (float64, error) {
	chiL, err := c.ComDist(z)
	if err != nil {
		return 0, err
	}
	chiS, err := c.ComDist(zSource)
	if err != nil {
		return 0, err
	}
	dChidz := CLight / H100 / c.E(z)
	h2c2 := H100 * H100 / (CLight * CLight)
	return 1.5 * h2c2 * c.OmegaM * (1 + z) *
		c.TransverseDist(chiL) * c.TransverseDist(chiS-chiL) /
		c.TransverseDist(chiS) * dChidz, nil
}
