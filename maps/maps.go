/*package maps turns harmonic coefficients into pixel maps and applies the
pixel-space parts of the pipeline: the lognormal exponentiation, the
homogeneous and Gaussian mean handling, per-map statistics, and the
line-of-sight integration of density into convergence.*/
package maps

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/healpix"
)

// Synthesize inverse-transforms one coefficient set per field into pixel
// maps, in parallel over fields.
func Synthesize(p healpix.Pixelization, alms []*harmonic.Alm) [][]float64 {
	out := make([][]float64, len(alms))
	var g errgroup.Group
	for i := range alms {
		i := i
		g.Go(func() error {
			out[i] = p.Alm2Map(alms[i])
			return nil
		})
	}
	g.Wait()
	return out
}

// Fill creates maps holding the constant value of each field mean; used by
// homogeneous realizations.
func Fill(npix int, means []float64) [][]float64 {
	out := make([][]float64, len(means))
	for i, mu := range means {
		m := make([]float64, npix)
		for j := range m {
			m[j] = mu
		}
		out[i] = m
	}
	return out
}

// AddMean shifts every pixel by the field mean; used by Gaussian
// realizations.
func AddMean(m []float64, mean float64) {
	if mean == 0 {
		return
	}
	for j := range m {
		m[j] += mean
	}
}

// Exponentiate converts a zero-mean auxiliary Gaussian map into the target
// shifted-lognormal field: with the unbiased variance var of the Gaussian
// pixels, every pixel g becomes
// (mean+shift) exp(-var/2) exp(g) - shift, which restores the target mean
// and keeps every pixel above -shift.
func Exponentiate(m []float64, mean, shift float64) {
	gvar := stat.Variance(m, nil)
	expmu := (mean + shift) / math.Exp(gvar/2)
	for j := range m {
		m[j] = expmu*math.Exp(m[j]) - shift
	}
}

// Moments holds the one-point statistics of a map.
type Moments struct {
	Mean, StdDev, Skew float64
}

// Stats computes mean, standard deviation and (population) skewness.
func Stats(m []float64) Moments {
	mean := stat.Mean(m, nil)
	varSum, skewSum := 0.0, 0.0
	for _, v := range m {
		d := v - mean
		varSum += d * d
		skewSum += d * d * d
	}
	n := float64(len(m))
	variance := varSum / n
	skew := skewSum / n / math.Pow(variance, 1.5)
	return Moments{Mean: mean, StdDev: math.Sqrt(variance), Skew: skew}
}

// Moments2Shift recovers the lognormal shift parameter from the first three
// moments: the skewness fixes y = exp(sigma_G^2) through
// (y+2) sqrt(y-1) = skew, and then shift = sqrt(var/(y-1)) - mean.
// Non-positive skewness has no lognormal solution and yields NaN.
func Moments2Shift(mean, variance, skew float64) float64 {
	if skew <= 0 || variance <= 0 {
		return math.NaN()
	}
	f := func(y float64) float64 { return (y + 2) * math.Sqrt(y-1) - skew }
	lo, hi := 1.0, 2.0
	for f(hi) < 0 {
		hi *= 2
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	y := (lo + hi) / 2
	return math.Sqrt(variance/(y-1)) - mean
}

// GMu returns the mean of the underlying Gaussian of a shifted-lognormal
// field with the given moments and shift.
func GMu(mean, variance, shift float64) float64 {
	m := mean + shift
	sigma2 := math.Log(1 + variance/(m*m))
	return math.Log(m) - sigma2/2
}

// GSigma returns the standard deviation of the underlying Gaussian.
func GSigma(mean, variance, shift float64) float64 {
	m := mean + shift
	return math.Sqrt(math.Log(1 + variance/(m*m)))
}
