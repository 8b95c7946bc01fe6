package harmonic

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mehdirezaie/flask/cov"
	"github.com/mehdirezaie/flask/report"
)

// RandOffset separates the seeds of the per-worker generators. Worker k
// draws from a stream seeded seed + k*RandOffset, so streams never overlap
// as long as seed < RandOffset-1 and the number of workers stays below 210
// (seed + (workers+1)*RandOffset < 2^31).
const RandOffset = 10000000

// MaxWorkers bounds the worker count so that the seed layout holds.
const MaxWorkers = 209

// CheckLayout verifies the seed-offset preconditions. Violations are config
// errors: fixing them requires a different RNDSEED or fewer threads.
func CheckLayout(seed int64, workers int) error {
	if seed < 0 {
		return report.Errorf(report.ConfigError, "RNDSEED must not be negative")
	}
	if seed >= RandOffset-1 {
		return report.Errorf(report.ConfigError,
			"RNDSEED=%d exceeds the generator offset %d, parallel streams "+
				"would overlap", seed, RandOffset)
	}
	if workers < 1 || workers > MaxWorkers {
		return report.Errorf(report.ConfigError,
			"the worker count %d is outside [1, %d]", workers, MaxWorkers)
	}
	if seed+int64(workers+1)*RandOffset >= math.MaxInt32 {
		return report.Errorf(report.ConfigError,
			"RNDSEED=%d with %d workers overflows the 31-bit seed space",
			seed, workers)
	}
	return nil
}

const oneOverSqr2 = 0.7071067811865475

// Draw fills one coefficient set per field with correlated Gaussian
// harmonic coefficients: for each (l, m) a standard-normal complex vector x
// is drawn and a_lm = L(l) x, with L the Cholesky triangles. The index
// j = l(l+1)/2 + m over l in [Lmin, Lmax] is split into one contiguous
// chunk per worker, and worker k only ever uses its own generator, seeded
// seed + k*RandOffset. Rerunning with the same seed and worker count is
// bit-identical.
func Draw(tri *cov.Triangles, nfields int, seed int64, workers int) ([]*Alm, error) {
	if err := CheckLayout(seed, workers); err != nil {
		return nil, err
	}

	alms := make([]*Alm, nfields)
	for i := range alms {
		alms[i] = NewAlm(tri.Lmax)
	}

	jmin := tri.Lmin * (tri.Lmin + 1) / 2
	jmax := tri.Lmax * (tri.Lmax + 3) / 2
	total := jmax - jmin + 1
	chunk := (total + workers - 1) / workers

	var wg sync.WaitGroup
	for k := 1; k <= workers; k++ {
		lo := jmin + (k-1)*chunk
		hi := lo + chunk - 1
		if hi > jmax {
			hi = jmax
		}
		if lo > hi {
			continue
		}
		wg.Add(1)
		go func(k, lo, hi int) {
			defer wg.Done()
			normal := distuv.Normal{
				Mu:    0,
				Sigma: 1,
				Src:   rand.NewSource(uint64(seed + int64(k)*RandOffset)),
			}

			xre := make([]float64, nfields)
			xim := make([]float64, nfields)
			yre := make([]float64, nfields)
			yim := make([]float64, nfields)
			for j := lo; j <= hi; j++ {
				l, m := LM(j)
				if m == 0 {
					// m=0 coefficients are real, so the real part gets all
					// the variance.
					for i := 0; i < nfields; i++ {
						xre[i], xim[i] = normal.Rand(), 0
					}
				} else {
					for i := 0; i < nfields; i++ {
						xre[i] = normal.Rand() * oneOverSqr2
						xim[i] = normal.Rand() * oneOverSqr2
					}
				}
				tri.MulVec(l, xre, yre)
				tri.MulVec(l, xim, yim)
				for i := 0; i < nfields; i++ {
					alms[i].Set(l, m, complex(yre[i], yim[i]))
				}
			}
		}(k, lo, hi)
	}
	wg.Wait()
	return alms, nil
}
