package obs

import (
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/report"
)

// fullSkyArcmin2 is 4 pi steradians expressed in arcmin^2.
const fullSkyArcmin2 = 1.4851066049791e8

// Observe converts every density-contrast map into galaxy counts per pixel,
// in place: counts = selection * (1 + delta) * dOmega dz, Poisson-sampled
// when poisson is set and left as expected values otherwise. Pixels with
// delta < -1 have delta reset to 0 (the mean density) first, and the reset
// fraction is reported. The Poisson draw uses the same per-worker seed layout as the
// harmonic draw, so runs are reproducible at fixed worker count.
func Observe(
	rep *report.Reporter, ms [][]float64, reg *fields.Registry,
	sel *Selection, poisson bool, seed int64, workers int,
) error {
	if err := harmonic.CheckLayout(seed, workers); err != nil {
		return err
	}
	npix := len(ms[0])
	dOmega := fullSkyArcmin2 / float64(npix)

	for i := 0; i < reg.NFields(); i++ {
		f := reg.Field(i)
		if f.Type != fields.Density {
			continue
		}
		dwdz := dOmega * (f.ZMax - f.ZMin)
		m := ms[i]

		clamped := make([]int, workers+1)
		chunk := (npix + workers - 1) / workers
		var wg sync.WaitGroup
		for k := 1; k <= workers; k++ {
			lo := (k - 1) * chunk
			hi := lo + chunk
			if hi > npix {
				hi = npix
			}
			if lo >= hi {
				continue
			}
			wg.Add(1)
			go func(k, lo, hi int) {
				defer wg.Done()
				src := rand.NewSource(uint64(seed + int64(k)*harmonic.RandOffset))
				for j := lo; j < hi; j++ {
					if m[j] < -1 {
						clamped[k]++
						m[j] = 0
					}
					lambda := sel.At(i, j) * (1 + m[j]) * dwdz
					if !poisson {
						m[j] = lambda
						continue
					}
					if lambda <= 0 {
						m[j] = 0
						continue
					}
					m[j] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
				}
			}(k, lo, hi)
		}
		wg.Wait()

		total := 0
		for _, c := range clamped {
			total += c
		}
		if total > 0 {
			rep.Infof("%s: negative density fraction (set to 0): %.2f%%",
				f.Name(), float64(total)/float64(npix)*100)
		}
	}
	return nil
}
