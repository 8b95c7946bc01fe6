/*package obs turns simulated density maps into observables: selection
functions, Poisson-sampled (or expected) galaxy counts, ellipticities and
the galaxy catalogue.*/
package obs

import (
	"golang.org/x/exp/rand"

	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/table"
)

// Selection evaluates the survey selection function, in galaxies per
// arcmin^2, for each density field and pixel. A prefix of "0" means a
// uniform selection equal to Scale.
type Selection struct {
	reg     *fields.Registry
	angular map[int][]float64
	// Scale is the overall density normalization (GALDENSITY).
	Scale float64
}

// LoadSelection reads per-field angular selection maps named
// <prefix>fAzB.dat (one pixel value per line) for every density field.
// prefix "0" yields a uniform selection.
func LoadSelection(prefix string, reg *fields.Registry, npix int, scale float64) (*Selection, error) {
	s := &Selection{reg: reg, angular: map[int][]float64{}, Scale: scale}
	if prefix == "0" {
		return s, nil
	}

	for i := 0; i < reg.NFields(); i++ {
		f := reg.Field(i)
		if f.Type != fields.Density {
			continue
		}
		fname := prefix + f.Name() + ".dat"
		rows, err := table.Load(fname)
		if err != nil {
			return nil, err
		}
		if len(rows[0]) != 1 {
			return nil, report.Errorf(report.InputError,
				"the selection map %s must have a single column", fname)
		}
		if len(rows) != npix {
			return nil, report.Errorf(report.InputError,
				"the selection function %s and the maps have different "+
					"numbers of pixels: %d vs %d", fname, len(rows), npix)
		}
		m := make([]float64, npix)
		for j, row := range rows {
			m[j] = row[0]
		}
		s.angular[i] = m
	}
	return s, nil
}

// At evaluates the selection of field i at pixel pix.
func (s *Selection) At(i, pix int) float64 {
	if m, ok := s.angular[i]; ok {
		return s.Scale * m[pix]
	}
	return s.Scale
}

// RandRedshift draws a source redshift inside the slice of field i. The
// thin selection model here is flat in redshift across the slice.
func (s *Selection) RandRedshift(gen *rand.Rand, i int) float64 {
	f := s.reg.Field(i)
	return f.ZMin + gen.Float64()*(f.ZMax-f.ZMin)
}
