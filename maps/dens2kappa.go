package maps

import (
	"golang.org/x/sync/errgroup"

	"github.com/mehdirezaie/flask/cosmo"
	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/report"
)

// IntegrateDensity interprets each density slice as a source shell and
// accumulates the convergence seen by sources at its upper edge from all
// slices of the same field at or below it, using the lensing kernel
// evaluated at each lens slice midpoint times the slice width. It returns
// one new convergence Field per density field (named Nf + f at the source
// slice upper edge) together with its map; the registry itself is left for
// the caller to augment. Density slices of a field are expected to be
// contiguous in redshift; gaps warn but do not stop the integration.
func IntegrateDensity(
	rep *report.Reporter, reg *fields.Registry, c *cosmo.Cosmology,
	ms [][]float64,
) ([]fields.Field, [][]float64, error) {
	n := reg.NFields()

	// Contiguity check, field by field.
	ndens := 0
	for _, f := range reg.FNames() {
		slices := reg.Slices(f)
		if reg.Field(slices[0]).Type != fields.Density {
			continue
		}
		ndens++
		for k := 1; k < len(slices); k++ {
			prev, cur := reg.Field(slices[k-1]), reg.Field(slices[k])
			if prev.ZMax != cur.ZMin {
				rep.Warnf("expecting sequential AND contiguous redshift "+
					"slices for galaxies, got %s then %s",
					prev.Name(), cur.Name())
			}
		}
	}
	if ndens == 0 {
		return nil, nil, report.Errorf(report.InputError,
			"no density field found for integrating")
	}
	rep.Infof("found %d density fields", ndens)

	// Tabulate the kernel: weight[i][j] applies the slice j lens to
	// sources at the upper edge of slice i.
	weight := make([][]float64, n)
	for i := 0; i < n; i++ {
		weight[i] = make([]float64, n)
		src := reg.Field(i)
		for j := 0; j < n; j++ {
			lens := reg.Field(j)
			w, err := c.KappaWeightByZ((lens.ZMin+lens.ZMax)/2, src.ZMax)
			if err != nil {
				return nil, nil, err
			}
			weight[i][j] = w * (lens.ZMax - lens.ZMin)
		}
	}

	nf := len(reg.FNames())
	newFields := []fields.Field{}
	newMaps := [][]float64{}
	var g errgroup.Group
	for i := 0; i < n; i++ {
		src := reg.Field(i)
		if src.Type != fields.Density {
			continue
		}
		slices := reg.Slices(src.F)
		// Lenses: all slices of the same f up to and including the source
		// slice.
		lenses := []int{}
		for _, m := range slices {
			lenses = append(lenses, m)
			if m == i {
				break
			}
		}

		out := make([]float64, len(ms[i]))
		newFields = append(newFields, fields.Field{
			F: nf + src.F, Z: src.Z,
			Type: fields.Convergence,
			// Integrated convergence applies to sources sitting sharply at
			// the end of the bin.
			ZMin: src.ZMax, ZMax: src.ZMax,
		})
		newMaps = append(newMaps, out)

		wrow := weight[i]
		g.Go(func() error {
			for pix := range out {
				sum := 0.0
				for _, m := range lenses {
					sum += wrow[m] * ms[m][pix]
				}
				out[pix] = sum
			}
			return nil
		})
	}
	g.Wait()
	return newFields, newMaps, nil
}
