package obs

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/healpix"
	"github.com/mehdirezaie/flask/report"
)

// CatalogOptions selects the catalogue columns and conventions.
type CatalogOptions struct {
	// Cols is the ordered list of column names; the recognised ones are
	// theta, phi, z, galtype, kappa, gamma1, gamma2, ellip1, ellip2,
	// pixel.
	Cols []string
	// EllipSigma is the per-component intrinsic ellipticity dispersion.
	EllipSigma float64
	// AngularCoord selects 0: theta/phi in radians, 1: theta/phi in
	// degrees, 2: RA/DEC in degrees.
	AngularCoord int
}

var catalogCols = map[string]bool{
	"theta": true, "phi": true, "z": true, "galtype": true, "kappa": true,
	"gamma1": true, "gamma2": true, "ellip1": true, "ellip2": true,
	"pixel": true,
}

func colPos(name string, cols []string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// WriteCatalog emits one galaxy per unit of the observed count maps. Counts
// must already be in galaxies per pixel (the Observe output). Positions are
// drawn inside each pixel and redshifts inside each slice with the serial
// worker-0 generator, so the catalogue is reproducible at fixed seed.
// Lensing columns come from the convergence field sharing the galaxy's z
// name; gamma1 and gamma2 are looked up in the shear map tables keyed by
// field index.
func WriteCatalog(
	rep *report.Reporter, fname string, reg *fields.Registry,
	ms [][]float64, gamma1, gamma2 map[int][]float64, sel *Selection,
	p healpix.Pixelization, gen *rand.Rand, opt CatalogOptions,
) error {
	for _, c := range opt.Cols {
		if !catalogCols[c] {
			return report.Errorf(report.ConfigError,
				"unknown CATALOG_COLS entry '%s'", c)
		}
	}
	thetaPos := colPos("theta", opt.Cols)
	phiPos := colPos("phi", opt.Cols)
	zPos := colPos("z", opt.Cols)
	galtypePos := colPos("galtype", opt.Cols)
	kappaPos := colPos("kappa", opt.Cols)
	gamma1Pos := colPos("gamma1", opt.Cols)
	gamma2Pos := colPos("gamma2", opt.Cols)
	ellip1Pos := colPos("ellip1", opt.Cols)
	ellip2Pos := colPos("ellip2", opt.Cols)
	pixelPos := colPos("pixel", opt.Cols)

	needLensing := kappaPos != -1 || gamma1Pos != -1 || gamma2Pos != -1 ||
		ellip1Pos != -1 || ellip2Pos != -1
	lensOf := lensingPartners(rep, reg)
	if needLensing && len(lensOf) == 0 {
		rep.Warnf("lensing output requested but no convergence field " +
			"was supplied")
	}

	f, err := os.Create(fname)
	if err != nil {
		return report.Errorf(report.ResourceError,
			"I couldn't create the catalogue file %s: %s", fname, err.Error())
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	header := append([]string{}, opt.Cols...)
	if opt.AngularCoord == 2 {
		for i, c := range header {
			if c == "theta" {
				header[i] = "dec"
			}
			if c == "phi" {
				header[i] = "ra"
			}
		}
	}
	fmt.Fprintf(w, "# %s\n", strings.Join(header, " "))

	row := make([]float64, len(opt.Cols))
	// Cells are visited slice by slice and pixel by pixel, matching the
	// stable output ordering of the rest of the pipeline.
	for _, z := range zNames(reg) {
		for pix := 0; pix < p.Npix(); pix++ {
			for i := 0; i < reg.NFields(); i++ {
				fld := reg.Field(i)
				if fld.Type != fields.Density || fld.Z != z {
					continue
				}
				n := int(ms[i][pix])
				lens := -1
				if li, ok := lensOf[z]; ok {
					lens = li
				}
				for g := 0; g < n; g++ {
					theta, phi := p.RandInPix(gen, pix)
					set(row, thetaPos, theta)
					set(row, phiPos, phi)
					set(row, zPos, sel.RandRedshift(gen, i))
					set(row, galtypePos, float64(fld.F))
					set(row, pixelPos, float64(pix))
					if lens != -1 {
						kappa := ms[lens][pix]
						var g1, g2 float64
						if m, ok := gamma1[lens]; ok {
							g1 = m[pix]
						}
						if m, ok := gamma2[lens]; ok {
							g2 = m[pix]
						}
						set(row, kappaPos, kappa)
						set(row, gamma1Pos, g1)
						set(row, gamma2Pos, g2)
						if ellip1Pos != -1 || ellip2Pos != -1 {
							e1, e2 := GenEllip(gen, opt.EllipSigma, kappa, g1, g2)
							set(row, ellip1Pos, e1)
							set(row, ellip2Pos, e2)
						}
					}
					convertCoords(row, thetaPos, phiPos, opt.AngularCoord)
					for c, v := range row {
						if c > 0 {
							w.WriteByte(' ')
						}
						fmt.Fprintf(w, "%.8g", v)
					}
					w.WriteByte('\n')
				}
			}
		}
	}
	if err := w.Flush(); err != nil {
		return report.Errorf(report.ResourceError,
			"I couldn't write the catalogue file %s: %s", fname, err.Error())
	}
	return nil
}

func set(row []float64, pos int, v float64) {
	if pos != -1 {
		row[pos] = v
	}
}

func convertCoords(row []float64, thetaPos, phiPos, coordType int) {
	switch coordType {
	case 1:
		if thetaPos != -1 {
			row[thetaPos] *= 180 / math.Pi
		}
		if phiPos != -1 {
			row[phiPos] *= 180 / math.Pi
		}
	case 2:
		if thetaPos != -1 {
			row[thetaPos] = (math.Pi/2 - row[thetaPos]) * 180 / math.Pi
		}
		if phiPos != -1 {
			row[phiPos] *= 180 / math.Pi
		}
	}
}

// lensingPartners maps each z name to the convergence field carrying the
// lensing signal for galaxies in that slice. Multiple convergence fields at
// the same z warn and keep the first.
func lensingPartners(rep *report.Reporter, reg *fields.Registry) map[int]int {
	out := map[int]int{}
	for i := 0; i < reg.NFields(); i++ {
		f := reg.Field(i)
		if f.Type != fields.Convergence {
			continue
		}
		if _, dup := out[f.Z]; dup {
			rep.Warnf("found multiple convergence fields for z name %d, "+
				"not sure which to use; keeping the first", f.Z)
			continue
		}
		out[f.Z] = i
	}
	return out
}

func zNames(reg *fields.Registry) []int {
	seen := map[int]bool{}
	out := []int{}
	for i := 0; i < reg.NFields(); i++ {
		z := reg.Field(i).Z
		if !seen[z] {
			seen[z] = true
			out = append(out, z)
		}
	}
	sort.Ints(out)
	return out
}
