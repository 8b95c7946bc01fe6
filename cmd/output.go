package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/mehdirezaie/flask/cov"
	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/healpix"
	"github.com/mehdirezaie/flask/maps"
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/spectra"
	"github.com/mehdirezaie/flask/table"
)

// enabled reports whether a path-valued config key is switched on.
func enabled(path string) bool { return path != "0" && path != "" }

func isTable(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".dat"
}

// writeFieldList dumps the (f, z) name pairs in registry order.
func writeFieldList(fname string, reg *fields.Registry) error {
	rows := make([][]float64, reg.NFields())
	for i := range rows {
		f, z := reg.Index2Name(i)
		rows[i] = []float64{float64(f), float64(z)}
	}
	return table.WriteRows(fname, nil, rows)
}

// writeSpectra writes the current state of every loaded spectrum, either as
// per-pair files under a prefix or as one table (path ending in ".dat")
// with columns following the input C(l) order. The table form requires a
// shared l grid across pairs.
func writeSpectra(path string, s *spectra.Set) error {
	reg := s.Registry()
	if !isTable(path) {
		for _, key := range s.Pairs() {
			sp := s.Get(key[0], key[1])
			fname := spectra.PairFileName(path, reg, sp.I, sp.J)
			if err := table.WriteColumns(fname, nil, sp.L, sp.Cl); err != nil {
				return err
			}
		}
		return nil
	}

	pairs := s.Pairs()
	first := s.Get(pairs[0][0], pairs[0][1])
	header := []string{"l"}
	cols := [][]float64{first.L}
	for _, key := range pairs {
		sp := s.Get(key[0], key[1])
		if len(sp.L) != len(first.L) {
			return report.Errorf(report.InputError,
				"cannot write a single C(l) table: the %s and %s spectra "+
					"have different l grids", reg.PairLabel(sp.I, sp.J),
				reg.PairLabel(first.I, first.J))
		}
		header = append(header, reg.PairLabel(sp.I, sp.J))
		cols = append(cols, sp.Cl)
	}
	return table.WriteColumns(path, header, cols...)
}

// pairDump returns a hook writing intermediate (x, y) products to per-pair
// files under the given prefix, or nil when the output is disabled.
func pairDump(prefix string, reg *fields.Registry) spectra.DumpFunc {
	if !enabled(prefix) {
		return nil
	}
	return func(i, j int, x, y []float64) error {
		return table.WriteColumns(
			spectra.PairFileName(prefix, reg, i, j), nil, x, y)
	}
}

func matrixRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// writeCovStack writes one matrix file per multipole in [lstart, lend],
// named <prefix>lNNN.dat.
func writeCovStack(prefix string, st *cov.Stack, lstart, lend int) error {
	for l := lstart; l <= lend; l++ {
		fname := fmt.Sprintf("%sl%s.dat", prefix, table.ZeroPad(l, lend))
		if err := table.WriteRows(fname, nil, matrixRows(st.M[l])); err != nil {
			return err
		}
	}
	return nil
}

// writeTriangles writes the Cholesky factors, one file per multipole.
func writeTriangles(prefix string, tri *cov.Triangles) error {
	for l := tri.Lmin; l <= tri.Lmax; l++ {
		fname := fmt.Sprintf("%sl%s.dat", prefix, table.ZeroPad(l, tri.Lmax))
		if err := table.WriteRows(fname, nil, matrixRows(tri.At(l))); err != nil {
			return err
		}
	}
	return nil
}

// writeAlms writes a coefficient table: l, m, then Re and Im columns per
// coefficient set. names must align with alms.
func writeAlms(fname string, names []string, alms []*harmonic.Alm) error {
	if len(names) != len(alms) {
		panic("writeAlms needs one name per coefficient set.")
	}
	header := []string{"l", "m"}
	for _, name := range names {
		header = append(header, "Re-"+name, "Im-"+name)
	}
	lmax := alms[0].Lmax
	rows := [][]float64{}
	for l := 0; l <= lmax; l++ {
		for m := 0; m <= l; m++ {
			row := []float64{float64(l), float64(m)}
			for i := range alms {
				v := alms[i].At(l, m)
				row = append(row, real(v), imag(v))
			}
			rows = append(rows, row)
		}
	}
	return table.WriteRows(fname, header, rows)
}

// writeMaps writes all field maps side by side with the pixel coordinates.
func writeMaps(fname string, reg *fields.Registry, p healpix.Pixelization,
	ms [][]float64) error {

	header := []string{"theta", "phi"}
	for i := 0; i < reg.NFields(); i++ {
		header = append(header, reg.Field(i).Name())
	}
	rows := make([][]float64, p.Npix())
	for pix := range rows {
		theta, phi := p.Center(pix)
		row := []float64{theta, phi}
		for i := range ms {
			row = append(row, ms[i][pix])
		}
		rows[pix] = row
	}
	return table.WriteRows(fname, header, rows)
}

// writeShearMaps writes gamma1 and gamma2 columns for every convergence
// field that has them.
func writeShearMaps(fname string, reg *fields.Registry, p healpix.Pixelization,
	gamma1, gamma2 map[int][]float64) error {

	header := []string{"theta", "phi"}
	idx := []int{}
	for i := 0; i < reg.NFields(); i++ {
		if _, ok := gamma1[i]; !ok {
			continue
		}
		idx = append(idx, i)
		name := reg.Field(i).Name()
		header = append(header, "gamma1-"+name, "gamma2-"+name)
	}
	if len(idx) == 0 {
		return report.Errorf(report.InputError,
			"no shear maps available for %s", fname)
	}
	rows := make([][]float64, p.Npix())
	for pix := range rows {
		theta, phi := p.Center(pix)
		row := []float64{theta, phi}
		for _, i := range idx {
			row = append(row, gamma1[i][pix], gamma2[i][pix])
		}
		rows[pix] = row
	}
	return table.WriteRows(fname, header, rows)
}

// writeRecovCls writes the cross spectra of all ordered pairs i <= j over
// the output l range.
func writeRecovCls(fname string, reg *fields.Registry,
	alms []*harmonic.Alm, lmin, lmax, mmax int) error {

	header := []string{"l"}
	cols := [][]float64{}
	ls := make([]float64, lmax-lmin+1)
	for l := lmin; l <= lmax; l++ {
		ls[l-lmin] = float64(l)
	}
	cols = append(cols, ls)
	for i := 0; i < reg.NFields(); i++ {
		for j := i; j < reg.NFields(); j++ {
			header = append(header, reg.PairLabel(i, j))
			cols = append(cols, harmonic.CrossCl(alms[i], alms[j], lmin,
				lmax, mmax))
		}
	}
	return table.WriteColumns(fname, header, cols...)
}

// writeStats prints the mean, std. dev., skewness and, for lognormal runs,
// the moment-matched gaussian mu, sigma and shift of every map.
func writeStats(w io.Writer, reg *fields.Registry, ms [][]float64,
	lognormal bool, only func(i int) bool) {

	fmt.Fprintf(w, "# FieldID%12s%12s%12s", "Mean", "Std.Dev.", "Skewness")
	if lognormal {
		fmt.Fprintf(w, "%12s%12s%12s", "gMU", "gSIGMA", "Shift")
	}
	fmt.Fprintln(w)
	for i := 0; i < reg.NFields(); i++ {
		if only != nil && !only(i) {
			continue
		}
		s := maps.Stats(ms[i])
		fmt.Fprintf(w, "%-9s%12.5g%12.5g%12.5g", reg.Field(i).Name(),
			s.Mean, s.StdDev, s.Skew)
		if lognormal {
			variance := s.StdDev * s.StdDev
			shift := maps.Moments2Shift(s.Mean, variance, s.Skew)
			gmu, gsigma := math.NaN(), math.NaN()
			if !math.IsNaN(shift) {
				gmu = maps.GMu(s.Mean, variance, shift)
				gsigma = maps.GSigma(s.Mean, variance, shift)
			}
			fmt.Fprintf(w, "%12.5g%12.5g%12.5g", gmu, gsigma, shift)
		}
		fmt.Fprintln(w)
	}
}

func statsToFile(fname string, reg *fields.Registry, ms [][]float64,
	lognormal bool, only func(i int) bool) error {

	f, err := os.Create(fname)
	if err != nil {
		return report.Errorf(report.ResourceError,
			"I couldn't create the stats file %s: %s", fname, err.Error())
	}
	defer f.Close()
	writeStats(f, reg, ms, lognormal, only)
	return nil
}

func fieldNames(reg *fields.Registry) []string {
	out := make([]string, reg.NFields())
	for i := range out {
		out[i] = reg.Field(i).Name()
	}
	return out
}
