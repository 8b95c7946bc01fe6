package healpix

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/table"
)

// LoadWindow reads a tabulated pixel window W(l) from a two-column (l, W)
// text file and resamples it onto the integer grid [0, 4 Nside]. The table
// must cover the whole grid.
func LoadWindow(fname string, nside int) ([]float64, error) {
	rows, err := table.Load(fname)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) != 2 {
		return nil, report.Errorf(report.InputError,
			"the pixel window file %s has %d columns, want 2 (l, W)",
			fname, len(rows[0]))
	}
	cols := table.Columns(rows)
	lmax := 4 * nside
	if cols[0][0] > 0 || cols[0][len(cols[0])-1] < float64(lmax) {
		return nil, report.Errorf(report.InputError,
			"the pixel window in %s covers l in [%g, %g], need [0, %d]",
			fname, cols[0][0], cols[0][len(cols[0])-1], lmax)
	}

	var spline interp.FritschButland
	if err := spline.Fit(cols[0], cols[1]); err != nil {
		return nil, report.Errorf(report.NumericalError,
			"I couldn't interpolate the pixel window: %s", err.Error())
	}
	out := make([]float64, lmax+1)
	for l := range out {
		out[l] = spline.Predict(float64(l))
	}
	return out, nil
}

// ApproxWindow returns a Gaussian approximation of the pixel window on
// [0, 4 Nside]: a beam whose full width at half maximum equals the pixel
// scale sqrt(4 pi / Npix).
func ApproxWindow(nside int) []float64 {
	npix := float64(12 * nside * nside)
	fwhm := math.Sqrt(4 * math.Pi / npix)
	sigma := fwhm / math.Sqrt(8*math.Ln2)
	out := make([]float64, 4*nside+1)
	for l := range out {
		fl := float64(l)
		out[l] = math.Exp(-fl * (fl + 1) * sigma * sigma / 2)
	}
	return out
}
