package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/table"
)

// testSetup writes a two-field (density + convergence) input set and
// returns the working directory.
func testSetup(t *testing.T, corr float64) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "fields.dat",
		"1 1 1.0 1.0 1 0.4 0.5\n"+
			"2 1 0.0 0.05 2 0.4 0.5\n")

	writeClFile := func(name string, amp float64) {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		defer f.Close()
		for l := 1; l <= 40; l++ {
			cl := amp / float64((l+1)*(l+1))
			fmt.Fprintf(f, "%d %.10g\n", l, cl)
		}
	}
	writeClFile("Cl-f1z1f1z1.dat", 0.01)
	writeClFile("Cl-f2z1f2z1.dat", 0.004)
	// The cross spectrum: corr * sqrt(C11 C22). Only (1,2) is provided;
	// (2,1) must be filled by symmetry.
	writeClFile("Cl-f1z1f2z1.dat", corr*math.Sqrt(0.01*0.004))

	return dir
}

func baseConfig(t *testing.T, dir, extra string) *Config {
	t.Helper()
	text := fmt.Sprintf(`
DIST:         LOGNORMAL
FIELDS_INFO:  %s
CL_PREFIX:    %s
LRANGE:       2 24
NSIDE:        16
RNDSEED:      42
NTHREADS:     2
POISSON:      1
GALDENSITY:   0.0001
`, filepath.Join(dir, "fields.dat"), filepath.Join(dir, "Cl-")) + extra

	fname := writeFile(t, dir, "flask.config", text)
	config := &Config{}
	require.NoError(t, config.ReadConfig(fname, nil, report.NewNop()))
	return config
}

func loadColumn(t *testing.T, fname string, col int) []float64 {
	t.Helper()
	rows, err := table.Load(fname)
	require.NoError(t, err)
	return table.Columns(rows)[col]
}

func TestRunLognormalEndToEnd(t *testing.T) {
	dir := testSetup(t, 0.5)
	mapOut := filepath.Join(dir, "map.dat")
	shearOut := filepath.Join(dir, "shear.dat")
	catalogOut := filepath.Join(dir, "catalog.dat")
	recovOut := filepath.Join(dir, "recov-cls.dat")

	config := baseConfig(t, dir, fmt.Sprintf(`
MAP_OUT:       %s
SHEAR_MAP_OUT: %s
CATALOG_OUT:   %s
RECOVCLS_OUT:  %s
ELLIP_SIGMA:   0.2
`, mapOut, shearOut, catalogOut, recovOut))

	require.NoError(t, Run(config, report.NewNop()))

	// Lognormal density: pixels above -shift, mean near the target.
	dens := loadColumn(t, mapOut, 2)
	require.Len(t, dens, 12*16*16)
	for _, v := range dens {
		assert.Greater(t, v, -1.0)
	}
	assert.InDelta(t, 1.0, stat.Mean(dens, nil), 0.15)

	// Convergence stays near zero but fluctuates.
	kappa := loadColumn(t, mapOut, 3)
	assert.InDelta(t, 0.0, stat.Mean(kappa, nil), 0.02)
	assert.Greater(t, stat.Variance(kappa, nil), 0.0)

	// Shear maps exist and carry signal.
	g1 := loadColumn(t, shearOut, 2)
	assert.Greater(t, stat.Variance(g1, nil), 0.0)

	// The recovered auto spectrum of the density field tracks the input
	// in band average (l in [4, 12], input 0.01/(l+1)^2).
	header, err := table.Header(recovOut)
	require.NoError(t, err)
	require.Equal(t, "l", header[0])
	require.Equal(t, "Cl-f1z1f1z1", header[1])
	ls := loadColumn(t, recovOut, 0)
	cl := loadColumn(t, recovOut, 1)
	got, want := 0.0, 0.0
	for k := range ls {
		if ls[k] >= 4 && ls[k] <= 12 {
			got += cl[k]
			want += 0.01 / ((ls[k] + 1) * (ls[k] + 1))
		}
	}
	assert.InDelta(t, want, got, 0.5*want,
		"band-averaged recovered C(l) tracks the input")

	// The catalogue has a header and one row per galaxy.
	bs, err := os.ReadFile(catalogOut)
	require.NoError(t, err)
	assert.Greater(t, len(bs), 100)
}

func TestRunReproducible(t *testing.T) {
	read := func() []byte {
		dir := testSetup(t, 0.5)
		mapOut := filepath.Join(dir, "map.dat")
		config := baseConfig(t, dir, "MAP_OUT: "+mapOut+"\nEXIT_AT: MAP_OUT\n")
		require.NoError(t, Run(config, report.NewNop()))
		bs, err := os.ReadFile(mapOut)
		require.NoError(t, err)
		return bs
	}
	assert.Equal(t, read(), read(),
		"identical seed and worker count give identical maps")
}

func TestRunBadCorrelation(t *testing.T) {
	// |corr| > 1 in the input: BADCORR_FRAC=0.1 absorbs it, 0.0 leaves an
	// indefinite covariance that the regulariser refuses to rewrite. The
	// runs are Gaussian so that the input correlation reaches the
	// covariance unchanged; the lognormal transform would alter it.
	dir := testSetup(t, 1.1)
	config := baseConfig(t, dir, "BADCORR_FRAC: 0.1\nEXIT_AT: AUXALM_OUT\n")
	config.Dist = Gaussian
	assert.NoError(t, Run(config, report.NewNop()))

	dir = testSetup(t, 1.1)
	config = baseConfig(t, dir, "REG_MAXSTEPS: 50\nEXIT_AT: AUXALM_OUT\n")
	config.Dist = Gaussian
	err := Run(config, report.NewNop())
	require.Error(t, err)
	kind, ok := report.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, report.NumericalError, kind)
}

func TestRunExitAt(t *testing.T) {
	dir := testSetup(t, 0.5)
	covPrefix := filepath.Join(dir, "cov-")
	mapOut := filepath.Join(dir, "map.dat")
	config := baseConfig(t, dir, fmt.Sprintf(`
COVL_PREFIX: %s
MAP_OUT:     %s
EXIT_AT:     COVL_PREFIX
`, covPrefix, mapOut))

	require.NoError(t, Run(config, report.NewNop()))
	_, err := os.Stat(covPrefix + "l02.dat")
	assert.NoError(t, err, "the covariance stage ran")
	_, err = os.Stat(mapOut)
	assert.Error(t, err, "the pipeline stopped before the map stage")
}

func TestRunHomogeneous(t *testing.T) {
	dir := testSetup(t, 0.5)
	mapWer := filepath.Join(dir, "mapwer.dat")
	text := fmt.Sprintf(`
DIST:        HOMOGENEOUS
FIELDS_INFO: %s
LRANGE:      2 8
NSIDE:       4
NTHREADS:    2
POISSON:     0
GALDENSITY:  0.001
MAPWER_OUT:  %s
EXIT_AT:     MAPWER_OUT
`, filepath.Join(dir, "fields.dat"), mapWer)
	fname := writeFile(t, dir, "homog.config", text)
	config := &Config{}
	require.NoError(t, config.ReadConfig(fname, nil, report.NewNop()))
	require.NoError(t, Run(config, report.NewNop()))

	// Expected counts: galdensity * (1 + mean) * pixel area * dz, the same
	// in every pixel.
	counts := loadColumn(t, mapWer, 2)
	area := 1.4851066049791e8 / float64(12*4*4)
	want := 0.001 * 2 * area * 0.1
	for _, v := range counts {
		assert.InDelta(t, want, v, 1e-6*want)
	}
	// Convergence is left at its mean.
	kappa := loadColumn(t, mapWer, 3)
	for _, v := range kappa {
		assert.Equal(t, 0.0, v)
	}
}

func TestRunGaussianAddsMean(t *testing.T) {
	dir := testSetup(t, 0.5)
	mapOut := filepath.Join(dir, "gauss-map.dat")
	config := baseConfig(t, dir, fmt.Sprintf(`
MAP_OUT: %s
EXIT_AT: MAP_OUT
`, mapOut))
	config.Dist = Gaussian

	require.NoError(t, Run(config, report.NewNop()))
	dens := loadColumn(t, mapOut, 2)
	assert.InDelta(t, 1.0, stat.Mean(dens, nil), 0.15)
	// Gaussian fields are symmetric around the mean, so a sizeable share
	// of the pixels falls below it.
	low := 0
	for _, v := range dens {
		if v < 1 {
			low++
		}
	}
	assert.Greater(t, low, len(dens)/4)
}

func TestRunMissingCrossSpectrum(t *testing.T) {
	dir := testSetup(t, 0.5)
	require.NoError(t, os.Remove(filepath.Join(dir, "Cl-f1z1f2z1.dat")))

	config := baseConfig(t, dir, "EXIT_AT: AUXALM_OUT\n")
	err := Run(config, report.NewNop())
	require.Error(t, err, "a fully missing pair is fatal without "+
		"ALLOW_MISS_CL")

	dir = testSetup(t, 0.5)
	require.NoError(t, os.Remove(filepath.Join(dir, "Cl-f1z1f2z1.dat")))
	config = baseConfig(t, dir, "ALLOW_MISS_CL: 1\nEXIT_AT: AUXALM_OUT\n")
	assert.NoError(t, Run(config, report.NewNop()))
}
