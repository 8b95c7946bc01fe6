package maps

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/mehdirezaie/flask/cosmo"
	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/harmonic"
	"github.com/mehdirezaie/flask/healpix"
	"github.com/mehdirezaie/flask/report"
)

func TestFillAndAddMean(t *testing.T) {
	ms := Fill(12, []float64{1.5, 0})
	require.Len(t, ms, 2)
	for _, v := range ms[0] {
		assert.Equal(t, 1.5, v)
	}

	AddMean(ms[1], 2)
	for _, v := range ms[1] {
		assert.Equal(t, 2.0, v)
	}
}

func TestSynthesize(t *testing.T) {
	p, err := healpix.New(4)
	require.NoError(t, err)
	a0 := harmonic.NewAlm(2)
	a0.Set(0, 0, complex(math.Sqrt(4*math.Pi), 0))
	a1 := harmonic.NewAlm(2)

	ms := Synthesize(p, []*harmonic.Alm{a0, a1})
	require.Len(t, ms, 2)
	assert.InDelta(t, 1.0, ms[0][7], 1e-12)
	assert.Equal(t, 0.0, ms[1][7])
}

func TestExponentiate(t *testing.T) {
	// A large Gaussian sample: the exponentiated pixels must recover the
	// target mean, stay above -shift, and skew positive.
	gen := rand.New(rand.NewSource(5))
	m := make([]float64, 200000)
	for i := range m {
		m[i] = 0.4 * gen.NormFloat64()
	}

	mean, shift := 1.0, 1.0
	Exponentiate(m, mean, shift)

	assert.InDelta(t, mean, stat.Mean(m, nil), 0.01)
	min := m[0]
	for _, v := range m {
		if v < min {
			min = v
		}
	}
	assert.Greater(t, min, -shift)
	assert.Greater(t, Stats(m).Skew, 0.0)
}

func TestStats(t *testing.T) {
	m := []float64{1, 1, 1, 1}
	s := Stats(m)
	assert.Equal(t, 1.0, s.Mean)
	assert.Equal(t, 0.0, s.StdDev)

	// A right-skewed sample.
	m = []float64{0, 0, 0, 10}
	assert.Greater(t, Stats(m).Skew, 0.0)
}

func TestMoments2Shift(t *testing.T) {
	// Construct moments of a shifted lognormal analytically and invert.
	sigma2 := 0.25
	y := math.Exp(sigma2)
	shift, mean := 1.2, 0.8
	m := mean + shift
	variance := m * m * (y - 1)
	skew := (y + 2) * math.Sqrt(y-1)

	got := Moments2Shift(mean, variance, skew)
	assert.InDelta(t, shift, got, 1e-8)

	assert.True(t, math.IsNaN(Moments2Shift(1, 1, -0.5)))
	assert.True(t, math.IsNaN(Moments2Shift(1, 0, 1)))

	// GMu/GSigma are consistent with the construction.
	assert.InDelta(t, math.Sqrt(sigma2), GSigma(mean, variance, shift), 1e-12)
	assert.InDelta(t, math.Log(m)-sigma2/2, GMu(mean, variance, shift), 1e-12)
}

func densRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	reg, err := fields.NewRegistry([]fields.Field{
		{F: 1, Z: 1, Mean: 0, Shift: 1, Type: fields.Density, ZMin: 0.3, ZMax: 0.4},
		{F: 1, Z: 2, Mean: 0, Shift: 1, Type: fields.Density, ZMin: 0.4, ZMax: 0.5},
	}, false)
	require.NoError(t, err)
	return reg
}

func TestIntegrateDensity(t *testing.T) {
	reg := densRegistry(t)
	c, err := cosmo.New(0.3, 0.7, -1)
	require.NoError(t, err)

	npix := 48
	ms := [][]float64{make([]float64, npix), make([]float64, npix)}
	for j := 0; j < npix; j++ {
		ms[0][j] = 1
		ms[1][j] = 2
	}

	extra, kmaps, err := IntegrateDensity(report.NewNop(), reg, c, ms)
	require.NoError(t, err)
	require.Len(t, extra, 2)
	require.Len(t, kmaps, 2)

	// Augmented fields are convergence slices at the source edge, with f
	// offset by the number of distinct field names.
	assert.Equal(t, fields.Convergence, extra[0].Type)
	assert.Equal(t, 2, extra[0].F)
	assert.Equal(t, 0.4, extra[0].ZMin)
	assert.Equal(t, 0.4, extra[0].ZMax)

	// The deeper shell integrates over both slices, so it sees strictly
	// more convergence than the first, everywhere.
	for j := 0; j < npix; j++ {
		assert.Greater(t, kmaps[0][j], 0.0)
		assert.Greater(t, kmaps[1][j], kmaps[0][j])
	}
}

func TestIntegrateDensityNoDensity(t *testing.T) {
	reg, err := fields.NewRegistry([]fields.Field{
		{F: 1, Z: 1, Type: fields.Convergence, ZMin: 0, ZMax: 1},
	}, false)
	require.NoError(t, err)
	c, err := cosmo.New(0.3, 0.7, -1)
	require.NoError(t, err)

	_, _, err = IntegrateDensity(report.NewNop(), reg, c,
		[][]float64{make([]float64, 12)})
	assert.Error(t, err)
}
