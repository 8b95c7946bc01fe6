package healpix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/mehdirezaie/flask/harmonic"
)

func TestNew(t *testing.T) {
	for _, nside := range []int{1, 2, 16, 64} {
		p, err := New(nside)
		require.NoError(t, err)
		assert.Equal(t, 12*nside*nside, p.Npix())
		assert.Len(t, p.Rings(), 4*nside-1)
	}
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(12)
	assert.Error(t, err)
}

func TestRingGeometry(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)

	total := 0
	prevZ := 1.0
	for _, r := range p.Rings() {
		assert.Equal(t, total, r.First)
		total += r.Count
		assert.Less(t, r.Z, prevZ, "rings must go north to south")
		prevZ = r.Z
	}
	assert.Equal(t, p.Npix(), total)

	for pix := 0; pix < p.Npix(); pix++ {
		ri := p.RingOf(pix)
		r := p.Rings()[ri]
		assert.GreaterOrEqual(t, pix, r.First)
		assert.Less(t, pix, r.First+r.Count)
	}
}

func TestCenterRange(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	for pix := 0; pix < p.Npix(); pix++ {
		theta, phi := p.Center(pix)
		assert.Greater(t, theta, 0.0)
		assert.Less(t, theta, math.Pi)
		assert.GreaterOrEqual(t, phi, 0.0)
		assert.Less(t, phi, 2*math.Pi)
	}
}

func TestRandInPixStaysInRing(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	gen := rand.New(rand.NewSource(7))
	for _, pix := range []int{0, 17, 95, p.Npix() - 1} {
		r := p.Rings()[p.RingOf(pix)]
		for n := 0; n < 50; n++ {
			theta, phi := p.RandInPix(gen, pix)
			assert.GreaterOrEqual(t, phi, 0.0)
			assert.Less(t, phi, 2*math.Pi)
			// z must stay between the neighbouring rings.
			z := math.Cos(theta)
			assert.InDelta(t, r.Z, z, 0.35)
		}
	}
}

func TestAlm2MapMonopole(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)
	alm := harmonic.NewAlm(4)
	alm.Set(0, 0, complex(math.Sqrt(4*math.Pi), 0))

	m := p.Alm2Map(alm)
	for _, v := range m {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
}

func TestAlm2MapY20(t *testing.T) {
	// Y_20 = sqrt(5/16pi) (3 z^2 - 1).
	p, err := New(8)
	require.NoError(t, err)
	alm := harmonic.NewAlm(4)
	alm.Set(2, 0, complex(1, 0))

	m := p.Alm2Map(alm)
	for pix := 0; pix < p.Npix(); pix += 37 {
		theta, _ := p.Center(pix)
		z := math.Cos(theta)
		want := math.Sqrt(5/(16*math.Pi)) * (3*z*z - 1)
		assert.InDelta(t, want, m[pix], 1e-12)
	}
}

func TestMapAlmRoundTrip(t *testing.T) {
	p, err := New(32)
	require.NoError(t, err)

	lmax := 8
	alm := harmonic.NewAlm(lmax)
	gen := rand.New(rand.NewSource(3))
	for l := 0; l <= lmax; l++ {
		alm.Set(l, 0, complex(gen.NormFloat64(), 0))
		for m := 1; m <= l; m++ {
			alm.Set(l, m, complex(gen.NormFloat64(), gen.NormFloat64()))
		}
	}

	m := p.Alm2Map(alm)
	back, err := p.Map2Alm(m, lmax, nil)
	require.NoError(t, err)

	for l := 0; l <= lmax; l++ {
		for mi := 0; mi <= l; mi++ {
			assert.InDelta(t, real(alm.At(l, mi)), real(back.At(l, mi)), 1e-2,
				"Re a(%d,%d)", l, mi)
			assert.InDelta(t, imag(alm.At(l, mi)), imag(back.At(l, mi)), 1e-2,
				"Im a(%d,%d)", l, mi)
		}
	}
}

func TestMap2AlmShapeErrors(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	_, err = p.Map2Alm(make([]float64, 3), 4, nil)
	assert.Error(t, err)
	_, err = p.Map2Alm(make([]float64, p.Npix()), 4, []float64{1})
	assert.Error(t, err)
	_, err = p.Map2Alm(make([]float64, p.Npix()), 4, UnitRingWeights(4))
	assert.NoError(t, err)
}

func TestSpin2PureE20(t *testing.T) {
	// A single E_20 mode: q = -sqrt(15/32pi) sin^2(theta) E, u = 0.
	p, err := New(16)
	require.NoError(t, err)
	almE := harmonic.NewAlm(4)
	almE.Set(2, 0, complex(1.5, 0))

	q, u := p.Alm2MapSpin2(almE)
	for pix := 0; pix < p.Npix(); pix += 29 {
		theta, _ := p.Center(pix)
		s := math.Sin(theta)
		want := -1.5 * math.Sqrt(15/(32*math.Pi)) * s * s
		assert.InDelta(t, want, q[pix], 1e-10, "pix %d", pix)
		assert.InDelta(t, 0.0, u[pix], 1e-10, "pix %d", pix)
	}
}

func TestSpin2LowLIsZero(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)
	almE := harmonic.NewAlm(4)
	almE.Set(0, 0, complex(1, 0))
	almE.Set(1, 1, complex(1, 1))

	q, u := p.Alm2MapSpin2(almE)
	for pix := range q {
		assert.Equal(t, 0.0, q[pix])
		assert.Equal(t, 0.0, u[pix])
	}
}

func TestKappa2ShearE(t *testing.T) {
	klm := harmonic.NewAlm(3)
	klm.Set(1, 1, complex(1, 1))
	klm.Set(2, 1, complex(2, -1))
	klm.Set(3, 0, complex(1, 0))

	out := harmonic.NewAlm(3)
	Kappa2ShearE(klm, out)

	assert.Equal(t, complex(0, 0), out.At(1, 1), "the dipole must be zeroed")
	coeff2 := math.Sqrt(4 * 1 / (2.0 * 3.0))
	assert.InDelta(t, 2*coeff2, real(out.At(2, 1)), 1e-14)
	assert.InDelta(t, -coeff2, imag(out.At(2, 1)), 1e-14)
	coeff3 := math.Sqrt(5 * 2 / (3.0 * 4.0))
	assert.InDelta(t, coeff3, real(out.At(3, 0)), 1e-14)

	// In-place use is allowed.
	Kappa2ShearE(klm, klm)
	assert.InDelta(t, 2*coeff2, real(klm.At(2, 1)), 1e-14)
}

func TestApproxWindow(t *testing.T) {
	w := ApproxWindow(16)
	require.Len(t, w, 65)
	assert.Equal(t, 1.0, w[0])
	for l := 1; l < len(w); l++ {
		assert.Less(t, w[l], w[l-1], "the window must decrease")
		assert.Greater(t, w[l], 0.0)
	}
}
