package cosmo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(t *testing.T) *Cosmology {
	t.Helper()
	c, err := New(0.3, 0.7, -1)
	require.NoError(t, err)
	return c
}

func TestE(t *testing.T) {
	c := flat(t)
	assert.InDelta(t, 1.0, c.E(0), 1e-14)
	// Matter dominates at high z: E ~ sqrt(Om) (1+z)^1.5.
	z := 7.0
	assert.InDelta(t, math.Sqrt(0.3)*math.Pow(1+z, 1.5), c.E(z),
		0.02*c.E(z))
}

func TestComDist(t *testing.T) {
	c := flat(t)

	d0, err := c.ComDist(0)
	require.NoError(t, err)
	assert.InDelta(t, 0, d0, 1e-8)

	// Standard flat LCDM value: roughly 2313 Mpc/h at z=1.
	d1, err := c.ComDist(1)
	require.NoError(t, err)
	assert.InDelta(t, 2313, d1, 25)

	// Monotonicity.
	prev := 0.0
	for z := 0.2; z <= 8; z += 0.2 {
		d, err := c.ComDist(z)
		require.NoError(t, err)
		assert.Greater(t, d, prev)
		prev = d
	}

	_, err = c.ComDist(9)
	assert.Error(t, err)
	_, err = c.ComDist(-0.1)
	assert.Error(t, err)
}

func TestTransverseDistFlat(t *testing.T) {
	c := flat(t)
	assert.Equal(t, 123.0, c.TransverseDist(123))

	open, err := New(0.3, 0.6, -1)
	require.NoError(t, err)
	assert.Greater(t, open.TransverseDist(3000), 3000.0)

	closed, err := New(0.4, 0.7, -1)
	require.NoError(t, err)
	assert.Less(t, closed.TransverseDist(3000), 3000.0)
}

func TestKappaWeight(t *testing.T) {
	c := flat(t)

	// The kernel is positive for lenses in front of the sources and
	// vanishes as the lens approaches them.
	w, err := c.KappaWeightByZ(0.3, 1.0)
	require.NoError(t, err)
	assert.Greater(t, w, 0.0)

	near, err := c.KappaWeightByZ(0.999, 1.0)
	require.NoError(t, err)
	assert.Less(t, near, w/10)

	_, err = c.KappaWeightByZ(0.3, 9.0)
	assert.Error(t, err)
}
