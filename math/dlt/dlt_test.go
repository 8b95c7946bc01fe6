package dlt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	bw := 65
	tr := New(bw)

	cl := make([]float64, bw)
	for l := 2; l < bw; l++ {
		cl[l] = 1 / float64((l+1)*(l+1))
	}

	xi := make([]float64, tr.NSamples())
	out := make([]float64, bw)
	tr.Synthesize(cl, xi)
	tr.Analyze(xi, out)

	for l := range cl {
		assert.InDelta(t, cl[l], out[l], 1e-12, "l=%d", l)
	}
}

func TestMonopole(t *testing.T) {
	// A pure monopole C_0 = 4pi gives xi(theta) = 1 everywhere.
	tr := New(8)
	cl := make([]float64, 8)
	cl[0] = 4 * math.Pi

	xi := make([]float64, tr.NSamples())
	tr.Synthesize(cl, xi)
	for k := range xi {
		assert.InDelta(t, 1.0, xi[k], 1e-13)
	}
}

func TestThetasInRange(t *testing.T) {
	tr := New(16)
	thetas := tr.Thetas()
	require.Len(t, thetas, 32)
	for _, th := range thetas {
		assert.Greater(t, th, 0.0)
		assert.Less(t, th, math.Pi)
	}
}

func TestBadShapesPanic(t *testing.T) {
	tr := New(4)
	assert.Panics(t, func() { tr.Synthesize(make([]float64, 3), make([]float64, 8)) })
	assert.Panics(t, func() { tr.Analyze(make([]float64, 7), make([]float64, 4)) })
	assert.Panics(t, func() { New(1) })
}
