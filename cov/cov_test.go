package cov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/spectra"
)

const nls = 8

func testRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	reg, err := fields.NewRegistry([]fields.Field{
		{F: 1, Z: 1, Mean: 1, Shift: 1, Type: fields.Density, ZMin: 0.4, ZMax: 0.5},
		{F: 1, Z: 2, Mean: 1, Shift: 1, Type: fields.Density, ZMin: 0.5, ZMax: 0.6},
	}, true)
	require.NoError(t, err)
	return reg
}

func integerGrid() []float64 {
	l := make([]float64, nls)
	for i := range l {
		l[i] = float64(i)
	}
	return l
}

func constCl(v float64) []float64 {
	cl := make([]float64, nls)
	for i := range cl {
		cl[i] = v
	}
	return cl
}

func TestAssembleSymmetryFill(t *testing.T) {
	reg := testRegistry(t)
	s := spectra.NewSet(reg, report.NewNop())
	require.NoError(t, s.Add(0, 0, integerGrid(), constCl(1)))
	require.NoError(t, s.Add(1, 1, integerGrid(), constCl(2)))
	// Only (1, 0) provided; (0, 1) must be filled by symmetry.
	require.NoError(t, s.Add(1, 0, integerGrid(), constCl(0.5)))

	st, err := Assemble(s, nls, false)
	require.NoError(t, err)
	for l := 0; l < nls; l++ {
		assert.Equal(t, 0.5, st.M[l].At(0, 1))
		assert.Equal(t, 0.5, st.M[l].At(1, 0))
	}
}

func TestAssembleMissing(t *testing.T) {
	reg := testRegistry(t)
	s := spectra.NewSet(reg, report.NewNop())
	require.NoError(t, s.Add(0, 0, integerGrid(), constCl(1)))
	require.NoError(t, s.Add(1, 1, integerGrid(), constCl(2)))

	_, err := Assemble(s, nls, false)
	assert.Error(t, err, "missing cross spectrum must be fatal by default")

	st, err := Assemble(s, nls, true)
	require.NoError(t, err)
	for l := 0; l < nls; l++ {
		assert.Equal(t, 0.0, st.M[l].At(0, 1))
	}
}

func newStack(m00, m11, m01 float64) *Stack {
	st := &Stack{N: 2, NLs: nls, M: make([]*mat.SymDense, nls)}
	for l := range st.M {
		st.M[l] = mat.NewSymDense(2, []float64{m00, m01, m01, m11})
	}
	return st
}

func TestValidateBadCorrelation(t *testing.T) {
	st := newStack(1, 1, 1.1)
	require.Greater(t, st.MaxCorrViolation(1, nls-1), 0.0)

	st.Validate(report.NewNop(), 1, nls-1, 0.1, 0)
	assert.LessOrEqual(t, st.MaxCorrViolation(1, nls-1), 1e-12,
		"BADCORR_FRAC=0.1 must fix a correlation of 1.1")

	st = newStack(1, 1, 1.5)
	st.Validate(report.NewNop(), 1, nls-1, 0.0, 0)
	assert.Greater(t, st.MaxCorrViolation(1, nls-1), 0.0,
		"BADCORR_FRAC=0 must leave the violation in place")
}

func TestValidateMinDiag(t *testing.T) {
	st := newStack(1, 0, 0)
	st.Validate(report.NewNop(), 1, nls-1, 0, 0.1)
	for l := 1; l < nls; l++ {
		assert.Equal(t, 0.1, st.M[l].At(1, 1),
			"zero diagonal must be replaced by MINDIAG_FRAC * min variance")
	}
}

func TestRegularizeNoOpOnPD(t *testing.T) {
	a := mat.NewSymDense(2, []float64{1, 0.2, 0.2, 1})
	orig := mat.NewSymDense(2, nil)
	orig.CopySym(a)

	frac, steps, err := Regularize(a, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, steps)
	assert.Equal(t, 0.0, frac)
	assert.True(t, mat.EqualApprox(orig, a, 0))
}

func TestRegularizePerfectCorrelation(t *testing.T) {
	st := newStack(1, 1, 1)
	frac, err := st.RegularizeRange(report.NewNop(), 1, nls-1, 1000)
	require.NoError(t, err)
	for l := 1; l < nls; l++ {
		assert.GreaterOrEqual(t, st.MinEigenvalue(l), 0.0)
	}
	for _, f := range frac {
		assert.Less(t, f, 1e-3, "the zero-eigenvalue direction needs only "+
			"a tiny nudge")
	}
}

func TestRegularizeExceeded(t *testing.T) {
	a := mat.NewSymDense(2, []float64{1, 1.5, 1.5, 1})
	_, _, err := Regularize(a, 50)
	assert.Error(t, err, "a strongly indefinite matrix must exhaust the "+
		"step budget rather than be rewritten")

	st := newStack(1, 1, 1.5)
	_, err = st.RegularizeRange(report.NewNop(), 1, nls-1, 50)
	assert.Error(t, err)
}

func TestCholeskyLaw(t *testing.T) {
	st := newStack(2, 1, 0.3)
	tri, err := st.Factor(report.NewNop(), 1, nls-1)
	require.NoError(t, err)

	for l := 1; l < nls; l++ {
		lower := tri.At(l)
		var prod mat.Dense
		prod.Mul(lower, lower.T())
		assert.True(t, mat.EqualApprox(&prod, st.M[l], 1e-12),
			"L L^T must reproduce M at l=%d", l)
	}
}

func TestCholeskyDiagonal(t *testing.T) {
	// Independent fields: L is just the square root of the diagonal.
	st := newStack(4, 9, 0)
	tri, err := st.Factor(report.NewNop(), 1, nls-1)
	require.NoError(t, err)
	assert.InDelta(t, 2, tri.At(3).At(0, 0), 1e-14)
	assert.InDelta(t, 3, tri.At(3).At(1, 1), 1e-14)
	assert.InDelta(t, 0, tri.At(3).At(1, 0), 1e-14)
}

func TestCholeskyFailure(t *testing.T) {
	st := newStack(1, 1, 1.5)
	_, err := st.Factor(report.NewNop(), 1, nls-1)
	assert.Error(t, err)
}

func TestMulVec(t *testing.T) {
	st := newStack(4, 9, 0)
	tri, err := st.Factor(report.NewNop(), 1, nls-1)
	require.NoError(t, err)

	out := make([]float64, 2)
	tri.MulVec(2, []float64{1, 1}, out)
	assert.InDelta(t, 2, out[0], 1e-14)
	assert.InDelta(t, 3, out[1], 1e-14)

	assert.Panics(t, func() { tri.MulVec(2, []float64{1}, out) })
}

func TestMinEigenvalue(t *testing.T) {
	st := newStack(1, 1, 0.5)
	assert.InDelta(t, 0.5, st.MinEigenvalue(1), 1e-12)
	st = newStack(1, 1, 1.5)
	assert.Less(t, st.MinEigenvalue(1), 0.0)
}
