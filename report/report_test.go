package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := Errorf(NumericalError, "l=%d is not positive-definite", 12)
	assert.Equal(t, "l=12 is not positive-definite", err.Error())

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, NumericalError, kind)

	_, ok = KindOf(assert.AnError)
	assert.False(t, ok)

	for _, k := range []Kind{ConfigError, InputError, DomainError,
		NumericalError, ResourceError} {
		assert.NotEmpty(t, k.String())
	}
}

func TestWarningCounter(t *testing.T) {
	rep := NewNop()
	assert.Equal(t, int64(0), rep.Warnings())
	rep.Warnf("something odd at l=%d", 3)
	rep.Warnf("something odd at l=%d", 4)
	assert.Equal(t, int64(2), rep.Warnings())

	// Counters belong to their Reporter, not to the package.
	other := NewNop()
	assert.Equal(t, int64(0), other.Warnings())
}
