package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "t.dat")
	text := "# l Cl\n2 1.5\n3 0.75  # trailing comment\n\n4 0.5\n"
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))

	rows, err := Load(fname)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1.5}, {3, 0.75}, {4, 0.5}}, rows)

	header, err := Header(fname)
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "Cl"}, header)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	ragged := filepath.Join(dir, "ragged.dat")
	require.NoError(t, os.WriteFile(ragged, []byte("1 2\n3\n"), 0644))
	_, err := Load(ragged)
	assert.Error(t, err)

	nonNumeric := filepath.Join(dir, "bad.dat")
	require.NoError(t, os.WriteFile(nonNumeric, []byte("1 two\n"), 0644))
	_, err = Load(nonNumeric)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.dat")
	require.NoError(t, os.WriteFile(empty, []byte("# only header\n"), 0644))
	_, err = Load(empty)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.dat"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "out.dat")
	cols := [][]float64{{0, 1, 2}, {1.25, 0.5, 0.125}}
	require.NoError(t, WriteColumns(fname, []string{"l", "Cl-f1z1f1z1"},
		cols[0], cols[1]))

	rows, err := Load(fname)
	require.NoError(t, err)
	assert.Equal(t, cols, Columns(rows))

	header, err := Header(fname)
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "Cl-f1z1f1z1"}, header)
}

func TestZeroPad(t *testing.T) {
	assert.Equal(t, "007", ZeroPad(7, 500))
	assert.Equal(t, "42", ZeroPad(42, 99))
	assert.Equal(t, "1000", ZeroPad(1000, 1000))
}
