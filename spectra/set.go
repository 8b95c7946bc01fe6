/*package spectra loads the input angular power spectra, applies the window
filters, and converts lognormal spectra to the spectra of the associated
Gaussian fields. A Set owns one Spectrum per ordered field pair that was
present in the input; every transformation mutates the samples in place and
keeps the l grid until Resample puts everything on the integer grid.*/
package spectra

import (
	"fmt"
	"os"

	"github.com/mehdirezaie/flask/fields"
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/table"
)

// Spectrum holds the (l, Cl) samples of one ordered field pair (I, J).
type Spectrum struct {
	I, J int
	L    []float64
	Cl   []float64
}

// Set is the collection of input spectra of a run.
type Set struct {
	reg   *fields.Registry
	rep   *report.Reporter
	specs map[[2]int]*Spectrum
	order [][2]int
}

// Registry returns the field registry the Set was loaded against.
func (s *Set) Registry() *fields.Registry { return s.reg }

// Reporter returns the run reporter the Set logs through.
func (s *Set) Reporter() *report.Reporter { return s.rep }

// Has reports whether the ordered pair (i, j) was present in the input.
func (s *Set) Has(i, j int) bool {
	_, ok := s.specs[[2]int{i, j}]
	return ok
}

// Get returns the spectrum of the ordered pair (i, j), or nil.
func (s *Set) Get(i, j int) *Spectrum { return s.specs[[2]int{i, j}] }

// Pairs returns the ordered pairs present, in input order.
func (s *Set) Pairs() [][2]int { return s.order }

// NewSet creates an empty Set against the given registry, logging through
// rep. The file loaders below are the usual way in; Add exists for
// synthetic spectra.
func NewSet(reg *fields.Registry, rep *report.Reporter) *Set {
	return &Set{reg: reg, rep: rep, specs: map[[2]int]*Spectrum{}}
}

// Add registers the (l, Cl) samples of the ordered pair (i, j). The samples
// must be strictly l-increasing with at least two entries.
func (s *Set) Add(i, j int, l, cl []float64) error {
	if len(l) < 2 {
		return report.Errorf(report.InputError,
			"the %s spectrum has %d samples, need at least 2",
			s.reg.PairLabel(i, j), len(l))
	}
	for k := 1; k < len(l); k++ {
		if l[k] <= l[k-1] {
			return report.Errorf(report.InputError,
				"the %s spectrum is not l-monotone at sample %d",
				s.reg.PairLabel(i, j), k)
		}
	}
	key := [2]int{i, j}
	if _, dup := s.specs[key]; dup {
		return report.Errorf(report.InputError,
			"the %s spectrum appears twice in the input",
			s.reg.PairLabel(i, j))
	}
	s.specs[key] = &Spectrum{I: i, J: j, L: l, Cl: cl}
	s.order = append(s.order, key)
	return nil
}

// PairFileName returns the per-pair file name used by prefix inputs and
// outputs: <prefix>fAzBfCzD.dat.
func PairFileName(prefix string, reg *fields.Registry, i, j int) string {
	af, az := reg.Index2Name(i)
	bf, bz := reg.Index2Name(j)
	return fmt.Sprintf("%sf%dz%df%dz%d.dat", prefix, af, az, bf, bz)
}

// LoadPrefix probes <prefix>fAzBfCzD.dat for every ordered field pair and
// loads the files that exist. Each file must have exactly two columns
// (l, Cl).
func LoadPrefix(prefix string, reg *fields.Registry, rep *report.Reporter) (*Set, error) {
	s := NewSet(reg, rep)
	n := reg.NFields()
	labels := []string{}
	for k := 0; k < n*n; k++ {
		i, j := k/n, k%n
		fname := PairFileName(prefix, reg, i, j)
		if _, err := os.Stat(fname); err != nil {
			continue
		}
		rows, err := table.Load(fname)
		if err != nil {
			return nil, err
		}
		if len(rows[0]) != 2 {
			return nil, report.Errorf(report.InputError,
				"wrong number of columns in file %s: got %d, want 2",
				fname, len(rows[0]))
		}
		cols := table.Columns(rows)
		if err := s.Add(i, j, cols[0], cols[1]); err != nil {
			return nil, err
		}
		labels = append(labels, reg.PairLabel(i, j))
		s.rep.Infof("%s goes to [%d, %d]", fname, i, j)
	}
	if len(s.order) == 0 {
		return nil, report.Errorf(report.InputError,
			"I found no input C(l) files with the prefix %s", prefix)
	}
	reg.RecordInputClOrder(labels)
	return s, nil
}

// LoadTable loads all spectra from one multi-column table whose first column
// is l and whose remaining column names follow the Cl-fAzBfCzD pattern.
// Columns naming unknown fields are skipped with a warning.
func LoadTable(fname string, reg *fields.Registry, rep *report.Reporter) (*Set, error) {
	header, err := table.Header(fname)
	if err != nil {
		return nil, err
	}
	if len(header) < 2 {
		return nil, report.Errorf(report.InputError,
			"the C(l) table %s needs a '# l Cl-...' header naming each column",
			fname)
	}
	rows, err := table.Load(fname)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) != len(header) {
		return nil, report.Errorf(report.InputError,
			"the C(l) table %s has %d columns and %d column names",
			fname, len(rows[0]), len(header))
	}
	cols := table.Columns(rows)

	s := NewSet(reg, rep)
	labels := []string{}
	for k := 1; k < len(header); k++ {
		af, az, bf, bz, err := fields.ParsePairLabel(header[k])
		if err != nil {
			s.rep.Warnf("skipping column '%s' of %s: not a Cl label",
				header[k], fname)
			continue
		}
		i, j := reg.Name2Index(af, az), reg.Name2Index(bf, bz)
		if i == -1 || j == -1 {
			s.rep.Warnf("skipping column '%s' of %s: fields not in "+
				"FIELDS_INFO", header[k], fname)
			continue
		}
		l := append([]float64{}, cols[0]...)
		cl := append([]float64{}, cols[k]...)
		if err := s.Add(i, j, l, cl); err != nil {
			return nil, err
		}
		labels = append(labels, header[k])
		s.rep.Infof("%s goes to [%d, %d]", header[k], i, j)
	}
	if len(s.order) == 0 {
		return nil, report.Errorf(report.InputError,
			"the C(l) table %s contains no usable spectra", fname)
	}
	reg.RecordInputClOrder(labels)
	return s, nil
}

// Load dispatches on the CL_PREFIX value: names ending in ".dat" are single
// tables, anything else is a per-pair file prefix.
func Load(prefix string, reg *fields.Registry, rep *report.Reporter) (*Set, error) {
	if len(prefix) >= 4 && prefix[len(prefix)-4:] == ".dat" {
		return LoadTable(prefix, reg, rep)
	}
	return LoadPrefix(prefix, reg, rep)
}

// MaxCommonL returns the largest l up to which every loaded spectrum has
// samples, i.e. the smallest last-sample l across the Set.
func (s *Set) MaxCommonL() float64 {
	first := true
	last := 0.0
	for _, key := range s.order {
		sp := s.specs[key]
		end := sp.L[len(sp.L)-1]
		if first || end < last {
			last, first = end, false
		}
	}
	return last
}
