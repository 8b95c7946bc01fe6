/*package fields maintains the catalogue of simulated fields. Each field is a
(f, z) name pair carrying a type, a redshift slice and the target one-point
statistics (mean and, for lognormal runs, shift). The Registry is immutable
after construction and shared read-only by every pipeline stage.*/
package fields

import (
	"fmt"
	"sort"

	"github.com/mehdirezaie/flask/report"
)

// FieldType distinguishes density (galaxy) fields from convergence fields.
type FieldType int

const (
	Density     FieldType = 1
	Convergence FieldType = 2
)

func (t FieldType) String() string {
	switch t {
	case Density:
		return "density"
	case Convergence:
		return "convergence"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Field describes one simulated field.
type Field struct {
	F, Z        int
	Mean, Shift float64
	Type        FieldType
	ZMin, ZMax  float64
}

// Name returns the canonical fAzB name of the field.
func (f Field) Name() string { return fmt.Sprintf("f%dz%d", f.F, f.Z) }

// Registry is the ordered, immutable list of fields of a run, together with
// the order in which the input C(l)s were presented.
type Registry struct {
	fields []Field
	index  map[[2]int]int

	fNames []int
	byF    map[int][]int

	clOrder  map[[2]int]int
	clLabels []string
}

// NewRegistry builds a Registry from FIELDS_INFO records. When lognormal is
// set, every density field must satisfy mean+shift > 0.
func NewRegistry(list []Field, lognormal bool) (*Registry, error) {
	if len(list) == 0 {
		return nil, report.Errorf(report.InputError,
			"the FIELDS_INFO list is empty")
	}

	r := &Registry{
		fields:  make([]Field, len(list)),
		index:   map[[2]int]int{},
		byF:     map[int][]int{},
		clOrder: map[[2]int]int{},
	}
	copy(r.fields, list)

	for i, f := range r.fields {
		if f.ZMin > f.ZMax {
			return nil, report.Errorf(report.InputError,
				"field %s has zmin=%g > zmax=%g", f.Name(), f.ZMin, f.ZMax)
		}
		if f.Type != Density && f.Type != Convergence {
			return nil, report.Errorf(report.InputError,
				"field %s has unknown type %d", f.Name(), int(f.Type))
		}
		if lognormal && f.Mean+f.Shift <= 0 {
			return nil, report.Errorf(report.InputError,
				"field %s has mean+shift = %g, must be greater than zero",
				f.Name(), f.Mean+f.Shift)
		}
		key := [2]int{f.F, f.Z}
		if _, dup := r.index[key]; dup {
			return nil, report.Errorf(report.InputError,
				"field %s appears twice in FIELDS_INFO", f.Name())
		}
		r.index[key] = i
		if _, seen := r.byF[f.F]; !seen {
			r.fNames = append(r.fNames, f.F)
		}
		r.byF[f.F] = append(r.byF[f.F], i)
	}
	sort.Ints(r.fNames)
	for _, is := range r.byF {
		sort.Slice(is, func(a, b int) bool {
			return r.fields[is[a]].Z < r.fields[is[b]].Z
		})
	}

	return r, nil
}

// NFields returns the number of fields.
func (r *Registry) NFields() int { return len(r.fields) }

// Field returns the i-th field.
func (r *Registry) Field(i int) Field { return r.fields[i] }

// Index2Name returns the (f, z) name pair of the i-th field.
func (r *Registry) Index2Name(i int) (f, z int) {
	return r.fields[i].F, r.fields[i].Z
}

// Name2Index returns the index of the (f, z) field, or -1 if it is unknown.
func (r *Registry) Name2Index(f, z int) int {
	if i, ok := r.index[[2]int{f, z}]; ok {
		return i
	}
	return -1
}

// FNames returns the distinct field names f, ascending.
func (r *Registry) FNames() []int { return r.fNames }

// Slices returns the indices of the fields named f ordered by ascending z.
func (r *Registry) Slices(f int) []int { return r.byF[f] }

// PairLabel returns the "Cl-fAzBfCzD" label of the ordered pair (i, j).
func (r *Registry) PairLabel(i, j int) string {
	a, b := r.fields[i], r.fields[j]
	return fmt.Sprintf("Cl-f%dz%df%dz%d", a.F, a.Z, b.F, b.Z)
}

// ParsePairLabel decodes a "Cl-fAzBfCzD" column label into the two name
// pairs. The "Cl-" prefix is optional.
func ParsePairLabel(label string) (af, az, bf, bz int, err error) {
	s := label
	if len(s) >= 3 && s[:3] == "Cl-" {
		s = s[3:]
	}
	if _, err = fmt.Sscanf(s, "f%dz%df%dz%d", &af, &az, &bf, &bz); err != nil {
		return 0, 0, 0, 0, report.Errorf(report.InputError,
			"I couldn't parse the Cl label '%s'", label)
	}
	return af, az, bf, bz, nil
}

// RecordInputClOrder records the sequence in which (i, j) pairs appeared in
// the input. Labels that don't name registered fields are skipped.
func (r *Registry) RecordInputClOrder(labels []string) {
	r.clLabels = append([]string{}, labels...)
	for k, label := range labels {
		af, az, bf, bz, err := ParsePairLabel(label)
		if err != nil {
			continue
		}
		i, j := r.Name2Index(af, az), r.Name2Index(bf, bz)
		if i == -1 || j == -1 {
			continue
		}
		if _, dup := r.clOrder[[2]int{i, j}]; !dup {
			r.clOrder[[2]int{i, j}] = k
		}
	}
}

// GetInputClOrder returns the input position of the pair (i, j), or -1 if the
// pair did not appear in the input.
func (r *Registry) GetInputClOrder(i, j int) int {
	if k, ok := r.clOrder[[2]int{i, j}]; ok {
		return k
	}
	return -1
}

// InputClLabels returns the recorded input labels.
func (r *Registry) InputClLabels() []string { return r.clLabels }

// Augment returns a new Registry with extra fields appended after the
// current ones. The input C(l) order records are carried over. Validation
// with lognormal semantics is skipped: augmented fields are derived maps,
// not sampled ones.
func (r *Registry) Augment(extra []Field) (*Registry, error) {
	all := append(append([]Field{}, r.fields...), extra...)
	out, err := NewRegistry(all, false)
	if err != nil {
		return nil, err
	}
	out.clOrder = r.clOrder
	out.clLabels = r.clLabels
	return out, nil
}
