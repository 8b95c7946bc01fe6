package fields

import (
	"github.com/mehdirezaie/flask/report"
	"github.com/mehdirezaie/flask/table"
)

// Load reads a FIELDS_INFO file. The columns are, in order: f, z, mean,
// shift, type (1=density, 2=convergence), zmin, zmax; one line per field.
func Load(fname string, lognormal bool) (*Registry, error) {
	rows, err := table.Load(fname)
	if err != nil {
		return nil, err
	}

	list := make([]Field, len(rows))
	for i, row := range rows {
		if len(row) != 7 {
			return nil, report.Errorf(report.InputError,
				"the FIELDS_INFO file %s has %d columns, expected 7",
				fname, len(row))
		}
		list[i] = Field{
			F:     int(row[0]),
			Z:     int(row[1]),
			Mean:  row[2],
			Shift: row[3],
			Type:  FieldType(row[4]),
			ZMin:  row[5],
			ZMax:  row[6],
		}
	}
	return NewRegistry(list, lognormal)
}
