/*package table reads and writes the whitespace-delimited text tables flask
exchanges with the outside world: input C(l)s, field lists, and every
intermediate product that can be dumped for inspection. A '#' starts a
comment; a leading '#' line may carry column names.*/
package table

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mehdirezaie/flask/report"
)

// Load reads a whitespace-delimited table. Comment and blank lines are
// skipped. Every row must have the same number of columns.
func Load(fname string) ([][]float64, error) {
	bs, err := os.ReadFile(fname)
	if err != nil {
		return nil, report.Errorf(report.ResourceError,
			"I couldn't read the table %s: %s", fname, err.Error())
	}

	rows := [][]float64{}
	ncols := -1
	for n, line := range strings.Split(string(bs), "\n") {
		if i := strings.Index(line, "#"); i != -1 {
			line = line[:i]
		}
		toks := strings.Fields(line)
		if len(toks) == 0 {
			continue
		}
		if ncols == -1 {
			ncols = len(toks)
		} else if len(toks) != ncols {
			return nil, report.Errorf(report.InputError,
				"line %d of %s has %d columns, expected %d",
				n+1, fname, len(toks), ncols)
		}
		row := make([]float64, len(toks))
		for i, tok := range toks {
			if row[i], err = strconv.ParseFloat(tok, 64); err != nil {
				return nil, report.Errorf(report.InputError,
					"line %d of %s: '%s' is not a number", n+1, fname, tok)
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, report.Errorf(report.InputError, "%s has no data rows",
			fname)
	}
	return rows, nil
}

// Header returns the column names from the first '#' line of the file, with
// the '#' stripped. It returns nil if the file has no header line.
func Header(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, report.Errorf(report.ResourceError,
			"I couldn't read the table %s: %s", fname, err.Error())
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return nil, nil
		}
		return strings.Fields(strings.TrimPrefix(line, "#")), nil
	}
	return nil, nil
}

// Columns transposes a row-major table into column slices.
func Columns(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := make([][]float64, len(rows[0]))
	for i := range cols {
		cols[i] = make([]float64, len(rows))
		for j := range rows {
			cols[i][j] = rows[j][i]
		}
	}
	return cols
}

// WriteRows writes a row-major table, with an optional '#' header line.
func WriteRows(fname string, header []string, rows [][]float64) error {
	f, err := os.Create(fname)
	if err != nil {
		return report.Errorf(report.ResourceError,
			"I couldn't create the file %s: %s", fname, err.Error())
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if len(header) > 0 {
		fmt.Fprintf(w, "# %s\n", strings.Join(header, " "))
	}
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				w.WriteByte(' ')
			}
			fmt.Fprintf(w, "%.8g", v)
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return report.Errorf(report.ResourceError,
			"I couldn't write the file %s: %s", fname, err.Error())
	}
	return nil
}

// WriteColumns writes column slices side by side. All columns must have the
// same length.
func WriteColumns(fname string, header []string, cols ...[]float64) error {
	if len(cols) == 0 {
		return WriteRows(fname, header, nil)
	}
	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			panic("Columns given to WriteColumns() have unequal lengths.")
		}
	}
	rows := make([][]float64, n)
	for j := 0; j < n; j++ {
		rows[j] = make([]float64, len(cols))
		for i := range cols {
			rows[j][i] = cols[i][j]
		}
	}
	return WriteRows(fname, header, rows)
}

// ZeroPad formats n with enough leading zeros to align with max, so per-l
// file names sort correctly.
func ZeroPad(n, max int) string {
	width := len(strconv.Itoa(max))
	return fmt.Sprintf("%0*d", width, n)
}
