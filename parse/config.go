/*package parse implements the key-value configuration grammar used by flask:
one "KEY: value" assignment per line, '#' comments, and command-line overrides
of the exact same form. Callers register typed destinations through ConfigVars
and then call ReadConfig and, optionally, ReadOverrides.*/
package parse

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

/////////////////////
// Conversion Code //
/////////////////////

type varType int

const (
	intVar varType = iota
	intsVar
	floatVar
	floatsVar
	stringVar
	stringsVar
)

func (v varType) String() string {
	switch v {
	case intVar:
		return "int"
	case intsVar:
		return "int list"
	case floatVar:
		return "float"
	case floatsVar:
		return "float list"
	case stringVar:
		return "string"
	case stringsVar:
		return "string list"
	}
	panic("Impossible")
}

type conversionFunc func(string) bool

// ConfigVars is a registry binding config keys to typed destinations.
type ConfigVars struct {
	name            string
	varNames        []string
	varTypes        []varType
	conversionFuncs []conversionFunc
}

func intConv(ptr *int64) conversionFunc {
	return func(s string) bool {
		i, err := strconv.Atoi(s)
		if err != nil {
			return false
		}
		*ptr = int64(i)
		return true
	}
}

func floatConv(ptr *float64) conversionFunc {
	return func(s string) bool {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		*ptr = f
		return true
	}
}

func stringConv(ptr *string) conversionFunc {
	return func(s string) bool {
		*ptr = strings.TrimSpace(s)
		return true
	}
}

func strToList(a string) []string { return strings.Fields(a) }

func intsConv(ptr *[]int64) conversionFunc {
	return func(s string) bool {
		toks := strToList(s)
		*ptr = (*ptr)[:0]
		for j := range toks {
			i, err := strconv.Atoi(toks[j])
			if err != nil {
				return false
			}
			*ptr = append(*ptr, int64(i))
		}
		return true
	}
}

func floatsConv(ptr *[]float64) conversionFunc {
	return func(s string) bool {
		toks := strToList(s)
		*ptr = (*ptr)[:0]
		for j := range toks {
			f, err := strconv.ParseFloat(toks[j], 64)
			if err != nil {
				return false
			}
			*ptr = append(*ptr, f)
		}
		return true
	}
}

func stringsConv(ptr *[]string) conversionFunc {
	return func(s string) bool {
		toks := strToList(s)
		*ptr = (*ptr)[:0]
		*ptr = append(*ptr, toks...)
		return true
	}
}

// NewConfigVars creates an empty registry. name is used in error messages.
func NewConfigVars(name string) *ConfigVars {
	return &ConfigVars{name: name}
}

func (vars *ConfigVars) register(name string, t varType, f conversionFunc) {
	vars.varNames = append(vars.varNames, name)
	vars.varTypes = append(vars.varTypes, t)
	vars.conversionFuncs = append(vars.conversionFuncs, f)
}

// Int registers an integer variable with a default value.
func (vars *ConfigVars) Int(ptr *int64, name string, value int64) {
	*ptr = value
	vars.register(name, intVar, intConv(ptr))
}

// Float registers a float variable with a default value.
func (vars *ConfigVars) Float(ptr *float64, name string, value float64) {
	*ptr = value
	vars.register(name, floatVar, floatConv(ptr))
}

// String registers a string variable with a default value.
func (vars *ConfigVars) String(ptr *string, name string, value string) {
	*ptr = value
	vars.register(name, stringVar, stringConv(ptr))
}

// Ints registers an integer-list variable with a default value.
func (vars *ConfigVars) Ints(ptr *[]int64, name string, value []int64) {
	*ptr = value
	vars.register(name, intsVar, intsConv(ptr))
}

// Floats registers a float-list variable with a default value.
func (vars *ConfigVars) Floats(ptr *[]float64, name string, value []float64) {
	*ptr = value
	vars.register(name, floatsVar, floatsConv(ptr))
}

// Strings registers a string-list variable with a default value.
func (vars *ConfigVars) Strings(ptr *[]string, name string, value []string) {
	*ptr = value
	vars.register(name, stringsVar, stringsConv(ptr))
}

// IsKey reports whether name is a registered variable name.
func (vars *ConfigVars) IsKey(name string) bool {
	return vars.lookup(name) != -1
}

func (vars *ConfigVars) lookup(name string) int {
	for j := range vars.varNames {
		if vars.varNames[j] == name {
			return j
		}
	}
	return -1
}

//////////////////
// Parsing Code //
//////////////////

// ReadConfig reads a config file and fills in every registered variable that
// it assigns. Unknown keys, duplicate keys and unconvertible values are
// errors.
func ReadConfig(fname string, vars *ConfigVars) error {
	bs, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("I couldn't read the config file %s: %s.",
			fname, err.Error())
	}
	lines := strings.Split(string(bs), "\n")
	lines, lineNums := removeComments(lines)

	names, vals, errLine := associationList(lines)
	if errLine != -1 {
		return fmt.Errorf(
			"I could not parse line %d of the config file %s because it "+
				"did not take the form of a 'KEY: value' assignment.",
			lineNums[errLine], fname,
		)
	}

	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if names[i] == names[j] {
				return fmt.Errorf(
					"Lines %d and %d of the config file %s both assign a "+
						"value to the variable '%s'.",
					lineNums[i], lineNums[j], fname, names[i],
				)
			}
		}
	}

	for i := range names {
		if err := vars.assign(names[i], vals[i]); err != nil {
			return fmt.Errorf("On line %d of the config file %s: %s",
				lineNums[i], fname, err.Error())
		}
	}

	return nil
}

// ReadOverrides applies "KEY: value" pairs given as command-line tokens after
// the config file name. Every token ending in ':' starts a new assignment to
// the key it names (an unregistered key is an error); the tokens up to the
// next such token form its value.
func ReadOverrides(args []string, vars *ConfigVars) error {
	key, val := "", []string{}
	flush := func() error {
		if key == "" {
			return nil
		}
		return vars.assign(key, strings.Join(val, " "))
	}
	for _, tok := range args {
		if strings.HasSuffix(tok, ":") {
			if err := flush(); err != nil {
				return err
			}
			key, val = strings.TrimSuffix(tok, ":"), val[:0]
			continue
		}
		if key == "" {
			return fmt.Errorf("I could not parse the command-line token "+
				"'%s': expected a 'KEY:' override.", tok)
		}
		val = append(val, tok)
	}
	return flush()
}

func (vars *ConfigVars) assign(name, val string) error {
	j := vars.lookup(name)
	if j == -1 {
		return fmt.Errorf("'%s' is not a variable of %s config files.",
			name, vars.name)
	}
	if !vars.conversionFuncs[j](val) {
		typeName := vars.varTypes[j].String()
		a := "a"
		if typeName[0] == 'i' {
			a = "an"
		}
		return fmt.Errorf("'%s' expects values of type %s and '%s' cannot "+
			"be converted to %s %s.", name, typeName, val, a, typeName)
	}
	return nil
}

func removeComments(lines []string) ([]string, []int) {
	tmp := make([]string, len(lines))
	copy(tmp, lines)
	lines = tmp

	for i := range lines {
		comment := strings.Index(lines[i], "#")
		if comment == -1 {
			continue
		}
		lines[i] = lines[i][:comment]
	}

	out, lineNums := []string{}, []int{}
	for i := range lines {
		line := strings.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		out = append(out, line)
		lineNums = append(lineNums, i+1)
	}

	return out, lineNums
}

func associationList(lines []string) ([]string, []string, int) {
	names, vals := []string{}, []string{}
	for i := range lines {
		sep := strings.Index(lines[i], ":")
		if sep == -1 {
			return nil, nil, i
		}
		name := strings.TrimSpace(lines[i][:sep])
		if len(name) == 0 || strings.ContainsAny(name, " \t") {
			return nil, nil, i
		}
		val := ""
		if len(lines[i])-1 > sep {
			val = lines[i][sep+1:]
		}
		names = append(names, name)
		vals = append(vals, strings.TrimSpace(val))
	}
	return names, vals, -1
}
