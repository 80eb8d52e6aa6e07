package expression

import "math"

// Variadic marks a function without an upper bound on its argument count
const Variadic = -1

// Function is an entry of the fixed function table.
// Call is only invoked after the argument count has been checked
// against MinArgs and MaxArgs.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Call    func(args []float64) float64
}

// accepts reports whether n arguments satisfy the function's arity
func (f Function) accepts(n int) bool {
	if n < f.MinArgs {
		return false
	}
	return f.MaxArgs == Variadic || n <= f.MaxArgs
}

// functionTable is the complete set of callable functions, in the order
// reported to authoring tools. There is no way to add entries at runtime.
var functionTable = []Function{
	{Name: "avg", MinArgs: 1, MaxArgs: Variadic, Call: avg},
	{Name: "sum", MinArgs: 0, MaxArgs: Variadic, Call: sum},
	{Name: "min", MinArgs: 1, MaxArgs: Variadic, Call: minimum},
	{Name: "max", MinArgs: 1, MaxArgs: Variadic, Call: maximum},
	{Name: "abs", MinArgs: 1, MaxArgs: 1, Call: func(a []float64) float64 { return math.Abs(a[0]) }},
	{Name: "round", MinArgs: 1, MaxArgs: 2, Call: round},
	{Name: "sqrt", MinArgs: 1, MaxArgs: 1, Call: func(a []float64) float64 { return math.Sqrt(a[0]) }},
	{Name: "pow", MinArgs: 2, MaxArgs: 2, Call: pow},
	{Name: "power", MinArgs: 2, MaxArgs: 2, Call: pow},
	{Name: "index", MinArgs: 2, MaxArgs: 2, Call: index},
}

var functions = buildRegistry(functionTable)

func buildRegistry(table []Function) map[string]Function {
	registry := make(map[string]Function, len(table))
	for _, fn := range table {
		registry[fn.Name] = fn
	}
	return registry
}

// Lookup returns the function registered under name.
// Names are matched exactly; the scanner lower-cases identifiers before lookup.
func Lookup(name string) (Function, error) {
	fn, ok := functions[name]
	if !ok {
		return Function{}, &UnknownFunctionError{Name: name}
	}
	return fn, nil
}

// SupportedFunctions returns the names of all callable functions in table order
func SupportedFunctions() []string {
	names := make([]string, len(functionTable))
	for i, fn := range functionTable {
		names[i] = fn.Name
	}
	return names
}

func sum(args []float64) float64 {
	total := 0.0
	for _, v := range args {
		total += v
	}
	return total
}

func avg(args []float64) float64 {
	return sum(args) / float64(len(args))
}

func minimum(args []float64) float64 {
	result := math.Inf(1)
	for _, v := range args {
		if math.IsNaN(v) {
			return v
		}
		result = math.Min(result, v)
	}
	return result
}

func maximum(args []float64) float64 {
	result := math.Inf(-1)
	for _, v := range args {
		if math.IsNaN(v) {
			return v
		}
		result = math.Max(result, v)
	}
	return result
}

// round scales by 10^decimals, rounds half away from zero and scales back
func round(args []float64) float64 {
	decimals := 0.0
	if len(args) > 1 {
		decimals = args[1]
	}
	factor := math.Pow(10, decimals)
	return math.Round(args[0]*factor) / factor
}

func pow(args []float64) float64 {
	return math.Pow(args[0], args[1])
}

// index expresses value as a percentage of base
func index(args []float64) float64 {
	return args[0] / args[1] * 100
}
