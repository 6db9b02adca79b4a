package typeinf

// builtin describes a PHP library function the program does not declare.
type builtin struct {
	// returns is the declared return type; empty means unknown.
	returns string
	byRef   byRefFunc
}

func refs(positions ...int) byRefFunc {
	return func(i int) bool {
		for _, p := range positions {
			if p == i || (p < 0 && i >= -p-1) {
				return true
			}
		}
		return false
	}
}

func ret(hint string) builtin { return builtin{returns: hint, byRef: noByRef} }

// builtins lists the library functions whose result or by-reference
// behavior is modeled. A negative position -n flags argument n-1 and every
// later one.
var builtins = map[string]builtin{
	"count":            ret("int"),
	"sizeof":           ret("int"),
	"strlen":           ret("int"),
	"mb_strlen":        ret("int"),
	"intval":           ret("int"),
	"rand":             ret("int"),
	"mt_rand":          ret("int"),
	"random_int":       ret("int"),
	"time":             ret("int"),
	"ord":              ret("int"),
	"strcmp":           ret("int"),
	"strpos":           ret("int|false"),
	"stripos":          ret("int|false"),
	"strrpos":          ret("int|false"),
	"array_search":     ret("int|string|false"),
	"floatval":         ret("float"),
	"microtime":        ret("float|string"),
	"sqrt":             ret("float"),
	"floor":            ret("float"),
	"ceil":             ret("float"),
	"round":            ret("float"),
	"pi":               ret("float"),
	"abs":              ret("int|float"),
	"max":              ret(""),
	"min":              ret(""),
	"strval":           ret("string"),
	"implode":          ret("string"),
	"join":             ret("string"),
	"sprintf":          ret("string"),
	"str_repeat":       ret("string"),
	"strtolower":       ret("string"),
	"strtoupper":       ret("string"),
	"trim":             ret("string"),
	"ltrim":            ret("string"),
	"rtrim":            ret("string"),
	"substr":           ret("string"),
	"chr":              ret("string"),
	"json_encode":      ret("string|false"),
	"serialize":        ret("string"),
	"var_export":       ret("?string"),
	"print_r":          ret("string|bool"),
	"gettype":          ret("string"),
	"get_class":        ret("string"),
	"dirname":          ret("string"),
	"basename":         ret("string"),
	"number_format":    ret("string"),
	"str_pad":          ret("string"),
	"explode":          ret("array"),
	"array_keys":       ret("array"),
	"array_values":     ret("array"),
	"array_merge":      ret("array"),
	"array_map":        ret("array"),
	"array_filter":     ret("array"),
	"array_slice":      ret("array"),
	"array_reverse":    ret("array"),
	"array_unique":     ret("array"),
	"array_fill":       ret("array"),
	"range":            ret("array"),
	"str_split":        ret("array"),
	"func_get_args":    ret("array"),
	"is_null":          ret("bool"),
	"is_bool":          ret("bool"),
	"is_int":           ret("bool"),
	"is_integer":       ret("bool"),
	"is_long":          ret("bool"),
	"is_float":         ret("bool"),
	"is_double":        ret("bool"),
	"is_string":        ret("bool"),
	"is_array":         ret("bool"),
	"is_object":        ret("bool"),
	"is_numeric":       ret("bool"),
	"is_callable":      ret("bool"),
	"in_array":         ret("bool"),
	"array_key_exists": ret("bool"),
	"function_exists":  ret("bool"),
	"method_exists":    ret("bool"),
	"class_exists":     ret("bool"),
	"defined":          ret("bool"),
	"define":           ret("bool"),
	"settype":          {returns: "bool", byRef: refs(0)},
	"sort":             {returns: "bool", byRef: refs(0)},
	"rsort":            {returns: "bool", byRef: refs(0)},
	"usort":            {returns: "bool", byRef: refs(0)},
	"uasort":           {returns: "bool", byRef: refs(0)},
	"uksort":           {returns: "bool", byRef: refs(0)},
	"ksort":            {returns: "bool", byRef: refs(0)},
	"krsort":           {returns: "bool", byRef: refs(0)},
	"asort":            {returns: "bool", byRef: refs(0)},
	"arsort":           {returns: "bool", byRef: refs(0)},
	"shuffle":          {returns: "bool", byRef: refs(0)},
	"array_push":       {returns: "int", byRef: refs(0)},
	"array_unshift":    {returns: "int", byRef: refs(0)},
	"array_pop":        {byRef: refs(0)},
	"array_shift":      {byRef: refs(0)},
	"array_splice":     {returns: "array", byRef: refs(0)},
	"reset":            {byRef: refs(0)},
	"end":              {byRef: refs(0)},
	"next":             {byRef: refs(0)},
	"prev":             {byRef: refs(0)},
	"preg_match":       {returns: "int|false", byRef: refs(2)},
	"preg_match_all":   {returns: "int|false", byRef: refs(2)},
	"str_replace":      {byRef: refs(3)},
	"parse_str":        {byRef: refs(1)},
	"exec":             {returns: "string|false", byRef: refs(1, 2)},
	"sscanf":           {byRef: refs(-3)},
}
