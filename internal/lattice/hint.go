package lattice

import "strings"

// FromHint converts a declared PHP type (parameter or return type hint)
// into a type-set: "int", "?string", "int|false", "array", "Foo". An empty
// or unrecognized hint yields Any.
func (u *Universe) FromHint(hint string) TypeSet {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return Any
	}
	var t TypeSet
	if rest, ok := strings.CutPrefix(hint, "?"); ok {
		t |= u.Null()
		hint = rest
	}
	for _, part := range strings.Split(hint, "|") {
		t |= u.fromSimpleHint(strings.TrimSpace(part))
	}
	return t
}

func (u *Universe) fromSimpleHint(hint string) TypeSet {
	switch strings.ToLower(hint) {
	case "int", "integer":
		return u.Long()
	case "float", "double":
		return u.Double()
	case "number":
		return u.Number()
	case "string":
		return u.Str()
	case "bool", "boolean", "false", "true":
		return u.Bool()
	case "array":
		return u.Array(Any)
	case "null":
		return u.Null()
	case "void", "never":
		return Void
	case "callable":
		return u.Callable() | u.Closure() | u.Str() | u.Array(Any)
	case "closure":
		return u.Closure()
	case "object":
		return u.Object("")
	case "resource":
		return u.Resource()
	case "mixed", "iterable", "self", "static", "parent", "":
		return Any
	}
	return u.Object(hint)
}
