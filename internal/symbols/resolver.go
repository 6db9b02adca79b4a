package symbols

import (
	"log/slog"

	"github.com/715d/phpflow/pkg/cfg"
)

// maxDepth bounds extends-chain walks so that cyclic declarations
// terminate.
const maxDepth = 64

// Resolver answers the symbol queries of the type-inference engine. It is
// immutable after construction and safe for concurrent use.
type Resolver struct {
	Names *NameCache

	functions map[string][]*cfg.Routine
	classes   map[string]*cfg.Class
	methods   map[string][]*cfg.Routine // method name -> every declaration
	owner     map[*cfg.Routine]*cfg.Class
}

// NewResolver indexes the functions, library routines and classes of p.
func NewResolver(p *cfg.Program) *Resolver {
	r := &Resolver{
		Names:     NewNameCache(),
		functions: make(map[string][]*cfg.Routine),
		classes:   make(map[string]*cfg.Class),
		methods:   make(map[string][]*cfg.Routine),
		owner:     make(map[*cfg.Routine]*cfg.Class),
	}
	for _, fn := range p.Routines {
		key := r.Names.Canonical(fn.Name)
		r.functions[key] = append(r.functions[key], fn)
	}
	for _, fn := range p.Library {
		if fn.Class != "" {
			continue
		}
		key := r.Names.Canonical(fn.Name)
		r.functions[key] = append(r.functions[key], fn)
	}
	for _, c := range p.Classes {
		key := r.Names.Canonical(c.Name)
		if _, dup := r.classes[key]; dup {
			slog.Warn("duplicate class declaration", "class", c.Name)
			continue
		}
		r.classes[key] = c
		for _, m := range c.Methods {
			name := r.Names.Canonical(m.Name)
			r.methods[name] = append(r.methods[name], m)
			r.owner[m] = c
		}
	}
	return r
}

// Functions returns the candidate free functions named name.
func (r *Resolver) Functions(name string) []*cfg.Routine {
	return r.functions[r.Names.Canonical(name)]
}

// Function returns the unique free function named name, or nil when the
// name is unknown or ambiguous.
func (r *Resolver) Function(name string) *cfg.Routine {
	return Unique(r.Functions(name))
}

// Class returns the class named name.
func (r *Resolver) Class(name string) *cfg.Class {
	return r.classes[r.Names.Canonical(name)]
}

// ClassOf returns the class declaring method m.
func (r *Resolver) ClassOf(m *cfg.Routine) *cfg.Class {
	return r.owner[m]
}

// ClassName resolves self, static and parent relative to the class of
// caller; other names are returned unchanged. It returns "" when the
// relative name cannot be resolved.
func (r *Resolver) ClassName(caller *cfg.Routine, name string) string {
	switch r.Names.Canonical(name) {
	case "self", "static":
		if caller == nil {
			return ""
		}
		return caller.Class
	case "parent":
		if caller == nil {
			return ""
		}
		if c := r.Class(caller.Class); c != nil {
			return c.Extends
		}
		return ""
	}
	return name
}

// Method resolves name in class and its ancestors.
func (r *Resolver) Method(class, name string) *cfg.Routine {
	key := r.Names.Canonical(name)
	c := r.Class(class)
	for depth := 0; c != nil && depth < maxDepth; depth++ {
		for _, m := range c.Methods {
			if r.Names.Canonical(m.Name) == key {
				return m
			}
		}
		c = r.Class(c.Extends)
	}
	return nil
}

// MethodCandidates resolves name on a receiver whose possible classes are
// classes. An empty list means the receiver class is unknown and every
// declaration of the method is a candidate.
func (r *Resolver) MethodCandidates(classes []string, name string) []*cfg.Routine {
	if len(classes) == 0 {
		return r.methods[r.Names.Canonical(name)]
	}
	var out []*cfg.Routine
	seen := make(map[*cfg.Routine]struct{})
	for _, class := range classes {
		m := r.Method(class, name)
		if m == nil {
			continue
		}
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Constructor returns the __construct method of class or its ancestors.
func (r *Resolver) Constructor(class string) *cfg.Routine {
	return r.Method(class, "__construct")
}

// IsSubclassOf reports whether class is base or extends it, directly or
// transitively. Unknown classes are subclasses of nothing but themselves.
func (r *Resolver) IsSubclassOf(class, base string) bool {
	want := r.Names.Canonical(base)
	name := class
	for depth := 0; name != "" && depth < maxDepth; depth++ {
		if r.Names.Canonical(name) == want {
			return true
		}
		c := r.Class(name)
		if c == nil {
			return false
		}
		name = c.Extends
	}
	return false
}

// Unique returns the only element of candidates, or nil.
func Unique(candidates []*cfg.Routine) *cfg.Routine {
	if len(candidates) != 1 {
		return nil
	}
	return candidates[0]
}
