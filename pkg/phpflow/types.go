package phpflow

// RoutineReport is the analysis outcome of one routine.
type RoutineReport struct {
	Name   string `json:"name" yaml:"name"`
	Return string `json:"return" yaml:"return"`
	// Vars maps every local variable that was assigned a type to its
	// rendered type-set.
	Vars map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
	// Exprs is the number of expressions with a resolved type.
	Exprs         int      `json:"exprs" yaml:"-"`
	Uninitialized []string `json:"uninitialized,omitempty" yaml:"uninitialized,omitempty"`
	// Unused lists the locals assigned but never read.
	Unused            []string `json:"unused,omitempty" yaml:"unused,omitempty"`
	UnreachableBlocks []string `json:"unreachable_blocks,omitempty" yaml:"unreachable_blocks,omitempty"`
	ParamCopies       []string `json:"param_copies,omitempty" yaml:"param_copies,omitempty"`
	DeepCopies        []string `json:"deep_copies,omitempty" yaml:"deep_copies,omitempty"`
	Visits            int      `json:"visits" yaml:"-"`
}

// Result is the analysis outcome of a program.
type Result struct {
	Routines            []*RoutineReport `json:"routines"`
	UnreachableRoutines []string         `json:"unreachable_routines,omitempty"`
	// Visits is the number of block visits of the type inference drain.
	Visits int `json:"visits"`
}

// Routine returns the report of the routine with the given qualified
// name, or nil.
func (r *Result) Routine(name string) *RoutineReport {
	for _, rr := range r.Routines {
		if rr.Name == name {
			return rr
		}
	}
	return nil
}

// HasFindings reports whether any routine reads a possibly uninitialized
// variable or holds dead code.
func (r *Result) HasFindings() bool {
	if len(r.UnreachableRoutines) > 0 {
		return true
	}
	for _, rr := range r.Routines {
		if len(rr.Uninitialized) > 0 || len(rr.UnreachableBlocks) > 0 {
			return true
		}
	}
	return false
}
