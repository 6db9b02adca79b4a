// Package flow implements flow environments: per-block snapshots of the
// type-sets of a routine's local variables, and the routine-wide context
// they share.
package flow

import (
	"github.com/715d/phpflow/internal/lattice"
)

// maskBits is the number of slots tracked precisely by the 64-bit masks.
const maskBits = 64

// returnVar names the synthetic return-value slot; '<' cannot appear in a
// PHP variable name.
const returnVar = "<return>"

// Usage is the per-routine side table of variables read at least once. It
// is shared by every State of the routine; bits are only ever set.
type Usage struct {
	used uint64
}

// Context is the state shared by every flow environment of one routine:
// the type universe, the slot table, the may-be-referenced mask, the
// accumulated type of every slot and the usage table. A Context is owned by
// a single routine analysis and is not safe for concurrent use.
type Context struct {
	Types *lattice.Universe

	slots      map[string]int
	names      []string
	referenced uint64
	acc        []lattice.TypeSet
	returnSlot int
	usage      *Usage
}

// NewContext creates the context of a routine whose locals are names.
func NewContext(names []string) *Context {
	c := &Context{
		Types: lattice.NewUniverse(),
		slots: make(map[string]int, len(names)+1),
		usage: &Usage{},
	}
	for _, n := range names {
		c.addSlot(n)
	}
	c.returnSlot = c.addSlot(returnVar)
	return c
}

func (c *Context) addSlot(name string) int {
	if idx, ok := c.slots[name]; ok {
		return idx
	}
	idx := len(c.names)
	c.slots[name] = idx
	c.names = append(c.names, name)
	c.acc = append(c.acc, lattice.Void)
	return idx
}

// Slot returns the slot index of name.
func (c *Context) Slot(name string) (int, bool) {
	idx, ok := c.slots[name]
	return idx, ok
}

// Len returns the number of slots, the return slot included.
func (c *Context) Len() int { return len(c.names) }

// Names lists the local variable names in slot order, without the return
// slot.
func (c *Context) Names() []string {
	out := make([]string, 0, len(c.names)-1)
	for i, n := range c.names {
		if i != c.returnSlot {
			out = append(out, n)
		}
	}
	return out
}

// ReturnSlot returns the index of the synthetic return-value slot.
func (c *Context) ReturnSlot() int { return c.returnSlot }

// SetReferenced flags name as possibly aliased for the rest of the routine.
func (c *Context) SetReferenced(name string) {
	if idx, ok := c.slots[name]; ok && idx < maskBits {
		c.referenced |= 1 << idx
	}
}

// SetAllReferenced flags every slot as possibly aliased; used when a
// dynamic variable access could touch any local.
func (c *Context) SetAllReferenced() {
	c.referenced = ^uint64(0)
}

// IsReferenced reports whether name may be aliased. Unknown names and slots
// beyond the mask are always considered referenced.
func (c *Context) IsReferenced(name string) bool {
	idx, ok := c.slots[name]
	if !ok || idx >= maskBits {
		return true
	}
	return c.referenced&(1<<idx) != 0
}

// SetUsed records a read of name.
func (c *Context) SetUsed(name string) {
	if idx, ok := c.slots[name]; ok && idx < maskBits {
		c.usage.used |= 1 << idx
	}
}

// IsUsed reports whether name was read. Slots beyond the mask are never
// reported unused.
func (c *Context) IsUsed(name string) bool {
	idx, ok := c.slots[name]
	if !ok || idx >= maskBits {
		return true
	}
	return c.usage.used&(1<<idx) != 0
}

// Accumulated returns the union of every type ever assigned to name.
func (c *Context) Accumulated(name string) lattice.TypeSet {
	idx, ok := c.slots[name]
	if !ok {
		return lattice.Any
	}
	return c.acc[idx]
}

// AccumulatedReturn returns the union of every returned type.
func (c *Context) AccumulatedReturn() lattice.TypeSet {
	return c.acc[c.returnSlot]
}

func (c *Context) accumulate(idx int, t lattice.TypeSet) {
	c.acc[idx] |= t
}
