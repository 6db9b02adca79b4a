// Package symbols resolves callees and classes of a cfg.Program for the
// analyses: PHP function, method and class names are case-insensitive,
// may be fully qualified, and methods are inherited along extends chains.
package symbols

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/phpflow/pkg/cfg"
)

// NameCache provides efficient caching of canonical symbol names shared by
// the concurrent routine workers.
type NameCache struct {
	routineCache *xsync.Map[*cfg.Routine, string]
	nameCache    *xsync.Map[string, string]
}

func NewNameCache() *NameCache {
	return &NameCache{
		routineCache: xsync.NewMap[*cfg.Routine, string](),
		nameCache:    xsync.NewMap[string, string](),
	}
}

// RoutineName returns the canonical lookup key of r: "class::name" for
// methods and "name" for functions, both lower-cased.
func (c *NameCache) RoutineName(r *cfg.Routine) string {
	if r == nil {
		return ""
	}
	name, ok := c.routineCache.Load(r)
	if ok {
		return name
	}
	name = c.computeRoutineName(r)
	c.routineCache.Store(r, name)
	return name
}

// Canonical returns cfg.CanonicalName(name), cached.
func (c *NameCache) Canonical(name string) string {
	if name == "" {
		return ""
	}
	canon, ok := c.nameCache.Load(name)
	if ok {
		return canon
	}
	canon = cfg.CanonicalName(name)
	c.nameCache.Store(name, canon)
	return canon
}

func (c *NameCache) computeRoutineName(r *cfg.Routine) string {
	var builder strings.Builder
	builder.Grow(len(r.Class) + len(r.Name) + 2)
	if r.Class != "" {
		builder.WriteString(c.Canonical(r.Class))
		builder.WriteString("::")
	}
	builder.WriteString(c.Canonical(r.Name))
	return builder.String()
}
