package ordering

import "agmerge/internal/ag"

// AncestorCache memoizes annotation ancestor chains for the duration of one
// sort. Call Reset after any parent change.
type AncestorCache struct {
	chains map[*ag.Annotation][]*ag.Annotation
	sets   map[*ag.Annotation]map[*ag.Annotation]bool
}

// NewAncestorCache returns an empty cache.
func NewAncestorCache() *AncestorCache {
	c := &AncestorCache{}
	c.Reset()
	return c
}

// Reset discards every cached chain.
func (c *AncestorCache) Reset() {
	c.chains = make(map[*ag.Annotation][]*ag.Annotation)
	c.sets = make(map[*ag.Annotation]map[*ag.Annotation]bool)
}

// Ancestors returns the ancestors of an, nearest first.
func (c *AncestorCache) Ancestors(an *ag.Annotation) []*ag.Annotation {
	if chain, ok := c.chains[an]; ok {
		return chain
	}
	chain := an.Ancestors()
	set := make(map[*ag.Annotation]bool, len(chain))
	for _, p := range chain {
		set[p] = true
	}
	c.chains[an] = chain
	c.sets[an] = set
	return chain
}

// IsAncestor reports whether ancestor is a strict ancestor of an.
func (c *AncestorCache) IsAncestor(ancestor, an *ag.Annotation) bool {
	c.Ancestors(an)
	return c.sets[an][ancestor]
}

// CommonAncestor returns the nearest annotation that is x or one of its
// ancestors and also y or one of its ancestors.
func (c *AncestorCache) CommonAncestor(x, y *ag.Annotation) *ag.Annotation {
	if x == y || c.IsAncestor(y, x) {
		return y
	}
	if c.IsAncestor(x, y) {
		return x
	}
	for _, p := range c.Ancestors(x) {
		if c.IsAncestor(p, y) {
			return p
		}
	}
	return nil
}

// childToward returns the element of an's chain whose parent is ancestor.
func (c *AncestorCache) childToward(ancestor, an *ag.Annotation) *ag.Annotation {
	if an.Parent() == ancestor {
		return an
	}
	for _, p := range c.Ancestors(an) {
		if p.Parent() == ancestor {
			return p
		}
	}
	return nil
}
