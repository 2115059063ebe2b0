package merge

import "agmerge/internal/ag"

// counterparts pairs annotations of the original graph with annotations of
// the edited graph. Pairing is symmetric and one to one: pairing either side
// again first releases its previous partner.
type counterparts map[*ag.Annotation]*ag.Annotation

func (c counterparts) pair(a, b *ag.Annotation) {
	if a == nil || b == nil {
		return
	}
	c.unpair(a)
	c.unpair(b)
	c[a] = b
	c[b] = a
}

func (c counterparts) unpair(an *ag.Annotation) {
	if other, ok := c[an]; ok {
		delete(c, other)
		delete(c, an)
	}
}

func (c counterparts) of(an *ag.Annotation) *ag.Annotation {
	if an == nil {
		return nil
	}
	return c[an]
}

func (c counterparts) has(an *ag.Annotation) bool {
	if an == nil {
		return false
	}
	_, ok := c[an]
	return ok
}

// allPaired reports whether every annotation in list has a counterpart.
func (c counterparts) allPaired(list []*ag.Annotation) bool {
	for _, an := range list {
		if !c.has(an) {
			return false
		}
	}
	return true
}
