package ordering

import (
	"cmp"
	"slices"

	"agmerge/internal/ag"
)

// AnchorComparator orders the anchors of one graph, falling back on graph
// structure when offsets are missing or equal.
//
// The magnitude of a result says which rule decided it:
//
//	±1  offset bounds of unset anchors
//	±2  reachability through annotations
//	±3  ending anchor versus non-ending anchor
//	±4  starting anchor versus non-starting anchor
//	±5  ordinals of peers under the same parent
//	±6  ±7  one anchor bounds an ancestor of an annotation on the other
//	±8  ordinals beneath the deepest common ancestor
//	±9  ±10  offsets of the far ends of adjacent annotations
//
// Offset comparisons return -1 or 1 and identifiers decide the rest.
type AnchorComparator struct {
	// Granularity is the offset difference below which offsets are equal.
	Granularity float64

	cache *AncestorCache
}

// NewAnchorComparator returns a comparator using the graph's offset
// granularity. g may be nil.
func NewAnchorComparator(g *ag.Graph) *AnchorComparator {
	c := &AnchorComparator{cache: NewAncestorCache()}
	if g != nil {
		c.Granularity = g.OffsetGranularity
	}
	return c
}

// Reset invalidates cached ancestor chains. Call it after re-parenting.
func (c *AnchorComparator) Reset() {
	c.cache.Reset()
}

// Compare returns a negative number when a sorts before b, positive when
// after, and zero only when a and b are the same anchor or indistinguishable.
func (c *AnchorComparator) Compare(a, b *ag.Anchor) int {
	if a == b {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	if a.ID() > b.ID() {
		return -c.compare(b, a)
	}
	return c.compare(a, b)
}

func (c *AnchorComparator) compare(a1, a2 *ag.Anchor) int {
	if a1.Follows(a2) {
		return 2
	}
	if a1.Precedes(a2) {
		return -2
	}

	o1, ok1 := a1.Offset()
	o2, ok2 := a2.Offset()
	sameOffset := false
	if ok1 && ok2 {
		if r := CompareOffsets(o1, o2, c.Granularity); r != 0 {
			return r
		}
		sameOffset = true
	} else if r := c.compareBounds(a1, a2); r != 0 {
		return r
	}

	if sameOffset {
		if r := c.compareNeighbours(a1, a2); r != 0 {
			return r
		}
	}

	anns1 := incident(a1)
	anns2 := incident(a2)
	if r := c.compareHierarchy(a1, a2, anns1, anns2); r != 0 {
		return r
	}
	if r := c.compareCommonAncestor(anns1, anns2); r != 0 {
		return r
	}

	if sameOffset {
		end1, end2 := a1.EndsLive(), a2.EndsLive()
		if !end1 && end2 {
			return 3
		}
		if end1 && !end2 {
			return -3
		}
		start1, start2 := a1.StartsLive(), a2.StartsLive()
		if !start1 && start2 {
			return -4
		}
		if start1 && !start2 {
			return 4
		}
	}
	return cmp.Compare(a1.ID(), a2.ID())
}

// compareBounds orders anchors whose offset bounds do not overlap.
func (c *AnchorComparator) compareBounds(a1, a2 *ag.Anchor) int {
	min1, okMin1 := a1.OffsetMin()
	max2, okMax2 := a2.OffsetMax()
	if okMin1 && okMax2 && CompareOffsets(min1, max2, c.Granularity) > 0 {
		return 1
	}
	max1, okMax1 := a1.OffsetMax()
	min2, okMin2 := a2.OffsetMin()
	if okMax1 && okMin2 && CompareOffsets(max1, min2, c.Granularity) < 0 {
		return -1
	}
	return 0
}

// compareNeighbours breaks an offset tie by looking at the anchors at the
// other end of adjacent annotations.
func (c *AnchorComparator) compareNeighbours(a1, a2 *ag.Anchor) int {
	s1, ok1 := nearestStart(a1)
	s2, ok2 := nearestStart(a2)
	if ok1 && ok2 {
		switch CompareOffsets(s1, s2, c.Granularity) {
		case -1:
			return 9
		case 1:
			return -9
		}
	}
	e1, ok1 := nearestEnd(a1)
	e2, ok2 := nearestEnd(a2)
	if ok1 && ok2 {
		switch CompareOffsets(e1, e2, c.Granularity) {
		case -1:
			return 10
		case 1:
			return -10
		}
	}
	return 0
}

func (c *AnchorComparator) compareHierarchy(a1, a2 *ag.Anchor, anns1, anns2 []*ag.Annotation) int {
	for _, x := range anns1 {
		for _, y := range anns2 {
			if x == y {
				continue
			}
			if x.Parent() != nil && x.Parent() == y.Parent() && x.LayerID() == y.LayerID() {
				switch cmp.Compare(x.Ordinal(), y.Ordinal()) {
				case -1:
					return -5
				case 1:
					return 5
				}
			}
			if c.cache.IsAncestor(y, x) {
				if y.Start() == a2 {
					return 6
				}
				return -6
			}
			if c.cache.IsAncestor(x, y) {
				if x.Start() == a1 {
					return -7
				}
				return 7
			}
		}
	}
	return 0
}

// compareCommonAncestor compares the ordinals of the children of the deepest
// common ancestor that lead to each anchor.
func (c *AnchorComparator) compareCommonAncestor(anns1, anns2 []*ag.Annotation) int {
	var deepest, x1, x2 *ag.Annotation
	depth := -1
	for _, x := range anns1 {
		for _, y := range anns2 {
			if x == y {
				continue
			}
			fca := c.cache.CommonAncestor(x, y)
			if fca == nil {
				continue
			}
			if d := len(c.cache.Ancestors(fca)); d > depth {
				deepest, x1, x2, depth = fca, x, y, d
			}
		}
	}
	if deepest == nil {
		return 0
	}
	child1 := c.cache.childToward(deepest, x1)
	child2 := c.cache.childToward(deepest, x2)
	if child1 == nil || child2 == nil || child1 == child2 || child1.LayerID() != child2.LayerID() {
		return 0
	}
	if l := child1.Layer(); l == nil || l.IsTag() {
		return 0
	}
	switch cmp.Compare(child1.Ordinal(), child2.Ordinal()) {
	case 1:
		return 8
	case -1:
		return -8
	}
	return 0
}

// Sort sorts anchors in place.
func (c *AnchorComparator) Sort(anchors []*ag.Anchor) {
	slices.SortStableFunc(anchors, c.Compare)
}

// SortAnchors sorts anchors in place with a fresh comparator for g.
func SortAnchors(g *ag.Graph, anchors []*ag.Anchor) {
	NewAnchorComparator(g).Sort(anchors)
}

// incident lists the live annotations starting or ending at a.
func incident(a *ag.Anchor) []*ag.Annotation {
	var out []*ag.Annotation
	for _, an := range a.StartingAnnotations() {
		if !an.IsDestroyed() {
			out = append(out, an)
		}
	}
	for _, an := range a.EndingAnnotations() {
		if !an.IsDestroyed() && !slices.Contains(out, an) {
			out = append(out, an)
		}
	}
	return out
}

// nearestStart is the latest start offset of live annotations ending at a.
func nearestStart(a *ag.Anchor) (float64, bool) {
	var best float64
	found := false
	for _, an := range a.EndingAnnotations() {
		if an.IsDestroyed() || an.Start() == nil {
			continue
		}
		if o, ok := an.Start().Offset(); ok && (!found || o > best) {
			best, found = o, true
		}
	}
	return best, found
}

// nearestEnd is the earliest end offset of live annotations starting at a.
func nearestEnd(a *ag.Anchor) (float64, bool) {
	var best float64
	found := false
	for _, an := range a.StartingAnnotations() {
		if an.IsDestroyed() || an.End() == nil {
			continue
		}
		if o, ok := an.End().Offset(); ok && (!found || o < best) {
			best, found = o, true
		}
	}
	return best, found
}
