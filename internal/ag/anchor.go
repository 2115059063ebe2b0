package ag

import "fmt"

// Anchor is a point in the graph's coordinate space that bounds annotations.
type Anchor struct {
	entity
	offset        float64
	hasOffset     bool
	confidence    int
	hasConfidence bool

	starts []*Annotation
	ends   []*Annotation
}

// NewAnchor returns a detached anchor with no offset.
func NewAnchor(id string) *Anchor {
	return &Anchor{entity: entity{id: id}}
}

// NewAnchorAt returns a detached anchor with an offset and confidence.
func NewAnchorAt(id string, offset float64, confidence int) *Anchor {
	return &Anchor{
		entity:        entity{id: id},
		offset:        offset,
		hasOffset:     true,
		confidence:    confidence,
		hasConfidence: true,
	}
}

func (a *Anchor) String() string {
	if a == nil {
		return "<nil>"
	}
	if !a.hasOffset {
		return a.id + "[?]"
	}
	return fmt.Sprintf("%s[%g]", a.id, a.offset)
}

// Offset returns the offset and whether it is set.
func (a *Anchor) Offset() (float64, bool) { return a.offset, a.hasOffset }

// HasOffset reports whether the offset is set.
func (a *Anchor) HasOffset() bool { return a.hasOffset }

// SetOffset sets the offset. Setting the current value is a no-op.
func (a *Anchor) SetOffset(v float64) {
	if a.hasOffset && a.offset == v {
		return
	}
	old := optFloat(a.offset, a.hasOffset)
	a.offset, a.hasOffset = v, true
	a.update(KindAnchor, KeyOffset, old, v)
}

// ClearOffset unsets the offset.
func (a *Anchor) ClearOffset() {
	if !a.hasOffset {
		return
	}
	old := a.offset
	a.offset, a.hasOffset = 0, false
	a.update(KindAnchor, KeyOffset, old, nil)
}

// Confidence returns the offset confidence and whether it is set.
func (a *Anchor) Confidence() (int, bool) { return a.confidence, a.hasConfidence }

// ConfidenceOr returns the confidence, or fallback when unset.
func (a *Anchor) ConfidenceOr(fallback int) int {
	if !a.hasConfidence {
		return fallback
	}
	return a.confidence
}

// SetConfidence sets the offset confidence.
func (a *Anchor) SetConfidence(c int) {
	if a.hasConfidence && a.confidence == c {
		return
	}
	old := optInt(a.confidence, a.hasConfidence)
	a.confidence, a.hasConfidence = c, true
	a.update(KindAnchor, KeyConfidence, old, c)
}

// OriginalOffset returns the offset before the first uncommitted change.
func (a *Anchor) OriginalOffset() (float64, bool) {
	v, _ := a.original(KeyOffset, optFloat(a.offset, a.hasOffset))
	f, ok := v.(float64)
	return f, ok
}

// OffsetChanged reports whether the offset has an uncommitted change.
func (a *Anchor) OffsetChanged() bool {
	_, ok := a.originals[KeyOffset]
	return ok
}

// RollbackOffset restores the offset and confidence to their committed values.
func (a *Anchor) RollbackOffset() {
	if v, ok := a.originals[KeyOffset]; ok {
		if f, isSet := v.(float64); isSet {
			a.SetOffset(f)
		} else {
			a.ClearOffset()
		}
	}
	if v, ok := a.originals[KeyConfidence]; ok {
		if c, isSet := v.(int); isSet {
			a.SetConfidence(c)
		} else {
			old := optInt(a.confidence, a.hasConfidence)
			a.confidence, a.hasConfidence = 0, false
			a.update(KindAnchor, KeyConfidence, old, nil)
		}
	}
}

// Destroy marks the anchor for removal.
func (a *Anchor) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	a.emit(Change{Operation: Destroy, Kind: KindAnchor, ObjectID: a.id})
}

// StartingAnnotations lists every annotation, live or not, that starts here.
func (a *Anchor) StartingAnnotations() []*Annotation { return a.starts }

// EndingAnnotations lists every annotation, live or not, that ends here.
func (a *Anchor) EndingAnnotations() []*Annotation { return a.ends }

// StartOf lists annotations on layerID that start here.
func (a *Anchor) StartOf(layerID string) []*Annotation { return filterLayer(a.starts, layerID) }

// EndOf lists annotations on layerID that end here.
func (a *Anchor) EndOf(layerID string) []*Annotation { return filterLayer(a.ends, layerID) }

// LiveStartOf lists live annotations on layerID that start here.
func (a *Anchor) LiveStartOf(layerID string) []*Annotation {
	return filterLive(filterLayer(a.starts, layerID))
}

// LiveEndOf lists live annotations on layerID that end here.
func (a *Anchor) LiveEndOf(layerID string) []*Annotation {
	return filterLive(filterLayer(a.ends, layerID))
}

// StartLayers lists the layer ids of annotations starting here, in first-seen
// order.
func (a *Anchor) StartLayers() []string { return layerIDs(a.starts) }

// EndLayers lists the layer ids of annotations ending here, in first-seen order.
func (a *Anchor) EndLayers() []string { return layerIDs(a.ends) }

// StartsLive reports whether any live annotation starts here.
func (a *Anchor) StartsLive() bool { return anyLive(a.starts) }

// EndsLive reports whether any live annotation ends here.
func (a *Anchor) EndsLive() bool { return anyLive(a.ends) }

// Linked reports whether any live annotation references this anchor.
func (a *Anchor) Linked() bool { return anyLive(a.starts) || anyLive(a.ends) }

// AnnotationTo returns a live annotation that starts here and ends at end.
func (a *Anchor) AnnotationTo(end *Anchor) *Annotation {
	if end == nil {
		return nil
	}
	for _, an := range a.starts {
		if !an.destroyed && an.end == end {
			return an
		}
	}
	return nil
}

// Precedes reports whether other is reachable by following live, non-instant
// annotations forward from this anchor. When other has an offset, branches
// passing an anchor with a later offset are not explored.
func (a *Anchor) Precedes(other *Anchor) bool {
	if other == nil || other == a {
		return false
	}
	limit, bounded := other.Offset()
	visited := map[*Anchor]bool{a: true}
	queue := []*Anchor{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, an := range cur.starts {
			if an.destroyed || an.end == nil || an.end == cur {
				continue
			}
			next := an.end
			if next == other {
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if bounded {
				if o, ok := next.Offset(); ok && o > limit {
					continue
				}
			}
			queue = append(queue, next)
		}
	}
	return false
}

// Follows reports whether this anchor is reachable forward from other.
func (a *Anchor) Follows(other *Anchor) bool {
	if other == nil {
		return false
	}
	return other.Precedes(a)
}

// OffsetMin returns the anchor's offset, or else the latest offset reachable
// by walking backward through annotations ending here.
func (a *Anchor) OffsetMin() (float64, bool) {
	return a.bound(map[*Anchor]bool{}, true)
}

// OffsetMax returns the anchor's offset, or else the earliest offset reachable
// by walking forward through annotations starting here.
func (a *Anchor) OffsetMax() (float64, bool) {
	return a.bound(map[*Anchor]bool{}, false)
}

func (a *Anchor) bound(visited map[*Anchor]bool, backward bool) (float64, bool) {
	if a.hasOffset {
		return a.offset, true
	}
	if visited[a] {
		return 0, false
	}
	visited[a] = true
	var best float64
	found := false
	list := a.starts
	if backward {
		list = a.ends
	}
	for _, an := range list {
		if an.destroyed || an.start == an.end {
			continue
		}
		next := an.end
		if backward {
			next = an.start
		}
		if next == nil {
			continue
		}
		v, ok := next.bound(visited, backward)
		if !ok {
			continue
		}
		if !found || (backward && v > best) || (!backward && v < best) {
			best, found = v, true
		}
	}
	return best, found
}

func (a *Anchor) attachStart(an *Annotation) { a.starts = appendOnce(a.starts, an) }
func (a *Anchor) attachEnd(an *Annotation)   { a.ends = appendOnce(a.ends, an) }
func (a *Anchor) detachStart(an *Annotation) { a.starts = without(a.starts, an) }
func (a *Anchor) detachEnd(an *Annotation)   { a.ends = without(a.ends, an) }

func appendOnce(list []*Annotation, an *Annotation) []*Annotation {
	for _, x := range list {
		if x == an {
			return list
		}
	}
	return append(list, an)
}

func without(list []*Annotation, an *Annotation) []*Annotation {
	for i, x := range list {
		if x == an {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func filterLayer(list []*Annotation, layerID string) []*Annotation {
	var out []*Annotation
	for _, an := range list {
		if an.layerID == layerID {
			out = append(out, an)
		}
	}
	return out
}

func filterLive(list []*Annotation) []*Annotation {
	out := list[:0:0]
	for _, an := range list {
		if !an.destroyed {
			out = append(out, an)
		}
	}
	return out
}

func anyLive(list []*Annotation) bool {
	for _, an := range list {
		if !an.destroyed {
			return true
		}
	}
	return false
}

func layerIDs(list []*Annotation) []string {
	var out []string
	seen := make(map[string]bool)
	for _, an := range list {
		if !seen[an.layerID] {
			seen[an.layerID] = true
			out = append(out, an.layerID)
		}
	}
	return out
}
