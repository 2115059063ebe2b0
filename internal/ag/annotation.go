package ag

import (
	"fmt"
	"math"
	"slices"
)

// OrdinalMinimum is the ordinal of the first live child of a parent on a layer.
const OrdinalMinimum = 1

// Annotation is a labeled span or point on one layer.
type Annotation struct {
	entity
	layerID       string
	label         string
	confidence    int
	hasConfidence bool
	start         *Anchor
	end           *Anchor
	parent        *Annotation
	ordinal       int

	children    map[string][]*Annotation
	childLayers []string
}

// NewAnnotation returns a detached annotation.
func NewAnnotation(id, layerID, label string) *Annotation {
	return &Annotation{entity: entity{id: id}, layerID: layerID, label: label}
}

func (a *Annotation) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s#%s", a.layerID, a.label, a.id)
}

// LayerID returns the layer id.
func (a *Annotation) LayerID() string { return a.layerID }

// Layer returns the schema layer, or nil when the layer is unknown.
func (a *Annotation) Layer() *Layer {
	if a.graph == nil {
		return nil
	}
	return a.graph.schema.Layer(a.layerID)
}

// Label returns the label.
func (a *Annotation) Label() string { return a.label }

// OriginalLabel returns the label before the first uncommitted change.
func (a *Annotation) OriginalLabel() string {
	v, _ := a.original(KeyLabel, a.label)
	s, _ := v.(string)
	return s
}

// SetLabel sets the label.
func (a *Annotation) SetLabel(label string) {
	if a.label == label {
		return
	}
	old := a.label
	a.label = label
	a.update(KindAnnotation, KeyLabel, old, label)
}

// Confidence returns the label confidence and whether it is set.
func (a *Annotation) Confidence() (int, bool) { return a.confidence, a.hasConfidence }

// ConfidenceOr returns the label confidence, or fallback when unset.
func (a *Annotation) ConfidenceOr(fallback int) int {
	if !a.hasConfidence {
		return fallback
	}
	return a.confidence
}

// SetConfidence sets the label confidence.
func (a *Annotation) SetConfidence(c int) {
	if a.hasConfidence && a.confidence == c {
		return
	}
	old := optInt(a.confidence, a.hasConfidence)
	a.confidence, a.hasConfidence = c, true
	a.update(KindAnnotation, KeyConfidence, old, c)
}

// Start returns the start anchor.
func (a *Annotation) Start() *Anchor { return a.start }

// End returns the end anchor.
func (a *Annotation) End() *Anchor { return a.end }

// StartID returns the start anchor id, or "".
func (a *Annotation) StartID() string { return anchorID(a.start) }

// EndID returns the end anchor id, or "".
func (a *Annotation) EndID() string { return anchorID(a.end) }

// OriginalStartID returns the start anchor id before the first uncommitted change.
func (a *Annotation) OriginalStartID() string {
	v, _ := a.original(KeyStartID, a.StartID())
	s, _ := v.(string)
	return s
}

// OriginalEndID returns the end anchor id before the first uncommitted change.
func (a *Annotation) OriginalEndID() string {
	v, _ := a.original(KeyEndID, a.EndID())
	s, _ := v.(string)
	return s
}

// SetStart moves the start to anchor. Tag-layer children follow.
func (a *Annotation) SetStart(anchor *Anchor) {
	if a.start == anchor {
		return
	}
	old := a.StartID()
	a.linkStart(anchor)
	a.update(KindAnnotation, KeyStartID, old, anchorID(anchor))
	for _, child := range a.tagChildren() {
		child.SetStart(anchor)
	}
}

// SetEnd moves the end to anchor. Tag-layer children follow.
func (a *Annotation) SetEnd(anchor *Anchor) {
	if a.end == anchor {
		return
	}
	old := a.EndID()
	a.linkEnd(anchor)
	a.update(KindAnnotation, KeyEndID, old, anchorID(anchor))
	for _, child := range a.tagChildren() {
		child.SetEnd(anchor)
	}
}

func (a *Annotation) linkStart(anchor *Anchor) {
	if a.start != nil {
		a.start.detachStart(a)
	}
	a.start = anchor
	if anchor != nil {
		anchor.attachStart(a)
	}
}

func (a *Annotation) linkEnd(anchor *Anchor) {
	if a.end != nil {
		a.end.detachEnd(a)
	}
	a.end = anchor
	if anchor != nil {
		anchor.attachEnd(a)
	}
}

func (a *Annotation) tagChildren() []*Annotation {
	if a.graph == nil {
		return nil
	}
	var out []*Annotation
	for _, layerID := range a.childLayers {
		l := a.graph.schema.Layer(layerID)
		if l == nil || !l.IsTag() {
			continue
		}
		out = append(out, filterLive(a.children[layerID])...)
	}
	return out
}

// Parent returns the parent annotation. Top-level annotations have the graph
// root as parent.
func (a *Annotation) Parent() *Annotation { return a.parent }

// ParentID returns the parent id, or "".
func (a *Annotation) ParentID() string {
	if a.parent == nil {
		return ""
	}
	return a.parent.id
}

// OriginalParentID returns the parent id before the first uncommitted change.
func (a *Annotation) OriginalParentID() string {
	v, _ := a.original(KeyParentID, a.ParentID())
	s, _ := v.(string)
	return s
}

// SetParent moves the annotation beneath p. With appendLast the annotation
// becomes p's last live child on its layer; otherwise it is placed by its
// current ordinal. Tag-layer annotations adopt p's anchors.
func (a *Annotation) SetParent(p *Annotation, appendLast bool) {
	if a.parent == p {
		return
	}
	old := a.ParentID()
	a.unlinkParent()
	a.parent = p
	if p != nil {
		if appendLast {
			n := len(filterLive(p.children[a.layerID]))
			p.addChild(a)
			a.setOrdinalRaw(n + OrdinalMinimum)
		} else {
			p.insertChild(a)
		}
	}
	a.update(KindAnnotation, KeyParentID, old, a.ParentID())
	if l := a.Layer(); l != nil && l.IsTag() && p != nil {
		a.SetStart(p.start)
		a.SetEnd(p.end)
	}
}

func (a *Annotation) unlinkParent() {
	if a.parent == nil {
		return
	}
	a.parent.children[a.layerID] = without(a.parent.children[a.layerID], a)
}

func (a *Annotation) addChild(child *Annotation) {
	if a.children == nil {
		a.children = make(map[string][]*Annotation)
	}
	if _, ok := a.children[child.layerID]; !ok {
		a.childLayers = append(a.childLayers, child.layerID)
	}
	a.children[child.layerID] = appendOnce(a.children[child.layerID], child)
}

// insertChild places child before the first peer with a greater ordinal.
func (a *Annotation) insertChild(child *Annotation) {
	a.addChild(child)
	peers := without(a.children[child.layerID], child)
	idx := len(peers)
	if child.ordinal > 0 {
		for i, p := range peers {
			if p.ordinal > child.ordinal {
				idx = i
				break
			}
		}
	}
	a.children[child.layerID] = slices.Insert(peers, idx, child)
}

// Ordinal returns the position among same-parent same-layer peers. An
// unassigned ordinal is derived from the number of live peers before it.
func (a *Annotation) Ordinal() int {
	if a.ordinal > 0 || a.parent == nil {
		return a.ordinal
	}
	n := OrdinalMinimum
	for _, p := range a.parent.children[a.layerID] {
		if p == a {
			break
		}
		if !p.destroyed {
			n++
		}
	}
	return n
}

// OriginalOrdinal returns the ordinal before the first uncommitted change.
func (a *Annotation) OriginalOrdinal() int {
	v, _ := a.original(KeyOrdinal, a.Ordinal())
	n, _ := v.(int)
	return n
}

// SetOrdinal moves the annotation to position n among its live peers and
// renumbers the peers so ordinals stay unique and contiguous.
func (a *Annotation) SetOrdinal(n int) {
	if n < OrdinalMinimum {
		n = OrdinalMinimum
	}
	if a.parent == nil {
		a.setOrdinalRaw(n)
		return
	}
	if a.ordinal == n {
		return
	}
	peers := without(a.parent.children[a.layerID], a)
	idx := len(peers)
	live := OrdinalMinimum
	for i, p := range peers {
		if p.destroyed {
			continue
		}
		if live == n {
			idx = i
			break
		}
		live++
	}
	a.parent.children[a.layerID] = slices.Insert(peers, idx, a)
	a.setOrdinalRaw(n)
	a.parent.CorrectOrdinals(a.layerID)
}

func (a *Annotation) setOrdinalRaw(n int) {
	if a.ordinal == n {
		return
	}
	old := a.ordinal
	a.ordinal = n
	if old == 0 {
		// first assignment is not a change
		return
	}
	a.update(KindAnnotation, KeyOrdinal, old, n)
}

// CorrectOrdinals renumbers the live children on layerID from OrdinalMinimum
// in their current order. It reports whether any ordinal changed.
func (a *Annotation) CorrectOrdinals(layerID string) bool {
	changed := false
	n := OrdinalMinimum
	for _, c := range a.children[layerID] {
		if c.destroyed {
			continue
		}
		if c.ordinal != n {
			c.setOrdinalRaw(n)
			changed = true
		}
		n++
	}
	return changed
}

// SortChildren reorders the children on layerID by cmp and renumbers them.
func (a *Annotation) SortChildren(layerID string, cmp func(x, y *Annotation) int) bool {
	kids := slices.Clone(a.children[layerID])
	slices.SortStableFunc(kids, cmp)
	a.children[layerID] = kids
	return a.CorrectOrdinals(layerID)
}

// ChildLayerIDs lists the layers that have children, in first-seen order.
func (a *Annotation) ChildLayerIDs() []string { return slices.Clone(a.childLayers) }

// Children lists all children on layerID, including destroyed ones, in ordinal
// order.
func (a *Annotation) Children(layerID string) []*Annotation {
	return slices.Clone(a.children[layerID])
}

// LiveChildren lists the live children on layerID in ordinal order.
func (a *Annotation) LiveChildren(layerID string) []*Annotation {
	return filterLive(a.children[layerID])
}

// FirstChild returns the first live child on layerID, or nil.
func (a *Annotation) FirstChild(layerID string) *Annotation {
	for _, c := range a.children[layerID] {
		if !c.destroyed {
			return c
		}
	}
	return nil
}

// LastChild returns the last live child on layerID, or nil.
func (a *Annotation) LastChild(layerID string) *Annotation {
	kids := a.children[layerID]
	for i := len(kids) - 1; i >= 0; i-- {
		if !kids[i].destroyed {
			return kids[i]
		}
	}
	return nil
}

// Destroy marks the annotation for removal.
func (a *Annotation) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	a.emit(Change{Operation: Destroy, Kind: KindAnnotation, ObjectID: a.id})
}

// Ancestors lists ancestors nearest first, ending with the graph root.
func (a *Annotation) Ancestors() []*Annotation {
	var out []*Annotation
	seen := map[*Annotation]bool{a: true}
	for p := a.parent; p != nil && !seen[p]; p = p.parent {
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Ancestor returns the nearest ancestor on layerID, or nil.
func (a *Annotation) Ancestor(layerID string) *Annotation {
	for _, p := range a.Ancestors() {
		if p.layerID == layerID {
			return p
		}
	}
	return nil
}

// FirstCommonAncestor returns the nearest annotation that is a or an ancestor
// of a, and is also other or an ancestor of other.
func (a *Annotation) FirstCommonAncestor(other *Annotation) *Annotation {
	ours := map[*Annotation]bool{a: true}
	for _, p := range a.Ancestors() {
		ours[p] = true
	}
	if ours[other] {
		return other
	}
	for _, p := range other.Ancestors() {
		if ours[p] {
			return p
		}
	}
	return nil
}

// Previous returns the preceding live peer, or nil.
func (a *Annotation) Previous() *Annotation {
	if a.parent == nil {
		return nil
	}
	peers := a.parent.children[a.layerID]
	i := slices.Index(peers, a)
	for i--; i >= 0; i-- {
		if !peers[i].destroyed {
			return peers[i]
		}
	}
	return nil
}

// Next returns the following live peer, or nil.
func (a *Annotation) Next() *Annotation {
	if a.parent == nil {
		return nil
	}
	peers := a.parent.children[a.layerID]
	i := slices.Index(peers, a)
	if i < 0 {
		return nil
	}
	for i++; i < len(peers); i++ {
		if !peers[i].destroyed {
			return peers[i]
		}
	}
	return nil
}

// Instantaneous reports whether start and end are the same anchor.
func (a *Annotation) Instantaneous() bool { return a.start == a.end }

// Tags reports whether a shares both anchors with other.
func (a *Annotation) Tags(other *Annotation) bool {
	return a.start == other.start && a.end == other.end
}

// Anchored reports whether both anchors have offsets.
func (a *Annotation) Anchored() bool {
	return a.start != nil && a.end != nil && a.start.hasOffset && a.end.hasOffset
}

// Duration returns end minus start offset, or 0 when not anchored.
func (a *Annotation) Duration() float64 {
	if !a.Anchored() {
		return 0
	}
	return a.end.offset - a.start.offset
}

// Midpoint returns the centre offset and whether the annotation is anchored.
func (a *Annotation) Midpoint() (float64, bool) {
	if !a.Anchored() {
		return 0, false
	}
	return a.start.offset + a.Duration()/2, true
}

// IncludesOffset reports whether start <= offset < end.
func (a *Annotation) IncludesOffset(offset float64) bool {
	if !a.Anchored() {
		return false
	}
	return a.start.offset <= offset && a.end.offset > offset
}

// Includes reports whether other lies within this annotation's span.
func (a *Annotation) Includes(other *Annotation) bool {
	if other.start == nil || other.end == nil {
		return false
	}
	min, ok := other.start.OffsetMin()
	if !ok || !a.IncludesOffset(min) {
		return false
	}
	max, ok := other.end.OffsetMax()
	if !ok {
		return false
	}
	return a.IncludesOffset(max) || a.end.offset == max
}

// Distance measures how far apart two anchored annotations are. Inclusion
// yields the negated duration of the included annotation; otherwise the gap
// between the nearest endpoints, negated when they overlap.
func (a *Annotation) Distance(other *Annotation) (float64, bool) {
	if !a.Anchored() || other == nil || !other.Anchored() {
		return 0, false
	}
	if a.Includes(other) {
		return -other.Duration(), true
	}
	if other.Includes(a) {
		return -a.Duration(), true
	}
	s, e := a.start.offset, a.end.offset
	os, oe := other.start.offset, other.end.offset
	d := math.Min(math.Abs(s-oe), math.Abs(e-os))
	if s < oe && e > os {
		d = -d
	}
	return d, true
}

// MaxPairedDistance returns the larger of the start and end offset
// differences, negated when the annotations overlap.
func (a *Annotation) MaxPairedDistance(other *Annotation) (float64, bool) {
	if !a.Anchored() || other == nil || !other.Anchored() {
		return 0, false
	}
	s, e := a.start.offset, a.end.offset
	os, oe := other.start.offset, other.end.offset
	d := math.Max(math.Abs(s-os), math.Abs(e-oe))
	if s < oe && e > os {
		d = -d
	}
	return d, true
}

func anchorID(a *Anchor) string {
	if a == nil {
		return ""
	}
	return a.id
}
