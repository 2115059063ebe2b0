package ag

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// IDGenerator mints identifiers for created anchors and annotations.
type IDGenerator interface {
	NewID(kind ObjectKind) string
}

// UUIDGenerator mints random UUIDs prefixed by the object kind.
type UUIDGenerator struct{}

// NewID returns a fresh identifier such as "anchor_3f1c...".
func (UUIDGenerator) NewID(kind ObjectKind) string {
	return string(kind) + "_" + uuid.NewString()
}

// SequenceGenerator mints predictable identifiers ("prefix1", "prefix2", ...).
type SequenceGenerator struct {
	Prefix string
	next   int
}

// NewID returns the next identifier in the sequence.
func (s *SequenceGenerator) NewID(kind ObjectKind) string {
	s.next++
	prefix := s.Prefix
	if prefix == "" {
		prefix = string(kind)
	}
	return fmt.Sprintf("%s%d", prefix, s.next)
}

// Graph is the root container of anchors and annotations.
type Graph struct {
	schema *Schema
	root   *Annotation

	anchors         map[string]*Anchor
	anchorOrder     []*Anchor
	annotations     map[string]*Annotation
	annotationOrder []*Annotation

	tracker *ChangeTracker

	// Fragment marks a graph holding a subset of a larger transcript.
	Fragment bool
	// OffsetGranularity is the smallest meaningful offset difference; zero
	// means exact comparison.
	OffsetGranularity float64
	// OffsetUnits names the coordinate space, e.g. "s" or "char".
	OffsetUnits string
	// IDs mints identifiers for created entities.
	IDs IDGenerator
}

// NewGraph returns an empty graph with the given id and schema.
func NewGraph(id string, schema *Schema) *Graph {
	if schema == nil {
		schema = NewSchema()
	}
	g := &Graph{
		schema:      schema,
		anchors:     make(map[string]*Anchor),
		annotations: make(map[string]*Annotation),
		OffsetUnits: "s",
		IDs:         UUIDGenerator{},
	}
	g.root = &Annotation{entity: entity{graph: g, id: id}, layerID: RootLayerID, label: id}
	return g
}

// ID returns the graph id.
func (g *Graph) ID() string { return g.root.id }

// Schema returns the layer schema.
func (g *Graph) Schema() *Schema { return g.schema }

// Root returns the root annotation, the parent of top-level annotations.
func (g *Graph) Root() *Annotation { return g.root }

// Layer returns the schema layer with the given id, or nil.
func (g *Graph) Layer(id string) *Layer { return g.schema.Layer(id) }

// Tracker returns the attached change tracker, or nil.
func (g *Graph) Tracker() *ChangeTracker { return g.tracker }

// SetTracker attaches t as the graph's change tracker. Pass nil to detach.
func (g *Graph) SetTracker(t *ChangeTracker) { g.tracker = t }

func (g *Graph) emit(c Change) {
	if g.tracker != nil {
		g.tracker.Accept(c)
	}
}

// Anchor returns the anchor with the given id, or nil.
func (g *Graph) Anchor(id string) *Anchor { return g.anchors[id] }

// Annotation returns the annotation with the given id, or nil. The graph id
// resolves to the root annotation.
func (g *Graph) Annotation(id string) *Annotation {
	if id == g.root.id {
		return g.root
	}
	return g.annotations[id]
}

// Anchors lists every anchor, including destroyed ones, in insertion order.
func (g *Graph) Anchors() []*Anchor { return slices.Clone(g.anchorOrder) }

// Annotations lists every annotation, including destroyed ones, in insertion
// order.
func (g *Graph) Annotations() []*Annotation { return slices.Clone(g.annotationOrder) }

// AnnotationsOn lists the live annotations on layerID in insertion order.
func (g *Graph) AnnotationsOn(layerID string) []*Annotation {
	var out []*Annotation
	for _, a := range g.annotationOrder {
		if a.layerID == layerID && !a.destroyed {
			out = append(out, a)
		}
	}
	return out
}

// AllAnnotationsOn lists every annotation on layerID, including destroyed ones.
func (g *Graph) AllAnnotationsOn(layerID string) []*Annotation {
	var out []*Annotation
	for _, a := range g.annotationOrder {
		if a.layerID == layerID {
			out = append(out, a)
		}
	}
	return out
}

// AddAnchor inserts a loaded anchor without recording a change.
func (g *Graph) AddAnchor(a *Anchor) error {
	if a == nil || a.id == "" {
		return fmt.Errorf("anchor id is required")
	}
	if _, exists := g.anchors[a.id]; exists {
		return fmt.Errorf("anchor %q already exists", a.id)
	}
	a.graph = g
	g.anchors[a.id] = a
	g.anchorOrder = append(g.anchorOrder, a)
	return nil
}

// AddAnnotation inserts a loaded annotation without recording a change. The
// anchors and parent named by id must already be in the graph; an empty
// parent id means the root. An ordinal of 0 appends after the live peers.
func (g *Graph) AddAnnotation(a *Annotation, startID, endID, parentID string, ordinal int) error {
	if a == nil || a.id == "" {
		return fmt.Errorf("annotation id is required")
	}
	if _, exists := g.annotations[a.id]; exists || a.id == g.root.id {
		return fmt.Errorf("annotation %q already exists", a.id)
	}
	start, end := g.anchors[startID], g.anchors[endID]
	if startID != "" && start == nil {
		return fmt.Errorf("annotation %q: start anchor %q not found", a.id, startID)
	}
	if endID != "" && end == nil {
		return fmt.Errorf("annotation %q: end anchor %q not found", a.id, endID)
	}
	parent := g.root
	if parentID != "" {
		parent = g.Annotation(parentID)
		if parent == nil {
			return fmt.Errorf("annotation %q: parent %q not found", a.id, parentID)
		}
	}
	a.graph = g
	a.linkStart(start)
	a.linkEnd(end)
	a.parent = parent
	if ordinal > 0 {
		a.ordinal = ordinal
		parent.insertChild(a)
	} else {
		a.ordinal = len(filterLive(parent.children[a.layerID])) + OrdinalMinimum
		parent.addChild(a)
	}
	g.annotations[a.id] = a
	g.annotationOrder = append(g.annotationOrder, a)
	return nil
}

// CreateAnchor adds a new anchor with no offset and records its creation.
func (g *Graph) CreateAnchor() *Anchor {
	a := NewAnchor(g.newID(KindAnchor))
	g.adoptCreatedAnchor(a)
	return a
}

// CreateAnchorAt adds a new anchor with an offset and confidence and records
// its creation.
func (g *Graph) CreateAnchorAt(offset float64, confidence int) *Anchor {
	a := NewAnchorAt(g.newID(KindAnchor), offset, confidence)
	g.adoptCreatedAnchor(a)
	return a
}

func (g *Graph) adoptCreatedAnchor(a *Anchor) {
	_ = g.AddAnchor(a)
	a.created = true
	g.emit(Change{Operation: Create, Kind: KindAnchor, ObjectID: a.id})
}

// CreateAnnotation adds a new annotation as the last live child of parent (the
// root when nil) and records its creation.
func (g *Graph) CreateAnnotation(layerID, label string, start, end *Anchor, parent *Annotation) *Annotation {
	a := NewAnnotation(g.newID(KindAnnotation), layerID, label)
	if parent == nil {
		parent = g.root
	}
	a.graph = g
	a.linkStart(start)
	a.linkEnd(end)
	a.parent = parent
	a.ordinal = len(filterLive(parent.children[layerID])) + OrdinalMinimum
	parent.addChild(a)
	g.annotations[a.id] = a
	g.annotationOrder = append(g.annotationOrder, a)
	a.created = true
	g.emit(Change{Operation: Create, Kind: KindAnnotation, ObjectID: a.id})
	return a
}

func (g *Graph) newID(kind ObjectKind) string {
	ids := g.IDs
	if ids == nil {
		ids = UUIDGenerator{}
	}
	for {
		id := ids.NewID(kind)
		if g.anchors[id] == nil && g.annotations[id] == nil && id != g.root.id {
			return id
		}
	}
}

// Commit finalizes pending changes: destroyed entities are unlinked and
// removed, and created and updated entities lose their change state.
func (g *Graph) Commit() {
	var keepAnnotations []*Annotation
	for _, a := range g.annotationOrder {
		if a.destroyed {
			g.unlinkAnnotation(a)
			continue
		}
		a.commit()
		keepAnnotations = append(keepAnnotations, a)
	}
	g.annotationOrder = keepAnnotations
	var keepAnchors []*Anchor
	for _, a := range g.anchorOrder {
		if a.destroyed {
			delete(g.anchors, a.id)
			continue
		}
		a.commit()
		keepAnchors = append(keepAnchors, a)
	}
	g.anchorOrder = keepAnchors
	g.root.commit()
}

func (g *Graph) unlinkAnnotation(a *Annotation) {
	a.linkStart(nil)
	a.linkEnd(nil)
	a.unlinkParent()
	delete(g.annotations, a.id)
}

// Rollback reverts every uncommitted change: created entities are removed and
// updated or destroyed entities regain their committed state.
func (g *Graph) Rollback() {
	var keepAnnotations []*Annotation
	for _, a := range g.annotationOrder {
		if a.created {
			g.unlinkAnnotation(a)
			continue
		}
		keepAnnotations = append(keepAnnotations, a)
	}
	g.annotationOrder = keepAnnotations
	for _, a := range g.annotationOrder {
		g.restoreAnnotation(a)
	}
	var keepAnchors []*Anchor
	for _, a := range g.anchorOrder {
		if a.created {
			delete(g.anchors, a.id)
			continue
		}
		if v, ok := a.originals[KeyOffset]; ok {
			a.offset, a.hasOffset = 0, false
			if f, isSet := v.(float64); isSet {
				a.offset, a.hasOffset = f, true
			}
		}
		if v, ok := a.originals[KeyConfidence]; ok {
			a.confidence, a.hasConfidence = 0, false
			if c, isSet := v.(int); isSet {
				a.confidence, a.hasConfidence = c, true
			}
		}
		a.originals = nil
		a.destroyed = false
		keepAnchors = append(keepAnchors, a)
	}
	g.anchorOrder = keepAnchors
	// restore ordinal order of every child list
	for _, a := range append([]*Annotation{g.root}, g.annotationOrder...) {
		for _, layerID := range a.childLayers {
			slices.SortStableFunc(a.children[layerID], func(x, y *Annotation) int {
				return x.ordinal - y.ordinal
			})
		}
	}
}

func (g *Graph) restoreAnnotation(a *Annotation) {
	if v, ok := a.originals[KeyLabel]; ok {
		a.label, _ = v.(string)
	}
	if v, ok := a.originals[KeyConfidence]; ok {
		a.confidence, a.hasConfidence = 0, false
		if c, isSet := v.(int); isSet {
			a.confidence, a.hasConfidence = c, true
		}
	}
	if v, ok := a.originals[KeyStartID]; ok {
		id, _ := v.(string)
		a.linkStart(g.anchors[id])
	}
	if v, ok := a.originals[KeyEndID]; ok {
		id, _ := v.(string)
		a.linkEnd(g.anchors[id])
	}
	if v, ok := a.originals[KeyParentID]; ok {
		id, _ := v.(string)
		if p := g.Annotation(id); p != nil && p != a.parent {
			a.unlinkParent()
			a.parent = p
			p.addChild(a)
		}
	}
	if v, ok := a.originals[KeyOrdinal]; ok {
		a.ordinal, _ = v.(int)
	}
	a.originals = nil
	a.destroyed = false
}

// HasPendingChanges reports whether any entity carries uncommitted change
// state.
func (g *Graph) HasPendingChanges() bool {
	for _, a := range g.annotationOrder {
		if a.Change() != NoChange {
			return true
		}
	}
	for _, a := range g.anchorOrder {
		if a.Change() != NoChange {
			return true
		}
	}
	return false
}

// Start returns the earliest live anchor with an offset, or nil.
func (g *Graph) Start() *Anchor {
	var best *Anchor
	for _, a := range g.anchorOrder {
		if a.destroyed || !a.hasOffset {
			continue
		}
		if best == nil || a.offset < best.offset {
			best = a
		}
	}
	return best
}

// End returns the latest live anchor with an offset, or nil.
func (g *Graph) End() *Anchor {
	var best *Anchor
	for _, a := range g.anchorOrder {
		if a.destroyed || !a.hasOffset {
			continue
		}
		if best == nil || a.offset > best.offset {
			best = a
		}
	}
	return best
}
