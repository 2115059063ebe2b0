package ag

import "fmt"

// Schema is the layer registry of a graph.
type Schema struct {
	layers   map[string]*Layer
	order    []string
	children map[string][]string

	ParticipantLayerID string
	TurnLayerID        string
	UtteranceLayerID   string
	WordLayerID        string
	EpisodeLayerID     string
}

// NewSchema returns a schema holding only the root layer.
func NewSchema() *Schema {
	s := &Schema{
		layers:   make(map[string]*Layer),
		children: make(map[string][]string),
	}
	root := &Layer{ID: RootLayerID, Alignment: AlignmentInterval, Description: "The graph itself"}
	s.layers[RootLayerID] = root
	s.order = append(s.order, RootLayerID)
	return s
}

// AddLayer registers l. Its parent must already be registered.
func (s *Schema) AddLayer(l *Layer) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("layer id is required")
	}
	if _, exists := s.layers[l.ID]; exists {
		return fmt.Errorf("layer %q already defined", l.ID)
	}
	if l.ParentID == "" {
		l.ParentID = RootLayerID
	}
	if _, ok := s.layers[l.ParentID]; !ok {
		return fmt.Errorf("layer %q: parent %q not defined", l.ID, l.ParentID)
	}
	s.layers[l.ID] = l
	s.order = append(s.order, l.ID)
	s.children[l.ParentID] = append(s.children[l.ParentID], l.ID)
	return nil
}

// Layer returns the layer with the given id, or nil.
func (s *Schema) Layer(id string) *Layer {
	if s == nil {
		return nil
	}
	return s.layers[id]
}

// Root returns the root layer.
func (s *Schema) Root() *Layer { return s.layers[RootLayerID] }

// Layers lists all layers, root first, in registration order.
func (s *Schema) Layers() []*Layer {
	out := make([]*Layer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.layers[id])
	}
	return out
}

// ChildLayers lists the layers whose parent is id, in registration order.
func (s *Schema) ChildLayers(id string) []*Layer {
	ids := s.children[id]
	out := make([]*Layer, 0, len(ids))
	for _, c := range ids {
		out = append(out, s.layers[c])
	}
	return out
}

// TopLevelLayers lists the children of the root layer.
func (s *Schema) TopLevelLayers() []*Layer { return s.ChildLayers(RootLayerID) }

// Ancestors lists the ancestor layer ids of id, nearest first, ending with the
// root.
func (s *Schema) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	l := s.layers[id]
	for l != nil && l.ID != RootLayerID {
		p := l.ParentID
		if seen[p] {
			break
		}
		seen[p] = true
		out = append(out, p)
		l = s.layers[p]
	}
	return out
}

// IsAncestor reports whether ancestorID is a strict ancestor of id.
func (s *Schema) IsAncestor(ancestorID, id string) bool {
	for _, a := range s.Ancestors(id) {
		if a == ancestorID {
			return true
		}
	}
	return false
}

// Descendants lists every layer beneath id, depth first.
func (s *Schema) Descendants(id string) []*Layer {
	var out []*Layer
	for _, c := range s.ChildLayers(id) {
		out = append(out, c)
		out = append(out, s.Descendants(c.ID)...)
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
	c := NewSchema()
	for _, id := range s.order {
		if id == RootLayerID {
			continue
		}
		_ = c.AddLayer(s.layers[id].Clone())
	}
	c.ParticipantLayerID = s.ParticipantLayerID
	c.TurnLayerID = s.TurnLayerID
	c.UtteranceLayerID = s.UtteranceLayerID
	c.WordLayerID = s.WordLayerID
	c.EpisodeLayerID = s.EpisodeLayerID
	return c
}
