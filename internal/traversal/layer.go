package traversal

import (
	"cmp"
	"slices"

	"agmerge/internal/ag"
)

// LayerVisitor receives a layer and the result so far and returns the
// updated result.
type LayerVisitor[R any] func(result R, l *ag.Layer) R

// LayerComparator orders sibling layers.
type LayerComparator func(a, b *ag.Layer) int

// LayerTraversal walks a layer schema depth-first, visiting sibling layers in
// PeerComparator order.
type LayerTraversal[R any] struct {
	Pre  LayerVisitor[R]
	Post LayerVisitor[R]
	// PeerComparator orders siblings. Nil uses DefaultPeerComparator.
	PeerComparator LayerComparator
}

// Schema walks every layer of s below the root.
func (t *LayerTraversal[R]) Schema(s *ag.Schema, result R) R {
	return t.Layers(s, s.Layers(), result)
}

// Layers walks the subtrees of s rooted at the top-level layers among layers.
func (t *LayerTraversal[R]) Layers(s *ag.Schema, layers []*ag.Layer, result R) R {
	less := t.comparator(s)
	var top []*ag.Layer
	for _, l := range layers {
		if l.ID == ag.RootLayerID || l.ParentID != ag.RootLayerID {
			continue
		}
		top = append(top, l)
	}
	slices.SortStableFunc(top, less)
	for _, l := range top {
		result = t.layer(s, l, less, result)
	}
	return result
}

func (t *LayerTraversal[R]) layer(s *ag.Schema, l *ag.Layer, less LayerComparator, result R) R {
	if t.Pre != nil {
		result = t.Pre(result, l)
	}
	children := s.ChildLayers(l.ID)
	slices.SortStableFunc(children, less)
	for _, child := range children {
		result = t.layer(s, child, less, result)
	}
	if t.Post != nil {
		result = t.Post(result, l)
	}
	return result
}

func (t *LayerTraversal[R]) comparator(s *ag.Schema) LayerComparator {
	if t.PeerComparator != nil {
		return t.PeerComparator
	}
	return DefaultPeerComparator(s)
}

// DefaultPeerComparator orders simpler layers first: layers not included in
// their parent before included ones, less aligned before more aligned, layers
// without peers before layers with peers, fewer child layers first, saturated
// before sparse, overlapping before sequential, then by id.
func DefaultPeerComparator(s *ag.Schema) LayerComparator {
	return func(a, b *ag.Layer) int {
		if a == b {
			return 0
		}
		if a.ParentIncludes != b.ParentIncludes {
			if a.ParentIncludes {
				return 1
			}
			return -1
		}
		if a.Alignment != b.Alignment {
			if a.Alignment > b.Alignment {
				return 2
			}
			return -2
		}
		if a.Peers != b.Peers {
			if a.Peers {
				return 3
			}
			return -3
		}
		if na, nb := len(s.ChildLayers(a.ID)), len(s.ChildLayers(b.ID)); na != nb {
			if na > nb {
				return 4
			}
			return -4
		}
		if a.Saturated != b.Saturated {
			if a.Saturated {
				return -5
			}
			return 5
		}
		if a.PeersOverlap != b.PeersOverlap {
			if a.PeersOverlap {
				return -6
			}
			return 6
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// LayerIDs returns the ids of every layer below the root in traversal order.
func LayerIDs(s *ag.Schema) []string {
	t := &LayerTraversal[[]string]{
		Pre: func(ids []string, l *ag.Layer) []string { return append(ids, l.ID) },
	}
	return t.Schema(s, nil)
}
