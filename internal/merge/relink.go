package merge

import (
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// layerSet is a set of layer ids excluded from relinking.
type layerSet map[string]bool

func exclude(ids ...string) layerSet {
	s := layerSet{}
	for _, id := range ids {
		if id != "" {
			s[id] = true
		}
	}
	return s
}

// related reports whether an annotation on other may move with an on layer
// when they share an anchor: across a parent/child layer boundary only the
// actual parent or child moves.
func related(an *ag.Annotation, layer *ag.Layer, other *ag.Annotation) bool {
	otherLayer := other.Layer()
	if layer == nil || otherLayer == nil {
		return true
	}
	if layer.ParentID == otherLayer.ID {
		return other == an.Parent()
	}
	if otherLayer.ParentID == layer.ID {
		return other.Parent() == an
	}
	return true
}

// changeStart moves an's start to newStart, bringing along annotations on
// other layers that started at the old anchor, and the ends of same-layer
// peers that ended there. Layers in skip are left alone; an's own layer is
// added to skip so the recursion terminates.
func (r *run) changeStart(an *ag.Annotation, newStart *ag.Anchor, skip layerSet) {
	if skip == nil {
		skip = layerSet{}
	}
	oldStart, oldEnd := an.Start(), an.End()
	r.logger.Debug("relinking start",
		logging.String(logging.FieldAnnotation, an.ID()),
		logging.String(logging.FieldAnchor, newStart.ID()))
	an.SetStart(newStart)
	if oldStart == oldEnd {
		an.SetEnd(newStart)
	}
	if oldStart == nil {
		return
	}
	layer := an.Layer()
	for _, other := range slices.Clone(oldStart.StartingAnnotations()) {
		if other == an || other.IsDestroyed() || other.LayerID() == an.LayerID() || skip[other.LayerID()] {
			continue
		}
		if other.Start() != oldStart || !related(an, layer, other) {
			continue
		}
		instant := other.Instantaneous()
		other.SetStart(newStart)
		if instant {
			other.SetEnd(newStart)
		}
	}
	if skip[an.LayerID()] {
		return
	}
	skip[an.LayerID()] = true
	for _, prior := range slices.Clone(oldStart.LiveEndOf(an.LayerID())) {
		if prior.End() != oldStart || prior.Parent() != an.Parent() {
			continue
		}
		if !prior.Instantaneous() && prior.Start() == newStart {
			continue
		}
		r.changeEnd(prior, newStart, nil)
	}
}

// changeEnd moves an's end to newEnd, bringing along annotations on other
// layers that ended at the old anchor, and the starts of same-layer peers
// that started there.
func (r *run) changeEnd(an *ag.Annotation, newEnd *ag.Anchor, skip layerSet) {
	if skip == nil {
		skip = layerSet{}
	}
	oldStart, oldEnd := an.Start(), an.End()
	r.logger.Debug("relinking end",
		logging.String(logging.FieldAnnotation, an.ID()),
		logging.String(logging.FieldAnchor, newEnd.ID()))
	an.SetEnd(newEnd)
	if oldStart == oldEnd {
		an.SetStart(newEnd)
	}
	if oldEnd == nil {
		return
	}
	layer := an.Layer()
	for _, other := range slices.Clone(oldEnd.EndingAnnotations()) {
		if other == an || other.IsDestroyed() || other.LayerID() == an.LayerID() || skip[other.LayerID()] {
			continue
		}
		if other.End() != oldEnd || !related(an, layer, other) {
			continue
		}
		instant := other.Instantaneous()
		other.SetEnd(newEnd)
		if instant {
			other.SetStart(newEnd)
		}
	}
	if skip[an.LayerID()] {
		return
	}
	skip[an.LayerID()] = true
	following := oldEnd.LiveStartOf(an.LayerID())
	if len(following) > 0 {
		for _, next := range slices.Clone(following) {
			if next.Start() != oldEnd {
				continue
			}
			if !next.Instantaneous() && next.End() == newEnd {
				continue
			}
			r.changeStart(next, newEnd, skip)
		}
		return
	}
	if len(oldEnd.StartOf(an.LayerID())) == 0 {
		return
	}
	// a destroyed peer started here; carry whatever else starts here along
	for _, next := range oldEnd.StartingAnnotations() {
		if !next.IsDestroyed() && !skip[next.LayerID()] && next.Start() == oldEnd {
			r.changeStart(next, newEnd, skip)
			return
		}
	}
}
