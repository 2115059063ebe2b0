package merge

import (
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// reconcileExistence destroys the layer's unpaired originals and creates
// originals for its unpaired edits, then gives every original its
// counterpart's ordinal.
func (r *run) reconcileExistence(layer *ag.Layer) {
	for _, an := range r.graph.AnnotationsOn(layer.ID) {
		if !r.pairs.has(an) {
			r.logger.Debug("destroying unpaired annotation",
				logging.String(logging.FieldAnnotation, an.ID()), logging.Layer(layer.ID))
			an.Destroy()
		}
	}
	saturatedParent := ""
	if layer.Saturated {
		saturatedParent = layer.ParentID
	}
	var last *ag.Annotation
	for _, edited := range byOrdinal(r.edited.AnnotationsOn(layer.ID)) {
		if !r.pairs.has(edited) {
			r.create(layer, edited, saturatedParent)
		} else {
			r.unlinkPriors(layer, edited)
			if last != nil && last.IsCreated() {
				r.joinCreated(last, edited, saturatedParent)
			}
		}
		original := r.pairs.of(edited)
		if original.Ordinal() != edited.Ordinal() {
			original.SetOrdinal(edited.Ordinal())
		}
		last = original
	}
}

// create adds an original for an unpaired edit. Anchors are shared with the
// counterparts of annotations that share them in the edited graph where
// possible, and copied otherwise.
func (r *run) create(layer *ag.Layer, edited *ag.Annotation, saturatedParent string) {
	var start, end *ag.Anchor
	startShared := false
	if !edited.Instantaneous() {
		if p := r.parallelStart(edited); p != nil {
			start, startShared = p.Start(), true
		}
		if p := r.parallelEnd(edited); p != nil {
			end = p.End()
		}
	}

	parent := r.createdParent(layer, edited)
	var previous *ag.Annotation
	if layer.Alignment == ag.AlignmentInterval {
		previous = r.previousOriginal(layer, edited, parent)
	}
	if start == nil && previous != nil && previous.End() != nil {
		// continue on from the previous annotation, as in the edited graph
		start, startShared = previous.End(), true
	}
	if start == nil {
		start = r.copyAnchor(edited.Start())
	}
	if edited.Instantaneous() {
		end = start
	}
	if end == nil {
		end = r.copyAnchor(edited.End())
	}
	if previous != nil && startShared && previous.End() != start {
		r.changeEnd(previous, start, exclude(layer.ID, saturatedParent))
	}

	an := r.graph.CreateAnnotation(layer.ID, edited.Label(), start, end, parent)
	if c, ok := edited.Confidence(); ok {
		an.SetConfidence(c)
	}
	r.pairs.pair(an, edited)
	r.logger.Debug("created annotation",
		logging.String(logging.FieldAnnotation, an.ID()),
		logging.String("edited_annotation", edited.ID()),
		logging.Layer(layer.ID))
}

// parallelStart returns the counterpart of an annotation on another layer
// that starts where edited starts in the edited graph.
func (r *run) parallelStart(edited *ag.Annotation) *ag.Annotation {
	for _, other := range edited.Start().StartingAnnotations() {
		if other != edited && !other.IsDestroyed() {
			if original := r.pairs.of(other); original != nil && original.Start() != nil && !original.IsDestroyed() {
				return original
			}
		}
	}
	return nil
}

func (r *run) parallelEnd(edited *ag.Annotation) *ag.Annotation {
	for _, other := range edited.End().EndingAnnotations() {
		if other != edited && !other.IsDestroyed() {
			if original := r.pairs.of(other); original != nil && original.End() != nil && !original.IsDestroyed() {
				return original
			}
		}
	}
	return nil
}

// createdParent returns the parent for a new original: the counterpart of the
// edited parent, or for turns, the participant with the turn's label.
func (r *run) createdParent(layer *ag.Layer, edited *ag.Annotation) *ag.Annotation {
	if p := r.pairs.of(edited.Parent()); p != nil {
		return p
	}
	s := r.schema
	if layer.ID == s.TurnLayerID && s.ParticipantLayerID != "" {
		for _, participant := range r.graph.AnnotationsOn(s.ParticipantLayerID) {
			if participant.Label() == edited.Label() {
				return participant
			}
		}
	}
	if layer.ParentID != ag.RootLayerID {
		r.diags.Warnf(component, edited.ID(), "no counterpart for the parent of new %s annotation; placed under the graph root", layer.ID)
	}
	return nil
}

// previousOriginal returns the counterpart of the same-layer annotation that
// ends where edited starts, unless a parent of the new annotation's parent
// intervenes.
func (r *run) previousOriginal(layer *ag.Layer, edited, parent *ag.Annotation) *ag.Annotation {
	if edited.Start() == nil {
		return nil
	}
	for _, other := range edited.Start().LiveEndOf(layer.ID) {
		if other == edited {
			continue
		}
		original := r.pairs.of(other)
		if original == nil || original.IsDestroyed() {
			continue
		}
		if pp := original.Parent(); pp != nil && parent != nil && pp != parent {
			if between := parent.Previous(); between != nil && between != pp {
				continue
			}
		}
		return original
	}
	return nil
}

// copyAnchor creates an anchor in the original graph with src's offset. Offsets
// that were not at least automatically aligned lose their confidence.
func (r *run) copyAnchor(src *ag.Anchor) *ag.Anchor {
	if src == nil || !src.HasOffset() {
		return r.graph.CreateAnchor()
	}
	offset, _ := src.Offset()
	confidence := anchorConfidence(src)
	if confidence < ag.ConfidenceAutomatic {
		confidence = ag.ConfidenceNone
	}
	return r.graph.CreateAnchorAt(offset, confidence)
}

// cloneAnchor creates an anchor with the same offset and confidence as src.
func (r *run) cloneAnchor(src *ag.Anchor) *ag.Anchor {
	if src == nil || !src.HasOffset() {
		return r.graph.CreateAnchor()
	}
	offset, _ := src.Offset()
	a := r.graph.CreateAnchorAt(offset, src.ConfidenceOr(ag.ConfidenceNone))
	if _, ok := src.Confidence(); !ok {
		a.SetConfidence(ag.ConfidenceNone)
	}
	return a
}

// unlinkPriors gives a new end anchor to same-layer originals that end where
// edited's counterpart starts but are not joined to it in the edited graph.
func (r *run) unlinkPriors(layer *ag.Layer, edited *ag.Annotation) {
	original := r.pairs.of(edited)
	if original.Start() == nil {
		return
	}
	for _, prior := range slices.Clone(original.Start().LiveEndOf(layer.ID)) {
		other := r.pairs.of(prior)
		if other == nil || other.End() == edited.Start() {
			continue
		}
		r.logger.Debug("unlinking prior annotation",
			logging.String(logging.FieldAnnotation, prior.ID()),
			logging.String("from", original.ID()))
		r.changeEnd(prior, r.cloneAnchor(original.Start()), exclude(layer.ID))
	}
}

// joinCreated links a just-created original to the next original when their
// edited counterparts are joined, nudging offsets apart when joining would
// leave the created annotation with no length.
func (r *run) joinCreated(last *ag.Annotation, edited *ag.Annotation, saturatedParent string) {
	original := r.pairs.of(edited)
	lastEdited := r.pairs.of(last)
	if lastEdited == nil || lastEdited.End() != edited.Start() || last.End() == original.Start() {
		return
	}
	if original.Start() == nil || last.Start() == nil {
		return
	}
	if last.Start() == original.Start() {
		r.changeStart(original, last.End(), exclude(saturatedParent))
		return
	}
	editedParent, originalParent := edited.Parent(), original.Parent()
	if !((editedParent != nil && edited.Start() == editedParent.Start()) ||
		(originalParent != nil && original.Start() != originalParent.Start())) {
		return
	}
	instant := last.Instantaneous()
	lastOffset, okLast := last.Start().OriginalOffset()
	startOffset, okStart := original.Start().OriginalOffset()
	if okLast && okStart && lastOffset >= startOffset && !instant {
		r.separate(last, original)
	}
	r.changeEnd(last, original.Start(), exclude(saturatedParent))
	if instant {
		r.changeStart(last, original.Start(), nil)
	}
}

// separate moves the less confident of two clashing starts aside so that
// last keeps a positive length once it ends where next starts.
func (r *run) separate(last, next *ag.Annotation) {
	offset, ok := next.Start().Offset()
	if !ok {
		return
	}
	lastConfidence, nextConfidence := anchorConfidence(last.Start()), anchorConfidence(next.Start())
	switch {
	case lastConfidence < nextConfidence && parentStartsBefore(last, offset-r.smidgin):
		last.Start().SetOffset(offset - r.smidgin)
		last.Start().SetConfidence(ag.ConfidenceNone)
	case lastConfidence > nextConfidence || nextConfidence <= ag.ConfidenceDefault:
		next.Start().SetOffset(offset + r.smidgin)
		next.Start().SetConfidence(ag.ConfidenceNone)
	default:
		r.diags.Warnf(component, last.ID(), "not separated from %s: both starts are confident", next.ID())
	}
}

func parentStartsBefore(an *ag.Annotation, offset float64) bool {
	p := an.Parent()
	if p == nil || p.Start() == nil {
		return false
	}
	start, ok := p.Start().Offset()
	return ok && start <= offset
}
