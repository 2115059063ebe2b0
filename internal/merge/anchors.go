package merge

import (
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// deltaState collects what one layer's anchor pass defers: confidence-only
// changes are applied only if some offset on the layer changed with at least
// equal confidence.
type deltaState struct {
	confident bool
	deferred  []func()
}

// anchorDeltas reconciles the anchors of the layer's originals with their
// edited counterparts, visiting edits in ordinal order.
func (r *run) anchorDeltas(layer *ag.Layer) {
	st := &deltaState{}
	var last *ag.Annotation
	for _, edited := range byOrdinal(r.edited.AnnotationsOn(layer.ID)) {
		original := r.pairs.of(edited)
		if original == nil || original.IsDestroyed() {
			continue
		}
		if original.Start() != nil && edited.Start() != nil {
			r.startDelta(layer, edited, original, last, st)
		}
		if original.End() != nil && edited.End() != nil {
			r.endDelta(layer, edited, original, last, st)
		}
		r.deltasDone[original] = true
		last = original
	}
	if st.confident {
		for _, fn := range st.deferred {
			fn()
		}
	} else if len(st.deferred) > 0 {
		r.logger.Debug("confidence-only anchor changes dropped",
			logging.Layer(layer.ID), logging.Int("count", len(st.deferred)))
	}
}

func (r *run) startDelta(layer *ag.Layer, edited, original, last *ag.Annotation, st *deltaState) {
	check := true
	if p := r.linkedParallelStart(layer, edited, original); p != nil {
		if edited.Instantaneous() {
			original.SetEnd(p.Start())
		}
		original.SetStart(p.Start())
	} else {
		check = r.unshareStart(layer, edited, original)
	}
	if check {
		r.startOffset(layer, edited, original, st)
	}
	if last != nil {
		r.linkToLast(edited, original, last)
	}
}

// linkedParallelStart returns an already reconciled original whose edited
// counterpart starts where edited starts, so original can share its start.
func (r *run) linkedParallelStart(layer *ag.Layer, edited, original *ag.Annotation) *ag.Annotation {
	for _, e := range edited.Start().StartingAnnotations() {
		if e == edited || e.IsDestroyed() {
			continue
		}
		a := r.pairs.of(e)
		if a == nil || a.Start() == nil || a.Start() == original.Start() || !r.deltasDone[a] {
			continue
		}
		if anchorConfidence(original.Start()) > anchorConfidence(a.Start()) {
			continue
		}
		if !layer.Saturated && len(a.Start().LiveStartOf(layer.ParentID)) > 0 {
			continue
		}
		return a
	}
	return nil
}

// unshareStart gives original its own start anchor when it shares one with
// a parallel annotation on another layer that does not share it in the
// edited graph. It reports whether the start offset still needs checking.
func (r *run) unshareStart(layer *ag.Layer, edited, original *ag.Annotation) bool {
	for _, parallel := range slices.Clone(original.Start().StartingAnnotations()) {
		if parallel == original || parallel.IsDestroyed() || parallel.LayerID() == original.LayerID() {
			continue
		}
		if parallel.Start() != original.Start() || !r.pairs.has(parallel) {
			continue
		}
		editedParallel := r.pairs.of(parallel)
		if edited.Start() == editedParallel.Start() ||
			anchorConfidence(edited.Start()) <= ag.ConfidenceNone ||
			anchorConfidence(editedParallel.Start()) <= ag.ConfidenceNone {
			continue
		}
		parallelLayer := r.graph.Layer(editedParallel.LayerID())
		if saturatedRelation(layer, editedParallel.LayerID(), parallelLayer) {
			if layer.ParentID != editedParallel.LayerID() {
				// the saturated child's start is taken as correct
				return false
			}
			continue
		}
		skip := r.relatives(parallelLayer)
		newStart := r.cloneAnchor(original.Start())
		if edited.Instantaneous() {
			r.changeEnd(original, newStart, nil)
		}
		r.changeStart(original, newStart, skip)
		r.logger.Debug("unshared start",
			logging.String(logging.FieldAnnotation, original.ID()),
			logging.String("parallel", parallel.ID()))
		return true
	}
	return true
}

// saturatedRelation reports whether layer and the parallel layer are parent
// and child with the child saturated, so their shared anchors are structural.
func saturatedRelation(layer *ag.Layer, parallelID string, parallelLayer *ag.Layer) bool {
	if layer.ParentID == parallelID && layer.Saturated {
		return true
	}
	return parallelLayer != nil && parallelLayer.ParentID == layer.ID && parallelLayer.Saturated
}

// relatives returns the ids of l, its parent and its child layers.
func (r *run) relatives(l *ag.Layer) layerSet {
	if l == nil {
		return layerSet{}
	}
	skip := exclude(l.ID, l.ParentID)
	for _, child := range r.schema.ChildLayers(l.ID) {
		skip[child.ID] = true
	}
	return skip
}

// trusts reports whether the edited anchor should override the original:
// the edit is more confident, or it moves the offset with at least equal
// confidence. It records confident offset changes in st.
func (r *run) trusts(edited, original *ag.Anchor, st *deltaState) (apply, different bool) {
	different = !r.sameOffset(edited, original)
	ec, oc := anchorConfidence(edited), anchorConfidence(original)
	if different && ec >= oc {
		st.confident = true
	}
	return r.m.opts.IgnoreConfidence || ec > oc || (different && ec >= oc), different
}

func (r *run) startOffset(layer *ag.Layer, edited, original *ag.Annotation, st *deltaState) {
	apply, different := r.trusts(edited.Start(), original.Start(), st)
	if !apply {
		return
	}
	if merged := r.matchingMergedStart(layer, edited, original); merged != nil {
		for _, a := range slices.Clone(original.Start().StartingAnnotations()) {
			if a == original || !r.movesWithStart(layer, edited, original, a) {
				continue
			}
			if a.Instantaneous() {
				a.SetEnd(merged)
			}
			a.SetStart(merged)
		}
		original.SetStart(merged)
		return
	}
	if !edited.Start().HasOffset() {
		r.relinkUnrelatedStart(edited, original)
		return
	}
	if different {
		r.relinkUnrelatedStart(edited, original)
		r.applyDelta(original.Start(), edited.Start())
		return
	}
	st.deferred = append(st.deferred, func() {
		r.relinkUnrelatedStart(edited, original)
		copyConfidence(original.Start(), edited.Start())
	})
}

// movesWithStart reports whether a, which starts with original, should follow
// original to a reused anchor.
func (r *run) movesWithStart(layer *ag.Layer, edited, original, a *ag.Annotation) bool {
	other := a.Layer()
	if other == nil {
		return false
	}
	if layer.ParentID == other.ID || other.ParentID == layer.ID {
		return true
	}
	if r.editedHasLayer(a.LayerID()) {
		e := r.pairs.of(a)
		return e != nil && e.Start() == edited.Start()
	}
	return a.Start() == original.Start()
}

// matchingMergedStart looks for an anchor already reconciled with the edited
// start: the end of the previous peer, or the start of a parallel annotation
// on another layer.
func (r *run) matchingMergedStart(layer *ag.Layer, edited, original *ag.Annotation) *ag.Anchor {
	for _, e := range edited.Start().EndOf(layer.ID) {
		if e == edited {
			continue
		}
		prev := r.pairs.of(e)
		if prev == nil || prev.IsDestroyed() || prev.End() == nil {
			continue
		}
		if r.intervenes(prev, original) || r.bridged(prev, original) {
			continue
		}
		if r.sameOffset(prev.End(), edited.Start()) {
			return prev.End()
		}
	}
	for _, e := range edited.Start().StartingAnnotations() {
		if e == edited || e.LayerID() == edited.LayerID() {
			continue
		}
		a := r.pairs.of(e)
		if a == nil || a.IsDestroyed() || a.Start() == nil || a.Start() == original.Start() {
			continue
		}
		if !r.sameOffset(a.Start(), e.Start()) &&
			anchorConfidence(e.Start()) >= ag.ConfidenceAutomatic &&
			anchorConfidence(a.Start()) <= anchorConfidence(e.Start()) {
			// the parallel start is about to move
			continue
		}
		return a.Start()
	}
	return nil
}

// intervenes reports whether another peer, or another parent, lies between
// prev and original.
func (r *run) intervenes(prev, original *ag.Annotation) bool {
	if next := prev.Next(); next != nil && next == original.Previous() {
		return true
	}
	pp, op := prev.Parent(), original.Parent()
	if pp != nil && op != nil && pp != op {
		if between := op.Previous(); between != nil && between != pp {
			return true
		}
	}
	return false
}

// bridged reports whether an annotation on a layer missing from the edited
// graph spans the gap between prev's end and original's start.
func (r *run) bridged(prev, original *ag.Annotation) bool {
	for _, a := range original.Start().EndingAnnotations() {
		if !a.IsDestroyed() && a.Start() == prev.End() && !r.editedHasLayer(a.LayerID()) {
			return true
		}
	}
	return false
}

// relinkUnrelatedStart detaches annotations that share original's start
// anchor but whose counterparts do not share edited's start.
func (r *run) relinkUnrelatedStart(edited, original *ag.Annotation) {
	r.unlinkEndingAt(edited, original)
	start := original.Start()
	var target *ag.Anchor
	var moving []*ag.Annotation
	for _, a := range start.StartingAnnotations() {
		if a == original || a.IsDestroyed() || a == original.Parent() {
			continue
		}
		e := r.pairs.of(a)
		if e == nil || e.Start() == edited.Start() {
			continue
		}
		moving = append(moving, a)
		if target != nil || e.Start() == nil {
			continue
		}
		for _, e2 := range e.Start().StartingAnnotations() {
			if o2 := r.pairs.of(e2); o2 != nil && o2.Start() != nil && o2.Start() != start {
				target = o2.Start()
				break
			}
		}
	}
	if len(moving) == 0 {
		return
	}
	if target == nil {
		target = r.cloneAnchor(start)
	}
	for _, a := range moving {
		instant := a.Instantaneous()
		a.SetStart(target)
		if instant {
			a.SetEnd(target)
		}
	}
}

// unlinkEndingAt gives a different end anchor to annotations ending at
// original's start whose counterparts do not end at edited's start.
func (r *run) unlinkEndingAt(edited, original *ag.Annotation) {
	start := original.Start()
	var target *ag.Anchor
	var moving []*ag.Annotation
	for _, a := range start.EndingAnnotations() {
		if a == original || a.IsDestroyed() {
			continue
		}
		e := r.pairs.of(a)
		if e == nil || e.End() == edited.Start() {
			continue
		}
		moving = append(moving, a)
		if target != nil || e.End() == nil {
			continue
		}
		for _, e2 := range e.End().EndingAnnotations() {
			if o2 := r.pairs.of(e2); o2 != nil && o2.End() != nil && o2.End() != start {
				target = o2.End()
				break
			}
		}
	}
	if len(moving) == 0 {
		return
	}
	if target == nil {
		target = r.cloneAnchor(start)
	}
	for _, a := range moving {
		r.changeEnd(a, target, nil)
	}
}

// linkToLast joins or separates original and the previously visited
// original, so that they share an anchor exactly when their counterparts do.
func (r *run) linkToLast(edited, original, last *ag.Annotation) {
	if !r.sameOffset(last.End(), original.Start()) {
		return
	}
	lastEdited := r.pairs.of(last)
	if lastEdited == nil {
		return
	}
	intervening := r.bridged(last, original)
	if next := last.Next(); next != nil && next == original.Previous() {
		intervening = true
	}
	if op, lp := original.Parent(), last.Parent(); op != nil && lp != nil && op != lp {
		if next := lp.Next(); next != nil && next == op.Previous() {
			intervening = true
		}
	}
	switch {
	case lastEdited.End() == edited.Start() && last.End() != original.Start() && !intervening:
		r.changeEnd(last, original.Start(), nil)
	case lastEdited.End() != edited.Start() && last.End() == original.Start():
		r.unlinkEndingAt(edited, original)
	}
}

func (r *run) endDelta(layer *ag.Layer, edited, original, last *ag.Annotation, st *deltaState) {
	if edited.Instantaneous() {
		if !original.Instantaneous() {
			original.SetEnd(original.Start())
		}
		return
	}
	check := true
	if p := r.linkedParallelEnd(layer, edited, original); p != nil {
		original.SetEnd(p.End())
	} else {
		check = r.unshareEnd(layer, edited, original)
	}
	if check {
		r.endOffset(layer, edited, original, st)
	}
	r.repairReversed(original, last)
}

func (r *run) linkedParallelEnd(layer *ag.Layer, edited, original *ag.Annotation) *ag.Annotation {
	for _, e := range edited.End().EndingAnnotations() {
		if e == edited || e.IsDestroyed() {
			continue
		}
		a := r.pairs.of(e)
		if a == nil || a.End() == nil || a.End() == original.End() || !r.deltasDone[a] {
			continue
		}
		if anchorConfidence(original.End()) > anchorConfidence(a.End()) {
			continue
		}
		if !layer.Saturated && len(a.End().LiveEndOf(layer.ParentID)) > 0 {
			continue
		}
		return a
	}
	return nil
}

func (r *run) unshareEnd(layer *ag.Layer, edited, original *ag.Annotation) bool {
	check := true
	for _, parallel := range slices.Clone(original.End().EndingAnnotations()) {
		if parallel == original || parallel.IsDestroyed() || parallel.LayerID() == original.LayerID() {
			continue
		}
		editedParallel := r.pairs.of(parallel)
		if editedParallel == nil || edited.End() == editedParallel.End() {
			continue
		}
		parallelLayer := r.graph.Layer(editedParallel.LayerID())
		if saturatedRelation(layer, editedParallel.LayerID(), parallelLayer) {
			if layer.ParentID != editedParallel.LayerID() {
				check = false
			}
			continue
		}
		r.changeEnd(original, r.cloneAnchor(original.End()), r.relatives(parallelLayer))
		r.logger.Debug("unshared end",
			logging.String(logging.FieldAnnotation, original.ID()),
			logging.String("parallel", parallel.ID()))
		return true
	}
	return check
}

func (r *run) endOffset(layer *ag.Layer, edited, original *ag.Annotation, st *deltaState) {
	apply, different := r.trusts(edited.End(), original.End(), st)
	if !apply {
		return
	}
	if merged := r.matchingMergedEnd(edited, original); merged != nil {
		for _, a := range slices.Clone(original.End().EndingAnnotations()) {
			if a == original || a.LayerID() == layer.ParentID {
				continue
			}
			if l := a.Layer(); l == nil || l.ParentID != layer.ID {
				continue
			}
			if a.Instantaneous() {
				a.SetStart(merged)
			}
			a.SetEnd(merged)
		}
		original.SetEnd(merged)
		return
	}
	if !edited.End().HasOffset() {
		return
	}
	if r.splitFromFollowing(layer, edited, original) {
		offset, _ := edited.End().Offset()
		newEnd := r.graph.CreateAnchorAt(offset, anchorConfidence(edited.End()))
		skip := layerSet{}
		if layer.Saturated {
			skip[layer.ID] = true
		}
		r.changeEnd(original, newEnd, skip)
		return
	}
	if different {
		r.applyDelta(original.End(), edited.End())
		return
	}
	st.deferred = append(st.deferred, func() {
		copyConfidence(original.End(), edited.End())
	})
}

// matchingMergedEnd looks for the end of a parallel annotation on another
// layer that already agrees with the edited end.
func (r *run) matchingMergedEnd(edited, original *ag.Annotation) *ag.Anchor {
	for _, e := range edited.End().EndingAnnotations() {
		if e == edited || e.LayerID() == edited.LayerID() {
			continue
		}
		a := r.pairs.of(e)
		if a == nil || a.IsDestroyed() || a.End() == nil || a.End() == original.End() {
			continue
		}
		if r.sameOffset(a.End(), e.End()) ||
			anchorConfidence(e.End()) < ag.ConfidenceAutomatic ||
			anchorConfidence(a.End()) > anchorConfidence(e.End()) {
			return a.End()
		}
	}
	return nil
}

// splitFromFollowing reports whether a same-layer original starts at
// original's end although its counterpart does not start at edited's end.
func (r *run) splitFromFollowing(layer *ag.Layer, edited, original *ag.Annotation) bool {
	for _, next := range original.End().StartOf(layer.ID) {
		if e := r.pairs.of(next); e != nil && e.Start() != edited.End() {
			return true
		}
	}
	return false
}

// repairReversed moves a start with no confidence back before the end it
// has overtaken: halfway from the previous annotation's start, or just
// before the end.
func (r *run) repairReversed(original, last *ag.Annotation) {
	if original.Start() == nil || original.End() == nil {
		return
	}
	start, okStart := original.Start().Offset()
	end, okEnd := original.End().Offset()
	if !okStart || !okEnd || end >= start || anchorConfidence(original.Start()) != ag.ConfidenceNone {
		return
	}
	offset := end - r.smidgin
	if last != nil && last.Start() != nil {
		if lastStart, ok := last.Start().Offset(); ok {
			offset = lastStart + (end-lastStart)/2
		}
	}
	r.logger.Debug("moving soft start before end",
		logging.String(logging.FieldAnnotation, original.ID()),
		logging.Float64("offset", offset))
	original.Start().SetOffset(offset)
	original.Start().SetConfidence(ag.ConfidenceNone)
}

// applyDelta copies src's offset and confidence onto dst.
func (r *run) applyDelta(dst, src *ag.Anchor) {
	offset, _ := src.Offset()
	r.logger.Debug("offset change",
		logging.String(logging.FieldAnchor, dst.ID()),
		logging.Float64("offset", offset))
	copyConfidence(dst, src)
	dst.SetOffset(offset)
}

func copyConfidence(dst, src *ag.Anchor) {
	if c, ok := src.Confidence(); ok {
		dst.SetConfidence(c)
		return
	}
	if _, ok := dst.Confidence(); ok {
		dst.SetConfidence(ag.ConfidenceNone)
	}
}
