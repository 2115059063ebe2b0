package merge

import (
	"math"
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// child is one child visited by the hierarchy check: view is the annotation
// whose order and bounds are trusted (the edited child when the edited graph
// has the layer), original is the one that is repaired.
type child struct {
	view     *ag.Annotation
	original *ag.Annotation
}

// checkChildren repairs the relationship between the layer's annotations and
// their parents after the deltas have been applied: tag annotations follow
// their counterparts to new parents, and for non-overlapping peers the anchors
// of each parent's children are put back in offset order.
func (r *run) checkChildren(layer *ag.Layer) {
	if layer == nil || layer.ID == ag.RootLayerID {
		return
	}
	parentLayer := r.schema.Layer(layer.ParentID)
	if parentLayer == nil {
		return
	}
	editedHasChild := r.editedHasLayer(layer.ID)
	if editedHasChild && r.editedHasLayer(parentLayer.ID) && layer.IsTag() {
		r.reparentTags(layer)
	}
	if !layer.Peers || layer.PeersOverlap {
		return
	}
	partitions := r.partitionLayers(layer, parentLayer, editedHasChild)
	var previousLast *ag.Annotation
	for _, editedParent := range parentsOn(r.edited, parentLayer.ID) {
		parent := r.pairs.of(editedParent)
		// a no-change layer may have kept the parent from being created
		if parent == nil || parent.IsDestroyed() {
			continue
		}
		children := r.childrenOf(layer, editedParent, parent, editedHasChild)
		previousLast = r.checkParent(layer, parentLayer, editedParent, parent, children, partitions, previousLast)
	}
}

func (r *run) reparentTags(layer *ag.Layer) {
	for _, an := range r.graph.AnnotationsOn(layer.ID) {
		edited := r.pairs.of(an)
		if edited == nil || edited.Parent() == nil {
			continue
		}
		parent := r.pairs.of(edited.Parent())
		if parent == nil || parent == an.Parent() {
			continue
		}
		r.logger.Debug("tag parent changed",
			logging.String(logging.FieldAnnotation, an.ID()),
			logging.String("parent", parent.ID()))
		an.SetParent(parent, true)
	}
}

// partitionLayers lists saturated interval siblings of layer whose
// boundaries the layer's children must respect.
func (r *run) partitionLayers(layer, parentLayer *ag.Layer, editedHasChild bool) []string {
	if !layer.ParentIncludes || !editedHasChild {
		return nil
	}
	var ids []string
	for _, peer := range r.schema.ChildLayers(parentLayer.ID) {
		if peer.ID == layer.ID || !r.editedHasLayer(peer.ID) {
			continue
		}
		if peer.ParentIncludes && peer.Alignment == ag.AlignmentInterval &&
			peer.Peers && !peer.PeersOverlap && peer.Saturated {
			ids = append(ids, peer.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *run) childrenOf(layer *ag.Layer, editedParent, parent *ag.Annotation, editedHasChild bool) []child {
	var out []child
	if editedHasChild {
		for _, e := range byOrdinal(editedParent.LiveChildren(layer.ID)) {
			o := r.pairs.of(e)
			// a no-change layer may have kept the child from being created
			if o == nil || o.IsDestroyed() || o.Start() == nil || o.End() == nil {
				continue
			}
			out = append(out, child{view: e, original: o})
		}
		return out
	}
	list := byOrdinal(parent.LiveChildren(layer.ID))
	if layer.Saturated {
		// the parent's anchors may have moved under children the edit never
		// saw, so their chain is trusted over their offsets
		list = chainOrder(parent, list)
	}
	for _, o := range list {
		if o.Start() != nil && o.End() != nil {
			out = append(out, child{view: o, original: o})
		}
	}
	return out
}

// chainOrder follows children from the parent's start through shared
// anchors. Children not on the chain are dropped.
func chainOrder(parent *ag.Annotation, children []*ag.Annotation) []*ag.Annotation {
	if len(children) == 0 {
		return nil
	}
	byStart := map[*ag.Anchor]*ag.Annotation{}
	for _, c := range children {
		if c.Start() != nil {
			if _, ok := byStart[c.Start()]; !ok {
				byStart[c.Start()] = c
			}
		}
	}
	cur := byStart[parent.Start()]
	if cur == nil {
		cur = children[0]
	}
	seen := map[*ag.Annotation]bool{}
	var out []*ag.Annotation
	for cur != nil && !seen[cur] {
		seen[cur] = true
		out = append(out, cur)
		cur = byStart[cur.End()]
	}
	return out
}

// partitionCursor walks one partition layer's annotations under an edited
// parent.
type partitionCursor struct {
	list []*ag.Annotation
	i    int
}

func (r *run) checkParent(layer, parentLayer *ag.Layer, editedParent, parent *ag.Annotation,
	children []child, partitions []string, previousLast *ag.Annotation) *ag.Annotation {
	cursors := map[string]*partitionCursor{}
	for _, id := range partitions {
		if list := byOrdinal(editedParent.LiveChildren(id)); len(list) > 0 {
			cursors[id] = &partitionCursor{list: list}
		}
	}
	mine := map[*ag.Annotation]bool{}
	for _, c := range children {
		mine[c.original] = true
	}
	both := exclude(layer.ID, parentLayer.ID)
	noInterSharing := layer.Saturated && !layer.IsTag()

	var anchors []*ag.Anchor
	add := func(a *ag.Anchor) {
		if !slices.Contains(anchors, a) {
			anchors = append(anchors, a)
		}
	}
	if layer.ParentIncludes {
		anchors = append(anchors, sentinel(parent.Start()))
	}
	var last *ag.Annotation
	for i, c := range children {
		for _, id := range partitions {
			if cur := cursors[id]; cur != nil {
				if b := r.partitionBoundary(cur, c.view); b != nil {
					anchors = append(anchors, b)
				}
			}
		}
		o := c.original
		if noInterSharing {
			switch reason, share := r.startSharing(layer, parentLayer, o, parent, last, previousLast); {
			case reason == "":
			case share && last.End() != nil && last.End() != o.Start():
				r.changeStart(o, last.End(), both)
				r.logger.Debug("using end of previous child",
					logging.String(logging.FieldAnnotation, o.ID()), logging.String("reason", reason))
			case !share:
				r.changeStart(o, r.cloneAnchor(o.Start()), both)
				r.logger.Debug("new start anchor",
					logging.String(logging.FieldAnnotation, o.ID()), logging.String("reason", reason))
			}
		}
		add(o.Start())
		if noInterSharing {
			if reason := r.endSharing(layer, parentLayer, o, parent, i == len(children)-1); reason != "" {
				r.changeEnd(o, r.cloneAnchor(o.End()), both)
				r.logger.Debug("new end anchor",
					logging.String(logging.FieldAnnotation, o.ID()), logging.String("reason", reason))
			}
		}
		add(o.End())
		last = o
	}
	if layer.ParentIncludes {
		anchors = append(anchors, sentinel(parent.End()))
	}

	r.repairOrder(layer, parent, anchors, mine)

	if layer.Saturated && len(children) > 0 {
		first := children[0].original
		if parent.Start() != nil && parent.Start() != first.Start() {
			r.changeStart(parent, first.Start(), exclude(layer.ID))
			r.logger.Debug("parent shares start of first child",
				logging.String(logging.FieldAnnotation, parent.ID()))
		}
		lastChild := children[len(children)-1].original
		if parent.End() != nil && parent.End() != lastChild.End() {
			r.changeEnd(parent, lastChild.End(), exclude(layer.ID))
			r.logger.Debug("parent shares end of last child",
				logging.String(logging.FieldAnnotation, parent.ID()))
		}
	}
	return last
}

// partitionBoundary advances the cursor to the partition containing the
// child's midpoint, returning the end of the partition left behind if the
// child lies within the next one.
func (r *run) partitionBoundary(cur *partitionCursor, view *ag.Annotation) *ag.Anchor {
	minStart, okStart := view.Start().OffsetMin()
	maxEnd, okEnd := view.End().OffsetMax()
	if !okStart || !okEnd {
		return nil
	}
	mid := minStart + (maxEnd-minStart)/2
	var boundary *ag.Anchor
	for !cur.list[cur.i].IncludesOffset(mid) {
		if cur.i+1 >= len(cur.list) {
			break
		}
		var end *ag.Anchor
		if o := r.pairs.of(cur.list[cur.i]); o != nil {
			end = o.End()
		}
		cur.i++
		if cur.list[cur.i].Includes(view) {
			boundary = sentinel(end)
		}
	}
	return boundary
}

// startSharing decides whether a saturated child's start anchor is shared
// with annotations it should not share with. It returns the reason, and
// whether the start should become the previous child's end rather than a
// new anchor.
func (r *run) startSharing(layer, parentLayer *ag.Layer, o, parent, last, previousLast *ag.Annotation) (string, bool) {
	starting := o.Start().LiveStartOf(layer.ID)
	ending := o.Start().LiveEndOf(layer.ID)
	if last == nil {
		switch {
		case len(starting) > 1:
			return "first child shares start with another child's start", false
		case len(ending) == 1 && ending[0] != previousLast && parent.Start() != o.Start():
			return "first child shares start with another child's end", false
		case len(ending) > 2:
			return "first child shares start with several children's ends", false
		}
	} else {
		switch {
		case len(starting) > 1:
			return "child shares start with another child's start", true
		case len(ending) == 1 && ending[0] != last:
			return "child shares start with another child's end", true
		case len(ending) > 2:
			return "child shares start with several children's ends", true
		}
	}
	parentsStarting := o.Start().LiveStartOf(parentLayer.ID)
	parentsEnding := o.Start().LiveEndOf(parentLayer.ID)
	if last == nil {
		switch {
		case len(parentsStarting) == 1 && parentsStarting[0] != parent:
			return "first child shares start with another parent", false
		case len(parentsStarting) > 2:
			return "first child shares start with several parents' starts", false
		case len(parentsEnding) > 1:
			return "first child shares start with several parents' ends", false
		}
		return "", false
	}
	switch {
	case len(parentsStarting) > 0:
		return "child shares start with a parent's start", true
	case len(parentsEnding) > 0:
		return "child shares start with a parent's end", false
	}
	return "", false
}

// endSharing is the end-anchor counterpart of startSharing; a shared end is
// always replaced with a new anchor.
func (r *run) endSharing(layer, parentLayer *ag.Layer, o, parent *ag.Annotation, isLast bool) string {
	starting := o.End().LiveStartOf(layer.ID)
	ending := o.End().LiveEndOf(layer.ID)
	switch {
	case len(ending) > 1:
		return "child shares end with another child's end"
	case len(starting) > 2:
		return "child shares end with several children's starts"
	}
	parentsStarting := o.End().LiveStartOf(parentLayer.ID)
	parentsEnding := o.End().LiveEndOf(parentLayer.ID)
	if !isLast {
		switch {
		case len(parentsStarting) > 0:
			return "child shares end with a parent's start"
		case len(parentsEnding) > 0:
			return "child shares end with a parent's end"
		}
		return ""
	}
	switch {
	case len(parentsEnding) == 1 && parentsEnding[0] != parent:
		return "last child shares end with another parent"
	case len(parentsEnding) > 2:
		return "last child shares end with several parents' ends"
	case len(parentsStarting) > 1:
		return "last child shares end with several parents' starts"
	}
	return ""
}

// sentinel returns a detached anchor at a's offset that outranks every real
// confidence, so the order repair never moves it.
func sentinel(a *ag.Anchor) *ag.Anchor {
	if a != nil {
		if offset, ok := a.Offset(); ok {
			return ag.NewAnchorAt("", offset, math.MaxInt)
		}
	}
	return ag.NewAnchor("")
}

func fixed(a *ag.Anchor) bool { return a.Graph() == nil }

// repairOrder makes the offsets along anchors non-decreasing. An anchor that
// falls behind a more confident predecessor is rolled back or nudged just
// past it; otherwise the less confident run before it is rolled back or
// spread evenly up to it.
func (r *run) repairOrder(layer *ag.Layer, parent *ag.Annotation, anchors []*ag.Anchor, mine map[*ag.Annotation]bool) {
	var predecessor *ag.Anchor
	for i, anchor := range anchors {
		offset, ok := anchor.Offset()
		if !ok {
			continue
		}
		if predecessor != nil {
			prior, _ := predecessor.Offset()
			if offset < prior {
				r.logger.Debug("anchors out of order",
					logging.Layer(layer.ID),
					logging.String(logging.FieldAnchor, anchor.ID()),
					logging.Float64("offset", offset),
					logging.Float64("predecessor", prior))
				if anchorConfidence(anchor) <= anchorConfidence(predecessor) && !pastParentEnd(layer, parent, offset) {
					r.nudge(layer, anchor, prior, mine)
				} else {
					r.redistribute(layer, anchors, i, mine)
				}
			}
		}
		predecessor = anchor
	}
}

// pastParentEnd reports whether moving to offset would leave a parent that
// must include its children.
func pastParentEnd(layer *ag.Layer, parent *ag.Annotation, offset float64) bool {
	if !layer.ParentIncludes || parent.End() == nil {
		return false
	}
	end, ok := parent.End().Offset()
	return ok && offset >= end
}

func (r *run) nudge(layer *ag.Layer, anchor *ag.Anchor, prior float64, mine map[*ag.Annotation]bool) {
	if fixed(anchor) {
		return
	}
	if original, ok := anchor.OriginalOffset(); ok && anchor.OffsetChanged() && original >= prior {
		anchor.RollbackOffset()
		return
	}
	offset := prior + r.smidgin
	anchor.SetOffset(offset)
	anchor.SetConfidence(ag.ConfidenceNone)
	for _, an := range anchor.LiveStartOf(layer.ID) {
		if !mine[an] || an.End() == nil {
			continue
		}
		if end, ok := an.End().Offset(); ok && end < offset {
			an.End().SetOffset(offset + r.smidgin)
			an.End().SetConfidence(ag.ConfidenceNone)
		}
		r.resetChildren(an, offset, false)
	}
}

// redistribute walks back from anchors[i] over anchors that are no more
// confident, then either rolls them back, if their committed offsets were in
// order, or spaces them evenly between the last good anchor and anchors[i].
func (r *run) redistribute(layer *ag.Layer, anchors []*ag.Anchor, i int, mine map[*ag.Annotation]bool) {
	anchor := anchors[i]
	confidence := anchorConfidence(anchor)
	endOffset, _ := anchor.Offset()
	future, lowest := endOffset, endOffset
	changeCurrent, revert := false, true
	count := 0
	j := i - 1
	for ; j >= 0; j-- {
		p := anchors[j]
		offset, ok := p.Offset()
		if !ok {
			continue
		}
		original, hasOriginal := p.OriginalOffset()
		if hasOriginal {
			lowest = math.Min(lowest, original)
		}
		if anchorConfidence(p) > confidence && hasOriginal {
			if original > future {
				revert = false
			}
			changeCurrent = true
			break
		}
		if offset < endOffset && hasOriginal {
			if original > future {
				revert = false
			}
			break
		}
		if anchorConfidence(p) == confidence {
			changeCurrent = false
		}
		if hasOriginal && original > future {
			revert = false
		}
		future = offset
		count++
	}
	from := j + 1
	if j < 0 {
		// the first anchor stays put
		j, from = 0, 1
		changeCurrent = true
	}
	startOffset, ok := anchors[j].Offset()
	if !ok {
		return
	}
	if startOffset > lowest {
		revert = false
	}
	steps := count + 1
	duration := endOffset - startOffset
	if duration <= 0 {
		duration = float64(steps) * r.smidgin
	}
	step := 1
	var resetBefore *ag.Anchor
	for k := from; k <= i; k++ {
		a := anchors[k]
		old, ok := a.Offset()
		if !ok {
			continue
		}
		if (changeCurrent || a != anchor) && !fixed(a) {
			if revert {
				a.RollbackOffset()
			} else {
				offset := startOffset + float64(step)*duration/float64(steps)
				a.SetOffset(offset)
				a.SetConfidence(ag.ConfidenceNone)
				if resetBefore != nil {
					r.resetStarting(layer, resetBefore, mine)
					resetBefore = nil
				}
				if old > offset {
					for _, an := range a.LiveEndOf(layer.ID) {
						r.resetChildren(an, offset, true)
					}
				} else if old < offset {
					resetBefore = a
				}
			}
		}
		step++
	}
	if resetBefore != nil {
		r.resetStarting(layer, resetBefore, mine)
	}
}

func (r *run) resetStarting(layer *ag.Layer, a *ag.Anchor, mine map[*ag.Annotation]bool) {
	offset, _ := a.Offset()
	for _, an := range a.LiveStartOf(layer.ID) {
		if mine[an] {
			r.resetChildren(an, offset, false)
		}
	}
}

// resetChildren rechains the saturated, parent-included interval children of
// parent from its start to its end. Child anchors on the wrong side of
// threshold (at or before it, or at or after it when after is set) are
// replaced by the next child's start or by a new unaligned anchor.
func (r *run) resetChildren(parent *ag.Annotation, threshold float64, after bool) {
	if parent.Start() == nil || parent.End() == nil {
		return
	}
	for _, id := range parent.ChildLayerIDs() {
		l := r.schema.Layer(id)
		if l == nil || l.Alignment != ag.AlignmentInterval || !l.Saturated || !l.ParentIncludes {
			continue
		}
		var last *ag.Annotation
		for _, c := range byOrdinal(parent.LiveChildren(id)) {
			if last == nil {
				if c.Start() != parent.Start() {
					c.SetStart(parent.Start())
				}
				last = c
				continue
			}
			if end, ok := last.End().Offset(); ok && beyond(end, threshold, after) {
				start, hasStart := c.Start().Offset()
				if c.Start() != last.End() && hasStart && !beyond(start, threshold, after) {
					last.SetEnd(c.Start())
				} else {
					a := r.graph.CreateAnchor()
					a.SetConfidence(ag.ConfidenceNone)
					last.SetEnd(a)
				}
				if !last.Anchored() || last.IncludesOffset(threshold) {
					r.resetChildren(last, threshold, after)
				}
			}
			if c.Start() != last.End() {
				c.SetStart(last.End())
			}
			last = c
		}
		if last == nil {
			continue
		}
		if last.End() != parent.End() {
			last.SetEnd(parent.End())
		}
		if !last.Anchored() || last.IncludesOffset(threshold) {
			r.resetChildren(last, threshold, after)
		}
	}
}

func beyond(offset, threshold float64, after bool) bool {
	if after {
		return offset >= threshold
	}
	return offset <= threshold
}
