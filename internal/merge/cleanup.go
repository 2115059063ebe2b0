package merge

import (
	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// bound remembers a fragment's outer anchor so the merge cannot move it.
type bound struct {
	anchor     *ag.Anchor
	offset     float64
	confidence int
	rated      bool
}

// fragmentBounds records the first and last anchors of a fragment. Edits
// near a fragment's edges would otherwise stretch it over audio it does not
// cover.
func (r *run) fragmentBounds() []bound {
	if !r.graph.Fragment {
		return nil
	}
	var bounds []bound
	for _, a := range []*ag.Anchor{r.graph.Start(), r.graph.End()} {
		if a == nil {
			continue
		}
		offset, _ := a.Offset()
		confidence, rated := a.Confidence()
		bounds = append(bounds, bound{anchor: a, offset: offset, confidence: confidence, rated: rated})
	}
	return bounds
}

// cleanup destroys anchors left without live annotations and restores
// fragment bounds, leaving the graph ready for validation.
func (r *run) cleanup(bounds []bound) {
	pruned := 0
	for _, a := range r.graph.Anchors() {
		if !a.IsDestroyed() && !a.Linked() {
			a.Destroy()
			pruned++
		}
	}
	for _, b := range bounds {
		if b.anchor.IsDestroyed() {
			continue
		}
		b.anchor.SetOffset(b.offset)
		if b.rated {
			b.anchor.SetConfidence(b.confidence)
		}
	}
	if pruned > 0 {
		r.logger.Debug("pruned unlinked anchors", logging.Int("count", pruned))
	}
}

// release drops every reference into the edited graph.
func (r *run) release() {
	clear(r.pairs)
	clear(r.deltasDone)
}
