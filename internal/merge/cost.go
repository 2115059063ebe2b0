package merge

import (
	"math"

	"agmerge/internal/ag"
	"agmerge/internal/editpath"
	"agmerge/internal/textutil"
)

// noWay is added to the cost of pairing two annotations that must not be
// paired. It dwarfs the unit cost of an insertion plus a deletion.
const noWay = 200

// alignmentCost prices the pairing of an original annotation with an edited
// one. Label differences cost their edit distance; offsets differences are
// weighted by how confident both annotations' anchors are, so confidently
// aligned annotations far apart resist pairing.
type alignmentCost struct {
	pairs  counterparts
	schema *ag.Schema
}

func (c *alignmentCost) Compare(from, to *ag.Annotation) (editpath.Operation, int) {
	op := editpath.None
	if from.Label() != to.Label() {
		op = editpath.Change
	}
	if c.pairs.has(from) || c.pairs.has(to) {
		if c.pairs.of(from) != to {
			return op, noWay
		}
		return op, 0
	}
	layer := from.Layer()
	weight := 0
	if op == editpath.Change {
		labelType := ""
		if layer != nil {
			labelType = layer.Type
		}
		weight += textutil.LabelDistance(from.Label(), to.Label(), labelType)
	}
	if layer == nil || c.graphTag(layer) {
		return op, weight
	}
	if from.Instantaneous() != to.Instantaneous() {
		return op, weight + noWay
	}
	if from.Anchored() && to.Anchored() {
		weight += c.offsetCost(from, to, layer)
	}
	return op, weight
}

func (c *alignmentCost) DeleteCost(*ag.Annotation) int { return 1 }

func (c *alignmentCost) InsertCost(*ag.Annotation) int { return 1 }

// PreferChange keeps a relabelled annotation paired with its original when
// relabelling costs no more than replacing it.
func (c *alignmentCost) PreferChange() bool { return true }

// graphTag reports whether layer and all its ancestors are unaligned, i.e.
// its annotations tag the whole graph and have no meaningful offsets.
func (c *alignmentCost) graphTag(layer *ag.Layer) bool {
	if !layer.IsTag() {
		return false
	}
	for _, id := range c.schema.Ancestors(layer.ID) {
		if id == ag.RootLayerID {
			continue
		}
		if l := c.schema.Layer(id); l != nil && !l.IsTag() {
			return false
		}
	}
	return true
}

func (c *alignmentCost) offsetCost(from, to *ag.Annotation, layer *ag.Layer) int {
	importance := math.Min(
		float64(anchorConfidence(from.Start())+anchorConfidence(from.End())),
		float64(anchorConfidence(to.Start())+anchorConfidence(to.End()))) /
		float64(2*ag.ConfidenceManual)
	if word := c.schema.WordLayerID; word != "" {
		if layer.ID == word || (layer.ParentID == word && layer.Alignment == ag.AlignmentInterval) {
			// words and their segments are aligned by label
			importance = 0
		}
	}
	if from.Instantaneous() {
		importance *= 2
	}
	d, ok := from.MaxPairedDistance(to)
	if !ok || d == 0 {
		return 0
	}
	if importance > 0 {
		if d > 0 {
			return int(d * importance * 2)
		}
		gap, _ := from.Distance(to)
		magnitude := math.Abs(gap) / ((from.Duration() + to.Duration()) / 2) * 3
		cost := math.Abs(-d * importance / magnitude)
		if math.IsNaN(cost) || cost > noWay {
			return noWay
		}
		return int(cost)
	}
	if d > 0 {
		if d > 30 || math.Abs(from.Duration()-to.Duration()) > 10 {
			return noWay
		}
		return 0
	}
	if -d > 10 {
		return noWay
	}
	return 0
}

// anchorConfidence rates an anchor for merge decisions. An anchor without an
// offset has no confidence; an unrated offset counts as ConfidenceNone.
func anchorConfidence(a *ag.Anchor) int {
	if a == nil || !a.HasOffset() {
		return ag.ConfidenceNone
	}
	return a.ConfidenceOr(ag.ConfidenceNone)
}

func labelConfidence(an *ag.Annotation) int {
	return an.ConfidenceOr(ag.ConfidenceNone)
}
