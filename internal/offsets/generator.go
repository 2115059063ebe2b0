// Package offsets assigns default offsets to anchors that have none, or whose
// offsets are not trusted, by spacing them evenly between the nearest trusted
// anchors around them.
//
// Work is done in chunks: every live annotation on a chunk layer (the highest
// layer whose children are aligned, non-overlapping, parent-included peers)
// is interpolated independently of the others, so a failure to find bounds in
// one chunk does not stop the rest.
package offsets

import (
	"fmt"
	"log/slog"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/logging"
	"agmerge/internal/ordering"
	"agmerge/internal/transform"
	"agmerge/internal/traversal"
)

const component = "offsets"

// Options configures a Generator.
type Options struct {
	// DefaultOffsetThreshold is the highest anchor confidence that is still
	// recomputed. Anchors above it are trusted bounds.
	DefaultOffsetThreshold int
	// DefaultAnchorConfidence is assumed for anchors with no confidence.
	DefaultAnchorConfidence int
	// Confidence is stamped on every offset the generator assigns.
	Confidence int
	Logger     *slog.Logger
}

// DefaultOptions returns the standard settings: anchors at default confidence
// or lower are recomputed, unrated anchors are trusted, and new offsets carry
// default confidence.
func DefaultOptions() Options {
	return Options{
		DefaultOffsetThreshold:  ag.ConfidenceDefault,
		DefaultAnchorConfidence: ag.ConfidenceManual,
		Confidence:              ag.ConfidenceDefault,
	}
}

// Generator fills in default offsets.
type Generator struct {
	threshold        int
	anchorConfidence int
	confidence       int
	logger           *slog.Logger
}

// New returns a generator with the given options.
func New(opts Options) *Generator {
	return &Generator{
		threshold:        opts.DefaultOffsetThreshold,
		anchorConfidence: opts.DefaultAnchorConfidence,
		confidence:       opts.Confidence,
		logger:           logging.NewComponentLogger(opts.Logger, component),
	}
}

// Transform interpolates offsets across every chunk of g. Chunks whose
// anchors cannot be bounded are reported as errors in the result's
// diagnostics.
func (gen *Generator) Transform(g *ag.Graph) (transform.Result, error) {
	var result transform.Result
	if g == nil {
		return result, diag.Wrap(diag.ErrConfiguration, component, "transform", "no graph", nil)
	}
	changes, err := transform.Track(g, func() error {
		if !gen.anyUnset(g.Anchors()) {
			gen.logger.Debug("no anchors below threshold",
				logging.String(logging.FieldGraphID, g.ID()),
				logging.Int("threshold", gen.threshold))
			return nil
		}
		for _, layer := range ChunkLayers(g.Schema()) {
			for _, top := range g.AnnotationsOn(layer.ID) {
				if err := gen.Descendants(top, &result.Diagnostics); err != nil {
					result.Diagnostics.Errorf(component, top.ID(),
						"could not set descendant offsets: %v", err)
				}
			}
		}
		return nil
	})
	result.Changes = changes
	if n := len(result.Diagnostics.Errors); n > 0 {
		logging.WarnWithContext(gen.logger, "default offsets incomplete", "offsets_unresolved",
			logging.String(logging.FieldGraphID, g.ID()),
			logging.Int("chunks", n),
			logging.String(logging.FieldErrorHint, "add a trusted offset to an anchor in each failing chunk"),
			logging.String(logging.FieldImpact, "some anchors keep no offset"))
	}
	return result, err
}

// ChunkLayers returns the layers whose annotations are interpolated
// independently: for each aligned, non-overlapping, parent-included peer
// layer, its parent, unless the parent is top-level or already lies below
// another chunk layer.
func ChunkLayers(s *ag.Schema) []*ag.Layer {
	chosen := map[string]bool{}
	walk := traversal.LayerTraversal[[]*ag.Layer]{
		Pre: func(result []*ag.Layer, child *ag.Layer) []*ag.Layer {
			parent := s.Layer(child.ParentID)
			if parent == nil || parent.ID == ag.RootLayerID || parent.ParentID == ag.RootLayerID {
				return result
			}
			if !child.Peers || child.PeersOverlap || child.IsTag() || !child.ParentIncludes {
				return result
			}
			if chosen[parent.ID] {
				return result
			}
			for _, ancestor := range s.Ancestors(parent.ID) {
				if chosen[ancestor] {
					return result
				}
			}
			chosen[parent.ID] = true
			return append(result, parent)
		},
	}
	return walk.Schema(s, nil)
}

// Descendants interpolates the anchors below top. Runs that would span
// backwards are skipped with a warning in diags (which may be nil). The
// returned error names the first run that has no trusted bound.
func (gen *Generator) Descendants(top *ag.Annotation, diags *diag.Diagnostics) error {
	if top.Instantaneous() {
		return nil
	}
	found := map[*ag.Anchor]bool{}
	var anchors []*ag.Anchor
	collect := func(a *ag.Anchor) {
		if a != nil && !found[a] {
			found[a] = true
			anchors = append(anchors, a)
		}
	}
	gen.descendantAnchors(top, collect)
	if !gen.anyUnset(anchors) {
		return nil
	}
	ordering.NewAnchorComparator(top.Graph()).Sort(anchors)

	bounded := make([]*ag.Anchor, 0, len(anchors)+2)
	bounded = append(bounded, gen.sentinel(top.Start(), anchors, false))
	bounded = append(bounded, anchors...)
	bounded = append(bounded, gen.sentinel(top.End(), anchors, true))

	var lastSet *ag.Anchor
	for i := 0; i < len(bounded); i++ {
		if gen.trusted(bounded[i]) {
			lastSet = bounded[i]
			continue
		}
		if lastSet == nil {
			return fmt.Errorf("could not determine bounds, starting from %s", gen.describe(top.Start()))
		}
		unset := []*ag.Anchor{bounded[i]}
		var nextSet *ag.Anchor
		for nextSet == nil {
			i++
			if i >= len(bounded) {
				return fmt.Errorf("could not determine bounds, starting from %s after %s",
					gen.describe(lastSet), gen.describe(unset[len(unset)-1]))
			}
			if gen.trusted(bounded[i]) {
				nextSet = bounded[i]
			} else {
				unset = append(unset, bounded[i])
			}
		}
		gen.fill(lastSet, unset, nextSet, top, diags)
		lastSet = nextSet
	}
	return nil
}

// fill assigns offsets to a run of untrusted anchors between two trusted
// ones. An end of the run that is not joined to its bound by an annotation
// takes the bound's offset; the rest are spaced evenly unless the bounds are
// reversed.
func (gen *Generator) fill(lastSet *ag.Anchor, unset []*ag.Anchor, nextSet *ag.Anchor, top *ag.Annotation, diags *diag.Diagnostics) {
	start, _ := lastSet.Offset()
	end, _ := nextSet.Offset()
	if first := unset[0]; lastSet.AnnotationTo(first) == nil {
		gen.assign(first, start)
		unset = unset[1:]
	}
	if len(unset) == 0 {
		return
	}
	if last := unset[len(unset)-1]; last.AnnotationTo(nextSet) == nil {
		gen.assign(last, end)
		unset = unset[:len(unset)-1]
	}
	if len(unset) == 0 {
		return
	}
	if end < start {
		if diags != nil {
			diags.Warnf(component, top.ID(), "skipped %d anchor(s) between %s and %s: bounds are reversed",
				len(unset), gen.describe(lastSet), gen.describe(nextSet))
		}
		return
	}
	increment := (end - start) / float64(len(unset)+1)
	for i, a := range unset {
		offset := start + float64(i+1)*increment
		current, ok := a.Offset()
		if !ok || current != offset || gen.confidenceOf(a) < gen.confidence {
			gen.assign(a, offset)
		}
	}
}

func (gen *Generator) assign(a *ag.Anchor, offset float64) {
	a.SetOffset(offset)
	a.SetConfidence(gen.confidence)
	gen.logger.Debug("default offset",
		logging.String(logging.FieldAnchor, a.ID()),
		logging.Float64("offset", offset))
}

// descendantAnchors passes every anchor of top's aligned peer descendants to
// collect, including the anchors of annotation chains that join consecutive
// children.
func (gen *Generator) descendantAnchors(parent *ag.Annotation, collect func(*ag.Anchor)) {
	g := parent.Graph()
	for _, layerID := range parent.ChildLayerIDs() {
		layer := g.Layer(layerID)
		if layer == nil {
			continue
		}
		addAnchors := layer.Peers && !layer.PeersOverlap && !layer.IsTag() && layer.ParentIncludes
		previous := parent.Start()
		for _, child := range parent.LiveChildren(layerID) {
			if addAnchors {
				collectChain(previous, child.Start(), collect)
				collect(child.Start())
				collect(child.End())
				previous = child.End()
			}
			gen.descendantAnchors(child, collect)
		}
		if addAnchors && parent.Start() != nil && previous != parent.Start() {
			collectChain(previous, parent.End(), collect)
		}
	}
}

func collectChain(from, to *ag.Anchor, collect func(*ag.Anchor)) {
	for _, link := range ag.Chain(from, to, nil) {
		collect(link.Start())
		collect(link.End())
	}
}

// sentinel returns a detached trusted anchor bounding the run at one end:
// a copy of bound when it has an offset, otherwise the lowest (or highest)
// offset among anchors.
func (gen *Generator) sentinel(bound *ag.Anchor, anchors []*ag.Anchor, highest bool) *ag.Anchor {
	s := ag.NewAnchor("")
	if bound != nil {
		if offset, ok := bound.Offset(); ok {
			s.SetOffset(offset)
			s.SetConfidence(gen.threshold + 1)
			return s
		}
	}
	for _, a := range anchors {
		offset, ok := a.Offset()
		if !ok {
			continue
		}
		current, set := s.Offset()
		if !set || (highest && offset > current) || (!highest && offset < current) {
			s.SetOffset(offset)
		}
	}
	s.SetConfidence(gen.threshold + 1)
	return s
}

func (gen *Generator) trusted(a *ag.Anchor) bool {
	return a.HasOffset() && gen.confidenceOf(a) > gen.threshold
}

func (gen *Generator) anyUnset(anchors []*ag.Anchor) bool {
	for _, a := range anchors {
		if a.IsDestroyed() {
			continue
		}
		if !gen.trusted(a) {
			return true
		}
	}
	return false
}

func (gen *Generator) confidenceOf(a *ag.Anchor) int {
	return a.ConfidenceOr(gen.anchorConfidence)
}

func (gen *Generator) describe(a *ag.Anchor) string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%d)", a, gen.confidenceOf(a))
}
