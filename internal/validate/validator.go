// Package validate checks a graph against its schema after a transformation
// and repairs what it safely can: peer ordinals, reversed anchors, children
// escaping their parents, tag anchors, orphans and unset offsets. What it
// cannot repair is reported in the result's diagnostics.
package validate

import (
	"cmp"
	"log/slog"
	"unicode/utf8"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/logging"
	"agmerge/internal/offsets"
	"agmerge/internal/ordering"
	"agmerge/internal/transform"
	"agmerge/internal/traversal"
)

const component = "validate"

// Options configures a Validator.
type Options struct {
	// Smidgin is the offset gap used when a reversed anchor is moved to the
	// other side of its partner.
	Smidgin float64
	// MaxLabelLength truncates longer labels, counted in runes. Zero leaves
	// labels alone.
	MaxLabelLength int
	// DefaultOffsets runs the offset generator when a linked anchor has no
	// offset.
	DefaultOffsets bool
	Offsets        offsets.Options
	Logger         *slog.Logger
}

// DefaultOptions returns the settings used after a merge.
func DefaultOptions() Options {
	return Options{
		Smidgin:        0.00001,
		DefaultOffsets: true,
		Offsets:        offsets.DefaultOptions(),
	}
}

// Validator repairs and reports schema violations.
type Validator struct {
	opts   Options
	logger *slog.Logger
}

// New returns a validator with the given options.
func New(opts Options) *Validator {
	if opts.Smidgin <= 0 {
		opts.Smidgin = DefaultOptions().Smidgin
	}
	if opts.Offsets.Logger == nil {
		opts.Offsets.Logger = opts.Logger
	}
	return &Validator{opts: opts, logger: logging.NewComponentLogger(opts.Logger, component)}
}

// Transform validates g in place.
func (v *Validator) Transform(g *ag.Graph) (transform.Result, error) {
	var result transform.Result
	if g == nil {
		return result, diag.Wrap(diag.ErrConfiguration, component, "transform", "no graph", nil)
	}
	d := &result.Diagnostics
	changes, err := transform.Track(g, func() error {
		v.checkLabels(g, d)
		v.reconcileOrphans(g, d)
		v.correctReversedAnchors(g, d)

		walk := traversal.LayerTraversal[struct{}]{
			Pre: func(_ struct{}, layer *ag.Layer) struct{} {
				v.checkLayer(g, layer, d)
				return struct{}{}
			},
		}
		walk.Schema(g.Schema(), struct{}{})

		if v.opts.DefaultOffsets && unsetLinkedAnchor(g) {
			r, err := offsets.New(v.opts.Offsets).Transform(g)
			d.Merge(r.Diagnostics)
			if err != nil {
				return err
			}
		}
		v.pruneAnchors(g)
		return nil
	})
	result.Changes = changes
	if err != nil {
		return result, err
	}
	if n := len(d.Errors); n > 0 {
		logging.WarnWithContext(v.logger, "validation found errors", "validation_errors",
			logging.String(logging.FieldGraphID, g.ID()),
			logging.Int("errors", n),
			logging.Int("warnings", len(d.Warnings)))
	} else {
		v.logger.Debug("validation complete",
			logging.String(logging.FieldGraphID, g.ID()),
			logging.Int("changes", len(changes)),
			logging.Int("warnings", len(d.Warnings)))
	}
	return result, nil
}

func (v *Validator) checkLabels(g *ag.Graph, d *diag.Diagnostics) {
	limit := v.opts.MaxLabelLength
	if limit <= 0 {
		return
	}
	for _, an := range g.Annotations() {
		if an.IsDestroyed() || utf8.RuneCountInString(an.Label()) <= limit {
			continue
		}
		d.Warnf(component, an.ID(), "label truncated to %d characters", limit)
		an.SetLabel(string([]rune(an.Label())[:limit]))
	}
}

// reconcileOrphans handles live annotations whose parent was destroyed.
// Unconfirmed ones go with their parent. The rest move to the live
// annotation on the parent layer that best covers them.
func (v *Validator) reconcileOrphans(g *ag.Graph, d *diag.Diagnostics) {
	for _, id := range traversal.LayerIDs(g.Schema()) {
		layer := g.Layer(id)
		if layer == nil || layer.ID == ag.RootLayerID {
			continue
		}
		for _, an := range g.AnnotationsOn(id) {
			parent := an.Parent()
			if parent == nil || !parent.IsDestroyed() {
				continue
			}
			if an.ConfidenceOr(ag.ConfidenceManual) <= ag.ConfidenceAutomatic {
				an.Destroy()
				continue
			}
			best := bestParent(g, an, layer.ParentID)
			if best == nil {
				d.Errorf(component, an.ID(), "parent %s was deleted and no %s covers it", parent.ID(), layer.ParentID)
				continue
			}
			d.Warnf(component, an.ID(), "moved from deleted parent %s to %s", parent.ID(), best.ID())
			an.SetParent(best, true)
			best.SortChildren(id, ordering.CompareAnnotationsByAnchor)
		}
	}
}

// bestParent prefers a candidate that includes an, then one sharing an's
// former grandparent, then the nearest.
func bestParent(g *ag.Graph, an *ag.Annotation, layerID string) *ag.Annotation {
	if layerID == ag.RootLayerID {
		return g.Root()
	}
	var grandparent *ag.Annotation
	if p := an.Parent(); p != nil {
		grandparent = p.Parent()
	}
	var best *ag.Annotation
	bestScore := 0.0
	score := func(c *ag.Annotation) (float64, bool) {
		dist, ok := c.Distance(an)
		if !ok {
			return 0, false
		}
		if c.Includes(an) {
			dist -= 1e9
		}
		if grandparent != nil && c.Parent() == grandparent {
			dist -= 1e6
		}
		return dist, true
	}
	for _, c := range g.AnnotationsOn(layerID) {
		s, ok := score(c)
		if !ok {
			continue
		}
		if best == nil || s < bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func (v *Validator) correctReversedAnchors(g *ag.Graph, d *diag.Diagnostics) {
	for _, an := range g.Annotations() {
		if an.IsDestroyed() || an.Instantaneous() || !an.Anchored() {
			continue
		}
		v.correctReversed(an, d)
	}
}

func (v *Validator) correctReversed(an *ag.Annotation, d *diag.Diagnostics) {
	start, end := an.Start(), an.End()
	s, _ := start.Offset()
	e, _ := end.Offset()
	if s <= e {
		return
	}
	sc := start.ConfidenceOr(ag.ConfidenceNone)
	ec := end.ConfidenceOr(ag.ConfidenceNone)
	switch {
	case sc >= ag.ConfidenceManual && ec >= ag.ConfidenceManual:
		d.Errorf(component, an.ID(), "start %s (%g) is after end %s (%g) and both are manual",
			start.ID(), s, end.ID(), e)
	case sc <= ec:
		start.SetOffset(e - v.opts.Smidgin)
		start.SetConfidence(ag.ConfidenceNone)
		d.Warnf(component, an.ID(), "start moved from %g to before end %g", s, e)
	default:
		end.SetOffset(s + v.opts.Smidgin)
		end.SetConfidence(ag.ConfidenceNone)
		d.Warnf(component, an.ID(), "end moved from %g to after start %g", e, s)
	}
}

// checkLayer applies the layer's schema constraints to every parent's set of
// children on it.
func (v *Validator) checkLayer(g *ag.Graph, layer *ag.Layer, d *diag.Diagnostics) {
	if layer.ID == ag.RootLayerID {
		return
	}
	parents := []*ag.Annotation{g.Root()}
	if layer.ParentID != ag.RootLayerID {
		parents = g.AnnotationsOn(layer.ParentID)
	}
	for _, parent := range parents {
		children := parent.LiveChildren(layer.ID)
		if len(children) == 0 {
			continue
		}
		if !layer.Peers && len(children) > 1 {
			for _, extra := range children[1:] {
				d.Warnf(component, extra.ID(), "deleted: %s allows one %s child", parent.ID(), layer.ID)
				extra.Destroy()
			}
			children = children[:1]
		}
		v.correctOrdinals(parent, layer)
		if layer.IsTag() {
			shareParentAnchors(parent, children)
			continue
		}
		if layer.ParentIncludes && parent != g.Root() {
			for _, child := range parent.LiveChildren(layer.ID) {
				v.checkIncluded(parent, child, d)
			}
		}
		if layer.Saturated && !layer.PeersOverlap {
			checkGaps(parent, layer, d)
		}
	}
}

func (v *Validator) correctOrdinals(parent *ag.Annotation, layer *ag.Layer) {
	if layer.IsTag() || layer.PeersOverlap || !layer.Peers {
		parent.CorrectOrdinals(layer.ID)
		return
	}
	rank := map[*ag.Annotation]int{}
	for i, an := range ordering.PeersByAnchor(parent, layer.ID) {
		rank[an] = i
	}
	position := func(an *ag.Annotation) int {
		if r, ok := rank[an]; ok {
			return r
		}
		return len(rank)
	}
	if parent.SortChildren(layer.ID, func(x, y *ag.Annotation) int {
		return cmp.Compare(position(x), position(y))
	}) {
		v.logger.Debug("corrected ordinals",
			logging.String(logging.FieldAnnotation, parent.ID()),
			logging.Layer(layer.ID))
	}
}

func shareParentAnchors(parent *ag.Annotation, children []*ag.Annotation) {
	if parent.Start() == nil || parent.End() == nil {
		return
	}
	for _, child := range children {
		if child.Start() != parent.Start() {
			child.SetStart(parent.Start())
		}
		if child.End() != parent.End() {
			child.SetEnd(parent.End())
		}
	}
}

// checkIncluded warns about a child that escapes its parent and moves
// whichever of the two anchors is less trusted, if either is.
func (v *Validator) checkIncluded(parent, child *ag.Annotation, d *diag.Diagnostics) {
	if !parent.Anchored() || !child.Anchored() {
		return
	}
	ps, _ := parent.Start().Offset()
	pe, _ := parent.End().Offset()
	cs, _ := child.Start().Offset()
	ce, _ := child.End().Offset()
	if cs < ps {
		d.Warnf(component, child.ID(), "starts at %g, before parent %s at %g", cs, parent.ID(), ps)
		moveLessTrusted(parent.Start(), child.Start())
	}
	if ce > pe {
		d.Warnf(component, child.ID(), "ends at %g, after parent %s at %g", ce, parent.ID(), pe)
		moveLessTrusted(parent.End(), child.End())
	}
}

// moveLessTrusted gives the lower-confidence anchor the other's offset. Equal
// confidences are left for a person to resolve.
func moveLessTrusted(parent, child *ag.Anchor) {
	pc := parent.ConfidenceOr(ag.ConfidenceNone)
	cc := child.ConfidenceOr(ag.ConfidenceNone)
	switch {
	case pc < cc:
		offset, _ := child.Offset()
		parent.SetOffset(offset)
	case cc < pc:
		offset, _ := parent.Offset()
		child.SetOffset(offset)
	}
}

func checkGaps(parent *ag.Annotation, layer *ag.Layer, d *diag.Diagnostics) {
	children := parent.LiveChildren(layer.ID)
	for i := 1; i < len(children); i++ {
		last, next := children[i-1], children[i]
		if last.End() == next.Start() {
			continue
		}
		le, lok := last.End().Offset()
		ns, nok := next.Start().Offset()
		if lok && nok && le == ns {
			continue
		}
		d.Warnf(component, next.ID(), "gap after %s in saturated layer %s", last.ID(), layer.ID)
	}
}

func unsetLinkedAnchor(g *ag.Graph) bool {
	for _, a := range g.Anchors() {
		if !a.IsDestroyed() && a.Linked() && !a.HasOffset() {
			return true
		}
	}
	return false
}

func (v *Validator) pruneAnchors(g *ag.Graph) {
	pruned := 0
	for _, a := range g.Anchors() {
		if !a.IsDestroyed() && !a.Linked() {
			a.Destroy()
			pruned++
		}
	}
	if pruned > 0 {
		v.logger.Debug("pruned unlinked anchors",
			logging.String(logging.FieldGraphID, g.ID()),
			logging.Int("count", pruned))
	}
}
