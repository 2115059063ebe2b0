// Package merge folds the changes of an independently edited copy of an
// annotation graph back into the original.
//
// A merge runs in phases. Annotations of the two graphs are first paired by a
// minimum edit path over each layer. Unpaired originals are then destroyed and
// unpaired edits created, labels are copied where the edit is at least as
// confident as the original, and anchor offsets and sharing are reconciled
// bottom up. A hierarchy check repairs children left out of order or outside
// their parents. Anchors left unlinked are pruned before the configured
// validator runs last.
package merge

import (
	"fmt"
	"log/slog"
	"math"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/logging"
	"agmerge/internal/ordering"
	"agmerge/internal/transform"
	"agmerge/internal/traversal"
)

const component = "merge"

// Merger applies the changes of an edited graph to an original graph.
type Merger struct {
	opts   Options
	logger *slog.Logger
}

// New returns a merger with the given options.
func New(opts Options) *Merger {
	if opts.Smidgin <= 0 {
		opts.Smidgin = DefaultOptions(nil).Smidgin
	}
	return &Merger{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, component),
	}
}

// run holds the state of one merge invocation.
type run struct {
	m         *Merger
	graph     *ag.Graph
	edited    *ag.Graph
	schema    *ag.Schema
	pairs     counterparts
	cost      *alignmentCost
	layers    []*ag.Layer
	noChange  map[string]bool
	tolerance float64
	smidgin   float64
	// deltasDone marks originals whose anchors have been reconciled.
	deltasDone map[*ag.Annotation]bool
	diags      *diag.Diagnostics
	logger     *slog.Logger
}

// Transform merges the edited graph into g. Configuration problems are
// returned as errors before g is touched; problems found while merging are
// reported in the result's diagnostics.
func (m *Merger) Transform(g *ag.Graph) (transform.Result, error) {
	var result transform.Result
	if err := m.check(g); err != nil {
		return result, err
	}
	if g == m.opts.Edited {
		return result, nil
	}
	if m.opts.IDs != nil {
		own := g.IDs
		g.IDs = m.opts.IDs
		defer func() { g.IDs = own }()
	}

	r := m.newRun(g, &result.Diagnostics)
	logger := r.logger
	logger.Info("merge started",
		logging.String(logging.FieldEventType, "merge_started"),
		logging.String(logging.FieldGraphID, g.ID()),
		logging.String("edited_graph", m.opts.Edited.ID()),
		logging.Int("layers", len(r.layers)))

	changes, err := transform.Track(g, func() error {
		defer r.release()
		bounds := r.fragmentBounds()
		r.merge()
		r.cleanup(bounds)
		return r.validate()
	})
	result.Changes = changes
	if err != nil {
		return result, err
	}
	if result.Diagnostics.HasErrors() {
		logging.WarnWithContext(logger, "merge finished with errors", "merge_incomplete",
			logging.String(logging.FieldGraphID, g.ID()),
			logging.Int("errors", len(result.Diagnostics.Errors)),
			logging.String(logging.FieldImpact, "the merged graph may need manual review"))
	}
	logger.Info("merge finished",
		logging.String(logging.FieldEventType, "merge_finished"),
		logging.String(logging.FieldGraphID, g.ID()),
		logging.Int("changes", len(result.Changes)),
		logging.Int("warnings", len(result.Diagnostics.Warnings)))
	return result, nil
}

// check rejects configurations that cannot be merged.
func (m *Merger) check(g *ag.Graph) error {
	if g == nil {
		return diag.Wrap(diag.ErrConfiguration, component, "transform", "no graph", nil)
	}
	edited := m.opts.Edited
	if edited == nil {
		return diag.Wrap(diag.ErrConfiguration, component, "transform", "edited graph is not set", nil)
	}
	schema := g.Schema()
	if schema == nil || edited.Schema() == nil {
		return diag.Wrap(diag.ErrConfiguration, component, "transform", "graph has no schema", nil)
	}
	for _, id := range []string{schema.ParticipantLayerID, schema.TurnLayerID, schema.UtteranceLayerID, schema.WordLayerID} {
		if id != "" && schema.Layer(id) == nil {
			return diag.Wrap(diag.ErrConfiguration, component, "transform",
				fmt.Sprintf("schema names layer %q which is not defined", id), nil)
		}
	}
	for _, el := range edited.Schema().Layers() {
		l := schema.Layer(el.ID)
		if l == nil || l.ID == ag.RootLayerID {
			continue
		}
		if l.ParentID != el.ParentID {
			return diag.Wrap(diag.ErrConfiguration, component, "transform",
				fmt.Sprintf("layer %q has parent %q in the original graph but %q in the edited graph",
					l.ID, l.ParentID, el.ParentID), nil)
		}
	}
	for _, id := range m.opts.NoChangeLayers {
		if schema.Layer(id) == nil {
			return diag.Wrap(diag.ErrConfiguration, component, "transform",
				fmt.Sprintf("no-change layer %q is not defined", id), nil)
		}
	}
	return nil
}

func (m *Merger) newRun(g *ag.Graph, diags *diag.Diagnostics) *run {
	edited := m.opts.Edited
	pairs := counterparts{}
	r := &run{
		m:          m,
		graph:      g,
		edited:     edited,
		schema:     g.Schema(),
		pairs:      pairs,
		cost:       &alignmentCost{pairs: pairs, schema: g.Schema()},
		noChange:   map[string]bool{},
		tolerance:  math.Max(m.opts.OffsetTolerance, math.Max(g.OffsetGranularity, edited.OffsetGranularity)),
		smidgin:    m.opts.Smidgin,
		deltasDone: map[*ag.Annotation]bool{},
		diags:      diags,
		logger:     m.logger.With(logging.String(logging.FieldGraphID, g.ID())),
	}
	for _, id := range m.opts.NoChangeLayers {
		r.noChange[id] = true
	}
	// layers present in both graphs, parents first
	for _, id := range traversal.LayerIDs(r.schema) {
		if edited.Layer(id) == nil {
			continue
		}
		r.layers = append(r.layers, r.schema.Layer(id))
	}
	for _, el := range edited.Schema().Layers() {
		if el.ID != ag.RootLayerID && r.schema.Layer(el.ID) == nil {
			diags.Warnf(component, el.ID, "layer is only in the edited graph and is ignored")
		}
	}
	return r
}

func (r *run) merge() {
	r.phase("map", r.mapGraphs)
	r.phase("existence", func() {
		for _, layer := range r.layers {
			if !r.noChange[layer.ID] {
				r.reconcileExistence(layer)
			}
		}
	})
	r.phase("labels", func() {
		for _, layer := range r.layers {
			if !r.noChange[layer.ID] {
				r.labelDeltas(layer)
			}
		}
	})
	r.phase("anchors", func() {
		for _, layer := range r.bottomUpLeavesLast() {
			if !layer.IsTag() {
				r.anchorDeltas(layer)
			}
		}
	})
	r.phase("hierarchy", func() {
		for _, id := range traversal.LayerIDs(r.schema) {
			r.checkChildren(r.schema.Layer(id))
		}
	})
}

// validate runs the configured validator over the cleaned up graph.
func (r *run) validate() error {
	v := r.m.opts.Validator
	if v == nil {
		return nil
	}
	r.logger.Debug("validating", logging.Phase("validate"))
	vr, err := v.Transform(r.graph)
	r.diags.Merge(vr.Diagnostics)
	if err != nil {
		return fmt.Errorf("validate merged graph: %w", err)
	}
	return nil
}

func (r *run) phase(name string, fn func()) {
	r.logger.Debug("merge phase", logging.Phase(name))
	fn()
}

// bottomUpLeavesLast orders the merged layers deepest first, with layers that
// have child layers before leaf layers.
func (r *run) bottomUpLeavesLast() []*ag.Layer {
	var parents, leaves []*ag.Layer
	for i := len(r.layers) - 1; i >= 0; i-- {
		layer := r.layers[i]
		if len(r.schema.ChildLayers(layer.ID)) > 0 {
			parents = append(parents, layer)
		} else {
			leaves = append(leaves, layer)
		}
	}
	return append(parents, leaves...)
}

// sameOffset reports whether both anchors have offsets that are equal within
// the merge tolerance.
func (r *run) sameOffset(a, b *ag.Anchor) bool {
	if a == nil || b == nil {
		return false
	}
	x, okX := a.Offset()
	y, okY := b.Offset()
	return okX && okY && ordering.CompareOffsets(x, y, r.tolerance) == 0
}

func (r *run) editedHasLayer(id string) bool {
	return r.edited.Layer(id) != nil
}
