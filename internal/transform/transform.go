// Package transform defines the contract shared by every graph transformer and
// the helpers for composing and tracking them.
package transform

import (
	"agmerge/internal/ag"
	"agmerge/internal/diag"
)

// Result is what a transformer reports: the changes it made and the
// recoverable failures and warnings it accumulated.
type Result struct {
	Changes     []ag.Change      `json:"changes"`
	Diagnostics diag.Diagnostics `json:"diagnostics"`
}

// Append adds other's changes and diagnostics to r.
func (r *Result) Append(other Result) {
	r.Changes = append(r.Changes, other.Changes...)
	r.Diagnostics.Merge(other.Diagnostics)
}

// Transformer mutates a graph in place. A returned error is a hard failure
// (configuration or precondition); per-element failures belong in the
// Result's diagnostics.
type Transformer interface {
	Transform(g *ag.Graph) (Result, error)
}

// Func adapts a function to Transformer.
type Func func(g *ag.Graph) (Result, error)

// Transform calls f(g).
func (f Func) Transform(g *ag.Graph) (Result, error) { return f(g) }

// Pipeline runs transformers in order and concatenates their results. It stops
// at the first hard error, returning what was accumulated so far.
type Pipeline []Transformer

// Transform runs each stage against g.
func (p Pipeline) Transform(g *ag.Graph) (Result, error) {
	var total Result
	for _, stage := range p {
		if stage == nil {
			continue
		}
		r, err := stage.Transform(g)
		total.Append(r)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Track runs fn with a temporary change tracker attached to g and returns the
// changes it recorded. When g already has a tracker the temporary one is
// chained beneath it, so the caller's log keeps receiving every change; the
// previous listener configuration is restored before returning.
func Track(g *ag.Graph, fn func() error) ([]ag.Change, error) {
	tracker := ag.NewChangeTracker()
	if outer := g.Tracker(); outer != nil {
		outer.AddListener(tracker)
		defer outer.RemoveListener(tracker)
	} else {
		g.SetTracker(tracker)
		defer g.SetTracker(nil)
	}
	err := fn()
	return tracker.Changes(), err
}
