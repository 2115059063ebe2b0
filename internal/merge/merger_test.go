package merge_test

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/merge"
	"agmerge/internal/testsupport"
	"agmerge/internal/transform"
)

func runMerge(t *testing.T, original, edited *ag.Graph, configure ...func(*merge.Options)) transform.Result {
	t.Helper()
	opts := merge.DefaultOptions(edited)
	for _, fn := range configure {
		fn(&opts)
	}
	result, err := merge.New(opts).Transform(original)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	return result
}

// wordLabels lists the live words of g in ordinal order.
func wordLabels(g *ag.Graph) []string {
	turn := g.Annotation("t1")
	var labels []string
	for _, w := range turn.LiveChildren(testsupport.WordLayer) {
		labels = append(labels, w.Label())
	}
	return labels
}

func offsetOf(t *testing.T, a *ag.Anchor) float64 {
	t.Helper()
	offset, ok := a.Offset()
	if !ok {
		t.Fatalf("anchor %s has no offset", a.ID())
	}
	return offset
}

func near(x, y float64) bool { return math.Abs(x-y) < 1e-9 }

func assertNoDanglingAnchors(t *testing.T, g *ag.Graph) {
	t.Helper()
	for _, a := range g.Anchors() {
		if !a.IsDestroyed() && !a.Linked() {
			t.Fatalf("anchor %s is not linked to any annotation", a.ID())
		}
	}
}

func TestMergeIdenticalGraphMakesNoChanges(t *testing.T) {
	original := testsupport.Transcript(t, "g", "the", "quick", "brown", "fox")
	edited := original.Clone()

	result := runMerge(t, original, edited)
	if len(result.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", result.Changes)
	}
	if !result.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics, got %+v", result.Diagnostics)
	}
}

func TestMergeSameGraphIsNoop(t *testing.T) {
	g := testsupport.Transcript(t, "g", "hello")
	result, err := merge.New(merge.DefaultOptions(g)).Transform(g)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", result.Changes)
	}
}

func TestMergeInsertsWord(t *testing.T) {
	original := testsupport.Transcript(t, "g", "the", "dog")
	edited := testsupport.Transcript(t, "e", "the", "big", "dog")

	runMerge(t, original, edited)

	got := wordLabels(original)
	want := []string{"the", "big", "dog"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("words: got %v want %v", got, want)
	}
	words := original.Annotation("t1").LiveChildren(testsupport.WordLayer)
	for i, w := range words {
		if w.Ordinal() != i+1 {
			t.Fatalf("ordinal of %q: got %d want %d", w.Label(), w.Ordinal(), i+1)
		}
		if i > 0 && w.Start() != words[i-1].End() {
			t.Fatalf("%q does not start where %q ends", w.Label(), words[i-1].Label())
		}
		if start := offsetOf(t, w.Start()); !near(start, float64(i)) {
			t.Fatalf("start of %q: got %v want %d", w.Label(), start, i)
		}
	}
	if end := offsetOf(t, original.Annotation("t1").End()); !near(end, 3) {
		t.Fatalf("turn end: got %v want 3", end)
	}
	assertNoDanglingAnchors(t, original)
}

func TestMergeDeletesWord(t *testing.T) {
	original := testsupport.Transcript(t, "g", "a", "b", "c")
	edited := testsupport.NewBuilder(t, "e", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		Anchor("a1", 1, ag.ConfidenceManual).
		Anchor("a3", 3, ag.ConfidenceManual).
		Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a3", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a3", "p1").
		Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a3", "t1").
		Annotation("w1", testsupport.WordLayer, "a", "a0", "a1", "t1").
		Annotation("w3", testsupport.WordLayer, "c", "a1", "a3", "t1").
		Graph()

	runMerge(t, original, edited)

	if !original.Annotation("w2").IsDestroyed() {
		t.Fatalf("expected b to be destroyed")
	}
	a, c := original.Annotation("w1"), original.Annotation("w3")
	if a.Ordinal() != 1 || c.Ordinal() != 2 {
		t.Fatalf("ordinals: got a=%d c=%d want 1 and 2", a.Ordinal(), c.Ordinal())
	}
	if c.Start() != a.End() {
		t.Fatalf("c should start at the end of a, got %v and %v", c.Start(), a.End())
	}
	if !original.Anchor("a2").IsDestroyed() {
		t.Fatalf("expected the anchor between b and c to be pruned")
	}
	assertNoDanglingAnchors(t, original)
}

func TestMergeLabelRespectsConfidence(t *testing.T) {
	cases := []struct {
		name             string
		original, edited int
		wantLabel        string
		wantChanges      int
	}{
		{"more confident edit", ag.ConfidenceAutomatic, ag.ConfidenceManual, "word", 1},
		{"less confident edit", ag.ConfidenceManual, ag.ConfidenceAutomatic, "wrod", 0},
		{"equal confidence", ag.ConfidenceAutomatic, ag.ConfidenceAutomatic, "word", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := testsupport.Transcript(t, "g", "the", "wrod")
			original.Annotation("w2").SetConfidence(tc.original)
			original.Commit()
			edited := testsupport.Transcript(t, "e", "the", "word")
			edited.Annotation("w2").SetConfidence(tc.edited)
			edited.Commit()

			result := runMerge(t, original, edited)
			if got := original.Annotation("w2").Label(); got != tc.wantLabel {
				t.Fatalf("label: got %q want %q", got, tc.wantLabel)
			}
			if len(result.Changes) != tc.wantChanges {
				t.Fatalf("changes: got %v want %d", result.Changes, tc.wantChanges)
			}
			if tc.wantChanges == 1 {
				c := result.Changes[0]
				if c.Operation != ag.Update || c.ObjectID != "w2" || c.Key != ag.KeyLabel {
					t.Fatalf("unexpected change %v", c)
				}
			}
		})
	}
}

func liveAnchors(g *ag.Graph) int {
	n := 0
	for _, a := range g.Anchors() {
		if !a.IsDestroyed() {
			n++
		}
	}
	return n
}

// spacedWords builds one speaker's turn over anchors a0..a3 at 0..3 seconds,
// with each word given as label, start and end anchor.
func spacedWords(t *testing.T, id string, words ...[3]string) *ag.Graph {
	t.Helper()
	b := testsupport.NewBuilder(t, id, nil)
	for i := 0; i <= 3; i++ {
		b.Anchor(fmt.Sprintf("a%d", i), float64(i), ag.ConfidenceManual)
	}
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a3", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a3", "p1").
		Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a3", "t1")
	for i, w := range words {
		b.Annotation(fmt.Sprintf("w%d", i+1), testsupport.WordLayer, w[0], w[1], w[2], "t1")
	}
	return b.Graph()
}

func TestMergeEditScenarios(t *testing.T) {
	tests := []struct {
		name     string
		original func(t *testing.T) *ag.Graph
		edited   func(t *testing.T) *ag.Graph
		words    []string
		check    func(t *testing.T, g *ag.Graph, changes []ag.Change, anchorsBefore int)
	}{
		{
			name: "insertion",
			original: func(t *testing.T) *ag.Graph {
				return spacedWords(t, "g", [3]string{"the", "a0", "a1"}, [3]string{"dog", "a2", "a3"})
			},
			edited: func(t *testing.T) *ag.Graph {
				return spacedWords(t, "e", [3]string{"the", "a0", "a1"}, [3]string{"big", "a1", "a2"}, [3]string{"dog", "a2", "a3"})
			},
			words: []string{"the", "big", "dog"},
			check: func(t *testing.T, g *ag.Graph, changes []ag.Change, anchorsBefore int) {
				created := 0
				for _, c := range changes {
					if c.Kind == ag.KindAnnotation && c.Operation == ag.Create {
						created++
					}
					if c.Kind == ag.KindAnchor && c.Operation != ag.Create && c.Key == ag.KeyOffset {
						t.Fatalf("unexpected offset change %v", c)
					}
				}
				if created != 1 {
					t.Fatalf("created annotations: got %d want 1: %v", created, changes)
				}
				if added := liveAnchors(g) - anchorsBefore; added < 0 || added > 2 {
					t.Fatalf("anchors added: got %d want 0 to 2", added)
				}
				for _, w := range []struct {
					id         string
					start, end float64
				}{{"w1", 0, 1}, {"w2", 2, 3}} {
					an := g.Annotation(w.id)
					if start, end := offsetOf(t, an.Start()), offsetOf(t, an.End()); start != w.start || end != w.end {
						t.Fatalf("%q offsets: got %v-%v want %v-%v", an.Label(), start, end, w.start, w.end)
					}
				}
			},
		},
		{
			name: "deletion",
			original: func(t *testing.T) *ag.Graph {
				return testsupport.Transcript(t, "g", "a", "b", "c")
			},
			edited: func(t *testing.T) *ag.Graph {
				return spacedWords(t, "e", [3]string{"a", "a0", "a1"}, [3]string{"c", "a2", "a3"})
			},
			words: []string{"a", "c"},
			check: func(t *testing.T, g *ag.Graph, changes []ag.Change, anchorsBefore int) {
				if !g.Annotation("w2").IsDestroyed() {
					t.Fatalf("expected b to be destroyed")
				}
				destroyed := false
				for _, c := range changes {
					if c.Kind == ag.KindAnchor {
						t.Fatalf("unexpected anchor change %v", c)
					}
					if c.ObjectID == "w2" && c.Operation == ag.Destroy {
						destroyed = true
					}
				}
				if !destroyed {
					t.Fatalf("changes: got %v want destroy of w2", changes)
				}
				c := g.Annotation("w3")
				if c.Start().ID() != "a2" || c.End().ID() != "a3" {
					t.Fatalf("c anchors: got %s-%s want a2-a3", c.Start().ID(), c.End().ID())
				}
				if got := liveAnchors(g); got != anchorsBefore {
					t.Fatalf("anchors: got %d want %d", got, anchorsBefore)
				}
			},
		},
		{
			name: "relabel",
			original: func(t *testing.T) *ag.Graph {
				g := testsupport.Transcript(t, "g", "wrod")
				g.Annotation("w1").SetConfidence(ag.ConfidenceAutomatic)
				g.Commit()
				return g
			},
			edited: func(t *testing.T) *ag.Graph {
				g := testsupport.Transcript(t, "e", "word")
				g.Annotation("w1").SetConfidence(ag.ConfidenceManual)
				g.Commit()
				return g
			},
			words: []string{"word"},
			check: func(t *testing.T, g *ag.Graph, changes []ag.Change, anchorsBefore int) {
				if len(changes) != 1 {
					t.Fatalf("changes: got %v want one label update", changes)
				}
				c := changes[0]
				if c.Operation != ag.Update || c.ObjectID != "w1" || c.Key != ag.KeyLabel || c.Value != "word" {
					t.Fatalf("unexpected change %v", c)
				}
				if got := liveAnchors(g); got != anchorsBefore {
					t.Fatalf("anchors: got %d want %d", got, anchorsBefore)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			original := tc.original(t)
			before := liveAnchors(original)

			result := runMerge(t, original, tc.edited(t))

			if got := wordLabels(original); fmt.Sprint(got) != fmt.Sprint(tc.words) {
				t.Fatalf("words: got %v want %v", got, tc.words)
			}
			for i, w := range original.Annotation("t1").LiveChildren(testsupport.WordLayer) {
				if w.Ordinal() != i+1 {
					t.Fatalf("ordinal of %q: got %d want %d", w.Label(), w.Ordinal(), i+1)
				}
			}
			tc.check(t, original, result.Changes, before)
			assertNoDanglingAnchors(t, original)
		})
	}
}

func TestMergeKeepsMoreConfidentOffset(t *testing.T) {
	original := testsupport.Transcript(t, "g", "one", "two")
	edited := testsupport.Transcript(t, "e", "one", "two")
	edited.Anchor("a1").SetOffset(1.5)
	edited.Anchor("a1").SetConfidence(ag.ConfidenceAutomatic)
	edited.Commit()

	result := runMerge(t, original, edited)
	if got := offsetOf(t, original.Anchor("a1")); !near(got, 1) {
		t.Fatalf("offset: got %v want 1", got)
	}
	if len(result.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", result.Changes)
	}

	// the same edit wins when confidence is ignored
	runMerge(t, original, edited, func(o *merge.Options) { o.IgnoreConfidence = true })
	if got := offsetOf(t, original.Anchor("a1")); !near(got, 1.5) {
		t.Fatalf("offset ignoring confidence: got %v want 1.5", got)
	}
}

func TestMergeAppliesConfidentOffset(t *testing.T) {
	original := testsupport.Transcript(t, "g", "one", "two")
	original.Anchor("a1").SetConfidence(ag.ConfidenceAutomatic)
	original.Commit()
	edited := testsupport.Transcript(t, "e", "one", "two")
	edited.Anchor("a1").SetOffset(1.25)
	edited.Commit()

	runMerge(t, original, edited)
	a1 := original.Anchor("a1")
	if got := offsetOf(t, a1); !near(got, 1.25) {
		t.Fatalf("offset: got %v want 1.25", got)
	}
	if got := a1.ConfidenceOr(-1); got != ag.ConfidenceManual {
		t.Fatalf("confidence: got %d want %d", got, ag.ConfidenceManual)
	}
	w1, w2 := original.Annotation("w1"), original.Annotation("w2")
	if w1.End() != w2.Start() {
		t.Fatalf("words should still share their boundary")
	}
}

func TestMergeRepairsReversedAnchors(t *testing.T) {
	build := func(id string, a1 float64, c1 int, a2 float64, c2 int) *ag.Graph {
		return testsupport.NewBuilder(t, id, nil).
			Anchor("a0", 0, ag.ConfidenceManual).
			Anchor("a1", a1, c1).
			Anchor("a2", a2, c2).
			Anchor("a3", 3, ag.ConfidenceManual).
			Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a3", "").
			Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a3", "p1").
			Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a3", "t1").
			Annotation("w1", testsupport.WordLayer, "one", "a0", "a1", "t1").
			Annotation("w2", testsupport.WordLayer, "two", "a1", "a2", "t1").
			Annotation("w3", testsupport.WordLayer, "three", "a2", "a3", "t1").
			Graph()
	}
	original := build("g", 1.0, ag.ConfidenceAutomatic, 2.0, ag.ConfidenceAutomatic)
	edited := build("e", 0.3, ag.ConfidenceDefault, 0.6, ag.ConfidenceManual)

	runMerge(t, original, edited)

	a1, a2 := original.Anchor("a1"), original.Anchor("a2")
	if got := offsetOf(t, a2); !near(got, 0.6) {
		t.Fatalf("a2: got %v want 0.6", got)
	}
	if got := offsetOf(t, a1); !near(got, 0.3) {
		t.Fatalf("a1: got %v want 0.3", got)
	}
	if got := a1.ConfidenceOr(-1); got != ag.ConfidenceNone {
		t.Fatalf("a1 confidence: got %d want %d", got, ag.ConfidenceNone)
	}
	prev := -1.0
	for _, w := range original.Annotation("t1").LiveChildren(testsupport.WordLayer) {
		start, end := offsetOf(t, w.Start()), offsetOf(t, w.End())
		if start < prev || end < start {
			t.Fatalf("%q is out of order: %v-%v after %v", w.Label(), start, end, prev)
		}
		prev = end
	}
}

func TestMergeAlignsLongSequencesInChunks(t *testing.T) {
	var words, edits []string
	for i := range 40 {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	edits = append(edits, words...)
	edits[21] = "x21"
	original := testsupport.Transcript(t, "g", words...)
	edited := testsupport.Transcript(t, "e", edits...)

	result := runMerge(t, original, edited, func(o *merge.Options) { o.MaxChunkSize = 8 })

	if len(result.Changes) != 1 {
		t.Fatalf("changes: got %v want one relabel", result.Changes)
	}
	if got := original.Annotation("w22").Label(); got != "x21" {
		t.Fatalf("relabelled word: got %q want x21", got)
	}
	if got := len(wordLabels(original)); got != 40 {
		t.Fatalf("word count: got %d want 40", got)
	}
}

func TestMergeNoChangeLayerIsLeftAlone(t *testing.T) {
	original := testsupport.Transcript(t, "g", "the", "dog")
	edited := testsupport.Transcript(t, "e", "the", "big", "dog")

	runMerge(t, original, edited, func(o *merge.Options) {
		o.NoChangeLayers = []string{testsupport.WordLayer}
	})
	if got := wordLabels(original); fmt.Sprint(got) != "[the dog]" {
		t.Fatalf("words: got %v want [the dog]", got)
	}
}

func TestMergeRunsValidator(t *testing.T) {
	original := testsupport.Transcript(t, "g", "hi")
	edited := testsupport.Transcript(t, "e", "hey")
	called := false
	validator := transform.Func(func(g *ag.Graph) (transform.Result, error) {
		called = true
		var r transform.Result
		r.Diagnostics.Warnf("validate", g.ID(), "checked")
		return r, nil
	})

	result := runMerge(t, original, edited, func(o *merge.Options) { o.Validator = validator })
	if !called {
		t.Fatalf("validator was not run")
	}
	if len(result.Diagnostics.Warnings) != 1 {
		t.Fatalf("warnings: got %+v want the validator's warning", result.Diagnostics.Warnings)
	}
}

func TestMergeValidatesAfterPruningAnchors(t *testing.T) {
	original := testsupport.Transcript(t, "g", "a", "b", "c")
	edited := testsupport.Transcript(t, "e", "a", "c")
	var unlinked []string
	validator := transform.Func(func(g *ag.Graph) (transform.Result, error) {
		for _, a := range g.Anchors() {
			if !a.IsDestroyed() && !a.Linked() {
				unlinked = append(unlinked, a.ID())
			}
		}
		return transform.Result{}, nil
	})

	runMerge(t, original, edited, func(o *merge.Options) { o.Validator = validator })
	if len(unlinked) != 0 {
		t.Fatalf("validator saw unlinked anchors %v", unlinked)
	}
}

func TestMergeUsesConfiguredIDs(t *testing.T) {
	original := testsupport.Transcript(t, "g", "the", "dog")
	edited := testsupport.Transcript(t, "e", "the", "big", "dog")
	own := original.IDs

	result := runMerge(t, original, edited, func(o *merge.Options) {
		o.IDs = &ag.SequenceGenerator{Prefix: "merged"}
	})
	created := 0
	for _, c := range result.Changes {
		if c.Operation != ag.Create {
			continue
		}
		created++
		if !strings.HasPrefix(c.ObjectID, "merged") {
			t.Fatalf("created %s %s: want an id from the configured generator", c.Kind, c.ObjectID)
		}
	}
	if created == 0 {
		t.Fatalf("expected the merge to create entities, got %v", result.Changes)
	}
	if original.IDs != own {
		t.Fatalf("graph id generator was not restored")
	}
}

func TestMergeConfigurationErrors(t *testing.T) {
	g := testsupport.Transcript(t, "g", "hi")
	mismatched := ag.NewSchema()
	for _, l := range []*ag.Layer{
		{ID: testsupport.TurnLayer, ParentID: ag.RootLayerID, Alignment: ag.AlignmentInterval, Peers: true},
	} {
		if err := mismatched.AddLayer(l); err != nil {
			t.Fatalf("add layer: %v", err)
		}
	}
	cases := []struct {
		name  string
		graph *ag.Graph
		opts  merge.Options
	}{
		{"nil graph", nil, merge.DefaultOptions(g)},
		{"no edited graph", g, merge.Options{}},
		{"unknown no-change layer", g, merge.Options{
			Edited:         testsupport.Transcript(t, "e", "hi"),
			NoChangeLayers: []string{"nonesuch"},
		}},
		{"layer parent differs", g, merge.DefaultOptions(ag.NewGraph("e", mismatched))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := merge.New(tc.opts).Transform(tc.graph)
			if !errors.Is(err, diag.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
	if g.HasPendingChanges() {
		t.Fatalf("graph was modified by a rejected merge")
	}
}

func TestMergeKeepsFragmentBounds(t *testing.T) {
	original := testsupport.Transcript(t, "g", "one", "two")
	original.Fragment = true
	edited := testsupport.Transcript(t, "e", "one", "two")
	edited.Anchor("a2").SetOffset(2.5)
	edited.Commit()

	runMerge(t, original, edited)
	if got := offsetOf(t, original.Anchor("a2")); !near(got, 2) {
		t.Fatalf("fragment end: got %v want 2", got)
	}
}
