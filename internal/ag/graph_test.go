package ag_test

import (
	"testing"

	"agmerge/internal/ag"
)

func newWordGraph(t *testing.T) *ag.Graph {
	t.Helper()
	schema := ag.NewSchema()
	for _, l := range []*ag.Layer{
		{ID: "turn", ParentID: ag.RootLayerID, Alignment: ag.AlignmentInterval, Peers: true, ParentIncludes: true},
		{ID: "word", ParentID: "turn", Alignment: ag.AlignmentInterval, Peers: true, ParentIncludes: true},
		{ID: "pos", ParentID: "word", Alignment: ag.AlignmentNone, ParentIncludes: true},
	} {
		if err := schema.AddLayer(l); err != nil {
			t.Fatalf("AddLayer(%s): %v", l.ID, err)
		}
	}
	schema.TurnLayerID = "turn"
	schema.WordLayerID = "word"

	g := ag.NewGraph("g", schema)
	g.IDs = &ag.SequenceGenerator{Prefix: "new"}
	for i, off := range []float64{0, 1, 2, 3} {
		if err := g.AddAnchor(ag.NewAnchorAt([]string{"a0", "a1", "a2", "a3"}[i], off, ag.ConfidenceManual)); err != nil {
			t.Fatalf("AddAnchor: %v", err)
		}
	}
	mustAdd(t, g, ag.NewAnnotation("t1", "turn", "speaker"), "a0", "a3", "", 0)
	mustAdd(t, g, ag.NewAnnotation("w1", "word", "the"), "a0", "a1", "t1", 0)
	mustAdd(t, g, ag.NewAnnotation("w2", "word", "big"), "a1", "a2", "t1", 0)
	mustAdd(t, g, ag.NewAnnotation("w3", "word", "dog"), "a2", "a3", "t1", 0)
	mustAdd(t, g, ag.NewAnnotation("p2", "pos", "ADJ"), "a1", "a2", "w2", 0)
	return g
}

func mustAdd(t *testing.T, g *ag.Graph, a *ag.Annotation, start, end, parent string, ordinal int) {
	t.Helper()
	if err := g.AddAnnotation(a, start, end, parent, ordinal); err != nil {
		t.Fatalf("AddAnnotation(%s): %v", a.ID(), err)
	}
}

func TestAddAnnotationAssignsOrdinals(t *testing.T) {
	g := newWordGraph(t)
	for i, id := range []string{"w1", "w2", "w3"} {
		if got := g.Annotation(id).Ordinal(); got != i+1 {
			t.Fatalf("ordinal of %s: got %d want %d", id, got, i+1)
		}
	}
	if g.Annotation("t1").Parent() != g.Root() {
		t.Fatal("expected top-level annotation to have the graph root as parent")
	}
}

func TestAddAnnotationRejectsUnknownReferences(t *testing.T) {
	g := newWordGraph(t)
	cases := []struct {
		name               string
		start, end, parent string
	}{
		{"start", "missing", "a1", "t1"},
		{"end", "a0", "missing", "t1"},
		{"parent", "a0", "a1", "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.AddAnnotation(ag.NewAnnotation("x-"+tc.name, "word", "x"), tc.start, tc.end, tc.parent, 0); err == nil {
				t.Fatal("expected error for unknown reference")
			}
		})
	}
}

func TestSetOrdinalRenumbersPeers(t *testing.T) {
	g := newWordGraph(t)
	g.Annotation("w3").SetOrdinal(1)

	want := []string{"w3", "w1", "w2"}
	for i, w := range g.Annotation("t1").LiveChildren("word") {
		if w.ID() != want[i] {
			t.Fatalf("child %d: got %s want %s", i, w.ID(), want[i])
		}
		if w.Ordinal() != i+1 {
			t.Fatalf("ordinal of %s: got %d want %d", w.ID(), w.Ordinal(), i+1)
		}
	}
}

func TestDestroyedPeersSkippedByNavigation(t *testing.T) {
	g := newWordGraph(t)
	g.Annotation("w2").Destroy()

	if next := g.Annotation("w1").Next(); next == nil || next.ID() != "w3" {
		t.Fatalf("Next after destroy: got %v want w3", next)
	}
	if prev := g.Annotation("w3").Previous(); prev == nil || prev.ID() != "w1" {
		t.Fatalf("Previous after destroy: got %v want w1", prev)
	}
	if got := len(g.Annotation("t1").Children("word")); got != 3 {
		t.Fatalf("destroyed child must stay linked until commit, got %d children", got)
	}
}

func TestTagChildrenFollowParentAnchors(t *testing.T) {
	g := newWordGraph(t)
	w2 := g.Annotation("w2")
	w2.SetEnd(g.Anchor("a3"))

	if got := g.Annotation("p2").EndID(); got != "a3" {
		t.Fatalf("tag end: got %s want a3", got)
	}
}

func TestCommitRemovesDestroyed(t *testing.T) {
	g := newWordGraph(t)
	g.Annotation("w2").Destroy()
	g.Annotation("p2").Destroy()
	g.Anchor("a1").Destroy()
	g.Commit()

	if g.Annotation("w2") != nil || g.Anchor("a1") != nil {
		t.Fatal("expected destroyed entities to be removed on commit")
	}
	if got := len(g.Anchor("a2").EndingAnnotations()); got != 0 {
		t.Fatalf("expected a2 to lose its ending annotation, got %d", got)
	}
	if g.HasPendingChanges() {
		t.Fatal("expected no pending changes after commit")
	}
}

func TestRollbackRestoresState(t *testing.T) {
	g := newWordGraph(t)
	w1 := g.Annotation("w1")
	w1.SetLabel("a")
	g.Anchor("a1").SetOffset(1.5)
	g.Annotation("w3").Destroy()
	created := g.CreateAnnotation("word", "new", g.Anchor("a3"), g.Anchor("a3"), g.Annotation("t1"))
	w1.SetEnd(g.Anchor("a2"))

	g.Rollback()

	if w1.Label() != "the" {
		t.Fatalf("label: got %q want %q", w1.Label(), "the")
	}
	if off, _ := g.Anchor("a1").Offset(); off != 1 {
		t.Fatalf("offset: got %v want 1", off)
	}
	if g.Annotation("w3").IsDestroyed() {
		t.Fatal("expected destroy to be reverted")
	}
	if g.Annotation(created.ID()) != nil {
		t.Fatal("expected created annotation to be removed")
	}
	if w1.EndID() != "a1" {
		t.Fatalf("end: got %s want a1", w1.EndID())
	}
	if got := len(g.Anchor("a2").EndingAnnotations()); got != 2 {
		t.Fatalf("a2 ending annotations: got %d want 2", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := newWordGraph(t)
	c := g.Clone()
	c.Annotation("w1").SetLabel("a")
	c.Anchor("a1").SetOffset(9)

	if g.Annotation("w1").Label() != "the" {
		t.Fatal("clone shares annotations with source")
	}
	if off, _ := g.Anchor("a1").Offset(); off != 1 {
		t.Fatal("clone shares anchors with source")
	}
	if c.Annotation("p2").Parent().ID() != "w2" {
		t.Fatalf("clone parent: got %s want w2", c.Annotation("p2").ParentID())
	}
	if c.Annotation("w3").Ordinal() != 3 {
		t.Fatalf("clone ordinal: got %d want 3", c.Annotation("w3").Ordinal())
	}
}

func TestAnchorReachabilityAndBounds(t *testing.T) {
	g := newWordGraph(t)
	a1 := g.Anchor("a1")
	a1.ClearOffset()

	if !g.Anchor("a0").Precedes(g.Anchor("a3")) {
		t.Fatal("expected a0 to precede a3")
	}
	if !g.Anchor("a3").Follows(a1) {
		t.Fatal("expected a3 to follow a1")
	}
	if g.Anchor("a2").Precedes(g.Anchor("a0")) {
		t.Fatal("a2 must not precede a0")
	}
	if min, ok := a1.OffsetMin(); !ok || min != 0 {
		t.Fatalf("OffsetMin: got %v,%v want 0,true", min, ok)
	}
	if max, ok := a1.OffsetMax(); !ok || max != 2 {
		t.Fatalf("OffsetMax: got %v,%v want 2,true", max, ok)
	}
	if an := g.Anchor("a0").AnnotationTo(a1); an == nil || an.ID() != "w1" {
		t.Fatalf("AnnotationTo: got %v want w1", an)
	}
}

func TestDistanceMeasures(t *testing.T) {
	g := newWordGraph(t)
	turn, w1, w3 := g.Annotation("t1"), g.Annotation("w1"), g.Annotation("w3")

	if d, ok := turn.Distance(w1); !ok || d != -1 {
		t.Fatalf("inclusion distance: got %v want -1", d)
	}
	if d, ok := w1.Distance(w3); !ok || d != 1 {
		t.Fatalf("gap distance: got %v want 1", d)
	}
	if d, ok := w1.MaxPairedDistance(w3); !ok || d != 2 {
		t.Fatalf("paired distance: got %v want 2", d)
	}
	if !turn.Includes(w3) {
		t.Fatal("expected turn to include last word")
	}
	if fca := g.Annotation("p2").FirstCommonAncestor(w3); fca != turn {
		t.Fatalf("FirstCommonAncestor: got %v want t1", fca)
	}
}

func TestChainLinksAnchors(t *testing.T) {
	g := newWordGraph(t)
	chain := ag.Chain(g.Anchor("a0"), g.Anchor("a3"), map[string]bool{"turn": true})
	if len(chain) != 3 {
		t.Fatalf("chain length: got %d want 3 (%v)", len(chain), chain)
	}
	anchors := ag.ChainAnchors(chain)
	if len(anchors) != 2 || anchors[0].ID() != "a1" || anchors[1].ID() != "a2" {
		t.Fatalf("chain anchors: got %v want [a1 a2]", anchors)
	}
}
