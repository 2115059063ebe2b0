package ordering_test

import (
	"slices"
	"testing"

	"agmerge/internal/ag"
	"agmerge/internal/ordering"
	"agmerge/internal/testsupport"
)

func anchorIDs(anchors []*ag.Anchor) []string {
	ids := make([]string, len(anchors))
	for i, a := range anchors {
		ids[i] = a.ID()
	}
	return ids
}

func TestAnchorComparatorOrdersByOffset(t *testing.T) {
	g := testsupport.Transcript(t, "g", "the", "big", "dog")
	anchors := []*ag.Anchor{g.Anchor("a3"), g.Anchor("a1"), g.Anchor("a0"), g.Anchor("a2")}

	ordering.SortAnchors(g, anchors)

	want := []string{"a0", "a1", "a2", "a3"}
	if got := anchorIDs(anchors); !slices.Equal(got, want) {
		t.Fatalf("sorted anchors: got %v want %v", got, want)
	}
}

func TestAnchorComparatorUsesReachabilityWithoutOffsets(t *testing.T) {
	g := testsupport.Transcript(t, "g", "the", "big", "dog")
	g.Anchor("a1").ClearOffset()
	g.Anchor("a2").ClearOffset()
	anchors := []*ag.Anchor{g.Anchor("a2"), g.Anchor("a3"), g.Anchor("a1"), g.Anchor("a0")}

	ordering.SortAnchors(g, anchors)

	want := []string{"a0", "a1", "a2", "a3"}
	if got := anchorIDs(anchors); !slices.Equal(got, want) {
		t.Fatalf("sorted anchors: got %v want %v", got, want)
	}
	c := ordering.NewAnchorComparator(g)
	if got := c.Compare(g.Anchor("a1"), g.Anchor("a2")); got != -2 {
		t.Fatalf("reachability rule: got %d want -2", got)
	}
}

func TestAnchorComparatorBreaksOffsetTieWithPeerOrdinals(t *testing.T) {
	g := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		Anchor("x", 1, ag.ConfidenceAutomatic).
		Anchor("y", 1, ag.ConfidenceAutomatic).
		Anchor("a2", 2, ag.ConfidenceManual).
		Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a2", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a2", "p1").
		Annotation("w1", testsupport.WordLayer, "one", "a0", "x", "t1").
		Annotation("w2", testsupport.WordLayer, "two", "y", "a2", "t1").
		Graph()

	c := ordering.NewAnchorComparator(g)
	if got := c.Compare(g.Anchor("x"), g.Anchor("y")); got != -5 {
		t.Fatalf("Compare(x, y): got %d want -5", got)
	}
	if got := c.Compare(g.Anchor("y"), g.Anchor("x")); got != 5 {
		t.Fatalf("Compare(y, x): got %d want 5", got)
	}
}

func TestAnchorComparatorUsesDeepestCommonAncestor(t *testing.T) {
	g := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		Anchor("b", 2, ag.ConfidenceManual).
		Anchor("c", 2, ag.ConfidenceManual).
		Anchor("x", 2, ag.ConfidenceAutomatic).
		Anchor("y", 2, ag.ConfidenceAutomatic).
		Anchor("a4", 4, ag.ConfidenceManual).
		Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "first", "a0", "b", "p1").
		Annotation("t2", testsupport.TurnLayer, "second", "c", "a4", "p1").
		Annotation("w1", testsupport.WordLayer, "one", "a0", "x", "t1").
		Annotation("w2", testsupport.WordLayer, "two", "y", "a4", "t2").
		Graph()

	c := ordering.NewAnchorComparator(g)
	if got := c.Compare(g.Anchor("x"), g.Anchor("y")); got != -8 {
		t.Fatalf("Compare(x, y): got %d want -8", got)
	}
	if got := c.Compare(g.Anchor("y"), g.Anchor("x")); got != 8 {
		t.Fatalf("Compare(y, x): got %d want 8", got)
	}
}

func TestAnchorComparatorGranularity(t *testing.T) {
	g := testsupport.Transcript(t, "g", "one", "two")
	g.OffsetGranularity = 0.5
	g.Anchor("a1").SetOffset(0.8)

	if got := ordering.CompareOffsets(0.8, 1.0, g.OffsetGranularity); got != 0 {
		t.Fatalf("CompareOffsets within granularity: got %d want 0", got)
	}
	if got := ordering.CompareOffsets(0.4, 1.0, g.OffsetGranularity); got != -1 {
		t.Fatalf("CompareOffsets beyond granularity: got %d want -1", got)
	}
	c := ordering.NewAnchorComparator(g)
	if c.Granularity != 0.5 {
		t.Fatalf("granularity: got %v want 0.5", c.Granularity)
	}
}

func TestAnchorComparatorIsAntisymmetric(t *testing.T) {
	b := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		UnsetAnchor("a1").
		Anchor("a2", 2, ag.ConfidenceDefault).
		Anchor("a2b", 2, ag.ConfidenceDefault).
		UnsetAnchor("a3").
		Anchor("a4", 4, ag.ConfidenceManual).
		UnsetAnchor("loose").
		Anchor("seg", 2, ag.ConfidenceAutomatic)
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a4", "p1").
		Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a2", "t1").
		Annotation("u2", testsupport.UtteranceLayer, "speaker", "a2b", "a4", "t1").
		Annotation("w1", testsupport.WordLayer, "one", "a0", "a1", "t1").
		Annotation("w2", testsupport.WordLayer, "two", "a1", "a2", "t1").
		Annotation("w3", testsupport.WordLayer, "three", "a2b", "a3", "t1").
		Annotation("w4", testsupport.WordLayer, "four", "a3", "a4", "t1").
		Annotation("s1", testsupport.SegmentLayer, "t", "a1", "seg", "w2").
		Annotation("s2", testsupport.SegmentLayer, "u", "seg", "a2", "w2").
		Annotation("pos", testsupport.POSLayer, "N", "a1", "a2", "w2")
	g := b.Graph()

	c := ordering.NewAnchorComparator(g)
	anchors := g.Anchors()
	for _, x := range anchors {
		if got := c.Compare(x, x); got != 0 {
			t.Fatalf("Compare(%s, %s): got %d want 0", x.ID(), x.ID(), got)
		}
		for _, y := range anchors {
			if x == y {
				continue
			}
			xy, yx := c.Compare(x, y), c.Compare(y, x)
			if xy == 0 {
				t.Fatalf("Compare(%s, %s) = 0 for distinct anchors", x.ID(), y.ID())
			}
			if xy != -yx {
				t.Fatalf("Compare(%s, %s) = %d but Compare(%s, %s) = %d", x.ID(), y.ID(), xy, y.ID(), x.ID(), yx)
			}
		}
	}
}

func TestAnchorComparatorResetAfterReparent(t *testing.T) {
	g := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		Anchor("b", 2, ag.ConfidenceManual).
		Anchor("c", 2, ag.ConfidenceManual).
		Anchor("x", 2, ag.ConfidenceAutomatic).
		Anchor("y", 2, ag.ConfidenceAutomatic).
		Anchor("a4", 4, ag.ConfidenceManual).
		Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "first", "a0", "b", "p1").
		Annotation("t2", testsupport.TurnLayer, "second", "c", "a4", "p1").
		Annotation("w1", testsupport.WordLayer, "one", "a0", "x", "t1").
		Annotation("w2", testsupport.WordLayer, "two", "y", "a4", "t2").
		Graph()

	c := ordering.NewAnchorComparator(g)
	if got := c.Compare(g.Anchor("x"), g.Anchor("y")); got != -8 {
		t.Fatalf("before reparent: got %d want -8", got)
	}
	g.Annotation("w2").SetParent(g.Annotation("t1"), true)
	c.Reset()
	if got := c.Compare(g.Anchor("x"), g.Anchor("y")); got != -5 {
		t.Fatalf("after reparent: got %d want -5", got)
	}
}
