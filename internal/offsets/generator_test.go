package offsets_test

import (
	"testing"

	"agmerge/internal/ag"
	"agmerge/internal/offsets"
	"agmerge/internal/testsupport"
)

// fiveAnchorTurn builds one turn of four words over a0..a4 where only the
// turn's own anchors have offsets.
func fiveAnchorTurn(t *testing.T) *ag.Graph {
	t.Helper()
	b := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		UnsetAnchor("a1").
		UnsetAnchor("a2").
		UnsetAnchor("a3").
		Anchor("a4", 4, ag.ConfidenceManual)
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a4", "p1").
		Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a4", "t1").
		Annotation("w1", testsupport.WordLayer, "the", "a0", "a1", "t1").
		Annotation("w2", testsupport.WordLayer, "quick", "a1", "a2", "t1").
		Annotation("w3", testsupport.WordLayer, "brown", "a2", "a3", "t1").
		Annotation("w4", testsupport.WordLayer, "fox", "a3", "a4", "t1")
	return b.Graph()
}

func offsetOf(t *testing.T, g *ag.Graph, id string) float64 {
	t.Helper()
	o, ok := g.Anchor(id).Offset()
	if !ok {
		t.Fatalf("anchor %s has no offset", id)
	}
	return o
}

func TestChunkLayers(t *testing.T) {
	layers := offsets.ChunkLayers(testsupport.NewSchema())
	if len(layers) != 1 || layers[0].ID != testsupport.TurnLayer {
		var ids []string
		for _, l := range layers {
			ids = append(ids, l.ID)
		}
		t.Fatalf("chunk layers: got %v want [turn]", ids)
	}
}

func TestInterpolatesEvenly(t *testing.T) {
	g := fiveAnchorTurn(t)
	r, err := offsets.New(offsets.DefaultOptions()).Transform(g)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if r.Diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", r.Diagnostics.Errors)
	}
	for i, id := range []string{"a0", "a1", "a2", "a3", "a4"} {
		if got := offsetOf(t, g, id); got != float64(i) {
			t.Fatalf("%s: got %v want %d", id, got, i)
		}
	}
	if c, _ := g.Anchor("a2").Confidence(); c != ag.ConfidenceDefault {
		t.Fatalf("a2 confidence: got %d want %d", c, ag.ConfidenceDefault)
	}
	if c, _ := g.Anchor("a0").Confidence(); c != ag.ConfidenceManual {
		t.Fatalf("a0 confidence changed to %d", c)
	}
	// three anchors, each gaining an offset and a confidence
	if len(r.Changes) != 6 {
		t.Fatalf("changes: got %d want 6: %v", len(r.Changes), r.Changes)
	}
}

func TestInterpolationIsMonotonicWithinBounds(t *testing.T) {
	g := fiveAnchorTurn(t)
	// a stale low-confidence offset out of order is recomputed
	g.Anchor("a2").SetOffset(3.9)
	g.Anchor("a2").SetConfidence(ag.ConfidenceDefault)
	g.Commit()

	if _, err := offsets.New(offsets.DefaultOptions()).Transform(g); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	start, end := offsetOf(t, g, "a0"), offsetOf(t, g, "a4")
	previous := start
	for _, id := range []string{"a1", "a2", "a3"} {
		o := offsetOf(t, g, id)
		if o < start || o > end {
			t.Fatalf("%s: offset %v outside [%v, %v]", id, o, start, end)
		}
		if o < previous {
			t.Fatalf("%s: offset %v precedes earlier anchor at %v", id, o, previous)
		}
		previous = o
	}
}

func TestTrustedAnchorsAreKept(t *testing.T) {
	g := fiveAnchorTurn(t)
	g.Anchor("a3").SetOffset(3.5)
	g.Anchor("a3").SetConfidence(ag.ConfidenceAutomatic)
	g.Commit()

	if _, err := offsets.New(offsets.DefaultOptions()).Transform(g); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := offsetOf(t, g, "a3"); got != 3.5 {
		t.Fatalf("a3: got %v want 3.5", got)
	}
	// a1 and a2 are spread between a0 and a3
	want := map[string]float64{"a1": 3.5 / 3, "a2": 7.0 / 3}
	for id, w := range want {
		if got := offsetOf(t, g, id); got != w {
			t.Fatalf("%s: got %v want %v", id, got, w)
		}
	}
}

func TestUnconnectedAnchorInheritsBound(t *testing.T) {
	b := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 0, ag.ConfidenceManual).
		UnsetAnchor("a1").
		UnsetAnchor("aE").
		Anchor("a4", 4, ag.ConfidenceManual)
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a4", "p1").
		Annotation("u1", testsupport.UtteranceLayer, "speaker", "a0", "a4", "t1").
		Annotation("w1", testsupport.WordLayer, "hello", "a0", "a1", "t1").
		Annotation("w2", testsupport.WordLayer, "there", "a1", "aE", "t1")
	g := b.Graph()

	if _, err := offsets.New(offsets.DefaultOptions()).Transform(g); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := offsetOf(t, g, "aE"); got != 4 {
		t.Fatalf("aE: got %v want 4", got)
	}
	if got := offsetOf(t, g, "a1"); got != 2 {
		t.Fatalf("a1: got %v want 2", got)
	}
}

func TestUnjoinedEndInheritsBoundWhenBoundsAreReversed(t *testing.T) {
	// w1 starts at aW, which nothing joins to the turn's start, and ends
	// before the turn starts
	b := testsupport.NewBuilder(t, "g", nil).
		Anchor("a0", 5, ag.ConfidenceManual).
		UnsetAnchor("aW").
		Anchor("a2", 2, ag.ConfidenceManual).
		Anchor("a4", 10, ag.ConfidenceManual)
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "a0", "a4", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "a0", "a4", "p1").
		Annotation("w1", testsupport.WordLayer, "early", "aW", "a2", "t1").
		Annotation("w2", testsupport.WordLayer, "words", "a2", "a4", "t1")
	g := b.Graph()

	r, err := offsets.New(offsets.DefaultOptions()).Transform(g)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := offsetOf(t, g, "aW"); got != 5 {
		t.Fatalf("aW: got %v want 5", got)
	}
	if len(r.Diagnostics.Warnings) != 0 {
		t.Fatalf("warnings: got %v want none", r.Diagnostics.Warnings)
	}
}

func TestUnboundedChunkIsReportedAndOthersContinue(t *testing.T) {
	b := testsupport.NewBuilder(t, "g", nil).
		UnsetAnchor("b0").
		UnsetAnchor("b1").
		UnsetAnchor("b2").
		Anchor("c0", 10, ag.ConfidenceManual).
		UnsetAnchor("c1").
		Anchor("c2", 12, ag.ConfidenceManual)
	b.Annotation("p1", testsupport.ParticipantLayer, "speaker", "b0", "c2", "").
		Annotation("t1", testsupport.TurnLayer, "speaker", "b0", "b2", "p1").
		Annotation("w1", testsupport.WordLayer, "lost", "b0", "b1", "t1").
		Annotation("w2", testsupport.WordLayer, "words", "b1", "b2", "t1").
		Annotation("t2", testsupport.TurnLayer, "speaker", "c0", "c2", "p1").
		Annotation("w3", testsupport.WordLayer, "found", "c0", "c1", "t2").
		Annotation("w4", testsupport.WordLayer, "words", "c1", "c2", "t2")
	g := b.Graph()

	r, err := offsets.New(offsets.DefaultOptions()).Transform(g)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(r.Diagnostics.Errors) != 1 || r.Diagnostics.Errors[0].Subject != "t1" {
		t.Fatalf("errors: got %v want one for t1", r.Diagnostics.Errors)
	}
	if got := offsetOf(t, g, "c1"); got != 11 {
		t.Fatalf("c1: got %v want 11", got)
	}
	if g.Anchor("b1").HasOffset() {
		t.Fatal("b1 should stay unset")
	}
}

func TestNothingBelowThresholdIsNoOp(t *testing.T) {
	g := testsupport.Transcript(t, "g", "all", "set")
	r, err := offsets.New(offsets.DefaultOptions()).Transform(g)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(r.Changes) != 0 || !r.Diagnostics.Empty() {
		t.Fatalf("expected no-op, got %+v", r)
	}
}

func TestNilGraphIsConfigurationError(t *testing.T) {
	if _, err := offsets.New(offsets.DefaultOptions()).Transform(nil); err == nil {
		t.Fatal("expected error for nil graph")
	}
}
