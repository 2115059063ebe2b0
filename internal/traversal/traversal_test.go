package traversal_test

import (
	"slices"
	"testing"

	"agmerge/internal/ag"
	"agmerge/internal/testsupport"
	"agmerge/internal/traversal"
)

type visits struct {
	pre, post, except []string
}

func recordingTraversal(breadthFirst bool) *traversal.AnnotationTraversal[*visits] {
	return &traversal.AnnotationTraversal[*visits]{
		BreadthFirst: breadthFirst,
		Pre: func(v *visits, an *ag.Annotation) *visits {
			v.pre = append(v.pre, an.ID())
			return v
		},
		Post: func(v *visits, an *ag.Annotation) *visits {
			v.post = append(v.post, an.ID())
			return v
		},
		Except: func(v *visits, an *ag.Annotation) *visits {
			v.except = append(v.except, an.ID())
			return v
		},
	}
}

func fragmentGraph(t *testing.T) *ag.Graph {
	t.Helper()
	g := testsupport.Transcript(t, "g", "the", "dog")
	if err := g.AddAnnotation(ag.NewAnnotation("x1", testsupport.POSLayer, "DET"), "a0", "a1", "w1", 0); err != nil {
		t.Fatalf("add pos: %v", err)
	}
	if err := g.AddAnnotation(ag.NewAnnotation("m1", "mystery", "?"), "a0", "a2", "", 0); err != nil {
		t.Fatalf("add unknown layer annotation: %v", err)
	}
	return g
}

func TestAnnotationTraversalDepthFirst(t *testing.T) {
	g := fragmentGraph(t)
	v := recordingTraversal(false).Graph(g, &visits{})

	cases := []struct {
		name string
		got  []string
		want []string
	}{
		{"pre", v.pre, []string{"p1", "t1", "u1", "w1", "x1", "w2"}},
		{"post", v.post, []string{"u1", "x1", "w1", "w2", "t1", "p1"}},
		{"except", v.except, []string{"m1"}},
	}
	for _, tc := range cases {
		if !slices.Equal(tc.got, tc.want) {
			t.Fatalf("%s order: got %v want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestAnnotationTraversalBreadthFirst(t *testing.T) {
	g := fragmentGraph(t)
	v := recordingTraversal(true).Graph(g, &visits{})

	if want := []string{"p1", "t1", "u1", "w1", "w2", "x1"}; !slices.Equal(v.pre, want) {
		t.Fatalf("pre order: got %v want %v", v.pre, want)
	}
	if want := []string{"u1", "x1", "w1", "w2", "t1", "p1"}; !slices.Equal(v.post, want) {
		t.Fatalf("post order: got %v want %v", v.post, want)
	}
	if want := []string{"m1"}; !slices.Equal(v.except, want) {
		t.Fatalf("except: got %v want %v", v.except, want)
	}
}

func TestAnnotationTraversalSkipsDestroyed(t *testing.T) {
	g := fragmentGraph(t)
	g.Annotation("w2").Destroy()

	v := recordingTraversal(false).Graph(g, &visits{})
	if slices.Contains(v.pre, "w2") || slices.Contains(v.except, "w2") {
		t.Fatalf("destroyed annotation visited: pre=%v except=%v", v.pre, v.except)
	}

	all := recordingTraversal(false)
	all.IncludeDestroyed = true
	v = all.Graph(g, &visits{})
	if !slices.Contains(v.pre, "w2") {
		t.Fatalf("expected destroyed annotation with IncludeDestroyed, got %v", v.pre)
	}
}

func TestAnnotationTraversalSubtree(t *testing.T) {
	g := fragmentGraph(t)
	count := (&traversal.AnnotationTraversal[int]{
		Pre: func(n int, _ *ag.Annotation) int { return n + 1 },
	}).Annotation(g.Annotation("t1"), 0)

	if count != 5 {
		t.Fatalf("subtree size: got %d want 5", count)
	}
}

func TestLayerTraversalDefaultOrder(t *testing.T) {
	got := traversal.LayerIDs(testsupport.NewSchema())
	want := []string{"who", "turn", "utterance", "language", "word", "pos", "segment", "topic"}
	if !slices.Equal(got, want) {
		t.Fatalf("layer order: got %v want %v", got, want)
	}
}

func TestLayerTraversalPostOrderAndCustomComparator(t *testing.T) {
	s := testsupport.NewSchema()
	tr := &traversal.LayerTraversal[[]string]{
		Post: func(ids []string, l *ag.Layer) []string { return append(ids, l.ID) },
		PeerComparator: func(a, b *ag.Layer) int {
			switch {
			case a.ID < b.ID:
				return 1
			case a.ID > b.ID:
				return -1
			}
			return 0
		},
	}
	got := tr.Schema(s, nil)
	want := []string{"segment", "pos", "word", "utterance", "language", "turn", "who", "topic"}
	if !slices.Equal(got, want) {
		t.Fatalf("post order: got %v want %v", got, want)
	}
}
