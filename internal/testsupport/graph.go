package testsupport

import (
	"fmt"
	"testing"

	"agmerge/internal/ag"
)

// Builder assembles a graph for a test, failing the test on any structural
// error.
type Builder struct {
	t testing.TB
	g *ag.Graph
}

// NewBuilder starts a graph with the given id over schema. A nil schema uses
// NewSchema.
func NewBuilder(t testing.TB, id string, schema *ag.Schema) *Builder {
	t.Helper()
	if schema == nil {
		schema = NewSchema()
	}
	g := ag.NewGraph(id, schema)
	g.IDs = &ag.SequenceGenerator{Prefix: id + "-new"}
	return &Builder{t: t, g: g}
}

// Anchor adds an anchor with an offset and confidence.
func (b *Builder) Anchor(id string, offset float64, confidence int) *Builder {
	b.t.Helper()
	if err := b.g.AddAnchor(ag.NewAnchorAt(id, offset, confidence)); err != nil {
		b.t.Fatalf("add anchor %s: %v", id, err)
	}
	return b
}

// UnsetAnchor adds an anchor with no offset.
func (b *Builder) UnsetAnchor(id string) *Builder {
	b.t.Helper()
	if err := b.g.AddAnchor(ag.NewAnchor(id)); err != nil {
		b.t.Fatalf("add anchor %s: %v", id, err)
	}
	return b
}

// Annotation adds an annotation appended after its live peers. An empty
// parent places it under the graph root.
func (b *Builder) Annotation(id, layerID, label, start, end, parent string) *Builder {
	b.t.Helper()
	if err := b.g.AddAnnotation(ag.NewAnnotation(id, layerID, label), start, end, parent, 0); err != nil {
		b.t.Fatalf("add annotation %s: %v", id, err)
	}
	return b
}

// LabelConfidence sets the label confidence of an existing annotation without
// recording a change.
func (b *Builder) LabelConfidence(id string, confidence int) *Builder {
	b.t.Helper()
	an := b.g.Annotation(id)
	if an == nil {
		b.t.Fatalf("label confidence: annotation %s not found", id)
	}
	an.SetConfidence(confidence)
	b.g.Commit()
	return b
}

// Graph returns the built graph with no pending changes.
func (b *Builder) Graph() *ag.Graph {
	b.g.Commit()
	return b.g
}

// Transcript builds a one-speaker, one-turn, one-utterance graph whose words
// are one second long each, anchored at a0..aN with manual confidence:
//
//	who p1 "speaker"   a0..aN
//	turn t1            a0..aN
//	utterance u1       a0..aN
//	word w1..wN        a(i-1)..a(i)
func Transcript(t testing.TB, id string, words ...string) *ag.Graph {
	t.Helper()
	b := NewBuilder(t, id, nil)
	for i := 0; i <= len(words); i++ {
		b.Anchor(fmt.Sprintf("a%d", i), float64(i), ag.ConfidenceManual)
	}
	last := fmt.Sprintf("a%d", len(words))
	b.Annotation("p1", ParticipantLayer, "speaker", "a0", last, "")
	b.Annotation("t1", TurnLayer, "speaker", "a0", last, "p1")
	b.Annotation("u1", UtteranceLayer, "speaker", "a0", last, "t1")
	for i, w := range words {
		b.Annotation(fmt.Sprintf("w%d", i+1), WordLayer, w, fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i+1), "t1")
	}
	return b.Graph()
}
