package ag_test

import (
	"testing"

	"agmerge/internal/ag"
)

func TestTrackerConsolidatesUpdates(t *testing.T) {
	g := newWordGraph(t)
	tracker := ag.NewChangeTracker()
	g.SetTracker(tracker)

	w1 := g.Annotation("w1")
	w1.SetLabel("a")
	w1.SetLabel("an")

	changes := tracker.Changes()
	if len(changes) != 1 {
		t.Fatalf("got %d changes want 1: %v", len(changes), changes)
	}
	c := changes[0]
	if c.Key != ag.KeyLabel || c.Value != "an" || c.OldValue != "the" {
		t.Fatalf("unexpected consolidated change: %v", c)
	}
}

func TestTrackerDropsRevertedValues(t *testing.T) {
	g := newWordGraph(t)
	tracker := ag.NewChangeTracker()
	g.SetTracker(tracker)

	a1 := g.Anchor("a1")
	a1.SetOffset(1.25)
	a1.SetOffset(1)

	if tracker.HasChanges() {
		t.Fatalf("expected reverted change to vanish, got %v", tracker.Changes())
	}
	if a1.Change() != ag.NoChange {
		t.Fatalf("anchor change state: got %v want none", a1.Change())
	}
}

func TestTrackerCreateThenDestroyLeavesNothing(t *testing.T) {
	g := newWordGraph(t)
	tracker := ag.NewChangeTracker()
	g.SetTracker(tracker)

	anchor := g.CreateAnchorAt(4, ag.ConfidenceManual)
	anchor.SetOffset(5)
	anchor.Destroy()

	if tracker.HasChanges() {
		t.Fatalf("expected no changes, got %v", tracker.Changes())
	}
}

func TestTrackerOrdersCreateFirstDestroyLast(t *testing.T) {
	g := newWordGraph(t)
	tracker := ag.NewChangeTracker()
	g.SetTracker(tracker)

	w2 := g.Annotation("w2")
	w2.SetOrdinal(3)
	w2.SetLabel("large")
	w2.Destroy()
	created := g.CreateAnchor()

	forW2 := tracker.ChangesFor("w2")
	if len(forW2) != 3 {
		t.Fatalf("got %d changes for w2 want 3: %v", len(forW2), forW2)
	}
	if forW2[0].Key != ag.KeyLabel || forW2[1].Key != ag.KeyOrdinal || forW2[2].Operation != ag.Destroy {
		t.Fatalf("unexpected order: %v", forW2)
	}
	all := tracker.Changes()
	last := all[len(all)-1]
	if last.ObjectID != created.ID() || last.Operation != ag.Create {
		t.Fatalf("expected creation of %s last by first-touch order, got %v", created.ID(), last)
	}
}

type recorder struct{ seen []ag.Change }

func (r *recorder) Accept(c ag.Change) { r.seen = append(r.seen, c) }

func TestTrackerForwardsToListeners(t *testing.T) {
	g := newWordGraph(t)
	outer := ag.NewChangeTracker()
	g.SetTracker(outer)
	inner := ag.NewChangeTracker()
	rec := &recorder{}
	outer.AddListener(inner)
	inner.AddListener(rec)

	g.Annotation("w1").SetLabel("a")
	outer.RemoveListener(inner)
	g.Annotation("w3").SetLabel("cat")

	if len(inner.Changes()) != 1 {
		t.Fatalf("inner tracker: got %d changes want 1", len(inner.Changes()))
	}
	if len(outer.Changes()) != 2 {
		t.Fatalf("outer tracker: got %d changes want 2", len(outer.Changes()))
	}
	if len(rec.seen) != 1 {
		t.Fatalf("nested listener: got %d changes want 1", len(rec.seen))
	}
}
