// Package ag models annotation graphs: time-anchored points (anchors) that bound
// labeled spans (annotations) organized into a layered hierarchy such as
// participant → turn → utterance → word → segment.
//
// Anchors are shared. When two annotations reference the same anchor they are
// adjacent, and that sharing is a structural fact every transformer must
// preserve. Annotations and anchors are mutated only through their setters so
// that each modification produces an immutable Change record; the records flow
// to the graph's ChangeTracker and any listeners chained beneath it.
//
// Destroy marks an entity for removal without unlinking it, so algorithms that
// walk the structure still see pending deletions. Graph.Commit finalizes pending
// changes and Graph.Rollback reverts them.
//
// A Graph is not safe for concurrent mutation. Callers serialize access per
// graph instance.
package ag
