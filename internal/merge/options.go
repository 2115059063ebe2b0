package merge

import (
	"log/slog"

	"agmerge/internal/ag"
	"agmerge/internal/transform"
)

// Options configures a Merger.
type Options struct {
	// Edited is the independently edited copy whose changes are folded into
	// the graph passed to Transform.
	Edited *ag.Graph
	// MaxChunkSize caps the length of the sequences aligned in one edit path.
	// Longer sequences are aligned in overlapping windows. Zero disables
	// chunking.
	MaxChunkSize int
	// OffsetTolerance is the smallest offset difference treated as a change.
	// The larger of this and both graphs' granularities applies.
	OffsetTolerance float64
	// IgnoreConfidence applies every edited label and offset regardless of
	// how its confidence compares to the original's.
	IgnoreConfidence bool
	// NoChangeLayers are aligned for reference but never edited.
	NoChangeLayers []string
	// Validator runs after the hierarchy check and anchor cleanup. Nil skips
	// validation.
	Validator transform.Transformer
	// Smidgin is the offset nudge used to keep repaired anchors strictly
	// ordered.
	Smidgin float64
	// IDs, when set, mints identifiers for created entities in place of
	// the graph's own generator for the duration of the merge.
	IDs    ag.IDGenerator
	Logger *slog.Logger
}

// DefaultOptions returns the standard settings for merging with edited.
func DefaultOptions(edited *ag.Graph) Options {
	return Options{
		Edited:       edited,
		MaxChunkSize: 500,
		Smidgin:      0.00001,
	}
}
