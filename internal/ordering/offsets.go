package ordering

import (
	"cmp"
	"math"

	"agmerge/internal/ag"
)

// CompareOffsets compares two offsets, treating values closer than
// granularity as equal. A zero granularity compares exactly.
func CompareOffsets(x, y, granularity float64) int {
	if granularity > 0 && math.Abs(x-y) < granularity {
		return 0
	}
	return cmp.Compare(x, y)
}

func granularityOf(an *ag.Annotation) float64 {
	if g := an.Graph(); g != nil {
		return g.OffsetGranularity
	}
	return 0
}

func anchorOffset(a *ag.Anchor) (float64, bool) {
	if a == nil {
		return 0, false
	}
	return a.Offset()
}
