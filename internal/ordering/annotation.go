package ordering

import (
	"cmp"
	"slices"

	"agmerge/internal/ag"
)

// CompareAnnotationsByAnchor orders annotations by start offset ascending and
// then end offset descending, so an enclosing annotation sorts before the
// annotations it contains. Among annotations starting together, instants come
// first. Remaining ties are broken by shared anchors, layer id, ordinal and
// finally id.
func CompareAnnotationsByAnchor(x, y *ag.Annotation) int {
	if x == y {
		return 0
	}
	if x.ID() > y.ID() {
		return -compareByAnchor(y, x)
	}
	return compareByAnchor(x, y)
}

func compareByAnchor(x, y *ag.Annotation) int {
	gran := granularityOf(x)
	xs, okXS := anchorOffset(x.Start())
	ys, okYS := anchorOffset(y.Start())
	if okXS && okYS {
		switch CompareOffsets(xs, ys, gran) {
		case -1:
			return -6
		case 1:
			return 6
		}
		xe, okXE := anchorOffset(x.End())
		ye, okYE := anchorOffset(y.End())
		if okXE && okYE {
			xInstant := CompareOffsets(xs, xe, gran) == 0
			yInstant := CompareOffsets(ys, ye, gran) == 0
			if xInstant && !yInstant {
				return -9
			}
			if yInstant && !xInstant {
				return 9
			}
			switch CompareOffsets(xe, ye, gran) {
			case -1:
				return 8
			case 1:
				return -8
			}
		}
	}

	if x.End() != nil && x.End() == y.Start() {
		return -7
	}
	if x.Start() != nil && x.Start() == y.End() {
		return 7
	}
	switch cmp.Compare(x.LayerID(), y.LayerID()) {
	case -1:
		return -4
	case 1:
		return 4
	}
	if x.Parent() != nil && x.Parent() == y.Parent() {
		switch cmp.Compare(x.Ordinal(), y.Ordinal()) {
		case -1:
			return -3
		case 1:
			return 3
		}
	}
	if r := cmp.Compare(x.ID(), y.ID()); r != 0 {
		return r
	}
	return cmp.Compare(x.Label(), y.Label()) * 99
}

// ByDistance returns a comparator that puts annotations nearest to reference
// first. Annotations without a measurable distance sort last; ties fall back
// to CompareAnnotationsByAnchor.
func ByDistance(reference *ag.Annotation) func(x, y *ag.Annotation) int {
	return func(x, y *ag.Annotation) int {
		if x == y {
			return 0
		}
		dx, okX := reference.Distance(x)
		dy, okY := reference.Distance(y)
		switch {
		case okX && !okY:
			return -1
		case okY && !okX:
			return 1
		case okX && okY:
			if r := cmp.Compare(dx, dy); r != 0 {
				return r * 2
			}
		}
		return CompareAnnotationsByAnchor(x, y)
	}
}

// ByOrdinal orders peers of one parent by ordinal, annotations with
// different parents by their parents' start offsets, and everything else by
// anchor.
func ByOrdinal(x, y *ag.Annotation) int {
	if x == y {
		return 0
	}
	px, py := x.Parent(), y.Parent()
	if px != nil && px == py && x.LayerID() == y.LayerID() {
		if r := cmp.Compare(x.Ordinal(), y.Ordinal()); r != 0 {
			return r * 2
		}
	} else if px != nil && py != nil {
		sx, okX := anchorOffset(px.Start())
		sy, okY := anchorOffset(py.Start())
		if okX && okY {
			if r := CompareOffsets(sx, sy, granularityOf(x)); r != 0 {
				return r * 3
			}
		}
	}
	return CompareAnnotationsByAnchor(x, y)
}

// SortAnnotations sorts annotations in place by anchor.
func SortAnnotations(annotations []*ag.Annotation) {
	slices.SortStableFunc(annotations, CompareAnnotationsByAnchor)
}
