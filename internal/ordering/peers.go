package ordering

import (
	"slices"

	"agmerge/internal/ag"
)

// PeersByAnchor returns the live children of parent on layerID in ordinal
// order, adjusted so that anchored children are in offset order. Children
// without offsets keep their place relative to their neighbours, and a child
// whose end anchor starts an earlier peer is moved in front of that peer.
func PeersByAnchor(parent *ag.Annotation, layerID string) []*ag.Annotation {
	peers := parent.LiveChildren(layerID)
	if len(peers) < 2 {
		return peers
	}

	lastSet := 0
	for i := 0; i < len(peers); i++ {
		an := peers[i]
		if an != peers[lastSet] && before(an, peers[lastSet]) {
			moved := false
			for p := lastSet; p >= 0; p-- {
				preceding := peers[p]
				if preceding == an {
					continue
				}
				if before(preceding, an) {
					peers = move(peers, an, p+1)
					moved = true
					break
				}
			}
			if !moved {
				peers = move(peers, an, 0)
			}
			lastSet++
		} else if hasOffset(an.Start()) || hasOffset(an.End()) {
			lastSet = i
		}
	}

	for i := 0; i < len(peers); i++ {
		an := peers[i]
		end := an.End()
		if end == nil {
			continue
		}
		at := i
		for _, next := range end.StartOf(layerID) {
			if next == an {
				continue
			}
			f := slices.Index(peers, next)
			if f < 0 || f >= at {
				continue
			}
			peers = move(peers, an, f)
			at = f
		}
	}
	return peers
}

// before reports whether x ends by the time y starts, or starts before y.
func before(x, y *ag.Annotation) bool {
	if xe, ok := anchorOffset(x.End()); ok {
		if ys, ok := anchorOffset(y.Start()); ok && xe <= ys {
			return true
		}
	}
	if xs, ok := anchorOffset(x.Start()); ok {
		if ys, ok := anchorOffset(y.Start()); ok && xs < ys {
			return true
		}
		if ye, ok := anchorOffset(y.End()); ok && xs < ye {
			return true
		}
	}
	return false
}

func hasOffset(a *ag.Anchor) bool {
	return a != nil && a.HasOffset()
}

func move(list []*ag.Annotation, an *ag.Annotation, to int) []*ag.Annotation {
	from := slices.Index(list, an)
	list = slices.Delete(list, from, from+1)
	if to > len(list) {
		to = len(list)
	}
	return slices.Insert(list, to, an)
}
