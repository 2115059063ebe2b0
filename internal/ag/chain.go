package ag

// Chain returns live annotations that link anchor start to anchor end through
// shared anchors, in order, with instantaneous annotations at the junctions
// included. Annotations on excludeLayers are not followed, nor are tag-layer
// annotations beyond the first hop. An empty result means no chain exists.
func Chain(start, end *Anchor, excludeLayers map[string]bool) []*Annotation {
	if start == nil || end == nil || start == end {
		return nil
	}
	return findChain(start, end, excludeLayers, map[*Anchor]bool{})
}

func findChain(start, end *Anchor, exclude map[string]bool, visited map[*Anchor]bool) []*Annotation {
	if start == end {
		return nil
	}
	for _, an := range start.starts {
		if !chainable(an, exclude) {
			continue
		}
		if an.end == end {
			chain := instantsAt(start)
			chain = append(chain, an)
			return append(chain, instantsAt(end)...)
		}
	}
	for _, an := range start.starts {
		if !chainable(an, exclude) {
			continue
		}
		if l := an.Layer(); l == nil || l.IsTag() {
			continue
		}
		if an.end == nil || visited[an.end] {
			continue
		}
		visited[an.end] = true
		rest := findChain(an.end, end, exclude, visited)
		if len(rest) > 0 {
			chain := instantsAt(start)
			chain = append(chain, an)
			return append(chain, rest...)
		}
	}
	return nil
}

func chainable(an *Annotation, exclude map[string]bool) bool {
	return !an.destroyed && !exclude[an.layerID] && !an.Instantaneous() && an.end != nil
}

func instantsAt(a *Anchor) []*Annotation {
	var out []*Annotation
	for _, an := range a.starts {
		if !an.destroyed && an.Instantaneous() {
			out = append(out, an)
		}
	}
	return out
}

// ChainAnchors lists the distinct anchors of a chain in order, excluding the
// chain's first start and last end.
func ChainAnchors(chain []*Annotation) []*Anchor {
	if len(chain) == 0 {
		return nil
	}
	first := chain[0].start
	last := chain[len(chain)-1].end
	seen := map[*Anchor]bool{first: true, last: true}
	var out []*Anchor
	for _, an := range chain {
		for _, a := range []*Anchor{an.start, an.end} {
			if a != nil && !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
