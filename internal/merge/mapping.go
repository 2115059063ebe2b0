package merge

import (
	"cmp"
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/editpath"
	"agmerge/internal/logging"
	"agmerge/internal/ordering"
)

// mapGraphs pairs the annotations of the original graph with those of the
// edited graph, layer by layer from the top down.
func (r *run) mapGraphs() {
	r.pairs.pair(r.graph.Root(), r.edited.Root())
	mapped := map[string]bool{}
	if r.transcriptLayers() {
		r.mapTranscript(mapped)
	}
	turn := r.schema.TurnLayerID
	for _, layer := range r.layers {
		if mapped[layer.ID] {
			continue
		}
		if layer.ParentID == ag.RootLayerID || (turn != "" && layer.ParentID == turn) {
			r.mapAnnotations(layer, byOrdinal(r.graph.AnnotationsOn(layer.ID)), byOrdinal(r.edited.AnnotationsOn(layer.ID)))
		} else {
			r.mapByParents(layer)
		}
	}
	paired := 0
	for an := range r.pairs {
		if an.Graph() == r.graph {
			paired++
		}
	}
	r.logger.Debug("annotations paired", logging.Phase("map"), logging.Int("pairs", paired-1))
}

// transcriptLayers reports whether the participant, turn, utterance and word
// layers are all known and both graphs have at least one word with an offset,
// which allows words to be aligned utterance by utterance.
func (r *run) transcriptLayers() bool {
	s := r.schema
	for _, id := range []string{s.ParticipantLayerID, s.TurnLayerID, s.UtteranceLayerID, s.WordLayerID} {
		if id == "" || s.Layer(id) == nil || !r.editedHasLayer(id) {
			return false
		}
	}
	return hasAnchoredWord(r.graph, s.WordLayerID) && hasAnchoredWord(r.edited, s.WordLayerID)
}

func hasAnchoredWord(g *ag.Graph, wordLayer string) bool {
	for _, w := range g.AnnotationsOn(wordLayer) {
		if (w.Start() != nil && w.Start().HasOffset()) || (w.End() != nil && w.End().HasOffset()) {
			return true
		}
	}
	return false
}

// mapTranscript pairs participants, then turns, then utterances, stopping at
// the first level that cannot be paired completely. With every utterance
// paired, words are aligned within each utterance pair, and leftover words
// are paired with the neighbour of a paired neighbour when labels match.
func (r *run) mapTranscript(mapped map[string]bool) {
	s := r.schema
	for _, id := range []string{s.ParticipantLayerID, s.TurnLayerID, s.UtteranceLayerID} {
		r.mapByParents(s.Layer(id))
		mapped[id] = true
		if !r.layerPaired(id) {
			r.logger.Debug("transcript alignment stopped", logging.Layer(id))
			return
		}
	}
	originalWords := wordsByUtterance(r.graph)
	editedWords := wordsByUtterance(r.edited)
	aligned := false
	wordLayer := s.Layer(s.WordLayerID)
	for _, u := range r.graph.AnnotationsOn(s.UtteranceLayerID) {
		these := originalWords[u]
		those := editedWords[r.pairs.of(u)]
		if len(these) == 0 || len(those) == 0 {
			continue
		}
		r.mapAnnotations(wordLayer, these, those)
		aligned = true
	}
	if !aligned {
		return
	}
	mapped[s.WordLayerID] = true
	for _, word := range r.graph.AnnotationsOn(s.WordLayerID) {
		if r.pairs.has(word) {
			continue
		}
		if prev := word.Previous(); prev != nil && r.pairs.has(prev) {
			if next := r.pairs.of(prev).Next(); next != nil && !r.pairs.has(next) && next.Label() == word.Label() {
				r.pairs.pair(word, next)
				continue
			}
		}
		if next := word.Next(); next != nil && r.pairs.has(next) {
			if prev := r.pairs.of(next).Previous(); prev != nil && !r.pairs.has(prev) && prev.Label() == word.Label() {
				r.pairs.pair(word, prev)
			}
		}
	}
}

// layerPaired reports whether every live annotation on the layer has a
// counterpart in both graphs.
func (r *run) layerPaired(layerID string) bool {
	return r.pairs.allPaired(r.graph.AnnotationsOn(layerID)) && r.pairs.allPaired(r.edited.AnnotationsOn(layerID))
}

// wordsByUtterance assigns each word to the utterance of its turn that
// contains its start, falling back to the last utterance starting before it,
// then to the utterance of the previous word.
func wordsByUtterance(g *ag.Graph) map[*ag.Annotation][]*ag.Annotation {
	s := g.Schema()
	byTurn := map[*ag.Annotation][]*ag.Annotation{}
	for _, u := range g.AnnotationsOn(s.UtteranceLayerID) {
		if turn := turnOf(u, s.TurnLayerID); turn != nil {
			byTurn[turn] = append(byTurn[turn], u)
		}
	}
	for _, list := range byTurn {
		ordering.SortAnnotations(list)
	}
	out := map[*ag.Annotation][]*ag.Annotation{}
	var last *ag.Annotation
	var lastTurn *ag.Annotation
	for _, w := range byOrdinal(g.AnnotationsOn(s.WordLayerID)) {
		turn := turnOf(w, s.TurnLayerID)
		utterances := byTurn[turn]
		if len(utterances) == 0 {
			continue
		}
		u := utteranceAt(w, utterances)
		if u == nil {
			if last != nil && lastTurn == turn {
				u = last
			} else {
				u = utterances[0]
			}
		}
		out[u] = append(out[u], w)
		last, lastTurn = u, turn
	}
	return out
}

func turnOf(an *ag.Annotation, turnLayer string) *ag.Annotation {
	if an.LayerID() == turnLayer {
		return an
	}
	return an.Ancestor(turnLayer)
}

func utteranceAt(word *ag.Annotation, utterances []*ag.Annotation) *ag.Annotation {
	if word.Start() == nil {
		return nil
	}
	offset, ok := word.Start().OffsetMin()
	if !ok {
		return nil
	}
	var before *ag.Annotation
	for _, u := range utterances {
		if u.IncludesOffset(offset) {
			return u
		}
		if u.Start() != nil {
			if start, ok := u.Start().Offset(); ok && start <= offset {
				before = u
			}
		}
	}
	return before
}

// mapByParents aligns the layer's annotations separately beneath each pair of
// parent counterparts.
func (r *run) mapByParents(layer *ag.Layer) {
	for _, parent := range parentsOn(r.graph, layer.ParentID) {
		other := r.pairs.of(parent)
		if other == nil {
			continue
		}
		these := byOrdinal(parent.LiveChildren(layer.ID))
		those := byOrdinal(other.LiveChildren(layer.ID))
		if len(these) == 0 || len(those) == 0 {
			continue
		}
		r.mapAnnotations(layer, these, those)
	}
}

func parentsOn(g *ag.Graph, layerID string) []*ag.Annotation {
	if layerID == ag.RootLayerID {
		return []*ag.Annotation{g.Root()}
	}
	return g.AnnotationsOn(layerID)
}

// mapAnnotations pairs annotations of one layer along the minimum edit path
// between the two sequences. Turn-descended layers are aligned participant by
// participant, and long sequences in overlapping windows.
func (r *run) mapAnnotations(layer *ag.Layer, these, those []*ag.Annotation) {
	var groups [][2][]*ag.Annotation
	if r.splitByParticipant(layer) {
		groups = r.byParticipant(layer, these, those)
	} else {
		groups = [][2][]*ag.Annotation{{these, those}}
	}
	rootTag := layer.ParentID == ag.RootLayerID && layer.IsTag()
	word := r.schema.WordLayerID
	collapse := r.noChange[layer.ID] || (word != "" && layer.ParentID == word)
	for _, group := range groups {
		from, to := group[0], group[1]
		if rootTag {
			from, to = byLabel(from), byLabel(to)
		}
		chunked := r.m.opts.MaxChunkSize > 0 && len(from) > r.m.opts.MaxChunkSize && len(to) > r.m.opts.MaxChunkSize
		var fromChunks, toChunks [][]*ag.Annotation
		if chunked {
			n := max(chunkCount(len(from), r.m.opts.MaxChunkSize), chunkCount(len(to), r.m.opts.MaxChunkSize))
			fromChunks, toChunks = overlappingChunks(from, n), overlappingChunks(to, n)
			r.logger.Debug("aligning in chunks", logging.Layer(layer.ID),
				logging.Int("chunks", len(fromChunks)), logging.Int("original", len(from)), logging.Int("edited", len(to)))
		} else {
			fromChunks, toChunks = [][]*ag.Annotation{from}, [][]*ag.Annotation{to}
		}
		for i := range fromChunks {
			a, b := fromChunks[i], toChunks[i]
			if chunked {
				a, b = r.afterLastPaired(a), r.afterLastPaired(b)
			}
			path := editpath.Path(a, b, r.cost)
			if collapse {
				path = editpath.Collapse(path, r.cost)
			}
			for _, step := range path {
				if step.From != nil && step.To != nil {
					r.pairs.pair(step.From, step.To)
				}
			}
		}
	}
}

func (r *run) splitByParticipant(layer *ag.Layer) bool {
	turn := r.schema.TurnLayerID
	if turn == "" {
		return false
	}
	if layer.ID == turn {
		return true
	}
	return r.editedHasLayer(turn) && r.schema.IsAncestor(turn, layer.ID)
}

// byParticipant groups both sequences by the label of each annotation's turn,
// keeping the order in which participants first appear.
func (r *run) byParticipant(layer *ag.Layer, these, those []*ag.Annotation) [][2][]*ag.Annotation {
	turnLayer := r.schema.TurnLayerID
	index := map[string]int{}
	var groups [][2][]*ag.Annotation
	add := func(side int, list []*ag.Annotation) {
		for _, an := range list {
			who := ""
			if turn := turnOf(an, turnLayer); turn != nil {
				who = turn.Label()
			}
			i, ok := index[who]
			if !ok {
				i = len(groups)
				index[who] = i
				groups = append(groups, [2][]*ag.Annotation{})
			}
			groups[i][side] = append(groups[i][side], an)
		}
	}
	add(0, these)
	add(1, those)
	return groups
}

// afterLastPaired drops every annotation up to and including the last one
// already paired by an earlier window.
func (r *run) afterLastPaired(list []*ag.Annotation) []*ag.Annotation {
	for i := len(list) - 1; i >= 0; i-- {
		if r.pairs.has(list[i]) {
			return list[i+1:]
		}
	}
	return list
}

func chunkCount(n, limit int) int {
	return (n + limit - 1) / limit
}

// overlappingChunks splits list into 2n-1 windows, each spanning two of 2n
// equal slices and overlapping the next window by one slice.
func overlappingChunks(list []*ag.Annotation, n int) [][]*ag.Annotation {
	halves := 2 * n
	bound := func(k int) int { return k * len(list) / halves }
	chunks := make([][]*ag.Annotation, 0, halves-1)
	for k := 0; k < halves-1; k++ {
		chunks = append(chunks, list[bound(k):bound(k+2)])
	}
	return chunks
}

func byOrdinal(list []*ag.Annotation) []*ag.Annotation {
	out := slices.Clone(list)
	slices.SortStableFunc(out, ordering.ByOrdinal)
	return out
}

func byLabel(list []*ag.Annotation) []*ag.Annotation {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(x, y *ag.Annotation) int {
		if c := cmp.Compare(x.Label(), y.Label()); c != 0 {
			return c
		}
		return ordering.ByOrdinal(x, y)
	})
	return out
}
