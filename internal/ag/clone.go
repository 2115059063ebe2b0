package ag

// Clone returns a deep structural copy of the live graph content: same ids,
// offsets, confidences, labels, parents and ordinals, with no pending changes
// and no tracker.
func (g *Graph) Clone() *Graph {
	c := NewGraph(g.ID(), g.schema.Clone())
	c.Fragment = g.Fragment
	c.OffsetGranularity = g.OffsetGranularity
	c.OffsetUnits = g.OffsetUnits
	c.IDs = g.IDs
	for _, a := range g.anchorOrder {
		if a.destroyed {
			continue
		}
		copied := NewAnchor(a.id)
		copied.offset, copied.hasOffset = a.offset, a.hasOffset
		copied.confidence, copied.hasConfidence = a.confidence, a.hasConfidence
		_ = c.AddAnchor(copied)
	}
	// parents before children
	var walk func(parent *Annotation)
	walk = func(parent *Annotation) {
		for _, layerID := range parent.childLayers {
			for _, an := range parent.children[layerID] {
				if an.destroyed {
					continue
				}
				copied := NewAnnotation(an.id, an.layerID, an.label)
				copied.confidence, copied.hasConfidence = an.confidence, an.hasConfidence
				parentID := ""
				if parent != g.root {
					parentID = parent.id
				}
				_ = c.AddAnnotation(copied, an.StartID(), an.EndID(), parentID, an.Ordinal())
				walk(an)
			}
		}
	}
	walk(g.root)
	return c
}
