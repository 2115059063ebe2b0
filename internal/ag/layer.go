package ag

// Layer is schema metadata for one category of annotations.
type Layer struct {
	ID          string
	ParentID    string
	Description string
	Alignment   Alignment
	// Peers allows more than one child per parent on this layer.
	Peers bool
	// PeersOverlap allows peers to overlap in time.
	PeersOverlap bool
	// ParentIncludes requires children to lie within the parent's span.
	ParentIncludes bool
	// Saturated requires children to tile the parent's span without gaps.
	Saturated bool
	// Type is the label type, e.g. "string", "ipa", "number".
	Type string
}

// NewLayer returns a layer with the common defaults for an aligned,
// parent-included layer of non-overlapping peers.
func NewLayer(id, parentID string) *Layer {
	return &Layer{
		ID:             id,
		ParentID:       parentID,
		Alignment:      AlignmentInterval,
		Peers:          true,
		ParentIncludes: true,
		Type:           "string",
	}
}

// Clone returns a copy of l.
func (l *Layer) Clone() *Layer {
	c := *l
	return &c
}

// IsTag reports whether annotations on this layer share their parent's anchors.
func (l *Layer) IsTag() bool { return l.Alignment == AlignmentNone }
