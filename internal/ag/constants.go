package ag

// Confidence ratings for anchor offsets and annotation labels. Higher values are
// more trustworthy and block being overwritten by lower-confidence edits.
const (
	ConfidenceNone      = 0
	ConfidenceDefault   = 10
	ConfidenceAutomatic = 50
	ConfidenceManual    = 100
)

// Alignment describes how annotations on a layer relate to the time line.
type Alignment int

const (
	// AlignmentNone annotations are tags that share their parent's anchors.
	AlignmentNone Alignment = 0
	// AlignmentInstant annotations mark a single point in time.
	AlignmentInstant Alignment = 1
	// AlignmentInterval annotations span a start and an end.
	AlignmentInterval Alignment = 2
)

func (a Alignment) String() string {
	switch a {
	case AlignmentNone:
		return "none"
	case AlignmentInstant:
		return "instant"
	case AlignmentInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// RootLayerID identifies the schema root. Top-level layers name it as parent.
const RootLayerID = "graph"

// Tracked attribute keys used in Change records.
const (
	KeyOffset     = "offset"
	KeyConfidence = "confidence"
	KeyLabel      = "label"
	KeyStartID    = "startId"
	KeyEndID      = "endId"
	KeyParentID   = "parentId"
	KeyOrdinal    = "ordinal"
)
