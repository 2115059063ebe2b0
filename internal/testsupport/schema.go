package testsupport

import "agmerge/internal/ag"

// Layer ids of the schema returned by NewSchema.
const (
	TopicLayer       = "topic"
	ParticipantLayer = "who"
	TurnLayer        = "turn"
	UtteranceLayer   = "utterance"
	LanguageLayer    = "language"
	WordLayer        = "word"
	POSLayer         = "pos"
	SegmentLayer     = "segment"
)

// NewSchema returns the transcript schema used across tests:
//
//	topic
//	who
//	  turn
//	    utterance (saturated)
//	    language
//	    word
//	      pos (tag)
//	      segment (saturated)
func NewSchema() *ag.Schema {
	s := ag.NewSchema()
	layers := []*ag.Layer{
		{ID: TopicLayer, ParentID: ag.RootLayerID, Alignment: ag.AlignmentInterval, Peers: true, Type: "string"},
		{ID: ParticipantLayer, ParentID: ag.RootLayerID, Alignment: ag.AlignmentNone, Peers: true, PeersOverlap: true, Saturated: true, Type: "string"},
		{ID: TurnLayer, ParentID: ParticipantLayer, Alignment: ag.AlignmentInterval, Peers: true, ParentIncludes: true, Type: "string"},
		{ID: UtteranceLayer, ParentID: TurnLayer, Alignment: ag.AlignmentInterval, Peers: true, Saturated: true, ParentIncludes: true, Type: "string"},
		{ID: LanguageLayer, ParentID: TurnLayer, Alignment: ag.AlignmentInterval, Peers: true, ParentIncludes: true, Type: "string"},
		{ID: WordLayer, ParentID: TurnLayer, Alignment: ag.AlignmentInterval, Peers: true, ParentIncludes: true, Type: "string"},
		{ID: POSLayer, ParentID: WordLayer, Alignment: ag.AlignmentNone, Saturated: true, ParentIncludes: true, Type: "string"},
		{ID: SegmentLayer, ParentID: WordLayer, Alignment: ag.AlignmentInterval, Peers: true, Saturated: true, ParentIncludes: true, Type: "ipa"},
	}
	for _, l := range layers {
		if err := s.AddLayer(l); err != nil {
			panic(err)
		}
	}
	s.ParticipantLayerID = ParticipantLayer
	s.TurnLayerID = TurnLayer
	s.UtteranceLayerID = UtteranceLayer
	s.WordLayerID = WordLayer
	return s
}
