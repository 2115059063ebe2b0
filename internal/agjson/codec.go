// Package agjson reads and writes annotation graphs as JSON documents and
// renders change records for reports.
//
// A document lists the schema layers, the anchors and the live annotations of
// one graph. Destroyed entities are never written, so callers normally commit
// before encoding.
package agjson

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/traversal"
)

const component = "agjson"

// Document is the serialized form of a graph.
type Document struct {
	ID                string       `json:"id"`
	OffsetUnits       string       `json:"offset_units,omitempty"`
	OffsetGranularity float64      `json:"offset_granularity,omitempty"`
	Fragment          bool         `json:"fragment,omitempty"`
	Schema            Schema       `json:"schema"`
	Anchors           []Anchor     `json:"anchors"`
	Annotations       []Annotation `json:"annotations"`
}

// Schema is the serialized layer hierarchy.
type Schema struct {
	ParticipantLayer string  `json:"participant_layer,omitempty"`
	TurnLayer        string  `json:"turn_layer,omitempty"`
	UtteranceLayer   string  `json:"utterance_layer,omitempty"`
	WordLayer        string  `json:"word_layer,omitempty"`
	EpisodeLayer     string  `json:"episode_layer,omitempty"`
	Layers           []Layer `json:"layers"`
}

// Layer is one serialized schema layer.
type Layer struct {
	ID             string `json:"id"`
	ParentID       string `json:"parent_id,omitempty"`
	Description    string `json:"description,omitempty"`
	Alignment      int    `json:"alignment"`
	Peers          bool   `json:"peers,omitempty"`
	PeersOverlap   bool   `json:"peers_overlap,omitempty"`
	ParentIncludes bool   `json:"parent_includes,omitempty"`
	Saturated      bool   `json:"saturated,omitempty"`
	Type           string `json:"type,omitempty"`
}

// Anchor is one serialized anchor. Nil fields are unset.
type Anchor struct {
	ID         string   `json:"id"`
	Offset     *float64 `json:"offset,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
}

// Annotation is one serialized annotation. An empty parent id places it under
// the graph root.
type Annotation struct {
	ID         string `json:"id"`
	Layer      string `json:"layer"`
	Label      string `json:"label"`
	Confidence *int   `json:"confidence,omitempty"`
	Start      string `json:"start"`
	End        string `json:"end"`
	ParentID   string `json:"parent_id,omitempty"`
	Ordinal    int    `json:"ordinal,omitempty"`
}

// FromGraph builds the document for g.
func FromGraph(g *ag.Graph) Document {
	s := g.Schema()
	doc := Document{
		ID:                g.ID(),
		OffsetUnits:       g.OffsetUnits,
		OffsetGranularity: g.OffsetGranularity,
		Fragment:          g.Fragment,
		Schema: Schema{
			ParticipantLayer: s.ParticipantLayerID,
			TurnLayer:        s.TurnLayerID,
			UtteranceLayer:   s.UtteranceLayerID,
			WordLayer:        s.WordLayerID,
			EpisodeLayer:     s.EpisodeLayerID,
		},
		Anchors:     []Anchor{},
		Annotations: []Annotation{},
	}
	for _, l := range s.Layers() {
		if l.ID == ag.RootLayerID {
			continue
		}
		doc.Schema.Layers = append(doc.Schema.Layers, Layer{
			ID:             l.ID,
			ParentID:       l.ParentID,
			Description:    l.Description,
			Alignment:      int(l.Alignment),
			Peers:          l.Peers,
			PeersOverlap:   l.PeersOverlap,
			ParentIncludes: l.ParentIncludes,
			Saturated:      l.Saturated,
			Type:           l.Type,
		})
	}
	for _, a := range g.Anchors() {
		if a.IsDestroyed() {
			continue
		}
		rec := Anchor{ID: a.ID()}
		if offset, ok := a.Offset(); ok {
			rec.Offset = &offset
		}
		if c, ok := a.Confidence(); ok {
			rec.Confidence = &c
		}
		doc.Anchors = append(doc.Anchors, rec)
	}
	for _, layerID := range traversal.LayerIDs(s) {
		for _, an := range g.AnnotationsOn(layerID) {
			rec := Annotation{
				ID:      an.ID(),
				Layer:   an.LayerID(),
				Label:   an.Label(),
				Start:   an.StartID(),
				End:     an.EndID(),
				Ordinal: an.Ordinal(),
			}
			if p := an.Parent(); p != nil && p != g.Root() {
				rec.ParentID = p.ID()
			}
			if c, ok := an.Confidence(); ok {
				rec.Confidence = &c
			}
			doc.Annotations = append(doc.Annotations, rec)
		}
	}
	return doc
}

// Graph builds a graph from the document. Annotations are added parents
// first and, within a parent, in ordinal order, so the loaded ordinals are
// contiguous whatever the document held.
func (d Document) Graph() (*ag.Graph, error) {
	if d.ID == "" {
		return nil, diag.Wrap(diag.ErrFormat, component, "decode", "graph id is required", nil)
	}
	s := ag.NewSchema()
	for _, l := range d.Schema.Layers {
		layer := &ag.Layer{
			ID:             l.ID,
			ParentID:       l.ParentID,
			Description:    l.Description,
			Alignment:      ag.Alignment(l.Alignment),
			Peers:          l.Peers,
			PeersOverlap:   l.PeersOverlap,
			ParentIncludes: l.ParentIncludes,
			Saturated:      l.Saturated,
			Type:           l.Type,
		}
		if err := s.AddLayer(layer); err != nil {
			return nil, diag.Wrap(diag.ErrFormat, component, "decode", "schema", err)
		}
	}
	s.ParticipantLayerID = d.Schema.ParticipantLayer
	s.TurnLayerID = d.Schema.TurnLayer
	s.UtteranceLayerID = d.Schema.UtteranceLayer
	s.WordLayerID = d.Schema.WordLayer
	s.EpisodeLayerID = d.Schema.EpisodeLayer

	g := ag.NewGraph(d.ID, s)
	if d.OffsetUnits != "" {
		g.OffsetUnits = d.OffsetUnits
	}
	g.OffsetGranularity = d.OffsetGranularity
	g.Fragment = d.Fragment

	for _, rec := range d.Anchors {
		a := ag.NewAnchor(rec.ID)
		if rec.Offset != nil {
			a.SetOffset(*rec.Offset)
		}
		if rec.Confidence != nil {
			a.SetConfidence(*rec.Confidence)
		}
		if err := g.AddAnchor(a); err != nil {
			return nil, diag.Wrap(diag.ErrFormat, component, "decode", "anchor", err)
		}
	}

	depth := map[string]int{}
	for _, rec := range d.Annotations {
		if s.Layer(rec.Layer) == nil {
			return nil, diag.Wrap(diag.ErrFormat, component, "decode",
				fmt.Sprintf("annotation %s: unknown layer %q", rec.ID, rec.Layer), nil)
		}
		depth[rec.Layer] = len(s.Ancestors(rec.Layer))
	}
	records := slices.Clone(d.Annotations)
	slices.SortStableFunc(records, func(x, y Annotation) int {
		if c := cmp.Compare(depth[x.Layer], depth[y.Layer]); c != 0 {
			return c
		}
		return cmp.Compare(x.Ordinal, y.Ordinal)
	})
	for _, rec := range records {
		an := ag.NewAnnotation(rec.ID, rec.Layer, rec.Label)
		if rec.Confidence != nil {
			an.SetConfidence(*rec.Confidence)
		}
		if err := g.AddAnnotation(an, rec.Start, rec.End, rec.ParentID, 0); err != nil {
			return nil, diag.Wrap(diag.ErrFormat, component, "decode", "annotation", err)
		}
	}
	g.Commit()
	return g, nil
}

// Marshal encodes g as indented JSON.
func Marshal(g *ag.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a graph from JSON.
func Unmarshal(data []byte) (*ag.Graph, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes g to w as indented JSON.
func Encode(w io.Writer, g *ag.Graph) error {
	if g == nil {
		return diag.Wrap(diag.ErrConfiguration, component, "encode", "no graph", nil)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromGraph(g)); err != nil {
		return diag.Wrap(diag.ErrFormat, component, "encode", g.ID(), err)
	}
	return nil
}

// Decode reads one graph document from r.
func Decode(r io.Reader) (*ag.Graph, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, diag.Wrap(diag.ErrFormat, component, "decode", "invalid graph document", err)
	}
	return doc.Graph()
}
