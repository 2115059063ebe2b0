package agjson

import (
	"encoding/json"
	"io"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/transform"
)

// ChangeRecord is the serialized form of an ag.Change.
type ChangeRecord struct {
	Operation string `json:"operation"`
	Kind      string `json:"kind"`
	ObjectID  string `json:"object_id"`
	Key       string `json:"key,omitempty"`
	Value     any    `json:"value,omitempty"`
	OldValue  any    `json:"old_value,omitempty"`
}

// Report summarizes one transformation of one graph.
type Report struct {
	GraphID     string           `json:"graph_id"`
	Transform   string           `json:"transform"`
	Changes     []ChangeRecord   `json:"changes"`
	Diagnostics diag.Diagnostics `json:"diagnostics"`
}

// Changes converts change records for serialization.
func Changes(changes []ag.Change) []ChangeRecord {
	out := make([]ChangeRecord, 0, len(changes))
	for _, c := range changes {
		out = append(out, ChangeRecord{
			Operation: c.Operation.String(),
			Kind:      string(c.Kind),
			ObjectID:  c.ObjectID,
			Key:       c.Key,
			Value:     c.Value,
			OldValue:  c.OldValue,
		})
	}
	return out
}

// NewReport builds the report for a transform result on graphID.
func NewReport(graphID, name string, r transform.Result) Report {
	return Report{
		GraphID:     graphID,
		Transform:   name,
		Changes:     Changes(r.Changes),
		Diagnostics: r.Diagnostics,
	}
}

// WriteReport writes r as indented JSON.
func WriteReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
