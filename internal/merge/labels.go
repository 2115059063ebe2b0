package merge

import (
	"agmerge/internal/ag"
	"agmerge/internal/logging"
)

// labelDeltas copies edited labels onto their originals unless the original
// label is more confident than the edit.
func (r *run) labelDeltas(layer *ag.Layer) {
	for _, an := range r.graph.AnnotationsOn(layer.ID) {
		edited := r.pairs.of(an)
		if edited == nil || edited.Label() == an.Label() {
			continue
		}
		if !r.m.opts.IgnoreConfidence && labelConfidence(edited) < labelConfidence(an) {
			r.logger.Debug("keeping more confident label",
				logging.String(logging.FieldAnnotation, an.ID()),
				logging.String("label", an.Label()),
				logging.String("edited_label", edited.Label()))
			continue
		}
		an.SetLabel(edited.Label())
	}
}
