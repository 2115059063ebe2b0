// Package traversal walks annotation graphs, either over the annotations
// themselves following live parent/child links, or over the layer schema.
package traversal

import "agmerge/internal/ag"

// AnnotationVisitor receives an annotation and the result so far and returns
// the updated result.
type AnnotationVisitor[R any] func(result R, an *ag.Annotation) R

// AnnotationTraversal visits every annotation of a graph once. Pre runs
// before an annotation's children, Post after them. Annotations the
// hierarchy walk cannot reach, such as those on layers unknown to the schema
// of a fragment, are passed to Except after the walk.
//
// Depth-first order descends through each annotation's children before its
// next peer. Breadth-first order runs Pre on a whole layer, then walks the
// child layers, then runs Post on the layer.
type AnnotationTraversal[R any] struct {
	Pre    AnnotationVisitor[R]
	Post   AnnotationVisitor[R]
	Except AnnotationVisitor[R]

	BreadthFirst bool
	// IncludeDestroyed also visits annotations marked for destruction.
	IncludeDestroyed bool
}

type annotationWalk[R any] struct {
	t       *AnnotationTraversal[R]
	g       *ag.Graph
	visited map[*ag.Annotation]bool
	result  R
}

// Graph walks every annotation of g and returns the threaded result.
func (t *AnnotationTraversal[R]) Graph(g *ag.Graph, result R) R {
	w := &annotationWalk[R]{t: t, g: g, visited: make(map[*ag.Annotation]bool), result: result}
	for _, layer := range g.Schema().TopLevelLayers() {
		if t.BreadthFirst {
			w.layer(layer)
			continue
		}
		for _, an := range g.Root().Children(layer.ID) {
			w.annotation(an)
		}
	}
	for _, an := range g.Annotations() {
		if w.visited[an] || !w.wanted(an) {
			continue
		}
		w.visited[an] = true
		if t.Except != nil {
			w.result = t.Except(w.result, an)
		}
	}
	return w.result
}

// Annotation walks an and its descendants depth-first.
func (t *AnnotationTraversal[R]) Annotation(an *ag.Annotation, result R) R {
	w := &annotationWalk[R]{t: t, g: an.Graph(), visited: make(map[*ag.Annotation]bool), result: result}
	w.annotation(an)
	return w.result
}

func (w *annotationWalk[R]) wanted(an *ag.Annotation) bool {
	return w.t.IncludeDestroyed || !an.IsDestroyed()
}

func (w *annotationWalk[R]) annotation(an *ag.Annotation) {
	if w.visited[an] || !w.wanted(an) {
		return
	}
	w.visited[an] = true
	if w.t.Pre != nil {
		w.result = w.t.Pre(w.result, an)
	}
	if w.g != nil {
		for _, childLayer := range w.g.Schema().ChildLayers(an.LayerID()) {
			for _, child := range an.Children(childLayer.ID) {
				w.annotation(child)
			}
		}
	}
	if w.t.Post != nil {
		w.result = w.t.Post(w.result, an)
	}
}

func (w *annotationWalk[R]) layer(layer *ag.Layer) {
	annotations := w.g.AllAnnotationsOn(layer.ID)
	for _, an := range annotations {
		if w.visited[an] || !w.wanted(an) {
			continue
		}
		if w.t.Pre != nil {
			w.result = w.t.Pre(w.result, an)
		}
	}
	for _, child := range w.g.Schema().ChildLayers(layer.ID) {
		w.layer(child)
	}
	for _, an := range annotations {
		if w.visited[an] || !w.wanted(an) {
			continue
		}
		w.visited[an] = true
		if w.t.Post != nil {
			w.result = w.t.Post(w.result, an)
		}
	}
}
