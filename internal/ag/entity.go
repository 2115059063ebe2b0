package ag

// entity holds identity and change state shared by anchors and annotations.
type entity struct {
	graph     *Graph
	id        string
	created   bool
	destroyed bool
	// originals maps a tracked key to its value before the first uncommitted
	// change.
	originals map[string]any
}

// ID returns the identifier.
func (e *entity) ID() string { return e.id }

// Graph returns the owning graph, or nil for detached entities.
func (e *entity) Graph() *Graph { return e.graph }

// IsDestroyed reports whether the entity is marked for removal.
func (e *entity) IsDestroyed() bool { return e.destroyed }

// IsCreated reports whether the entity was created since the last commit.
func (e *entity) IsCreated() bool { return e.created }

// Change returns the pending change state.
func (e *entity) Change() Operation {
	switch {
	case e.destroyed:
		return Destroy
	case e.created:
		return Create
	}
	if len(e.originals) > 0 {
		return Update
	}
	return NoChange
}

func (e *entity) original(key string, current any) (any, bool) {
	if v, ok := e.originals[key]; ok {
		return v, true
	}
	return current, false
}

func (e *entity) update(kind ObjectKind, key string, old, value any) {
	if e.originals == nil {
		e.originals = make(map[string]any)
	}
	if prior, ok := e.originals[key]; !ok {
		e.originals[key] = old
	} else if valuesEqual(prior, value) {
		delete(e.originals, key)
	}
	e.emit(Change{Operation: Update, Kind: kind, ObjectID: e.id, Key: key, Value: value, OldValue: old})
}

func (e *entity) emit(c Change) {
	if e.graph != nil {
		e.graph.emit(c)
	}
}

func (e *entity) commit() {
	e.created = false
	e.originals = nil
}

func optFloat(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func optInt(v int, ok bool) any {
	if !ok {
		return nil
	}
	return v
}
