package ag

import (
	"fmt"
	"sort"
)

// Operation classifies a change record.
type Operation int

const (
	NoChange Operation = iota
	Create
	Update
	Destroy
)

func (o Operation) String() string {
	switch o {
	case Create:
		return "create"
	case Update:
		return "update"
	case Destroy:
		return "destroy"
	default:
		return "none"
	}
}

// ObjectKind names the entity type a change applies to.
type ObjectKind string

const (
	KindAnchor     ObjectKind = "anchor"
	KindAnnotation ObjectKind = "annotation"
)

// Change is an immutable record of one entity creation, destruction, or
// attribute modification. Value and OldValue hold offsets as float64, ids and
// labels as string, and ordinals and confidences as int; nil means unset.
type Change struct {
	Operation Operation
	Kind      ObjectKind
	ObjectID  string
	Key       string
	Value     any
	OldValue  any
}

func (c Change) String() string {
	if c.Operation != Update {
		return fmt.Sprintf("%s %s %s", c.Operation, c.Kind, c.ObjectID)
	}
	return fmt.Sprintf("update %s %s: %s = %v (was %v)", c.Kind, c.ObjectID, c.Key, c.Value, c.OldValue)
}

// ChangeListener receives every change emitted by a graph. Implementations
// must be comparable (typically pointers) so they can be detached again.
type ChangeListener interface {
	Accept(Change)
}

type objectChanges struct {
	seq     int
	kind    ObjectKind
	create  *Change
	destroy *Change
	updates map[string]Change
}

// ChangeTracker consolidates changes per object and attribute and forwards
// every received change to its listeners, so a temporary tracker can be layered
// beneath another and removed without disturbing the outer log.
type ChangeTracker struct {
	objects   map[string]*objectChanges
	seq       int
	listeners []ChangeListener
}

// NewChangeTracker returns an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{objects: make(map[string]*objectChanges)}
}

// Accept records c and forwards it to listeners.
func (t *ChangeTracker) Accept(c Change) {
	t.record(c)
	for _, l := range t.listeners {
		l.Accept(c)
	}
}

func (t *ChangeTracker) record(c Change) {
	if c.ObjectID == "" || c.Operation == NoChange {
		return
	}
	obj, ok := t.objects[c.ObjectID]
	if !ok {
		t.seq++
		obj = &objectChanges{seq: t.seq, kind: c.Kind, updates: make(map[string]Change)}
		t.objects[c.ObjectID] = obj
	}
	switch c.Operation {
	case Create:
		cc := c
		obj.create = &cc
		obj.destroy = nil
		clear(obj.updates)
	case Destroy:
		if obj.create != nil {
			// never existed outside this log
			delete(t.objects, c.ObjectID)
			return
		}
		cc := c
		obj.destroy = &cc
	case Update:
		if obj.create != nil {
			return
		}
		if earlier, seen := obj.updates[c.Key]; seen {
			c.OldValue = earlier.OldValue
		}
		if valuesEqual(c.Value, c.OldValue) {
			delete(obj.updates, c.Key)
		} else {
			obj.updates[c.Key] = c
		}
	}
	if obj.create == nil && obj.destroy == nil && len(obj.updates) == 0 {
		delete(t.objects, c.ObjectID)
	}
}

// Reject forgets the recorded change to key on the object with the given id.
func (t *ChangeTracker) Reject(id, key string) {
	obj, ok := t.objects[id]
	if !ok {
		return
	}
	delete(obj.updates, key)
	if obj.create == nil && obj.destroy == nil && len(obj.updates) == 0 {
		delete(t.objects, id)
	}
}

// Change returns the consolidated update of key on the object with the given id.
func (t *ChangeTracker) Change(id, key string) (Change, bool) {
	obj, ok := t.objects[id]
	if !ok {
		return Change{}, false
	}
	c, ok := obj.updates[key]
	return c, ok
}

// ChangesFor lists one object's changes: creation first, then updates ordered
// by key, then destruction.
func (t *ChangeTracker) ChangesFor(id string) []Change {
	obj, ok := t.objects[id]
	if !ok {
		return nil
	}
	return obj.list()
}

func (o *objectChanges) list() []Change {
	var out []Change
	if o.create != nil {
		out = append(out, *o.create)
	}
	keys := make([]string, 0, len(o.updates))
	for k := range o.updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, o.updates[k])
	}
	if o.destroy != nil {
		out = append(out, *o.destroy)
	}
	return out
}

// Changes lists every consolidated change, grouped by object in the order the
// objects were first touched.
func (t *ChangeTracker) Changes() []Change {
	objs := make([]*objectChanges, 0, len(t.objects))
	for _, o := range t.objects {
		objs = append(objs, o)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].seq < objs[j].seq })
	var out []Change
	for _, o := range objs {
		out = append(out, o.list()...)
	}
	return out
}

// HasChanges reports whether any change is recorded.
func (t *ChangeTracker) HasChanges() bool { return len(t.objects) > 0 }

// Reset forgets all recorded changes. Listeners stay attached.
func (t *ChangeTracker) Reset() {
	t.objects = make(map[string]*objectChanges)
	t.seq = 0
}

// AddListener chains l beneath this tracker.
func (t *ChangeTracker) AddListener(l ChangeListener) {
	if l == nil {
		return
	}
	for _, existing := range t.listeners {
		if existing == l {
			return
		}
	}
	t.listeners = append(t.listeners, l)
}

// RemoveListener detaches l.
func (t *ChangeTracker) RemoveListener(l ChangeListener) {
	for i, existing := range t.listeners {
		if existing == l {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}
