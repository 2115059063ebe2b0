// Package editpath computes weighted minimum edit paths between two
// sequences: the cheapest series of matches, changes, insertions and
// deletions that turns one sequence into the other.
package editpath

import "fmt"

// Operation is the kind of an edit step.
type Operation int

const (
	// None keeps an element unchanged.
	None Operation = iota
	// Change replaces an element.
	Change
	// Insert adds an element of the target sequence.
	Insert
	// Delete removes an element of the source sequence.
	Delete
)

func (o Operation) String() string {
	switch o {
	case None:
		return "none"
	case Change:
		return "change"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Step is one edit in a path. From is the zero value for insertions and To
// is the zero value for deletions.
type Step[T any] struct {
	From      T
	To        T
	FromIndex int
	ToIndex   int
	Operation Operation
	// Distance is the cost of this step alone.
	Distance int
	// Total is the cost of the path up to and including this step.
	Total int

	back *Step[T]
}

// Comparator prices edit steps.
type Comparator[T any] interface {
	// Compare returns None when from and to match, otherwise Change, with
	// the cost of the step.
	Compare(from, to T) (Operation, int)
	DeleteCost(from T) int
	InsertCost(to T) int
}

// ChangePreferrer is implemented by comparators whose matches and changes
// win cost ties against insertions and deletions.
type ChangePreferrer interface {
	PreferChange() bool
}

// Path returns the minimum edit path from one sequence to another. The path
// is computed row by row, keeping two rows of the cost table and a back
// reference from each step to its predecessor.
func Path[T any](from, to []T, cmp Comparator[T]) []Step[T] {
	prev := make([]*Step[T], len(to)+1)
	cur := make([]*Step[T], len(to)+1)
	prefer := false
	if p, ok := cmp.(ChangePreferrer); ok {
		prefer = p.PreferChange()
	}
	for j, t := range to {
		prev[j+1] = link(&Step[T]{To: t, Operation: Insert, Distance: cmp.InsertCost(t)}, prev[j])
	}
	for _, f := range from {
		cur[0] = link(&Step[T]{From: f, Operation: Delete, Distance: cmp.DeleteCost(f)}, prev[0])
		for j, t := range to {
			cur[j+1] = cheapest(f, t, prev[j+1], cur[j], prev[j], cmp, prefer)
		}
		prev, cur = cur, prev
		clear(cur)
	}

	last := prev[len(to)]
	var steps []*Step[T]
	for s := last; s != nil; s = s.back {
		steps = append(steps, s)
	}
	path := make([]Step[T], len(steps))
	fi, ti := max(len(from)-1, 0), max(len(to)-1, 0)
	for i, s := range steps {
		step := *s
		step.back = nil
		switch step.Operation {
		case Delete:
			step.FromIndex, step.ToIndex = fi, ti
			fi--
		case Insert:
			step.FromIndex, step.ToIndex = fi, ti
			ti--
		default:
			step.FromIndex, step.ToIndex = fi, ti
			fi--
			ti--
		}
		fi, ti = max(fi, 0), max(ti, 0)
		path[len(steps)-1-i] = step
	}
	return path
}

// Distance returns the total cost of the minimum edit path.
func Distance[T any](from, to []T, cmp Comparator[T]) int {
	path := Path(from, to, cmp)
	if len(path) == 0 {
		return 0
	}
	return path[len(path)-1].Total
}

func link[T any](s, back *Step[T]) *Step[T] {
	s.back = back
	s.Total = s.Distance
	if back != nil {
		s.Total += back.Total
	}
	return s
}

// cheapest picks among the diagonal edit, an insertion after the step to the
// left in the same row, and a deletion after the step above. Ties prefer
// deletion, then insertion, unless preferChange keeps the diagonal edit.
func cheapest[T any](f, t T, above, left, diagonal *Step[T], cmp Comparator[T], preferChange bool) *Step[T] {
	op, cost := cmp.Compare(f, t)
	diag := link(&Step[T]{From: f, To: t, Operation: op, Distance: cost}, diagonal)
	winner := diag
	insert := link(&Step[T]{To: t, Operation: Insert, Distance: cmp.InsertCost(t)}, left)
	if winner.Total >= insert.Total {
		winner = insert
	}
	del := link(&Step[T]{From: f, Operation: Delete, Distance: cmp.DeleteCost(f)}, above)
	if winner.Total >= del.Total {
		winner = del
	}
	if preferChange && diag.Total <= winner.Total {
		winner = diag
	}
	return winner
}

// Collapse merges each adjacent delete/insert pair into a single change when
// the direct change costs no more than three times the pair. It is used where
// replacing an element is preferable to removing one and adding another.
func Collapse[T any](path []Step[T], cmp Comparator[T]) []Step[T] {
	out := make([]Step[T], 0, len(path))
	for _, step := range path {
		if n := len(out); n > 0 {
			last := &out[n-1]
			switch {
			case last.Operation == Delete && step.Operation == Insert:
				if _, cost := cmp.Compare(last.From, step.To); cost <= 3*(last.Distance+step.Distance) {
					last.Operation = Change
					last.To = step.To
					last.ToIndex = step.ToIndex
					last.Distance += step.Distance
					last.Total = step.Total
					continue
				}
			case last.Operation == Insert && step.Operation == Delete:
				if _, cost := cmp.Compare(step.From, last.To); cost <= 3*(last.Distance+step.Distance) {
					last.Operation = Change
					last.From = step.From
					last.FromIndex = step.FromIndex
					last.Distance += step.Distance
					last.Total = step.Total
					continue
				}
			}
		}
		out = append(out, step)
	}
	return out
}
