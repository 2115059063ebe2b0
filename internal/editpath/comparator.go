package editpath

// Costs are the fixed prices of the three kinds of edit.
type Costs struct {
	Insert int
	Delete int
	Change int
}

// UnitCosts price every edit at 1, giving the Levenshtein distance.
var UnitCosts = Costs{Insert: 1, Delete: 1, Change: 1}

// DefaultComparator prices edits at fixed costs and matches elements with
// Equal.
type DefaultComparator[T any] struct {
	Equal func(a, b T) bool
	Costs Costs
}

// NewDefaultComparator returns a comparator with unit costs that matches
// elements with ==.
func NewDefaultComparator[T comparable]() *DefaultComparator[T] {
	return &DefaultComparator[T]{
		Equal: func(a, b T) bool { return a == b },
		Costs: UnitCosts,
	}
}

// Compare returns None for equal elements and Change otherwise.
func (c *DefaultComparator[T]) Compare(from, to T) (Operation, int) {
	if c.Equal != nil && c.Equal(from, to) {
		return None, 0
	}
	return Change, c.Costs.Change
}

// DeleteCost returns the fixed deletion cost.
func (c *DefaultComparator[T]) DeleteCost(T) int { return c.Costs.Delete }

// InsertCost returns the fixed insertion cost.
func (c *DefaultComparator[T]) InsertCost(T) int { return c.Costs.Insert }
