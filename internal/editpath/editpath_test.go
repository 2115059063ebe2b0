package editpath_test

import (
	"slices"
	"testing"

	"agmerge/internal/editpath"
)

func operations[T any](path []editpath.Step[T]) []editpath.Operation {
	ops := make([]editpath.Operation, len(path))
	for i, s := range path {
		ops[i] = s.Operation
	}
	return ops
}

func TestStringPath(t *testing.T) {
	const (
		none   = editpath.None
		change = editpath.Change
		insert = editpath.Insert
		del    = editpath.Delete
	)
	cases := []struct {
		from, to string
		ops      []editpath.Operation
		total    int
	}{
		{"this", "this", []editpath.Operation{none, none, none, none}, 0},
		{"this", "that", []editpath.Operation{none, none, change, change}, 2},
		{"this", "his", []editpath.Operation{del, none, none, none}, 1},
		{"his", "this", []editpath.Operation{insert, none, none, none}, 1},
		{"", "ab", []editpath.Operation{insert, insert}, 2},
		{"ab", "", []editpath.Operation{del, del}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			path := editpath.StringPath(tc.from, tc.to)
			if got := operations(path); !slices.Equal(got, tc.ops) {
				t.Fatalf("operations: got %v want %v", got, tc.ops)
			}
			if got := path[len(path)-1].Total; got != tc.total {
				t.Fatalf("total: got %d want %d", got, tc.total)
			}
		})
	}
}

func TestStringPathIndices(t *testing.T) {
	path := editpath.StringPath("this", "his")
	want := [][2]int{{0, 0}, {1, 0}, {2, 1}, {3, 2}}
	for i, step := range path {
		if got := [2]int{step.FromIndex, step.ToIndex}; got != want[i] {
			t.Fatalf("step %d indices: got %v want %v", i, got, want[i])
		}
	}
	if path[0].From != 't' || path[1].To != 'h' {
		t.Fatalf("unexpected step contents: %+v", path[:2])
	}
}

func TestEmptyPath(t *testing.T) {
	if path := editpath.StringPath("", ""); len(path) != 0 {
		t.Fatalf("expected empty path, got %v", path)
	}
	if d := editpath.Distance[int](nil, nil, editpath.NewDefaultComparator[int]()); d != 0 {
		t.Fatalf("distance of empty sequences: got %d want 0", d)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		from, to string
		want     int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
		{"naïve", "naive", 1},
	}
	for _, tc := range cases {
		if got := editpath.Levenshtein(tc.from, tc.to); got != tc.want {
			t.Fatalf("Levenshtein(%q, %q): got %d want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

type word struct{ label string }

func TestCollapseJoinsDeleteInsertIntoChange(t *testing.T) {
	cmp := &editpath.DefaultComparator[word]{
		Equal: func(a, b word) bool { return a.label == b.label },
		Costs: editpath.Costs{Insert: 1, Delete: 1, Change: 5},
	}
	from := []word{{"a"}, {"x"}, {"c"}}
	to := []word{{"a"}, {"y"}, {"c"}}

	path := editpath.Path(from, to, cmp)
	if len(path) != 4 {
		t.Fatalf("expected delete and insert around the mismatch, got %v", operations(path))
	}
	collapsed := editpath.Collapse(path, cmp)
	want := []editpath.Operation{editpath.None, editpath.Change, editpath.None}
	if got := operations(collapsed); !slices.Equal(got, want) {
		t.Fatalf("collapsed operations: got %v want %v", got, want)
	}
	mid := collapsed[1]
	if mid.From.label != "x" || mid.To.label != "y" {
		t.Fatalf("collapsed change: got %+v", mid)
	}
	if mid.FromIndex != 1 || mid.ToIndex != 1 {
		t.Fatalf("collapsed indices: got (%d,%d) want (1,1)", mid.FromIndex, mid.ToIndex)
	}
	if mid.Distance != 2 {
		t.Fatalf("collapsed distance: got %d want 2", mid.Distance)
	}
}

func TestCollapseKeepsExpensiveChanges(t *testing.T) {
	cmp := &editpath.DefaultComparator[string]{
		Equal: func(a, b string) bool { return a == b },
		Costs: editpath.Costs{Insert: 1, Delete: 1, Change: 100},
	}
	path := editpath.Path([]string{"a"}, []string{"b"}, cmp)
	collapsed := editpath.Collapse(path, cmp)
	if len(collapsed) != 2 {
		t.Fatalf("expected delete and insert to stay separate, got %v", operations(collapsed))
	}
}

type tieComparator struct {
	*editpath.DefaultComparator[string]
	prefer bool
}

func (c *tieComparator) PreferChange() bool { return c.prefer }

func TestPathTiesBetweenChangeAndReplacement(t *testing.T) {
	tests := []struct {
		name   string
		prefer bool
		want   []editpath.Operation
	}{
		{"default", false, []editpath.Operation{editpath.None, editpath.Insert, editpath.Delete}},
		{"change preferred", true, []editpath.Operation{editpath.None, editpath.Change}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmp := &tieComparator{
				DefaultComparator: &editpath.DefaultComparator[string]{
					Equal: func(a, b string) bool { return a == b },
					Costs: editpath.Costs{Insert: 1, Delete: 1, Change: 2},
				},
				prefer: tc.prefer,
			}
			path := editpath.Path([]string{"the", "wrod"}, []string{"the", "word"}, cmp)
			if got := operations(path); !slices.Equal(got, tc.want) {
				t.Fatalf("operations: got %v want %v", got, tc.want)
			}
			if total := path[len(path)-1].Total; total != 2 {
				t.Fatalf("total: got %d want 2", total)
			}
		})
	}
}
