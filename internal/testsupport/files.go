package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"agmerge/internal/ag"
	"agmerge/internal/agjson"
)

// WriteGraph stores g at path, xz-compressed when the name ends in .xz, and
// returns the bytes written.
func WriteGraph(t testing.TB, path string, g *ag.Graph) []byte {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := agjson.WriteFile(path, g)
	if err != nil {
		t.Fatalf("write graph %s: %v", path, err)
	}
	return data
}

// ReadGraph loads the graph stored at path.
func ReadGraph(t testing.TB, path string) *ag.Graph {
	t.Helper()

	g, _, err := agjson.ReadFile(path)
	if err != nil {
		t.Fatalf("read graph %s: %v", path, err)
	}
	return g
}
