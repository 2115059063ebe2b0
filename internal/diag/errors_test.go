package diag_test

import (
	"errors"
	"strings"
	"testing"

	"agmerge/internal/diag"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := diag.Wrap(diag.ErrConfiguration, "merger", "setup", "missing layer", base)
	if !errors.Is(err, diag.ErrConfiguration) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merger", "setup", "missing layer"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := diag.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, diag.ErrTransform) {
		t.Fatalf("expected transform marker, got %v", err)
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{diag.Wrap(diag.ErrConfiguration, "cfg", "load", "bad", nil), 2},
		{diag.Wrap(diag.ErrFormat, "agjson", "decode", "bad", nil), 3},
		{errors.New("other"), 1},
	}
	for _, tc := range cases {
		if got := diag.ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v): got %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestDiagnosticsAccumulate(t *testing.T) {
	var d diag.Diagnostics
	if d.Err() != nil || !d.Empty() {
		t.Fatal("expected empty diagnostics")
	}
	d.Warnf("offsets", "turn1", "negative span %g", -0.5)
	var other diag.Diagnostics
	other.Errorf("merger", "word3", "cannot determine bounds")
	d.Merge(other)

	if !d.HasErrors() || len(d.Warnings) != 1 {
		t.Fatalf("unexpected diagnostics: %+v", d)
	}
	err := d.Err()
	if !errors.Is(err, diag.ErrTransform) || !strings.Contains(err.Error(), "word3") {
		t.Fatalf("unexpected folded error: %v", err)
	}
}
