package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agmerge/internal/diag"
	"agmerge/internal/fileutil"
	"agmerge/internal/journal"
	"agmerge/internal/testsupport"
	"agmerge/internal/transform"
)

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	run := journal.NewRun("merge")
	run.GraphID = "g1"
	run.Input("original.json", []byte("original"))
	run.Edited("edited.json", []byte("edited"))
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record running: %v", err)
	}

	run.Output("original.json", []byte("merged"))
	var result transform.Result
	result.Diagnostics.Warnf("merge", "w1", "kept original label")
	run.Finish(result, nil)
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record finished: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected run to be found")
	}
	if got.Status != journal.StatusSucceeded || got.Warnings != 1 || got.Errors != 0 {
		t.Fatalf("outcome: got status=%s warnings=%d errors=%d", got.Status, got.Warnings, got.Errors)
	}
	if got.InputDigest != fileutil.Digest([]byte("original")) {
		t.Fatalf("input digest: got %s", got.InputDigest)
	}
	if got.OutputDigest != fileutil.Digest([]byte("merged")) || got.EditedPath != "edited.json" {
		t.Fatalf("unexpected run: %#v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) || got.FinishedAt.IsZero() {
		t.Fatalf("times: got started=%v finished=%v", got.StartedAt, got.FinishedAt)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get missing: got %v, %v", missing, err)
	}
}

func TestFinishClassifiesOutcome(t *testing.T) {
	cases := []struct {
		name   string
		result transform.Result
		err    error
		want   journal.Status
	}{
		{"clean", transform.Result{}, nil, journal.StatusSucceeded},
		{"diagnosed", transform.Result{Diagnostics: diag.Diagnostics{Errors: []diag.Diagnostic{{Message: "bad"}}}}, nil, journal.StatusDiagnosed},
		{"failed", transform.Result{}, errors.New("boom"), journal.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run := journal.NewRun("validate")
			run.Finish(tc.result, tc.err)
			if run.Status != tc.want {
				t.Fatalf("status: got %s want %s", run.Status, tc.want)
			}
			if (tc.want == journal.StatusSucceeded) != (run.ErrorMessage == "") {
				t.Fatalf("error message: got %q", run.ErrorMessage)
			}
		})
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []struct {
		command string
		graph   string
		offset  time.Duration
	}{
		{"merge", "g1", 0},
		{"offsets", "g1", time.Minute},
		{"merge", "g2", 2 * time.Minute},
		{"merge", "g1", 3 * time.Minute},
	}
	var ids []string
	for _, r := range runs {
		run := journal.NewRun(r.command)
		run.GraphID = r.graph
		run.StartedAt = base.Add(r.offset)
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record: %v", err)
		}
		ids = append(ids, run.ID)
	}

	all, err := store.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].ID != ids[3] || all[3].ID != ids[0] {
		t.Fatalf("expected newest first, got %d runs", len(all))
	}

	merges, err := store.List(ctx, journal.Filter{GraphID: "g1", Command: "merge"})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(merges) != 2 || merges[0].ID != ids[3] || merges[1].ID != ids[0] {
		t.Fatalf("filtered runs: got %d", len(merges))
	}

	limited, err := store.List(ctx, journal.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited runs: got %d want 1", len(limited))
	}

	pruned, err := store.Prune(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("pruned: got %d want 2", pruned)
	}
}

func TestFindByDigest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	run := journal.NewRun("offsets")
	run.Output("out.json", []byte("contents"))
	run.Finish(transform.Result{}, nil)
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}

	found, err := store.FindByDigest(ctx, fileutil.Digest([]byte("contents")))
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if found == nil || found.ID != run.ID {
		t.Fatalf("expected run %s, got %#v", run.ID, found)
	}
	none, err := store.FindByDigest(ctx, fileutil.Digest([]byte("other")))
	if err != nil || none != nil {
		t.Fatalf("FindByDigest unknown: got %v, %v", none, err)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run := journal.NewRun("merge")
	if err := first.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := testsupport.MustOpenJournal(t, cfg)
	got, err := second.Get(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("Get after reopen: got %v, %v", got, err)
	}
}

func TestRecordRequiresCommand(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if err := store.Record(context.Background(), &journal.Run{}); err == nil {
		t.Fatal("expected error for run without command")
	}
}
