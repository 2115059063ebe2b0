package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"agmerge/internal/config"
	"agmerge/internal/diag"
	"agmerge/internal/fileutil"
	"agmerge/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		filter  journal.Filter
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded merge, offsets and validate runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *journal.Store) error {
				runs, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), runViews(runs))
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.GraphID, "graph", "", "Only runs on this graph id")
	cmd.Flags().StringVar(&filter.Command, "command", "", "Only runs of this command")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryVerifyCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryVerifyCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Find the recorded run that wrote FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return diag.Wrap(diag.ErrNotFound, "history", "verify", path, err)
				}
				return fmt.Errorf("read %s: %w", path, err)
			}
			digest := fileutil.Digest(data)
			return withStore(ctx, func(store *journal.Store) error {
				run, err := store.FindByDigest(cmd.Context(), digest)
				if err != nil {
					return err
				}
				if run == nil {
					return diag.Wrap(diag.ErrNotFound, "history", "verify",
						fmt.Sprintf("no recorded run wrote %s (digest %s)", path, digest), nil)
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), newRunView(run))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s was written by %s run %s\n", path, run.Command, run.ID)
				fmt.Fprintf(out, "  Graph:    %s\n", run.GraphID)
				fmt.Fprintf(out, "  Input:    %s\n", run.InputPath)
				if run.EditedPath != "" {
					fmt.Fprintf(out, "  Edited:   %s\n", run.EditedPath)
				}
				fmt.Fprintf(out, "  Status:   %s\n", run.Status)
				fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return diag.Wrap(diag.ErrConfiguration, "history", "prune", "--older-than must be positive", nil)
			}
			return withStore(ctx, func(store *journal.Store) error {
				n, err := store.Prune(cmd.Context(), time.Now().UTC().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age beyond which runs are deleted")
	return cmd
}

// withStore opens the journal for a command that needs it. Unlike
// withJournal, failures here are the command's failures.
func withStore(ctx *commandContext, fn func(*journal.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return diag.Wrap(diag.ErrConfiguration, "history", "open", "the run journal is disabled (journal.enabled = false)", nil)
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return diag.Wrap(diag.ErrConfiguration, "history", "open", cfg.Paths.JournalPath, err)
	}
	defer store.Close()
	return fn(store)
}

type runView struct {
	ID           string `json:"id"`
	Command      string `json:"command"`
	GraphID      string `json:"graph_id,omitempty"`
	InputPath    string `json:"input_path,omitempty"`
	EditedPath   string `json:"edited_path,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	OutputDigest string `json:"output_digest,omitempty"`
	Status       string `json:"status"`
	Changes      int    `json:"changes"`
	Errors       int    `json:"errors"`
	Warnings     int    `json:"warnings"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at"`
	DurationMS   int64  `json:"duration_ms"`
}

func newRunView(r *journal.Run) runView {
	return runView{
		ID:           r.ID,
		Command:      r.Command,
		GraphID:      r.GraphID,
		InputPath:    r.InputPath,
		EditedPath:   r.EditedPath,
		OutputPath:   r.OutputPath,
		OutputDigest: r.OutputDigest,
		Status:       string(r.Status),
		Changes:      r.Changes,
		Errors:       r.Errors,
		Warnings:     r.Warnings,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt.Format(time.RFC3339),
		DurationMS:   r.Duration().Milliseconds(),
	}
}

func runViews(runs []*journal.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		views = append(views, newRunView(r))
	}
	return views
}

func renderRunTable(runs []*journal.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Command,
			r.GraphID,
			string(r.Status),
			strconv.Itoa(r.Changes),
			strconv.Itoa(r.Errors),
			strconv.Itoa(r.Warnings),
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"ID", "Command", "Graph", "Status", "Changes", "Errors", "Warnings", "Started", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

