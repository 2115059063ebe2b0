package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"agmerge/internal/ag"
	"agmerge/internal/agjson"
	"agmerge/internal/config"
	"agmerge/internal/diag"
	"agmerge/internal/fileutil"
	"agmerge/internal/journal"
	"agmerge/internal/logging"
	"agmerge/internal/textutil"
	"agmerge/internal/transform"
)

// jobFlags are the output flags shared by every graph command.
type jobFlags struct {
	output  string
	inPlace bool
	backup  bool
	dryRun  bool
	report  string
	strict  bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the result to this file or directory instead of stdout")
	cmd.Flags().BoolVarP(&f.inPlace, "in-place", "i", false, "Rewrite the input graph file")
	cmd.Flags().BoolVar(&f.backup, "backup", false, "Keep a copy of the input before rewriting it in place")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "Report changes without writing the graph")
	cmd.Flags().StringVar(&f.report, "report", reportTable, "Report format: table, json or none")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Exit non-zero when the transform records errors")
}

func (f *jobFlags) check(input string) error {
	if f.inPlace && strings.TrimSpace(f.output) != "" {
		return diag.Wrap(diag.ErrConfiguration, "cli", "flags", "--in-place and --output are mutually exclusive", nil)
	}
	if f.inPlace && input == stdio {
		return diag.Wrap(diag.ErrConfiguration, "cli", "flags", "--in-place needs a graph file, not stdin", nil)
	}
	if f.backup && !f.inPlace {
		return diag.Wrap(diag.ErrConfiguration, "cli", "flags", "--backup only applies with --in-place", nil)
	}
	switch f.report {
	case reportTable, reportJSON, reportNone:
	default:
		return diag.Wrap(diag.ErrConfiguration, "cli", "flags", fmt.Sprintf("unknown report format %q", f.report), nil)
	}
	return nil
}

// buildFunc constructs the transformer for one job. edited is nil for jobs
// that read a single graph.
type buildFunc func(cfg *config.Config, logger *slog.Logger, edited *ag.Graph) (transform.Transformer, error)

type graphJob struct {
	name   string
	input  string
	edited string
	flags  jobFlags
	build  buildFunc
}

// runGraphJob reads the input graph, applies the job's transformer, writes
// the result, journals the run and prints the report.
func runGraphJob(cmd *cobra.Command, ctx *commandContext, job graphJob) error {
	if err := job.flags.check(job.input); err != nil {
		return err
	}
	if job.input == stdio && job.edited == stdio {
		return diag.Wrap(diag.ErrConfiguration, "cli", "flags", "only one graph can be read from stdin", nil)
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	base, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger(base, "cli")

	output := strings.TrimSpace(job.flags.output)
	switch {
	case job.flags.inPlace:
		output = job.input
	case output == "":
		output = stdio
	}

	if job.flags.inPlace && !job.flags.dryRun {
		unlock, err := lockGraph(job.input)
		if err != nil {
			return err
		}
		defer unlock()
	}

	run := journal.NewRun(job.name)
	g, raw, err := readGraph(job.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	run.GraphID = g.ID()
	run.Input(job.input, raw)
	if output, err = resolveOutput(output, job.input, g.ID()); err != nil {
		return err
	}

	var edited *ag.Graph
	if job.edited != "" {
		var editedRaw []byte
		edited, editedRaw, err = readGraph(job.edited, cmd.InOrStdin())
		if err != nil {
			return err
		}
		run.Edited(job.edited, editedRaw)
	}

	t, err := job.build(cfg, base, edited)
	if err != nil {
		return err
	}

	result, err := t.Transform(g)
	if err != nil {
		g.Rollback()
		run.Finish(result, err)
		ctx.withJournal(logger, func(s *journal.Store) error { return s.Record(cmd.Context(), run) })
		return err
	}

	if job.flags.dryRun {
		g.Rollback()
	} else {
		g.Commit()
		if job.flags.backup {
			expanded, err := config.ExpandPath(job.input)
			if err != nil {
				return err
			}
			backup, err := fileutil.Backup(expanded)
			if err != nil {
				return err
			}
			logger.Info("input backed up", logging.String("backup", backup))
		}
		data, err := writeGraph(output, g, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		run.Output(output, data)
	}
	run.Finish(result, nil)
	ctx.withJournal(logger, func(s *journal.Store) error { return s.Record(cmd.Context(), run) })

	reportOut := cmd.OutOrStdout()
	if output == stdio && !job.flags.dryRun {
		reportOut = cmd.ErrOrStderr()
	}
	if err := renderReport(reportOut, job.flags.report, job.name, g.ID(), result); err != nil {
		return err
	}

	if job.flags.strict && result.Diagnostics.HasErrors() {
		return result.Diagnostics.Err()
	}
	return nil
}

// resolveOutput names the file written into an existing directory after the
// graph id, keeping the input's compression.
func resolveOutput(output, input, graphID string) (string, error) {
	if output == stdio {
		return output, nil
	}
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(expanded)
	if err != nil || !info.IsDir() {
		return output, nil
	}
	name := textutil.FileToken(graphID) + ".json"
	if agjson.Compressed(input) {
		name += agjson.CompressedSuffix
	}
	return filepath.Join(expanded, name), nil
}
