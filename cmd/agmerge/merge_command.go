package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"agmerge/internal/ag"
	"agmerge/internal/config"
	"agmerge/internal/diag"
	"agmerge/internal/merge"
	"agmerge/internal/transform"
	"agmerge/internal/validate"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var job graphJob
	var (
		ignoreConfidence bool
		noValidate       bool
		maxChunkSize     int
		offsetTolerance  float64
		noChangeLayers   []string
	)

	cmd := &cobra.Command{
		Use:   "merge ORIGINAL EDITED",
		Short: "Fold an edited copy of a graph back into the original",
		Long: `Merge aligns every layer of EDITED against ORIGINAL and applies the
differences to ORIGINAL: created and destroyed annotations, label changes
and anchor moves, subject to the confidence of what is already there.
Either path may be "-" to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job.name = "merge"
			job.input = args[0]
			job.edited = args[1]
			job.build = func(cfg *config.Config, logger *slog.Logger, edited *ag.Graph) (transform.Transformer, error) {
				if edited == nil {
					return nil, diag.Wrap(diag.ErrConfiguration, "merge", "build", "no edited graph", nil)
				}
				opts := merge.DefaultOptions(edited)
				opts.MaxChunkSize = cfg.Merge.MaxChunkSize
				opts.OffsetTolerance = cfg.Merge.OffsetTolerance
				opts.IgnoreConfidence = cfg.Merge.IgnoreConfidence
				opts.NoChangeLayers = cfg.Merge.NoChangeLayers
				if cmd.Flags().Changed("max-chunk-size") {
					opts.MaxChunkSize = maxChunkSize
				}
				if cmd.Flags().Changed("offset-tolerance") {
					opts.OffsetTolerance = offsetTolerance
				}
				if ignoreConfidence {
					opts.IgnoreConfidence = true
				}
				if len(noChangeLayers) > 0 {
					opts.NoChangeLayers = append(append([]string(nil), opts.NoChangeLayers...), noChangeLayers...)
				}
				if opts.MaxChunkSize < 0 || opts.OffsetTolerance < 0 {
					return nil, diag.Wrap(diag.ErrConfiguration, "merge", "build", "chunk size and offset tolerance must not be negative", nil)
				}
				if cfg.Merge.Validate && !noValidate {
					opts.Validator = validate.New(validateOptions(cfg, logger, 0, true))
				}
				opts.Logger = logger
				return merge.New(opts), nil
			}
			return runGraphJob(cmd, ctx, job)
		},
	}

	job.flags.register(cmd)
	cmd.Flags().BoolVar(&ignoreConfidence, "ignore-confidence", false, "Apply every edited label and offset regardless of confidence")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip validation after merging")
	cmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", 0, "Longest sequence aligned in one pass (0 disables chunking)")
	cmd.Flags().Float64Var(&offsetTolerance, "offset-tolerance", 0, "Largest offset difference treated as unchanged")
	cmd.Flags().StringSliceVar(&noChangeLayers, "no-change-layer", nil, "Layer whose annotations are never created or destroyed (repeatable)")
	return cmd
}
