package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"agmerge/internal/ag"
	"agmerge/internal/config"
	"agmerge/internal/transform"
	"agmerge/internal/validate"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var job graphJob
	var maxLabel int
	var noOffsets bool

	cmd := &cobra.Command{
		Use:   "validate GRAPH",
		Short: "Check a graph against its schema and repair what can be repaired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job.name = "validate"
			job.input = args[0]
			job.build = func(cfg *config.Config, logger *slog.Logger, _ *ag.Graph) (transform.Transformer, error) {
				return validate.New(validateOptions(cfg, logger, maxLabel, !noOffsets)), nil
			}
			return runGraphJob(cmd, ctx, job)
		},
	}

	job.flags.register(cmd)
	cmd.Flags().IntVar(&maxLabel, "max-label-length", 0, "Truncate labels longer than this many characters (0 keeps them)")
	cmd.Flags().BoolVar(&noOffsets, "no-default-offsets", false, "Leave anchors without offsets unset")
	return cmd
}
