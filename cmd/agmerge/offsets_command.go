package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"agmerge/internal/ag"
	"agmerge/internal/config"
	"agmerge/internal/offsets"
	"agmerge/internal/transform"
)

func newOffsetsCommand(ctx *commandContext) *cobra.Command {
	var job graphJob
	var threshold, anchorConfidence, confidence int

	cmd := &cobra.Command{
		Use:   "offsets GRAPH",
		Short: "Interpolate default offsets for unset and untrusted anchors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job.name = "offsets"
			job.input = args[0]
			job.build = func(cfg *config.Config, logger *slog.Logger, _ *ag.Graph) (transform.Transformer, error) {
				opts := offsetsOptions(cfg, logger)
				if cmd.Flags().Changed("threshold") {
					opts.DefaultOffsetThreshold = threshold
				}
				if cmd.Flags().Changed("anchor-confidence") {
					opts.DefaultAnchorConfidence = anchorConfidence
				}
				if cmd.Flags().Changed("confidence") {
					opts.Confidence = confidence
				}
				return offsets.New(opts), nil
			}
			return runGraphJob(cmd, ctx, job)
		},
	}

	job.flags.register(cmd)
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Highest anchor confidence that is recomputed")
	cmd.Flags().IntVar(&anchorConfidence, "anchor-confidence", 0, "Confidence assumed for unrated anchors")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "Confidence stamped on generated offsets")
	return cmd
}
