package main

import (
	"log/slog"

	"agmerge/internal/config"
	"agmerge/internal/offsets"
	"agmerge/internal/validate"
)

func offsetsOptions(cfg *config.Config, logger *slog.Logger) offsets.Options {
	return offsets.Options{
		DefaultOffsetThreshold:  cfg.Offsets.DefaultOffsetThreshold,
		DefaultAnchorConfidence: cfg.Offsets.DefaultAnchorConfidence,
		Confidence:              cfg.Offsets.Confidence,
		Logger:                  logger,
	}
}

func validateOptions(cfg *config.Config, logger *slog.Logger, maxLabel int, defaultOffsets bool) validate.Options {
	opts := validate.DefaultOptions()
	opts.MaxLabelLength = maxLabel
	opts.DefaultOffsets = defaultOffsets
	opts.Offsets = offsetsOptions(cfg, logger)
	opts.Logger = logger
	return opts
}
