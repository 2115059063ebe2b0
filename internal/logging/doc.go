// Package logging assembles structured slog loggers and formatting helpers used
// across agmerge.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so transformers tag log lines with
// graph, layer, and phase fields consistently. The package also provides a
// no-op logger for tests and for components constructed without a logger.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
