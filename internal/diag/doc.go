// Package diag holds the error taxonomy shared by the transformers and the CLI.
//
// Hard failures are returned as errors tagged with one of the sentinel markers
// via Wrap, so callers can classify them with errors.Is. Recoverable,
// per-element failures and informational policy decisions are accumulated in a
// Diagnostics value returned alongside a successful result.
package diag
