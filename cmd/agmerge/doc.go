// Package main hosts the agmerge CLI entrypoint and command graph.
//
// The Cobra-based command tree reads annotation graphs from JSON files (or
// stdin), runs the merger, the default offset generator or the validator over
// them, writes the result back and reports the changes made. It centralizes
// configuration resolution, logger construction, file locking and the run
// journal so subcommands only describe which transformer to build.
//
// Keep this package lean: graph semantics live in the internal packages and
// are only surfaced here through flags.
package main
