// Package journal records merge, offset and validation runs in SQLite.
//
// Each run stores the command, the graph id, the files involved with their
// BLAKE3 digests, the change and diagnostic counts and the outcome, so a user
// can see what touched a transcript and verify that a file on disk is the one
// a run produced. Graphs themselves are never stored.
//
// The database is an append-only log. Schema changes bump the version in
// schema.go; users delete the journal to adopt the new schema.
package journal
