// Package config loads, normalizes, and validates agmerge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the AGMERGE_LOG_LEVEL environment
// override. The Config type centralizes the merge, offset generation, logging
// and journal knobs so the CLI discovers them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
