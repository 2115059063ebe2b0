package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/flock"

	"agmerge/internal/ag"
	"agmerge/internal/agjson"
	"agmerge/internal/config"
	"agmerge/internal/diag"
)

// stdio names stdin or stdout in place of a file path.
const stdio = "-"

// readGraph loads a graph from path, or from in when path is "-". The raw
// bytes are returned for the journal digest.
func readGraph(path string, in io.Reader) (*ag.Graph, []byte, error) {
	path = strings.TrimSpace(path)
	if path == stdio {
		raw, err := io.ReadAll(in)
		if err != nil {
			return nil, nil, fmt.Errorf("read graph from stdin: %w", err)
		}
		g, err := agjson.Unmarshal(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("stdin: %w", err)
		}
		return g, raw, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, nil, err
	}
	return agjson.ReadFile(expanded)
}

// writeGraph stores g at path, or writes it to out when path is "-".
func writeGraph(path string, g *ag.Graph, out io.Writer) ([]byte, error) {
	if path == stdio {
		data, err := agjson.Marshal(g)
		if err != nil {
			return nil, err
		}
		if _, err := out.Write(data); err != nil {
			return nil, fmt.Errorf("write graph to stdout: %w", err)
		}
		return data, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return agjson.WriteFile(expanded, g)
}

// lockGraph takes an exclusive lock beside path so concurrent in-place runs
// on one file cannot interleave. The returned function releases it.
func lockGraph(path string) (func(), error) {
	if path == stdio {
		return nil, diag.Wrap(diag.ErrConfiguration, "cli", "lock", "stdin cannot be rewritten in place", nil)
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	lock := flock.New(expanded + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock on %s: %w", expanded, err)
	}
	if !ok {
		return nil, errors.New("another agmerge run is rewriting " + expanded)
	}
	return func() { _ = lock.Unlock() }, nil
}
