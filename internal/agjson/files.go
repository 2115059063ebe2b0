package agjson

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"agmerge/internal/ag"
	"agmerge/internal/diag"
	"agmerge/internal/fileutil"
)

// CompressedSuffix marks graph files stored xz-compressed.
const CompressedSuffix = ".xz"

// Compressed reports whether path names an xz-compressed graph file.
func Compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedSuffix)
}

// ReadFile loads a graph from path, decompressing it when the name ends in
// CompressedSuffix. It also returns the raw file bytes for digesting.
func ReadFile(path string) (*ag.Graph, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, diag.Wrap(diag.ErrNotFound, component, "read", path, err)
		}
		return nil, nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	var r io.Reader = bytes.NewReader(raw)
	if Compressed(path) {
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, diag.Wrap(diag.ErrFormat, component, "read", path, err)
		}
		r = zr
	}
	g, err := Decode(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, raw, nil
}

// EncodeFile returns the bytes WriteFile would store for g at path.
func EncodeFile(path string, g *ag.Graph) ([]byte, error) {
	data, err := Marshal(g)
	if err != nil {
		return nil, err
	}
	if !Compressed(path) {
		return data, nil
	}
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("compress graph: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress graph: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with g and returns the bytes written.
func WriteFile(path string, g *ag.Graph) ([]byte, error) {
	data, err := EncodeFile(path, g)
	if err != nil {
		return nil, err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write graph %s: %w", path, err)
	}
	return data, nil
}
