package testsupport

import (
	"path/filepath"
	"testing"

	"agmerge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.JournalPath = filepath.Join(base, "journal.db")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNoChangeLayers marks layers the merger must not create or destroy on.
func WithNoChangeLayers(layers ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.NoChangeLayers = append(b.cfg.Merge.NoChangeLayers, layers...)
	}
}

// WithMaxChunkSize overrides the edit path chunk size.
func WithMaxChunkSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.MaxChunkSize = n
	}
}

// WithoutJournal disables the run journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
