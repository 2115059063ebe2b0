package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"agmerge/internal/config"
	"agmerge/internal/diag"
	"agmerge/internal/journal"
	"agmerge/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = diag.Wrap(diag.ErrConfiguration, "config", "load", path, err)
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withJournal runs fn against the run journal when it is enabled. A journal
// that cannot be opened is reported and skipped; it never fails a command
// whose graph work succeeded.
func (c *commandContext) withJournal(logger *slog.Logger, fn func(*journal.Store) error) {
	cfg, err := c.ensureConfig()
	if err != nil || !cfg.Journal.Enabled {
		return
	}
	store, err := journal.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run journal unavailable", "journal_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.journal_path or set journal.enabled = false"),
			logging.String(logging.FieldImpact, "this run is not recorded"))
		return
	}
	defer store.Close()
	if err := fn(store); err != nil {
		logging.WarnWithContext(logger, "run journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded"))
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
