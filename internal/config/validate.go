package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateOffsets(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Journal.Enabled && c.Paths.JournalPath == "" {
		return errors.New("paths.journal_path must be set when journal.enabled is true")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.MaxChunkSize < 0 {
		return errors.New("merge.max_chunk_size must be zero (disabled) or positive")
	}
	if c.Merge.MaxChunkSize > 0 && c.Merge.MaxChunkSize < 2 {
		return errors.New("merge.max_chunk_size must be at least 2 when chunking is enabled")
	}
	if c.Merge.OffsetTolerance < 0 {
		return errors.New("merge.offset_tolerance must be non-negative")
	}
	return nil
}

func (c *Config) validateOffsets() error {
	checks := []struct {
		key   string
		value int
	}{
		{"offsets.default_offset_threshold", c.Offsets.DefaultOffsetThreshold},
		{"offsets.default_anchor_confidence", c.Offsets.DefaultAnchorConfidence},
		{"offsets.confidence", c.Offsets.Confidence},
	}
	for _, check := range checks {
		if check.value < 0 || check.value > maxConfidence {
			return fmt.Errorf("%s must be between 0 and %d", check.key, maxConfidence)
		}
	}
	if c.Offsets.DefaultOffsetThreshold >= maxConfidence {
		return fmt.Errorf("offsets.default_offset_threshold must be below %d so sentinels stay in range", maxConfidence)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
