package config

const (
	defaultConfigPath          = "~/.config/agmerge/config.toml"
	defaultLogDir              = "~/.local/share/agmerge/logs"
	defaultJournalPath         = "~/.local/share/agmerge/journal.db"
	defaultMaxChunkSize        = 500
	defaultOffsetTolerance     = 0.0
	defaultOffsetThreshold     = 10
	defaultAnchorConfidence    = 100
	defaultGeneratedConfidence = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	logLevelEnv                = "AGMERGE_LOG_LEVEL"
	maxConfidence              = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			JournalPath: defaultJournalPath,
		},
		Merge: Merge{
			MaxChunkSize:    defaultMaxChunkSize,
			OffsetTolerance: defaultOffsetTolerance,
			Validate:        true,
		},
		Offsets: Offsets{
			DefaultOffsetThreshold:  defaultOffsetThreshold,
			DefaultAnchorConfidence: defaultAnchorConfidence,
			Confidence:              defaultGeneratedConfidence,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Journal: Journal{
			Enabled: true,
		},
	}
}
