package messages

// System messages for internal operations.
const (
	// EnvfileLineErrorFmt formats envfile line errors.
	EnvfileLineErrorFmt            = "line %d: %w"
	EnvfileReadFailedFmt           = "failed to read env content: %w"
	EnvfileExpectedKeyValue        = "expected KEY=VALUE"
	EnvfileUnterminatedQuotedValue = "unterminated quoted value"
	EnvfileInvalidQuotedSuffix     = "invalid trailing characters after quoted value"
	EnvfileOpenFmt                 = "failed to read env file %s: %w"
	EnvfileInvalidKeyFmt           = "invalid variable name %q"

	// FsutilCreateTempFmt formats atomic write temp file failures.
	FsutilCreateTempFmt = "create temp file for %s: %w"
	FsutilWriteTempFmt  = "write temp file for %s: %w"
	FsutilSyncTempFmt   = "sync temp file for %s: %w"
	FsutilCloseTempFmt  = "close temp file for %s: %w"
	FsutilChmodTempFmt  = "chmod temp file for %s: %w"
	FsutilRenameFmt     = "move temp file into place at %s: %w"

	// LoggingLevelInvalidFmt formats invalid log level errors.
	LoggingLevelInvalidFmt  = "invalid log level %q"
	LoggingFormatInvalidFmt = "invalid log format %q"

	// MainloopClosed indicates the main loop no longer accepts work.
	MainloopClosed = "main loop closed"
)
