package messages

// Installer and archive messages.
const (
	// InstallProgress is shown while the environment is being unpacked.
	InstallProgress       = "Updating environment..."
	InstallDoneFmt        = "Environment installed at %s\n"
	InstallUpToDateFmt    = "Environment already installed at %s\n"
	InstallSystemRequired = "install system is required"
	InstallAssetsRequired = "install assets are required"

	InstallUnsupportedPlatform    = "unsupported platform"
	InstallUnsupportedPlatformFmt = "device CPU architecture %q is unsupported (supported: %s)"
	InstallExtractionFailed       = "extraction failed"
	InstallPublishFailed          = "publish failed"
	InstallPrepareFailed          = "staging preparation failed"
	InstallErrorFmt               = "%s: %v"

	InstallCreateDataDirFmt   = "failed to create data directory %s: %w"
	InstallStatFmt            = "failed to stat %s: %w"
	InstallRemoveStagingFmt   = "failed to remove stale staging directory %s: %w"
	InstallCreateStagingFmt   = "failed to create staging directory %s: %w"
	InstallOpenAssetFmt       = "failed to open asset %s: %w"
	InstallStatAssetFmt       = "failed to stat asset %s: %w"
	InstallAssetNotRandomFmt  = "asset %s does not support random access"
	InstallPublishFmt         = "unable to rename staging folder %s to %s: %w"
	InstallRemoveFmt          = "unable to delete %s: %w"
	InstallOpenLockFmt        = "open install lock %s: %w"
	InstallLockFmt            = "lock install %s: %w"
	InstallLockTimeoutFmt     = "timed out waiting for install lock after %s"
	InstallAbandoned          = "installation abandoned"
	InstallClearScratchFmt    = "failed to recreate scratch directory %s: %w"
	InstallErrorTitle         = "Installation failed"
	InstallErrorBodyFmt       = "The environment could not be installed:\n\n%v\n\nTry again, or exit and check free storage space."
	InstallChoiceRetry        = "Try again"
	InstallChoiceExit         = "Exit"
	InstallNonInteractiveHint = "re-run `aterm install` to retry from scratch"
	InstallFailedHintFmt      = "%w\n%s"
	InstallPromptRequired     = "install recovery prompt is required"

	// InstallLogStarted and the following are slog messages.
	InstallLogStarted   = "installing environment"
	InstallLogPublished = "environment published"
	InstallLogFailed    = "environment install failed"
	InstallLogRetry     = "retrying environment install"

	// ArchiveOpenFmt formats archive open failures.
	ArchiveOpenFmt           = "open archive: %w"
	ArchiveEntryFailedFmt    = "extract %s: %v"
	ArchiveUnsafePath        = "entry path escapes destination"
	ArchiveContentMismatch   = "content mismatch"
	ArchiveVerifyMismatchFmt = "%w: %s (expected %s, got %s)"
	ArchiveCreateDirFmt      = "create directory %s: %w"
	ArchiveCreateFileFmt     = "create file %s: %w"
	ArchiveReplaceFmt        = "replace existing file %s: %w"
	ArchiveOpenEntryFmt      = "open entry: %w"
	ArchiveCopyFmt           = "copy content: %w"
	ArchiveSyncFmt           = "sync %s: %w"
	ArchiveCloseFmt          = "close %s: %w"
	ArchiveChmodFmt          = "chmod %s: %w"
	ArchiveVerifyOpenFmt     = "reopen %s for verification: %w"
	ArchiveVerifyReadFmt     = "read %s for verification: %w"
)
