package messages

// Session host, registry, lock, and notification messages.
const (
	// HostTitle is the status surface title.
	HostTitle                = "Alpine Term"
	HostRunningText          = "Virtual machine is running."
	HostNotInitializedText   = "Virtual machine is not initialized."
	HostLockHeldSuffix       = " Wake lock held."
	HostActionExit           = "Exit"
	HostActionLock           = "Acquire wakelock"
	HostActionUnlock         = "Release wakelock"
	HostIconExit             = "delete"
	HostIconLock             = "lock"
	HostIconUnlock           = "lock-idle"
	HostMonitorSessionName   = "QEMU Monitor"
	HostSerialSessionFmt     = "/dev/ttyS%d"
	HostTerminated           = "session host terminated"
	HostUnknownCommandFmt    = "unknown command %q (expected one of: %s)"
	HostControlListenFmt     = "listen on control socket %s: %w"
	HostControlRemoveFmt     = "remove stale control socket %s: %w"
	HostControlDialFmt       = "connect to session host at %s: %w"
	HostControlWriteFmt      = "send command %s: %w"
	HostControlReadFmt       = "read reply for %s: %w"
	HostControlRejectedFmt   = "session host rejected %s: %s"
	HostControlReplyOK       = "ok"
	HostControlReplyErrFmt   = "error: %v"
	HostLaunchFailedFmt      = "launch %s session: %w"
	HostLoadSessionEnvFmt    = "load session environment %s: %w"
	HostStatusFormatFmt      = "%s [%s] %s\n"
	HostStatusActionsFmt     = "  actions: %s\n"
	HostStatusUnavailableFmt = "no status published at %s (is the session host running?)"
	HostStatusReadFmt        = "read status %s: %w"
	HostStatusDecodeFmt      = "decode status %s: %w"
	HostStatusEncodeFmt      = "encode status: %w"
	HostStatusWriteFmt       = "write status %s: %w"

	// HostLogTerminating and the following are slog messages.
	HostLogTerminating    = "session host terminating"
	HostLogCommandFailed  = "host command failed"
	HostLogUnknownCommand = "unknown control command"

	// NotifyNoStatus indicates the status file does not exist.
	NotifyNoStatus           = "no status published"
	NotifyPriorityInvalidFmt = "invalid priority %q"
	NotifyLogPublishFailed   = "status publish failed"
	NotifyLogClearFailed     = "status clear failed"

	// RegistryNotFound indicates a session handle is not registered.
	RegistryNotFound    = "session not found"
	RegistryNotFoundFmt = "%w: %s"

	// RegistryLogCreated and the following are slog messages.
	RegistryLogCreated       = "session created"
	RegistryLogRemoved       = "session removed"
	RegistryLogFinished      = "session finished"
	RegistryLogSpawnFailed   = "session process failed to start"
	RegistryLogScratchFailed = "failed to clear scratch directory"

	// SessionSpawnFailed indicates the session process could not be started.
	SessionSpawnFailed     = "process spawn failed"
	SessionSpawnFailedFmt  = "%w: %s: %w"
	SessionNotRunning      = "session is not running"
	SessionNoExecutable    = "session executable is required"
	SessionWriteFmt        = "write to session %s: %w"
	SessionResizeFmt       = "resize session %s: %w"
	SessionUnnamedTitleFmt = "[%d]"

	// LockNotHeld indicates a resource release without a prior acquire.
	LockNotHeld             = "resource not held"
	LockAcquireFailed       = "lock acquire failed"
	LockAcquireFailedFmt    = "%w: %s: %w"
	LockReleaseFailedFmt    = "release %s: %w"
	LockBusyFmt             = "%s is held by another process"
	LockSysfsWriteFmt       = "write %s: %w"
	LockFlockOpenFmt        = "open %s: %w"
	LockFlockFmt            = "flock %s: %w"
	LockCommandFailedFmt    = "run %s: %w: %s"
	LockCommandEmptyFmt     = "%s command is not configured"
	LockUnknownBackendFmt   = "unknown %s lock backend %q"
	LockWakeResourceName    = "wake lock"
	LockNetworkResourceName = "network lock"
	LockWakeTag             = "alpine-term"

	// LockLogAcquired and the following are slog messages.
	LockLogAcquired       = "wake and network locks acquired"
	LockLogReleased       = "wake and network locks released"
	LockLogAcquireFailed  = "lock acquire failed"
	LockLogReleaseFailed  = "lock release failed"
	LockLogRollbackFailed = "failed to roll back partial lock acquire"
)
