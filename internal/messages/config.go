package messages

// Config messages.
const (
	// ConfigMissingFileFmt formats config read failures.
	ConfigMissingFileFmt      = "failed to read config %s: %w"
	ConfigInvalidConfigFmt    = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "config %s contains unrecognized keys: %v"
	ConfigValidationGuidance  = "(see `aterm config validate`)"
	ConfigResolveDataDirFmt   = "resolve data directory: %w"
	ConfigExpandPathFmt       = "expand %s: %w"

	ConfigInterpreterRequiredFmt = "%s: environment.interpreter is required"
	ConfigArchesRequiredFmt      = "%s: environment.supported_arches must list at least one architecture"
	ConfigRAMInvalidFmt          = "%s: qemu.ram must be a positive number of megabytes (got %q)"
	ConfigDNSInvalidFmt          = "%s: qemu.upstream_dns must be an IPv4 address (got %q)"
	ConfigPortRuleInvalidFmt     = "%s: qemu.exposed_ports rule %q must look like tcp:2222:22 or udp:5353:53"
	ConfigPortExternalRangeFmt   = "%s: qemu.exposed_ports rule %q: external port must be between 1024 and 65535"
	ConfigPortInternalRangeFmt   = "%s: qemu.exposed_ports rule %q: internal port must be between 1 and 65535"
	ConfigPathNotAbsoluteFmt     = "%s: %s must be an absolute path (got %q)"
	ConfigPathParentMissingFmt   = "%s: parent directory of %s is not writable: %s"
	ConfigPathIsDirFmt           = "%s: %s must be a file, not a directory: %s"
	ConfigPathMissingFmt         = "%s: %s does not exist or is not writable: %s"
	ConfigSerialConsolesFmt      = "%s: session.serial_consoles must be between 0 and %d (got %d)"
	ConfigTranscriptBytesFmt     = "%s: session.transcript_bytes must be positive (got %d)"
	ConfigWakeBackendFmt         = "%s: locks.wake must be one of sysfs, command, none (got %q)"
	ConfigNetworkBackendFmt      = "%s: locks.network must be one of flock, command, none (got %q)"
	ConfigLockCommandRequiredFmt = "%s: %s is required when the backend is \"command\""
	ConfigLogLevelFmt            = "%s: log.level must be one of debug, info, warn, error (got %q)"
	ConfigLogFormatFmt           = "%s: log.format must be one of text, json (got %q)"
)
