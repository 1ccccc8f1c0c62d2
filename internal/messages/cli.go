package messages

// CLI messages for user-facing commands and prompts.
const (
	// RootUse is the CLI command name.
	RootUse = "aterm"
	// RootShort is the short description for the root command.
	RootShort          = "Alpine Term environment installer and session host"
	RootFlagDataDir    = "Directory holding the environment, status, and control socket (default ~/.local/share/alpine-term)"
	RootFlagConfig     = "Path to config.toml (default <data-dir>/config.toml)"
	RootFlagLogLevel   = "Override log.level (debug, info, warn, error)"
	RootFlagLogFormat  = "Override log.format (text, json)"
	RootEnvDataDir     = "ATERM_DATA_DIR"
	RootDefaultDataDir = "~/.local/share/alpine-term"

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	// InstallUse is the install command name.
	InstallUse   = "install"
	InstallShort = "Unpack the environment into the data directory if it is missing"

	// RunUse is the run command name.
	RunUse          = "run"
	RunShort        = "Install if needed, then start the session host and attach to its consoles"
	RunFlagSandbox  = "Start the QEMU monitor session in sandbox mode"
	RunFlagDetached = "Do not attach the terminal; serve the control socket until stopped"
	RunHelpBanner   = "Attached. Ctrl-A n/p switch console, Ctrl-A l toggle wake lock, Ctrl-A q stop.\r\n"
	RunSwitchedFmt  = "\r\n[%s]\r\n"

	// RunLogSignal and the following are slog messages.
	RunLogSignal         = "signal received"
	RunLogControlStopped = "control socket stopped"

	// CtlUse is the ctl command usage.
	CtlUse     = "ctl <stop|lock-acquire|lock-release>"
	CtlShort   = "Send a command to the running session host"
	CtlSentFmt = "%s: ok\n"

	// StatusUse is the status command name.
	StatusUse   = "status"
	StatusShort = "Show the status published by the running session host"

	// ConfigUse is the config command name.
	ConfigUse           = "config"
	ConfigShort         = "Inspect the aterm configuration"
	ConfigValidateUse   = "validate"
	ConfigValidateShort = "Load config.toml and check paths, QEMU settings, and lock backends"
	ConfigValidOKFmt    = "Config %s is valid\n"
)
