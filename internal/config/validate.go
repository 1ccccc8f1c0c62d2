package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

var (
	ipv4Pattern     = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	portRulePattern = regexp.MustCompile(`^(?:tcp|udp):(\d{1,5}):(\d{1,5})$`)
)

var validWakeBackends = map[string]struct{}{
	BackendSysfs:   {},
	BackendCommand: {},
	BackendNone:    {},
}

var validNetworkBackends = map[string]struct{}{
	BackendFlock:   {},
	BackendCommand: {},
	BackendNone:    {},
}

// Validate checks values that do not depend on the filesystem.
func (c *Config) Validate(path string) error {
	if strings.TrimSpace(c.Environment.Interpreter) == "" {
		return fmt.Errorf(messages.ConfigInterpreterRequiredFmt, path)
	}
	if len(c.Environment.SupportedArches) == 0 {
		return fmt.Errorf(messages.ConfigArchesRequiredFmt, path)
	}

	if ram, err := strconv.Atoi(c.QEMU.RAM); err != nil || ram <= 0 {
		return fmt.Errorf(messages.ConfigRAMInvalidFmt, path, c.QEMU.RAM)
	}
	if !ipv4Pattern.MatchString(c.QEMU.UpstreamDNS) {
		return fmt.Errorf(messages.ConfigDNSInvalidFmt, path, c.QEMU.UpstreamDNS)
	}
	for _, rule := range c.QEMU.PortRules() {
		if err := validatePortRule(path, rule); err != nil {
			return err
		}
	}
	for _, p := range []struct{ name, value string }{
		{"qemu.hdd1_path", c.QEMU.HDD1Path},
		{"qemu.hdd2_path", c.QEMU.HDD2Path},
		{"qemu.cdrom_path", c.QEMU.CDROMPath},
	} {
		if p.value != "" && !filepath.IsAbs(p.value) && !strings.HasPrefix(p.value, "~") {
			return fmt.Errorf(messages.ConfigPathNotAbsoluteFmt, path, p.name, p.value)
		}
	}

	if c.Session.SerialConsoles < 0 || c.Session.SerialConsoles > MaxSerialConsoles {
		return fmt.Errorf(messages.ConfigSerialConsolesFmt, path, MaxSerialConsoles, c.Session.SerialConsoles)
	}
	if c.Session.TranscriptBytes <= 0 {
		return fmt.Errorf(messages.ConfigTranscriptBytesFmt, path, c.Session.TranscriptBytes)
	}

	if _, ok := validWakeBackends[c.Locks.Wake]; !ok {
		return fmt.Errorf(messages.ConfigWakeBackendFmt, path, c.Locks.Wake)
	}
	if _, ok := validNetworkBackends[c.Locks.Network]; !ok {
		return fmt.Errorf(messages.ConfigNetworkBackendFmt, path, c.Locks.Network)
	}
	if c.Locks.Wake == BackendCommand {
		if len(c.Locks.WakeAcquireCommand) == 0 {
			return fmt.Errorf(messages.ConfigLockCommandRequiredFmt, path, "locks.wake_acquire_command")
		}
		if len(c.Locks.WakeReleaseCommand) == 0 {
			return fmt.Errorf(messages.ConfigLockCommandRequiredFmt, path, "locks.wake_release_command")
		}
	}
	if c.Locks.Network == BackendCommand {
		if len(c.Locks.NetworkAcquireCommand) == 0 {
			return fmt.Errorf(messages.ConfigLockCommandRequiredFmt, path, "locks.network_acquire_command")
		}
		if len(c.Locks.NetworkReleaseCommand) == 0 {
			return fmt.Errorf(messages.ConfigLockCommandRequiredFmt, path, "locks.network_release_command")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf(messages.ConfigLogLevelFmt, path, c.Log.Level)
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		return fmt.Errorf(messages.ConfigLogFormatFmt, path, c.Log.Format)
	}
	return nil
}

func validatePortRule(path, rule string) error {
	match := portRulePattern.FindStringSubmatch(rule)
	if match == nil {
		return fmt.Errorf(messages.ConfigPortRuleInvalidFmt, path, rule)
	}
	external, _ := strconv.Atoi(match[1])
	internal, _ := strconv.Atoi(match[2])
	if external < 1024 || external > 65535 {
		return fmt.Errorf(messages.ConfigPortExternalRangeFmt, path, rule)
	}
	if internal < 1 || internal > 65535 {
		return fmt.Errorf(messages.ConfigPortInternalRangeFmt, path, rule)
	}
	return nil
}

// ValidatePaths checks the disk image paths against the filesystem.
// hdd1 may not exist yet (the entry point creates the snapshot); hdd2 and the
// cdrom image must already exist and be writable.
func (c *Config) ValidatePaths(path string) error {
	checks := []struct {
		name           string
		value          string
		checkExistence bool
	}{
		{"qemu.hdd1_path", c.QEMU.HDD1Path, false},
		{"qemu.hdd2_path", c.QEMU.HDD2Path, true},
		{"qemu.cdrom_path", c.QEMU.CDROMPath, true},
	}
	for _, check := range checks {
		if err := validateFilePath(path, check.name, check.value, check.checkExistence); err != nil {
			return err
		}
	}
	return nil
}

func validateFilePath(source, name, value string, checkExistence bool) error {
	if value == "" {
		return nil
	}
	if !filepath.IsAbs(value) {
		return fmt.Errorf(messages.ConfigPathNotAbsoluteFmt, source, name, value)
	}
	parent := filepath.Dir(value)
	if !writable(parent) {
		return fmt.Errorf(messages.ConfigPathParentMissingFmt, source, name, parent)
	}
	info, err := os.Stat(value)
	if err == nil && info.IsDir() {
		return fmt.Errorf(messages.ConfigPathIsDirFmt, source, name, value)
	}
	if checkExistence && (err != nil || !writable(value)) {
		return fmt.Errorf(messages.ConfigPathMissingFmt, source, name, value)
	}
	return nil
}

var accessFn = func(path string) error { return unix.Access(path, unix.W_OK) }

func writable(path string) bool {
	return accessFn(path) == nil
}
