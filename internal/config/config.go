// Package config loads aterm.toml settings and resolves the on-disk layout.
package config

import (
	"path/filepath"
	"strings"
)

// Lock backend names accepted by [locks].
const (
	BackendNone    = "none"
	BackendSysfs   = "sysfs"
	BackendFlock   = "flock"
	BackendCommand = "command"
)

// MaxSerialConsoles bounds [session].serial_consoles.
const MaxSerialConsoles = 8

// Config is the full aterm configuration.
type Config struct {
	Environment EnvironmentConfig `toml:"environment"`
	QEMU        QEMUConfig        `toml:"qemu"`
	Session     SessionConfig     `toml:"session"`
	Locks       LocksConfig       `toml:"locks"`
	Log         LogConfig         `toml:"log"`
}

// EnvironmentConfig describes where installer assets live and how the entry point runs.
type EnvironmentConfig struct {
	// AssetsDir holds environment/data.bin and the auxiliary blobs. Empty means <data>/assets.
	AssetsDir       string   `toml:"assets_dir"`
	Interpreter     string   `toml:"interpreter"`
	BinDir          string   `toml:"bin_dir"`
	SupportedArches []string `toml:"supported_arches"`
}

// QEMUConfig is passed to the entry point as CONFIG_QEMU_* variables.
type QEMUConfig struct {
	RAM          string `toml:"ram"`
	HDD1Path     string `toml:"hdd1_path"`
	HDD2Path     string `toml:"hdd2_path"`
	CDROMPath    string `toml:"cdrom_path"`
	UpstreamDNS  string `toml:"upstream_dns"`
	ExposedPorts string `toml:"exposed_ports"`
}

// SessionConfig controls the console sessions created by the host.
type SessionConfig struct {
	Term            string `toml:"term"`
	Lang            string `toml:"lang"`
	SerialConsoles  int    `toml:"serial_consoles"`
	TranscriptBytes int    `toml:"transcript_bytes"`
}

// LocksConfig selects the wake and network lock backends.
type LocksConfig struct {
	Wake                  string   `toml:"wake"`
	Network               string   `toml:"network"`
	WakeAcquireCommand    []string `toml:"wake_acquire_command"`
	WakeReleaseCommand    []string `toml:"wake_release_command"`
	NetworkAcquireCommand []string `toml:"network_acquire_command"`
	NetworkReleaseCommand []string `toml:"network_release_command"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Environment: EnvironmentConfig{
			Interpreter:     "bash",
			SupportedArches: []string{"arm64"},
		},
		QEMU: QEMUConfig{
			RAM:         "256",
			UpstreamDNS: "1.1.1.1",
		},
		Session: SessionConfig{
			Term:            "xterm-256color",
			Lang:            "en_US.UTF-8",
			SerialConsoles:  4,
			TranscriptBytes: 64 * 1024,
		},
		Locks: LocksConfig{
			Wake:    BackendSysfs,
			Network: BackendFlock,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolve fills values that depend on the data directory layout.
func (c *Config) Resolve(paths Paths) {
	if c.Environment.AssetsDir == "" {
		c.Environment.AssetsDir = paths.AssetsDir
	}
	if c.QEMU.HDD1Path == "" {
		c.QEMU.HDD1Path = filepath.Join(paths.DataDir, "os_snapshot.qcow2")
	}
}

// PortRules splits exposed_ports into trimmed, non-empty rules.
func (q QEMUConfig) PortRules() []string {
	var rules []string
	for _, rule := range strings.Split(q.ExposedPorts, ",") {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rules = append(rules, rule)
		}
	}
	return rules
}
