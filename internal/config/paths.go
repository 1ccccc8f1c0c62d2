package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/conn-castle/alpine-term/internal/messages"
)

var expandFn = homedir.Expand

// Paths holds the resolved on-disk layout rooted at a data directory.
type Paths struct {
	DataDir     string
	Root        string
	Staging     string
	InstallLock string
	NetworkLock string
	AssetsDir   string
	Status      string
	Socket      string
	ConfigPath  string
	SessionEnv  string
}

// DefaultPaths returns the layout for dataDir.
func DefaultPaths(dataDir string) Paths {
	root := filepath.Join(dataDir, "environment")
	return Paths{
		DataDir:     dataDir,
		Root:        root,
		Staging:     root + ".staging",
		InstallLock: root + ".lock",
		NetworkLock: filepath.Join(dataDir, "network.lock"),
		AssetsDir:   filepath.Join(dataDir, "assets"),
		Status:      filepath.Join(dataDir, "status.json"),
		Socket:      filepath.Join(dataDir, "host.sock"),
		ConfigPath:  filepath.Join(dataDir, "config.toml"),
		SessionEnv:  filepath.Join(dataDir, "session.env"),
	}
}

// TmpDir is the scratch directory cleared before the first session.
func (p Paths) TmpDir() string {
	return filepath.Join(p.Root, "tmp")
}

// EntryPoint is the script every session runs.
func (p Paths) EntryPoint() string {
	return filepath.Join(p.Root, "entrypoint.bash")
}

// ResolveDataDir picks the data directory: the explicit flag, then ATERM_DATA_DIR,
// then the default under the home directory. The result is absolute.
func ResolveDataDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		dir = os.Getenv(messages.RootEnvDataDir)
	}
	if dir == "" {
		dir = messages.RootDefaultDataDir
	}
	expanded, err := expandFn(dir)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigResolveDataDirFmt, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigResolveDataDirFmt, err)
	}
	return abs, nil
}

// ExpandPath expands a leading ~ in a configured path. Empty paths stay empty.
func ExpandPath(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	expanded, err := expandFn(value)
	if err != nil {
		return "", fmt.Errorf(messages.ConfigExpandPathFmt, name, err)
	}
	return expanded, nil
}
