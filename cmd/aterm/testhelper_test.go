package main

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/alpine-term/internal/install"
)

// dataDirFixture creates a data directory with a config.toml whose assets
// directory holds a complete, installable environment. The entry point runs
// script under /bin/sh.
func dataDirFixture(t *testing.T, script string) string {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	assets := filepath.Join(base, "assets")
	require.NoError(t, os.MkdirAll(dataDir, 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(assets, "environment"), 0o755))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	members := map[string]string{
		"bin/":               "",
		"etc/":               "",
		"etc/alpine-release": "3.20.0\n",
	}
	for _, name := range slices.Sorted(maps.Keys(members)) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(assets, install.AssetArchive), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, install.AssetImage), []byte("qcow2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, install.AssetCDROM), []byte("iso"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, install.AssetEntryPoint), []byte(script), 0o644))

	writeConfig(t, dataDir, fmt.Sprintf(`[environment]
assets_dir = %q
interpreter = "/bin/sh"
supported_arches = [%q]

[session]
serial_consoles = 2

[locks]
wake = "none"
network = "none"
`, assets, runtime.GOARCH))
	return dataDir
}

func writeConfig(t *testing.T, dataDir string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(content), 0o600))
}

func stubInteractive(t *testing.T, interactive bool) {
	t.Helper()
	orig := isInteractive
	isInteractive = func() bool { return interactive }
	t.Cleanup(func() { isInteractive = orig })
}
