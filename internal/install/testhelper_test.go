package install

import (
	"bytes"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/alpine-term/internal/archive"
	"github.com/conn-castle/alpine-term/internal/config"
)

// testSystem overrides individual System calls and falls back to RealSystem so
// fixtures under t.TempDir work without explicit mocks.
type testSystem struct {
	RealSystem

	StatFunc       func(name string) (os.FileInfo, error)
	MkdirAllFunc   func(path string, perm os.FileMode) error
	RenameFunc     func(oldpath string, newpath string) error
	RemoveTreeFunc func(path string) error

	renames int
}

func (s *testSystem) Stat(name string) (os.FileInfo, error) {
	if s.StatFunc != nil {
		return s.StatFunc(name)
	}
	return s.RealSystem.Stat(name)
}

func (s *testSystem) MkdirAll(path string, perm os.FileMode) error {
	if s.MkdirAllFunc != nil {
		return s.MkdirAllFunc(path, perm)
	}
	return s.RealSystem.MkdirAll(path, perm)
}

func (s *testSystem) Rename(oldpath string, newpath string) error {
	s.renames++
	if s.RenameFunc != nil {
		return s.RenameFunc(oldpath, newpath)
	}
	return s.RealSystem.Rename(oldpath, newpath)
}

func (s *testSystem) RemoveTree(path string) error {
	if s.RemoveTreeFunc != nil {
		return s.RemoveTreeFunc(path)
	}
	return s.RealSystem.RemoveTree(path)
}

// fixture is an assets directory plus a data directory.
type fixture struct {
	assetsDir string
	paths     config.Paths
	sys       *testSystem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	assets := filepath.Join(base, "assets")
	require.NoError(t, os.MkdirAll(filepath.Join(assets, "environment"), 0o755))

	writeArchive(t, filepath.Join(assets, AssetArchive), map[string]string{
		"bin/":               "",
		"bin/busybox":        "busybox-binary",
		"etc/":               "",
		"etc/alpine-release": "3.20.0\n",
		"share/terminfo/":    "",
	})
	require.NoError(t, os.WriteFile(filepath.Join(assets, AssetImage), []byte("qcow2-image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, AssetCDROM), []byte("iso-image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assets, AssetEntryPoint), []byte("#!/bin/bash\nexec qemu \"$@\"\n"), 0o644))

	return &fixture{
		assetsDir: assets,
		paths:     config.DefaultPaths(filepath.Join(base, "data")),
		sys:       &testSystem{},
	}
}

func writeArchive(t *testing.T, path string, members map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(members)) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func (f *fixture) installer(t *testing.T, arch string) *Installer {
	t.Helper()
	inst, err := New(Options{
		Paths:           f.paths,
		Assets:          os.DirFS(f.assetsDir),
		SupportedArches: []string{"arm64"},
		Arch:            func() string { return arch },
		Policy:          archive.DefaultPolicy(),
		System:          f.sys,
	})
	require.NoError(t, err)
	return inst
}
