package archive

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	name    string
	content string
}

func buildZip(t *testing.T, members ...member) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		if !strings.HasSuffix(m.name, "/") {
			_, err = w.Write([]byte(m.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func extract(t *testing.T, src *bytes.Reader, dest string, opts Options) (Stats, error) {
	t.Helper()
	return Extract(context.Background(), src, src.Size(), dest, opts)
}

func TestExtractWritesEveryEntry(t *testing.T) {
	big := strings.Repeat("0123456789abcdef", 3*bufferSize/16+7)
	src := buildZip(t,
		member{name: "bin/"},
		member{name: "bin/busybox", content: "elf"},
		member{name: "etc/"},
		member{name: "etc/motd", content: "welcome\n"},
		member{name: "usr/share/big.dat", content: big},
	)
	dest := t.TempDir()

	var seen []Entry
	stats, err := extract(t, src, dest, Options{
		Policy:   DefaultPolicy(),
		Progress: func(e Entry) { seen = append(seen, e) },
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Dirs: 2, Files: 3}, stats)
	require.Len(t, seen, 5)
	assert.Equal(t, "bin/", seen[0].Name)
	assert.True(t, seen[0].IsDir)
	assert.Equal(t, "usr/share/big.dat", seen[4].Name)

	got, err := os.ReadFile(filepath.Join(dest, "usr", "share", "big.dat"))
	require.NoError(t, err)
	assert.Equal(t, big, string(got))

	info, err := os.Stat(filepath.Join(dest, "etc", "motd"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o400), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dest, "bin"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fs.FileMode(0o700), info.Mode().Perm())
}

func TestExtractDuplicateNameLastWins(t *testing.T) {
	src := buildZip(t,
		member{name: "etc/motd", content: "old"},
		member{name: "etc/motd", content: "new"},
	)
	dest := t.TempDir()

	stats, err := extract(t, src, dest, Options{Policy: DefaultPolicy()})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)

	target := filepath.Join(dest, "etc", "motd")
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o400), info.Mode().Perm())
}

func TestExtractCreatesMissingParents(t *testing.T) {
	src := buildZip(t, member{name: "a/b/c/file.txt", content: "x"})
	dest := t.TempDir()
	stats, err := extract(t, src, dest, Options{Policy: DefaultPolicy()})
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1}, stats)
	assert.FileExists(t, filepath.Join(dest, "a", "b", "c", "file.txt"))
}

func TestExtractRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../escape.txt", "ok/../../escape.txt", "/etc/passwd"} {
		t.Run(name, func(t *testing.T) {
			src := buildZip(t, member{name: "fine.txt", content: "ok"}, member{name: name, content: "bad"})
			parent := t.TempDir()
			dest := filepath.Join(parent, "root")
			require.NoError(t, os.Mkdir(dest, 0o700))

			stats, err := extract(t, src, dest, Options{Policy: DefaultPolicy()})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsafePath)
			var entryErr *EntryError
			require.ErrorAs(t, err, &entryErr)
			assert.Equal(t, name, entryErr.Entry)
			assert.Equal(t, 1, stats.Files)
			assert.NoFileExists(t, filepath.Join(parent, "escape.txt"))
		})
	}
}

func TestExtractNotAnArchive(t *testing.T) {
	src := bytes.NewReader([]byte("definitely not a zip"))
	_, err := Extract(context.Background(), src, src.Size(), t.TempDir(), Options{Policy: DefaultPolicy()})
	require.Error(t, err)
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Empty(t, entryErr.Entry)
	assert.ErrorIs(t, err, zip.ErrFormat)
}

func TestExtractCancelled(t *testing.T) {
	src := buildZip(t, member{name: "a.txt", content: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, src, src.Size(), t.TempDir(), Options{Policy: DefaultPolicy()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractCreateFileFailure(t *testing.T) {
	orig := openFileFn
	t.Cleanup(func() { openFileFn = orig })
	openFileFn = func(string, int, fs.FileMode) (*os.File, error) { return nil, errors.New("disk full") }

	src := buildZip(t, member{name: "etc/hosts", content: "127.0.0.1 localhost"})
	_, err := extract(t, src, t.TempDir(), Options{Policy: DefaultPolicy()})
	require.Error(t, err)
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "etc/hosts", entryErr.Entry)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExtractDetectsMismatch(t *testing.T) {
	orig := openVerify
	t.Cleanup(func() { openVerify = orig })
	openVerify = func(path string) (*os.File, error) {
		tampered := filepath.Join(filepath.Dir(path), "tampered")
		if err := os.WriteFile(tampered, []byte("other bytes"), 0o600); err != nil {
			return nil, err
		}
		return os.Open(tampered)
	}

	src := buildZip(t, member{name: "etc/motd", content: "welcome"})
	_, err := extract(t, src, t.TempDir(), Options{Policy: DefaultPolicy()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestExtractChmodFailure(t *testing.T) {
	orig := chmodFn
	t.Cleanup(func() { chmodFn = orig })
	chmodFn = func(string, fs.FileMode) error { return errors.New("read-only fs") }

	src := buildZip(t, member{name: "f", content: "x"})
	_, err := extract(t, src, t.TempDir(), Options{Policy: DefaultPolicy()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chmod")
}

func TestCopyBlob(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "entrypoint.bash")
	require.NoError(t, CopyBlob(context.Background(), strings.NewReader("#!/bin/bash\n"), dest, DefaultPolicy().EntryPoint))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o500), info.Mode().Perm())
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\n", string(got))
}

func TestCopyBlobMissingParent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing", "os_image.qcow2")
	err := CopyBlob(context.Background(), strings.NewReader("img"), dest, 0o400)
	require.Error(t, err)
	var entryErr *EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "os_image.qcow2", entryErr.Entry)
}

func TestSafeJoin(t *testing.T) {
	got, err := SafeJoin("/root", "a/./b/../c")
	require.NoError(t, err)
	assert.Equal(t, "/root/a/c", got)

	got, err = SafeJoin("/root", "./")
	require.NoError(t, err)
	assert.Equal(t, "/root", got)

	_, err = SafeJoin("/root", "..")
	assert.ErrorIs(t, err, ErrUnsafePath)

	got, err = SafeJoin("/root", "..hidden")
	require.NoError(t, err)
	assert.Equal(t, "/root/..hidden", got)
}

func TestEntryErrorFormatting(t *testing.T) {
	err := &EntryError{Entry: "bin/sh", Err: errors.New("boom")}
	assert.Equal(t, "extract bin/sh: boom", err.Error())
	assert.Equal(t, "boom", (&EntryError{Err: errors.New("boom")}).Error())
}
