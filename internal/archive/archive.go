// Package archive unpacks the environment archive and copies the auxiliary
// blobs, applying a fixed permission policy and verifying every file written.
package archive

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// bufferSize is the fixed copy buffer; entries are streamed, never loaded whole.
const bufferSize = 16 * 1024

var (
	// ErrUnsafePath reports an entry name that is absolute or escapes the destination.
	ErrUnsafePath = errors.New(messages.ArchiveUnsafePath)
	// ErrContentMismatch reports a written file whose bytes differ from the source stream.
	ErrContentMismatch = errors.New(messages.ArchiveContentMismatch)
)

var (
	openFileFn  = os.OpenFile
	openVerify  = os.Open
	mkdirAllFn  = os.MkdirAll
	chmodFn     = os.Chmod
	newReaderFn = zip.NewReader
)

// Policy is the permission applied to each kind of output.
type Policy struct {
	Dir        fs.FileMode
	File       fs.FileMode
	Blob       fs.FileMode
	EntryPoint fs.FileMode
}

// DefaultPolicy makes the entry point the only executable file.
// Archive files and blobs are owner read-only; directories are owner-only.
func DefaultPolicy() Policy {
	return Policy{
		Dir:        0o700,
		File:       0o400,
		Blob:       0o400,
		EntryPoint: 0o500,
	}
}

// Entry describes one archive member as it is written.
type Entry struct {
	Name  string
	IsDir bool
	Mode  fs.FileMode
}

// Stats counts what Extract wrote.
type Stats struct {
	Dirs  int
	Files int
}

// Options tunes Extract.
type Options struct {
	Policy Policy
	// Progress, when set, is called after each entry is written.
	Progress func(Entry)
}

// EntryError is returned for any failure while writing a single entry.
// Entry is empty when the archive itself could not be read.
type EntryError struct {
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Entry == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf(messages.ArchiveEntryFailedFmt, e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// SafeJoin resolves an archive member name under root.
// Absolute names and names that climb out of root return ErrUnsafePath.
func SafeJoin(root, name string) (string, error) {
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", ErrUnsafePath
	}
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return filepath.Join(root, cleaned), nil
}

// Extract writes every member of the zip archive in src under destRoot, in archive order.
// Names ending in "/" become directories; everything else becomes a regular file with
// policy.File applied after its content is written and verified. The first failure stops
// extraction and leaves partial output for the caller to remove.
func Extract(ctx context.Context, src io.ReaderAt, size int64, destRoot string, opts Options) (Stats, error) {
	var stats Stats
	zr, err := newReaderFn(src, size)
	if zr == nil {
		return stats, &EntryError{Err: fmt.Errorf(messages.ArchiveOpenFmt, err)}
	}
	// A usable reader returned with an error only flags insecure names; SafeJoin rejects those per entry.

	buf := make([]byte, bufferSize)
	for _, member := range zr.File {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		target, err := SafeJoin(destRoot, member.Name)
		if err != nil {
			return stats, &EntryError{Entry: member.Name, Err: err}
		}

		if strings.HasSuffix(member.Name, "/") {
			if err := mkdirAllFn(target, opts.Policy.Dir); err != nil {
				return stats, &EntryError{Entry: member.Name, Err: fmt.Errorf(messages.ArchiveCreateDirFmt, target, err)}
			}
			stats.Dirs++
			progress(opts, Entry{Name: member.Name, IsDir: true, Mode: opts.Policy.Dir})
			continue
		}

		if err := mkdirAllFn(filepath.Dir(target), opts.Policy.Dir); err != nil {
			return stats, &EntryError{Entry: member.Name, Err: fmt.Errorf(messages.ArchiveCreateDirFmt, filepath.Dir(target), err)}
		}
		if err := extractFile(member, target, opts.Policy.File, buf); err != nil {
			return stats, &EntryError{Entry: member.Name, Err: err}
		}
		stats.Files++
		progress(opts, Entry{Name: member.Name, Mode: opts.Policy.File})
	}
	return stats, nil
}

func progress(opts Options, entry Entry) {
	if opts.Progress != nil {
		opts.Progress(entry)
	}
}

func extractFile(member *zip.File, target string, mode fs.FileMode, buf []byte) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf(messages.ArchiveOpenEntryFmt, err)
	}
	defer func() { _ = rc.Close() }()
	return writeVerified(rc, target, mode, buf)
}

// CopyBlob streams r to dest, applies mode, and verifies the written bytes.
// It is used for the fixed files that sit beside the archive.
func CopyBlob(ctx context.Context, r io.Reader, dest string, mode fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeVerified(r, dest, mode, make([]byte, bufferSize)); err != nil {
		return &EntryError{Entry: filepath.Base(dest), Err: err}
	}
	return nil
}

// writeVerified copies r into a fresh file at dest while hashing the stream,
// closes it, applies mode, then re-reads the file and compares digests.
func writeVerified(r io.Reader, dest string, mode fs.FileMode, buf []byte) error {
	// A repeated name replaces the earlier copy, which may already be read-only.
	if info, err := os.Lstat(dest); err == nil && !info.IsDir() {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf(messages.ArchiveReplaceFmt, dest, err)
		}
	}
	out, err := openFileFn(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf(messages.ArchiveCreateFileFmt, dest, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = out.Close()
		}
	}()

	hasher := blake3.New()
	// Hide ReadFrom so the copy goes through buf rather than a larger internal buffer.
	if _, err := io.CopyBuffer(struct{ io.Writer }{out}, io.TeeReader(r, hasher), buf); err != nil {
		return fmt.Errorf(messages.ArchiveCopyFmt, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf(messages.ArchiveSyncFmt, dest, err)
	}
	closed = true
	if err := out.Close(); err != nil {
		return fmt.Errorf(messages.ArchiveCloseFmt, dest, err)
	}
	if err := chmodFn(dest, mode); err != nil {
		return fmt.Errorf(messages.ArchiveChmodFmt, dest, err)
	}
	return verify(dest, hasher.Sum(nil), buf)
}

func verify(path string, want []byte, buf []byte) error {
	f, err := openVerify(path)
	if err != nil {
		return fmt.Errorf(messages.ArchiveVerifyOpenFmt, path, err)
	}
	defer func() { _ = f.Close() }()

	hasher := blake3.New()
	if _, err := io.CopyBuffer(hasher, struct{ io.Reader }{f}, buf); err != nil {
		return fmt.Errorf(messages.ArchiveVerifyReadFmt, path, err)
	}
	got := hasher.Sum(nil)
	if !bytes.Equal(want, got) {
		return fmt.Errorf(messages.ArchiveVerifyMismatchFmt, ErrContentMismatch, path, hex.EncodeToString(want), hex.EncodeToString(got))
	}
	return nil
}
