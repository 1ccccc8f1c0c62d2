// Package install publishes the environment root atomically: everything is
// written into a staging directory that is renamed into place only once complete.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/conn-castle/alpine-term/internal/archive"
	"github.com/conn-castle/alpine-term/internal/config"
	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// Asset names inside the assets directory.
const (
	AssetArchive    = "environment/data.bin"
	AssetImage      = "environment/os_image.qcow2"
	AssetCDROM      = "environment/os_cdrom.iso"
	AssetEntryPoint = "environment/entrypoint.bash"
)

// Options configures an Installer.
type Options struct {
	Paths           config.Paths
	Assets          fs.FS
	SupportedArches []string
	// Arch reports the device architecture. Defaults to runtime.GOARCH.
	Arch     func() string
	Policy   archive.Policy
	System   System
	Logger   *slog.Logger
	Progress func(archive.Entry)
}

// Installer installs the environment root described by Options.
type Installer struct {
	paths     config.Paths
	assets    fs.FS
	supported []string
	arch      func() string
	policy    archive.Policy
	sys       System
	logger    *slog.Logger
	progress  func(archive.Entry)
}

// New validates opts and returns an Installer.
func New(opts Options) (*Installer, error) {
	if opts.System == nil {
		return nil, errors.New(messages.InstallSystemRequired)
	}
	if opts.Assets == nil {
		return nil, errors.New(messages.InstallAssetsRequired)
	}
	arch := opts.Arch
	if arch == nil {
		arch = func() string { return runtime.GOARCH }
	}
	return &Installer{
		paths:     opts.Paths,
		assets:    opts.Assets,
		supported: slices.Clone(opts.SupportedArches),
		arch:      arch,
		policy:    opts.Policy,
		sys:       opts.System,
		logger:    logging.OrDiscard(opts.Logger),
		progress:  opts.Progress,
	}, nil
}

// CheckPlatform reports UnsupportedPlatform without touching the disk.
func (i *Installer) CheckPlatform() error {
	arch := i.arch()
	if slices.Contains(i.supported, arch) {
		return nil
	}
	return &Error{
		Kind: KindUnsupportedPlatform,
		Err:  fmt.Errorf(messages.InstallUnsupportedPlatformFmt, arch, strings.Join(i.supported, ", ")),
	}
}

// Installed reports whether the installation root exists as a directory.
func (i *Installer) Installed() bool {
	info, err := i.sys.Stat(i.paths.Root)
	return err == nil && info.IsDir()
}

// EnsureInstalled makes sure the installation root exists and is complete.
// It returns true when this call published a new root and false when the root
// was already present. On failure the root is untouched and the error is an *Error.
func (i *Installer) EnsureInstalled(ctx context.Context) (bool, error) {
	if err := i.CheckPlatform(); err != nil {
		return false, err
	}
	if i.Installed() {
		return false, nil
	}

	if err := i.sys.MkdirAll(i.paths.DataDir, 0o700); err != nil {
		return false, &Error{Kind: KindPrepareFailed, Err: fmt.Errorf(messages.InstallCreateDataDirFmt, i.paths.DataDir, err)}
	}
	lock, err := acquireFileLock(i.paths.InstallLock)
	if err != nil {
		return false, &Error{Kind: KindPrepareFailed, Err: err}
	}
	defer func() { _ = lock.release() }()

	// Another process may have published while we waited for the lock.
	if i.Installed() {
		return false, nil
	}

	i.logger.Info(messages.InstallLogStarted, "root", i.paths.Root, "staging", i.paths.Staging)
	if err := i.stage(ctx); err != nil {
		i.logger.Error(messages.InstallLogFailed, "error", err)
		return false, err
	}
	if err := i.sys.Rename(i.paths.Staging, i.paths.Root); err != nil {
		err = &Error{Kind: KindPublishFailed, Err: fmt.Errorf(messages.InstallPublishFmt, i.paths.Staging, i.paths.Root, err)}
		i.logger.Error(messages.InstallLogFailed, "error", err)
		return false, err
	}
	i.logger.Info(messages.InstallLogPublished, "root", i.paths.Root)
	return true, nil
}

// stage rebuilds the staging directory from scratch.
func (i *Installer) stage(ctx context.Context) error {
	staging := i.paths.Staging
	if err := i.sys.RemoveTree(staging); err != nil {
		return &Error{Kind: KindPrepareFailed, Err: fmt.Errorf(messages.InstallRemoveStagingFmt, staging, err)}
	}
	if err := i.sys.MkdirAll(staging, i.policy.Dir); err != nil {
		return &Error{Kind: KindPrepareFailed, Err: fmt.Errorf(messages.InstallCreateStagingFmt, staging, err)}
	}

	if err := i.extractArchive(ctx, staging); err != nil {
		return err
	}

	blobs := []struct {
		asset string
		mode  fs.FileMode
	}{
		{AssetImage, i.policy.Blob},
		{AssetCDROM, i.policy.Blob},
		{AssetEntryPoint, i.policy.EntryPoint},
	}
	for _, blob := range blobs {
		if err := i.copyBlob(ctx, blob.asset, filepath.Join(staging, filepath.Base(blob.asset)), blob.mode); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) extractArchive(ctx context.Context, staging string) error {
	f, err := i.assets.Open(AssetArchive)
	if err != nil {
		return extractionError(AssetArchive, fmt.Errorf(messages.InstallOpenAssetFmt, AssetArchive, err))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return extractionError(AssetArchive, fmt.Errorf(messages.InstallStatAssetFmt, AssetArchive, err))
	}
	ra, ok := f.(io.ReaderAt)
	if !ok {
		return extractionError(AssetArchive, fmt.Errorf(messages.InstallAssetNotRandomFmt, AssetArchive))
	}

	_, err = archive.Extract(ctx, ra, info.Size(), staging, archive.Options{
		Policy:   i.policy,
		Progress: i.progress,
	})
	if err != nil {
		entry := AssetArchive
		var entryErr *archive.EntryError
		if errors.As(err, &entryErr) && entryErr.Entry != "" {
			entry = entryErr.Entry
		}
		return extractionError(entry, err)
	}
	return nil
}

func (i *Installer) copyBlob(ctx context.Context, asset string, dest string, mode fs.FileMode) error {
	f, err := i.assets.Open(asset)
	if err != nil {
		return extractionError(asset, fmt.Errorf(messages.InstallOpenAssetFmt, asset, err))
	}
	defer func() { _ = f.Close() }()
	if err := archive.CopyBlob(ctx, f, dest, mode); err != nil {
		return extractionError(asset, err)
	}
	if i.progress != nil {
		i.progress(archive.Entry{Name: filepath.Base(dest), Mode: mode})
	}
	return nil
}

func extractionError(entry string, err error) error {
	return &Error{Kind: KindExtractionFailed, Entry: entry, Err: err}
}
