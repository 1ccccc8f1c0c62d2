package install

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// ClearScratch deletes and recreates dir, the environment's tmp directory.
// A missing dir is left missing so an uninstalled root stays absent.
// Callers treat failure as non-fatal.
func ClearScratch(sys System, dir string) error {
	if _, err := sys.Lstat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(messages.InstallStatFmt, dir, err)
	}
	if err := sys.RemoveTree(dir); err != nil {
		return fmt.Errorf(messages.InstallRemoveFmt, dir, err)
	}
	if err := sys.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf(messages.InstallClearScratchFmt, dir, err)
	}
	return nil
}
