package nodemodules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Target returns the node_modules directory that belongs to parent.
func Target(parent string) string {
	return filepath.Join(parent, NodeModules)
}

// Remove deletes the node_modules directory inside parent. A parent without
// one is an error so stale requests don't look like successes. With dryRun
// the checks still run but nothing is deleted.
//
// A failure part way through leaves whatever was not deleted yet in place.
func Remove(parent string, dryRun bool) error {
	target := Target(parent)

	info, err := os.Lstat(target)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not contain a %s folder", ErrNotFound, parent, NodeModules)
		}

		return fmt.Errorf("cannot access %s: %w", target, err)
	}

	// A file or link that replaced the folder since discovery is left alone
	if !info.IsDir() || info.Mode()&fs.ModeSymlink != 0 {
		return fmt.Errorf("%w: %s is not a %s folder", ErrNotFound, target, NodeModules)
	}

	if dryRun {
		return nil
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing %s: %w", target, err)
	}

	return nil
}
