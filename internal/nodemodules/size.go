package nodemodules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Megabytes converts a byte count to binary megabytes.
func Megabytes(bytes int64) float64 {
	return float64(bytes) / 1024 / 1024
}

// CalculateSize returns the total apparent size of the regular files below
// dir. Symlinks and junctions are neither counted nor followed. Entries that
// can't be read below dir are skipped.
func CalculateSize(ctx context.Context, dir string) (int64, error) {
	info, err := os.Lstat(dir)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}

		return 0, err
	}

	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrNotFound, dir)
	}

	var totalSize atomic.Int64

	// The callback runs on several goroutines at once
	err = fastwalk.Walk(&fastwalk.Config{Follow: false}, dir, func(path string, dirEntry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if dirEntry.Type()&fs.ModeSymlink != 0 {
			// It's a symlink; ignore it.
			return nil
		}

		if dirEntry.IsDir() {
			if path != dir && isReparsePoint(path) {
				return fs.SkipDir
			}

			return nil
		}

		if !dirEntry.Type().IsRegular() {
			return nil
		}

		fileInfo, err := dirEntry.Info()

		if err != nil {
			// Deleted between listing and stat
			return nil
		}

		totalSize.Add(fileInfo.Size())

		return nil
	})

	if err != nil {
		return 0, err
	}

	return totalSize.Load(), nil
}
