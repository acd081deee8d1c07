// Package nodemodules finds, sizes and removes node_modules directories.
package nodemodules

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// NodeModules is the directory name everything in this package revolves around.
const NodeModules = "node_modules"

// IgnoreSet holds directory names that are skipped wherever they appear.
type IgnoreSet map[string]struct{}

func NewIgnoreSet(names ...string) IgnoreSet {
	set := make(IgnoreSet, len(names))

	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

func (s IgnoreSet) Contains(name string) bool {
	if s == nil {
		return false
	}

	_, ok := s[name]

	return ok
}

type FindOptions struct {
	// SkipDot skips every directory whose name starts with a dot
	SkipDot bool
	Ignore  IgnoreSet
	// FailFast stops the walk at the first unreadable directory and yields its error
	FailFast bool
	Logger   *log.Logger
	// Context stops the walk early when cancelled
	Context context.Context
}

type walker struct {
	ctx    context.Context
	opts   FindOptions
	logger *log.Logger
}

// Find returns a lazy sequence of directories that contain a node_modules
// directory. node_modules directories are never descended into, so nested
// copies are not reported. The root is validated before anything is yielded.
//
// Unreadable directories are logged and skipped unless FailFast is set, in
// which case the error is yielded once and the sequence ends.
func Find(root string, opts FindOptions) (iter.Seq2[string, error], error) {
	info, err := os.Stat(root)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	w := &walker{
		ctx:    opts.Context,
		opts:   opts,
		logger: opts.Logger,
	}

	if w.ctx == nil {
		w.ctx = context.Background()
	}

	if w.logger == nil {
		w.logger = log.Default()
	}

	return func(yield func(string, error) bool) {
		w.walk(root, yield)
	}, nil
}

// walk returns false once iteration has to stop
func (w *walker) walk(dir string, yield func(string, error) bool) bool {
	if w.ctx.Err() != nil {
		return false
	}

	w.logger.Debug("Scanning", "path", dir)

	entries, err := os.ReadDir(dir)

	if err != nil {
		if w.opts.FailFast {
			yield("", &TraversalError{Path: dir, Err: err})
			return false
		}

		// ReadDir hands back whatever it read before failing, keep going with that
		w.logger.Warn("Skipping unreadable directory", "path", dir, "error", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if !traversable(path, entry) {
			continue
		}

		if w.ignored(name) {
			w.logger.Debug("Ignoring", "path", path)
			continue
		}

		if name == NodeModules {
			if !yield(dir, nil) {
				return false
			}

			continue
		}

		if !w.walk(path, yield) {
			return false
		}
	}

	return true
}

func (w *walker) ignored(name string) bool {
	if w.opts.SkipDot && strings.HasPrefix(name, ".") {
		return true
	}

	return w.opts.Ignore.Contains(name)
}

// traversable reports whether entry is a real directory that may be entered.
// Symlinks, junctions and other reparse points never are.
func traversable(path string, entry fs.DirEntry) bool {
	if !entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 {
		return false
	}

	return !isReparsePoint(path)
}
