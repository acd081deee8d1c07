package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

var ErrNotInRepository = errors.New("not inside a git work tree")

// GetRepoRoot returns the root of the git work tree that contains path,
// searching parent directories the way git itself does.
func GetRepoRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)

	if err != nil {
		return "", err
	}

	repository, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})

	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotInRepository, absPath)
		}

		return "", err
	}

	worktree, err := repository.Worktree()

	if err != nil {
		// Bare repositories have no work tree
		if errors.Is(err, git.ErrIsBareRepository) {
			return "", fmt.Errorf("%w: %s", ErrNotInRepository, absPath)
		}

		return "", err
	}

	return worktree.Filesystem.Root(), nil
}

// ResolveScanRoot returns the directory to scan. With useGitRoot the
// enclosing work tree root is used when there is one.
func ResolveScanRoot(directory string, useGitRoot bool) (string, error) {
	absPath, err := filepath.Abs(directory)

	if err != nil {
		return "", err
	}

	if !useGitRoot {
		return absPath, nil
	}

	if _, err = os.Stat(absPath); err != nil {
		// Let the walker report the invalid root
		return absPath, nil
	}

	repoRoot, err := GetRepoRoot(absPath)

	if errors.Is(err, ErrNotInRepository) {
		return absPath, nil
	}

	return repoRoot, err
}
