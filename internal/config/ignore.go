package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cuire/npmnuke/internal/nodemodules"
)

var ErrIgnoreFileMissing = errors.New("ignore file does not exist")

// LoadIgnoreSet reads the ignore file named by settings. A missing default
// file only logs a warning and yields an empty set.
func LoadIgnoreSet(settings Settings, logger *log.Logger) (nodemodules.IgnoreSet, error) {
	if settings.DisableIgnore || settings.IgnoreFile == "" {
		return nil, nil
	}

	file, err := os.Open(settings.IgnoreFile)

	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to open ignore file: %w", err)
		}

		if settings.IgnoreFileExplicit {
			return nil, fmt.Errorf("%w: %s", ErrIgnoreFileMissing, settings.IgnoreFile)
		}

		logger.Warn("Ignore file does not exist", "path", settings.IgnoreFile)

		return nil, nil
	}

	defer file.Close()

	ignoreSet, err := ParseIgnoreSet(file)

	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", settings.IgnoreFile, err)
	}

	logger.Debug("Using ignore file", "path", settings.IgnoreFile, "names", len(ignoreSet))

	return ignoreSet, nil
}

// ParseIgnoreSet reads one directory name per line. Blank lines and lines
// starting with # are skipped.
func ParseIgnoreSet(reader io.Reader) (nodemodules.IgnoreSet, error) {
	ignoreSet := nodemodules.NewIgnoreSet()
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())

		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}

		ignoreSet[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return ignoreSet, nil
}
