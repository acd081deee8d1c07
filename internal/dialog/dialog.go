// Package dialog is the plain text front end: it lists the discovered
// folders with numbers and removes the ones the user picks.
package dialog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/cuire/npmnuke/internal"
	"github.com/cuire/npmnuke/internal/config"
	"github.com/cuire/npmnuke/internal/nodemodules"
	"github.com/cuire/npmnuke/internal/pipeline"
	"github.com/cuire/npmnuke/internal/store"
	"github.com/cuire/npmnuke/internal/version"
)

var (
	ErrAborted      = errors.New("aborted by user")
	errInvalidInput = errors.New("invalid input")
)

const selectAll = "all"

type Options struct {
	Pipeline pipeline.Config
	In       io.Reader
	Out      io.Writer
	Logger   *log.Logger
	// ShowVolume prints the free space of the scanned volume at the end
	ShowVolume bool
}

type failure struct {
	path string
	err  error
}

// countingSink tallies what the pipeline reports while the dialog waits
type countingSink struct {
	pipeline.NopSink

	mu         sync.Mutex
	sized      int
	sizeFailed int
	removed    int
	failures   []failure
}

func (c *countingSink) SizeUpdated(store.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sized++
}

func (c *countingSink) SizeFailed(store.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sizeFailed++
}

func (c *countingSink) Removed(store.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed++
}

func (c *countingSink) RemovalFailed(folder store.Folder, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = append(c.failures, failure{path: folder.Path, err: err})
}

// Run scans, asks which folders to remove and removes them. It returns
// ErrAborted when the input ends or ctx is cancelled at the prompt.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger

	if logger == nil {
		logger = log.Default()
	}

	out := opts.Out
	cfg := opts.Pipeline

	fmt.Fprintln(out, version.Banner(config.AppName))
	fmt.Fprintf(out, "Scanning '%s' for '%s' folders\n", cfg.Root, nodemodules.NodeModules)

	sink := &countingSink{}
	folders := store.New()
	p := pipeline.New(cfg, folders, sink, logger)

	if err := p.Start(ctx); err != nil {
		return err
	}

	defer p.Wait()

	p.WaitDiscovery()

	if ctx.Err() != nil {
		return ErrAborted
	}

	found := folders.Len()
	fmt.Fprintf(out, "Found %d '%s' folders\n", found, nodemodules.NodeModules)

	if found == 0 {
		return nil
	}

	if !cfg.SkipSize {
		logger.Debug("Calculating size", "folders", found)
		p.WaitSizing()

		if ctx.Err() != nil {
			return ErrAborted
		}

		sink.mu.Lock()
		logger.Debug("Sizes calculated", "sized", sink.sized, "failed", sink.sizeFailed)
		sink.mu.Unlock()
	}

	snapshot := folders.Snapshot()

	printListing(out, snapshot, cfg.SkipSize)

	selection, err := prompt(ctx, opts.In, out, len(snapshot))

	if err != nil {
		return err
	}

	for _, index := range selection {
		folder := snapshot[index]

		if err = p.RequestRemoval(folder.Path); errors.Is(err, pipeline.ErrShuttingDown) {
			break
		} else if err != nil {
			fmt.Fprintf(out, "Cannot remove %s: %v\n", folder.Path, err)
		}
	}

	p.Wait()

	logger.Debug("Removal finished", "removed", sink.removed, "failed", len(sink.failures))

	for _, failed := range sink.failures {
		fmt.Fprintf(out, "Failed to remove %s: %v\n", failed.path, failed.err)
	}

	printSummary(ctx, out, folders.Stats(), cfg, opts.ShowVolume, logger)

	return nil
}

func printListing(out io.Writer, folders []store.Folder, skipSize bool) {
	fmt.Fprintln(out, "Which node_modules folders do you want to delete?")
	fmt.Fprintln(out, "Enter a comma separated list of numbers to delete them.")
	fmt.Fprintln(out, "Enter 'all' to delete all folders.")

	for i, folder := range folders {
		switch {
		case skipSize:
			fmt.Fprintf(out, "%d: %s\n", i+1, folder.Path)
		case folder.Sized:
			fmt.Fprintf(out, "%d: %s %s\n", i+1, folder.Path, internal.FormatMegabytes(folder.SizeBytes))
		default:
			fmt.Fprintf(out, "%d: %s n/a\n", i+1, folder.Path)
		}
	}

	fmt.Fprintln(out)
}

// prompt asks until the answer parses. Lines are read on their own
// goroutine so a cancelled ctx is noticed while waiting for input.
func prompt(ctx context.Context, in io.Reader, out io.Writer, count int) ([]int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")

		select {
		case <-ctx.Done():
			return nil, ErrAborted
		case line, ok := <-lines:
			if !ok {
				return nil, ErrAborted
			}

			selection, err := ParseSelection(line, count)

			if err != nil {
				fmt.Fprintln(out, "Invalid input")
				continue
			}

			return selection, nil
		}
	}
}

// ParseSelection turns "all" or a comma separated list of 1-based numbers
// into distinct 0-based indices, in the order given.
func ParseSelection(input string, count int) ([]int, error) {
	input = strings.TrimSpace(input)

	if input == selectAll {
		selection := make([]int, count)

		for i := range selection {
			selection[i] = i
		}

		return selection, nil
	}

	if input == "" {
		return nil, errInvalidInput
	}

	var selection []int

	seen := map[int]bool{}

	for _, part := range strings.Split(input, ",") {
		number, err := strconv.Atoi(strings.TrimSpace(part))

		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", errInvalidInput, part)
		}

		if number < 1 || number > count {
			return nil, fmt.Errorf("%w: %d is out of range", errInvalidInput, number)
		}

		if seen[number] {
			continue
		}

		seen[number] = true
		selection = append(selection, number-1)
	}

	return selection, nil
}

func printSummary(ctx context.Context, out io.Writer, stats store.Stats, cfg pipeline.Config, showVolume bool, logger *log.Logger) {
	style := lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

	fmt.Fprintln(out, style.Render("Cleaned "+internal.FormatMegabytes(stats.RemovedBytes)))

	if !showVolume {
		return
	}

	volume, err := internal.GetVolumeInfo(ctx, cfg.Root)

	if err != nil {
		logger.Debug("Cannot read volume info", "error", err)
		return
	}

	fmt.Fprintf(out, "%s on %s\n", volume, volume.Path)
}
