package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	main_model "github.com/cuire/npmnuke/cmd/npmnuke/main-model"
	"github.com/cuire/npmnuke/internal"
	"github.com/cuire/npmnuke/internal/config"
	"github.com/cuire/npmnuke/internal/dialog"
	"github.com/cuire/npmnuke/internal/pipeline"
	"github.com/cuire/npmnuke/internal/store"
	"github.com/cuire/npmnuke/internal/version"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	cleanedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "npmnuke [directory]",
		Short:         "Find node_modules folders, see how big they are and remove the ones you don't need",
		Args:          cobra.MaximumNArgs(1),
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.SetVersionTemplate(version.String(config.AppName) + "\n")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	directory := "."

	if len(args) > 0 {
		directory = args[0]
	}

	configFile, err := cmd.Flags().GetString(config.FlagConfig)

	if err != nil {
		return err
	}

	settings, err := config.Load(cmd.Flags(), configFile)

	if err != nil {
		return err
	}

	interactive := !settings.NonInteractive && isTerminal(os.Stdout) && isTerminal(os.Stdin)

	logger, closeLog, err := newLogger(settings, interactive)

	if err != nil {
		return err
	}

	defer closeLog()

	if settings.ConfigFile != "" {
		logger.Debug("Using config file", "path", settings.ConfigFile)
	}

	ignoreSet, err := config.LoadIgnoreSet(settings, logger)

	if err != nil {
		return err
	}

	root, err := internal.ResolveScanRoot(directory, settings.GitRoot)

	if err != nil {
		return err
	}

	if absDirectory, _ := filepath.Abs(directory); root != absDirectory {
		logger.Info("Found git repository, scanning from its root", "root", root)
	}

	if settings.IgnoreDot {
		logger.Debug("Ignoring dot folders")
	}

	if settings.DryRun {
		logger.Debug("Dry run enabled")
		fmt.Println(warningStyle.Render("⚠️ Dry run enabled ⚠️"))
	}

	cfg := pipeline.Config{
		Root:     root,
		SkipDot:  settings.IgnoreDot,
		Ignore:   ignoreSet,
		SkipSize: settings.SkipSize,
		DryRun:   settings.DryRun,
		Workers:  settings.Workers,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !interactive {
		err = dialog.Run(ctx, dialog.Options{
			Pipeline:   cfg,
			In:         os.Stdin,
			Out:        os.Stdout,
			Logger:     logger,
			ShowVolume: true,
		})

		if errors.Is(err, dialog.ErrAborted) {
			fmt.Println("\nExiting...")
			return nil
		}

		return err
	}

	return runInteractive(ctx, cfg, logger)
}

func runInteractive(ctx context.Context, cfg pipeline.Config, logger *log.Logger) error {
	folders := store.New()

	var program *tea.Program

	p := pipeline.New(cfg, folders, main_model.NewSink(func() *tea.Program { return program }), logger)
	resolved := p.Config()

	logger.Debug("Starting display", "root", resolved.Root, "workers", resolved.Workers)

	program = tea.NewProgram(main_model.New(main_model.Options{
		Store:    folders,
		Remover:  p,
		Root:     resolved.Root,
		DryRun:   resolved.DryRun,
		SkipSize: resolved.SkipSize,
	}), tea.WithAltScreen())

	if err := p.Start(ctx); err != nil {
		return err
	}

	_, runErr := program.Run()

	p.Shutdown()

	if stats := folders.Stats(); stats.Removing > 0 {
		fmt.Printf("Waiting for %d running removals...\n", stats.Removing)
	}

	p.Wait()

	if runErr != nil {
		return fmt.Errorf("display failed: %w", runErr)
	}

	stats := folders.Stats()
	fmt.Println(cleanedStyle.Render("Cleaned " + internal.FormatMegabytes(stats.RemovedBytes)))

	return nil
}

// newLogger writes to stderr in list mode. The interactive display owns the
// terminal, so there logs go to --log-file or nowhere.
func newLogger(settings config.Settings, interactive bool) (*log.Logger, func(), error) {
	var writer io.Writer = os.Stderr

	if interactive {
		writer = io.Discard
	}

	closeLog := func() {}

	if settings.LogFile != "" {
		file, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)

		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		if interactive {
			writer = file
		} else {
			writer = io.MultiWriter(os.Stderr, file)
		}

		closeLog = func() { _ = file.Close() }
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: settings.LogFile != "",
	})

	if settings.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return logger, closeLog, nil
}

func isTerminal(file *os.File) bool {
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
