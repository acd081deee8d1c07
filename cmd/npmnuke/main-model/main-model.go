package main_model

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cuire/npmnuke/internal"
	"github.com/cuire/npmnuke/internal/pipeline"
	"github.com/cuire/npmnuke/internal/store"
	"golang.design/x/clipboard"
	"golang.org/x/text/message"
)

// Remover is the part of the pipeline the display drives
type Remover interface {
	RequestRemovalByID(id string) error
}

type MainModel struct {
	WindowWidth  int
	WindowHeight int
	Printer      *message.Printer
	Keys         KeyMap
	Help         help.Model
	Spinner      spinner.Model
	Stopwatch    stopwatch.Model

	Store   *store.Store
	Remover Remover

	Root     string
	DryRun   bool
	SkipSize bool

	Cursor int
	Offset int

	Discovering bool
	Found       int
	Elapsed     time.Duration
	Volume      string

	Status      string
	StatusIsErr bool

	Quitting bool
}

type Options struct {
	Store    *store.Store
	Remover  Remover
	Root     string
	DryRun   bool
	SkipSize bool
}

func New(opts Options) MainModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return MainModel{
		Printer:     internal.GetLocalePrinter(),
		Keys:        DefaultKeyMap(),
		Help:        help.New(),
		Spinner:     s,
		Stopwatch:   stopwatch.NewWithInterval(time.Second),
		Store:       opts.Store,
		Remover:     opts.Remover,
		Root:        opts.Root,
		DryRun:      opts.DryRun,
		SkipSize:    opts.SkipSize,
		Discovering: true,
	}
}

// NewSink forwards pipeline events into program as messages. The program
// is looked up on every event so the sink can be created before it.
func NewSink(program func() *tea.Program) pipeline.Sink {
	return pipeline.SinkFunc(func(event pipeline.Event) {
		if p := program(); p != nil {
			p.Send(event)
		}
	})
}

type RemovalRequestedMsg struct {
	ID   string
	Path string
	Err  error
}

type VolumeMsg struct {
	Info internal.VolumeInfo
	Err  error
}

type CopiedMsg struct {
	Path string
	Err  error
}

func RequestRemoval(remover Remover, folder store.Folder) tea.Cmd {
	return func() tea.Msg {
		return RemovalRequestedMsg{ID: folder.ID, Path: folder.Path, Err: remover.RequestRemovalByID(folder.ID)}
	}
}

func FetchVolume(path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		info, err := internal.GetVolumeInfo(ctx, path)

		return VolumeMsg{Info: info, Err: err}
	}
}

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

func CopyPath(path string) tea.Cmd {
	return func() tea.Msg {
		clipboardOnce.Do(func() {
			clipboardErr = clipboard.Init()
		})

		if clipboardErr != nil {
			return CopiedMsg{Path: path, Err: fmt.Errorf("clipboard unavailable: %w", clipboardErr)}
		}

		clipboard.Write(clipboard.FmtText, []byte(path))

		return CopiedMsg{Path: path}
	}
}

// Bell rings the terminal bell. It goes to stderr so it can't interleave
// with a frame being drawn on stdout.
func Bell() tea.Msg {
	_, _ = os.Stderr.WriteString("\a")
	return nil
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.Stopwatch.Init(), FetchVolume(m.Root))
}
