package main_model

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cuire/npmnuke/internal/pipeline"
	"github.com/cuire/npmnuke/internal/store"
)

func (m MainModel) Update(untypedMessage tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch typedMessage := untypedMessage.(type) {
	case tea.WindowSizeMsg:
		m.WindowWidth = typedMessage.Width
		m.WindowHeight = typedMessage.Height
		m.Help.Width = typedMessage.Width
		m.keepCursorVisible()
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(typedMessage))
	case pipeline.Event:
		cmds = append(cmds, m.handleEvent(typedMessage))
	case RemovalRequestedMsg:
		if typedMessage.Err != nil {
			m.setError(removalRejection(typedMessage.Err))
			cmds = append(cmds, Bell)
		}
	case VolumeMsg:
		if typedMessage.Err == nil {
			m.Volume = typedMessage.Info.String()
		}
	case CopiedMsg:
		if typedMessage.Err != nil {
			m.setError(typedMessage.Err.Error())
		} else {
			m.setStatus("Copied " + typedMessage.Path)
		}
	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(typedMessage)
		cmds = append(cmds, cmd)
	default:
		m.Stopwatch, cmd = m.Stopwatch.Update(untypedMessage)
		cmds = append(cmds, cmd)
	}

	if m.Quitting {
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m *MainModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	count := m.Store.Len()
	page := m.visibleRows()

	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return nil
	case key.Matches(msg, m.Keys.Up):
		m.moveCursor(-1, count)
	case key.Matches(msg, m.Keys.Down):
		m.moveCursor(1, count)
	case key.Matches(msg, m.Keys.PageUp):
		m.moveCursor(-page, count)
	case key.Matches(msg, m.Keys.PageDown):
		m.moveCursor(page, count)
	case key.Matches(msg, m.Keys.Home):
		m.moveCursor(-count, count)
	case key.Matches(msg, m.Keys.End):
		m.moveCursor(count, count)
	case key.Matches(msg, m.Keys.Remove):
		folder, ok := m.Store.At(m.Cursor)

		if !ok {
			return nil
		}

		return RequestRemoval(m.Remover, folder)
	case key.Matches(msg, m.Keys.Copy):
		folder, ok := m.Store.At(m.Cursor)

		if !ok {
			return nil
		}

		return CopyPath(folder.Path)
	}

	return nil
}

func (m *MainModel) handleEvent(event pipeline.Event) tea.Cmd {
	switch event.Kind {
	case pipeline.EventDiscovered:
		m.Found++
	case pipeline.EventDiscoveryFinished:
		m.Discovering = false
		m.Found = event.Found
		m.Elapsed = event.Elapsed

		return m.Stopwatch.Stop()
	case pipeline.EventRemoved:
		m.setStatus("Removed " + event.Folder.Path)

		return FetchVolume(m.Root)
	case pipeline.EventRemovalFailed:
		m.setError("Failed to remove " + event.Folder.Path + ": " + event.Err.Error())

		return Bell
	}

	return nil
}

func (m *MainModel) moveCursor(delta int, count int) {
	if count == 0 {
		m.Cursor = 0
		return
	}

	m.Cursor = max(0, min(count-1, m.Cursor+delta))
	m.keepCursorVisible()
}

func (m *MainModel) keepCursorVisible() {
	rows := m.visibleRows()

	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}

	if m.Cursor >= m.Offset+rows {
		m.Offset = m.Cursor - rows + 1
	}
}

func (m *MainModel) setStatus(status string) {
	m.Status = status
	m.StatusIsErr = false
}

func (m *MainModel) setError(status string) {
	m.Status = status
	m.StatusIsErr = true
}

func removalRejection(err error) string {
	switch {
	case errors.Is(err, store.ErrAlreadyRemoved):
		return "Already removed"
	case errors.Is(err, store.ErrRemovalInFlight):
		return "Already being removed"
	case errors.Is(err, store.ErrSizePending):
		return "Wait until the size is calculated"
	case errors.Is(err, pipeline.ErrShuttingDown):
		return "Shutting down"
	}

	var invalid *pipeline.InvalidActionError

	if errors.As(err, &invalid) {
		return invalid.Reason.Error()
	}

	return err.Error()
}
