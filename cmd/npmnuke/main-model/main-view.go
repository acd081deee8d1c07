package main_model

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cuire/npmnuke/internal"
	"github.com/cuire/npmnuke/internal/store"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"
)

const (
	indentAmount = 1
	sizeColumn   = 14
	// title, stats and a blank line above the list
	headerLines = 3
	// status and help below the list
	footerLines = 2
	// used until the first WindowSizeMsg arrives
	defaultRows = 10
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dryRunStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")).Padding(0, 1)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	sizeCellStyle = lipgloss.NewStyle().Width(sizeColumn).Align(lipgloss.Right)
)

func (m MainModel) View() string {
	if m.Quitting {
		return ""
	}

	width := m.WindowWidth - indentAmount*2

	if width <= 0 {
		width = 80
	}

	var output strings.Builder

	output.WriteString(m.headerView(width))
	output.WriteString("\n\n")
	output.WriteString(m.listView(width))
	output.WriteString("\n")

	if m.Status != "" {
		if m.StatusIsErr {
			output.WriteString(errorStyle.Render(truncate.StringWithTail(m.Status, uint(width), "…")))
		} else {
			output.WriteString(statusStyle.Render(truncate.StringWithTail(m.Status, uint(width), "…")))
		}
	}

	output.WriteString("\n")
	output.WriteString(m.Help.View(m.Keys))

	return indent.String(output.String(), indentAmount)
}

func (m MainModel) headerView(width int) string {
	var title strings.Builder

	title.WriteString(titleStyle.Render("npmnuke"))
	title.WriteString(" ")
	title.WriteString(m.Root)

	if m.DryRun {
		title.WriteString(" ")
		title.WriteString(dryRunStyle.Render("DRY RUN"))
	}

	stats := m.Store.Stats()

	var line strings.Builder

	if m.Discovering {
		line.WriteString(m.Spinner.View())
		line.WriteString(" scanning ")
		line.WriteString(m.Stopwatch.View())
		line.WriteString(" · ")
	} else {
		line.WriteString(m.Printer.Sprintf("scanned in %s · ", m.Elapsed.Round(10*time.Millisecond)))
	}

	line.WriteString(internal.PrettyPrintInt(m.Printer, stats.Found) + " found")

	if !m.SkipSize {
		line.WriteString(" · " + internal.PrettyPrintInt(m.Printer, stats.Sized) + " sized · " + internal.PrettyPrintMegabytes(m.Printer, stats.TotalBytes) + " total")
	}

	line.WriteString(" · " + internal.PrettyPrintInt(m.Printer, stats.Removed) + " removed · " + internal.PrettyPrintMegabytes(m.Printer, stats.RemovedBytes) + " freed")

	if m.Volume != "" {
		line.WriteString(" · ")
		line.WriteString(m.Volume)
	}

	return wrap.String(title.String(), width) + "\n" + dimStyle.Render(wrap.String(line.String(), width))
}

func (m MainModel) listView(width int) string {
	rows := m.visibleRows()
	count := m.Store.Len()

	if count == 0 {
		if m.Discovering {
			return dimStyle.Render("Looking for node_modules folders...") + strings.Repeat("\n", rows-1)
		}

		return dimStyle.Render("No node_modules folders found") + strings.Repeat("\n", rows-1)
	}

	pathWidth := width - sizeColumn - 3

	if pathWidth < 10 {
		pathWidth = 10
	}

	lines := make([]string, 0, rows)

	for i := m.Offset; i < count && i < m.Offset+rows; i++ {
		folder, ok := m.Store.At(i)

		if !ok {
			break
		}

		lines = append(lines, m.rowView(folder, i == m.Cursor, pathWidth))
	}

	for len(lines) < rows {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func (m MainModel) rowView(folder store.Folder, selected bool, pathWidth int) string {
	cursor := "  "
	path := truncate.StringWithTail(folder.Path, uint(pathWidth), "…")
	path += strings.Repeat(" ", max(0, pathWidth-lipgloss.Width(path)))

	if selected {
		cursor = cursorStyle.Render("> ")
		path = cursorStyle.Render(path)
	}

	return cursor + path + " " + sizeCellStyle.Render(m.sizeCell(folder))
}

func (m MainModel) sizeCell(folder store.Folder) string {
	switch {
	case folder.State == store.Removed:
		return removedStyle.Render("removed")
	case folder.State == store.Removing:
		return m.Spinner.View() + " removing…"
	case folder.Sized:
		return internal.PrettyPrintMegabytes(m.Printer, folder.SizeBytes)
	case folder.SizeFailed:
		return dimStyle.Render("n/a")
	case m.SkipSize:
		return ""
	}

	return m.Spinner.View()
}

func (m MainModel) visibleRows() int {
	if m.WindowHeight == 0 {
		return defaultRows
	}

	return max(1, m.WindowHeight-headerLines-footerLines)
}
