package formatter

import (
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *TableFormatter) FormatSignals(signals []signal.Signal) (string, error) {
	if len(signals) == 0 {
		return "No signals found", nil
	}

	t := f.newTable("ID", "When", "Source", "Author", "Title")
	for _, s := range signals {
		t.Row(
			s.ID,
			s.CreatedAt.Local().Format("Jan 02 15:04"),
			truncateString(s.Metadata.SourceLabel, 24),
			truncateString(s.Metadata.Author, 18),
			truncateString(s.Title, 60),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatTasks(tasks []signal.ProposedTask) (string, error) {
	if len(tasks) == 0 {
		return "No tasks proposed", nil
	}

	t := f.newTable("#", "Title", "Project", "Subtasks", "Why")
	for i, task := range tasks {
		t.Row(
			strconv.Itoa(i+1),
			truncateString(task.Title, 48),
			truncateString(task.Project, 20),
			truncateString(strings.Join(task.Subtasks, "; "), 40),
			truncateString(task.Justification, 48),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatItems(items []tracker.Item) (string, error) {
	if len(items) == 0 {
		return "No tasks assigned", nil
	}

	t := f.newTable("ID", "Name", "Project", "Due", "Done")
	for _, it := range items {
		due := ""
		if it.Due != nil {
			due = it.Due.Format(time.DateOnly)
		}
		done := ""
		if it.Completed {
			done = "yes"
		}
		t.Row(it.ID, truncateString(it.Name, 60), truncateString(it.Project, 20), due, done)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatList(name string, values []string) (string, error) {
	if len(values) == 0 {
		return "List " + name + " is empty", nil
	}

	t := f.newTable(name)
	for _, v := range values {
		t.Row(v)
	}
	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
