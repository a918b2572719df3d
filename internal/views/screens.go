package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type CalendarItemData struct {
	ID       string
	Title    string
	Day      string
	Time     string
	Status   string
	Dragging bool
}

type CalendarPanelData struct {
	Mode       string
	Range      string
	Items      []CalendarItemData
	SelectedID string
}

type DetailPanelData struct {
	ID              string
	Title           string
	When            string
	Status          string
	Completion      string
	DescriptionView string
	Pending         bool
}

type ModalData struct {
	Mode     string
	Title    string
	Fields   []string
	Complete string
	Busy     bool
	ErrText  string
}

type HelpPanelData struct {
	Context  string
	Bindings []string
	HelpView string
}

var (
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	completeStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	draggingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("11"))
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Padding(0, 1)
)

// RenderCalendarPanel lists events grouped by day, in the order given.
func RenderCalendarPanel(data CalendarPanelData) string {
	var b strings.Builder
	b.WriteString("calendar:\n")
	b.WriteString(fmt.Sprintf("mode: %s | range: %s\n", data.Mode, data.Range))
	b.WriteString("actions: [d]day [w]week [a]agenda [h/l]period [j/k]select\n")

	if len(data.Items) == 0 {
		b.WriteString("\n(no events)")
		return b.String()
	}

	day := ""
	for _, item := range data.Items {
		if item.Day != day {
			day = item.Day
			b.WriteString(fmt.Sprintf("\n%s:\n", day))
		}
		cursor := " "
		if data.SelectedID == item.ID {
			cursor = ">"
		}
		line := fmt.Sprintf("%s %s %s", item.Time, statusBadge(item.Status), item.Title)
		b.WriteString(cursor + " " + styleForItem(item).Render(line) + "\n")
	}
	return strings.TrimSpace(b.String())
}

func statusBadge(status string) string {
	switch status {
	case "overdue":
		return "[LATE]"
	case "done":
		return "[DONE]"
	default:
		return "[ -- ]"
	}
}

func styleForItem(item CalendarItemData) lipgloss.Style {
	switch {
	case item.Dragging:
		return draggingStyle
	case item.Status == "overdue":
		return overdueStyle
	case item.Status == "done":
		return completeStyle
	default:
		return lipgloss.NewStyle()
	}
}

func RenderDetailPane(data DetailPanelData) string {
	if strings.TrimSpace(data.ID) == "" {
		return "details:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString("details:\n")
	b.WriteString(fmt.Sprintf("id: %s\n", data.ID))
	b.WriteString(fmt.Sprintf("title: %s\n", data.Title))
	b.WriteString(fmt.Sprintf("when: %s\n", data.When))
	b.WriteString(fmt.Sprintf("status: %s (%s)\n", data.Status, data.Completion))
	if data.Pending {
		b.WriteString("sync: waiting for server\n")
	}
	if data.DescriptionView != "" {
		b.WriteString("\n" + data.DescriptionView + "\n")
	}
	return strings.TrimSpace(b.String())
}

// RenderModal draws the open dialog. Delete has no fields, only the
// confirmation prompt.
func RenderModal(data ModalData) string {
	var b strings.Builder
	switch data.Mode {
	case "delete":
		b.WriteString(fmt.Sprintf("delete %q?\n", data.Title))
		b.WriteString("[y]es / [n]o\n")
	default:
		heading := "new task"
		if data.Mode == "edit" {
			heading = fmt.Sprintf("edit %q", data.Title)
		}
		b.WriteString(heading + "\n")
		for _, f := range data.Fields {
			b.WriteString(f + "\n")
		}
		b.WriteString(fmt.Sprintf("complete: %s\n", data.Complete))
		b.WriteString("keys: [tab] field [enter] save [esc] close\n")
	}
	if data.Busy {
		b.WriteString("saving...\n")
	}
	if data.ErrText != "" {
		b.WriteString(errorStyle.Render("error: "+data.ErrText) + "\n")
	}
	return dialogStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("\ncommand: /%s", input)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("\nhelp (%s):\n%s\n%s",
		strings.ToLower(data.Context),
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}
