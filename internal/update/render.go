package update

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/taskcal/internal/commands"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/views"
)

const dayLayout = "Mon 2006-01-02"

func (m Model) renderCalendarView() string {
	from, to := m.window()
	var rangeText string
	switch {
	case to.IsZero():
		rangeText = from.Format(dayLayout) + " onward"
	case m.Mode == commands.ViewDay:
		rangeText = from.Format(dayLayout)
	default:
		rangeText = from.Format(dayLayout) + " .. " + to.AddDate(0, 0, -1).Format(dayLayout)
	}

	events := m.visibleEvents()
	items := make([]views.CalendarItemData, 0, len(events))
	for _, ev := range events {
		start := ev.Start.In(m.loc)
		when := start.Format("15:04")
		if ev.End != nil {
			when += "-" + ev.End.In(m.loc).Format("15:04")
		}
		items = append(items, views.CalendarItemData{
			ID:       ev.Task.ID,
			Title:    ev.Task.DisplayTitle(),
			Day:      start.Format(dayLayout),
			Time:     when,
			Status:   statusLabel(ev.Task),
			Dragging: ev.Dragging,
		})
	}
	return views.RenderCalendarPanel(views.CalendarPanelData{
		Mode:       string(m.Mode),
		Range:      rangeText,
		Items:      items,
		SelectedID: m.SelectedTaskID,
	})
}

func (m Model) renderDetailView() string {
	t, err := m.engine.Store().Get(m.SelectedTaskID)
	if err != nil {
		return views.RenderDetailPane(views.DetailPanelData{})
	}
	when := t.Start.In(m.loc).Format("2006-01-02 15:04")
	if t.End != nil {
		when += " - " + t.End.In(m.loc).Format("2006-01-02 15:04")
	}
	return views.RenderDetailPane(views.DetailPanelData{
		ID:              t.ID,
		Title:           t.DisplayTitle(),
		When:            when,
		Status:          string(t.Status),
		Completion:      t.Complete.String(),
		DescriptionView: views.RenderMarkdown(t.Description),
		Pending:         m.engine.InFlight(t.ID),
	})
}

func (m Model) renderModalView() string {
	p, ok := m.modal.Pending()
	if !ok {
		return ""
	}
	errText := ""
	if m.form.err != nil {
		errText = m.form.err.Error()
	} else if err := m.modal.Err(); err != nil {
		errText = describeFailureText(err)
	}
	data := views.ModalData{
		Mode:     p.Mode.String(),
		Title:    p.Title,
		Complete: m.form.complete.String(),
		Busy:     m.modal.Busy(),
		ErrText:  errText,
	}
	if p.Mode != modal.DeleteConfirmOpen {
		data.Fields = []string{
			m.form.content.View(),
			m.form.start.View(),
			m.form.end.View(),
			"description:",
			m.form.description.View(),
		}
	}
	return views.RenderModal(data)
}

func describeFailureText(err error) string {
	return strings.TrimPrefix(err.Error(), "taskapi: ")
}

func (m Model) renderCommandPalette() string {
	if !m.Palette.Active {
		return ""
	}
	return views.RenderCommandPalette(true, strings.TrimPrefix(m.commandInput.Value(), "/"))
}

func (m Model) renderNotificationsView() string {
	if len(m.Notifications) == 0 {
		return ""
	}
	last := m.Notifications[len(m.Notifications)-1]
	return views.RenderNotification(last.Level, fmt.Sprintf("%s: %s", last.Title, last.Body))
}
