package update

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskcal/internal/engine"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/model"
)

const formTimeLayout = "2006-01-02 15:04"

func (m Model) handleModalKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.modal.Mode() == modal.DeleteConfirmOpen {
		return m.handleDeleteKey(msg)
	}

	keyStr := msg.String()
	if keyStr == "esc" {
		m.modal.Cancel()
		m.blurForm()
		m.Status = StatusBar{Text: "dialog closed"}
		return m, nil
	}
	if m.modal.Busy() {
		return m, nil
	}

	switch keyStr {
	case "tab":
		m.focusField((m.form.focus + 1) % fieldCount)
		return m, nil
	case "shift+tab":
		m.focusField((m.form.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case "ctrl+s":
		return m.submitForm()
	case "enter":
		if m.form.focus != fieldDescription {
			return m.submitForm()
		}
	}

	switch m.form.focus {
	case fieldContent:
		m.form.content = typeInto(m.form.content, msg)
	case fieldStart:
		m.form.start = typeInto(m.form.start, msg)
	case fieldEnd:
		m.form.end = typeInto(m.form.end, msg)
	case fieldComplete:
		if keyStr == " " || keyStr == "right" || keyStr == "left" {
			m.form.complete = m.form.complete.Next()
		}
	case fieldDescription:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.form.description.InsertString(string(msg.Runes))
		} else {
			m.form.description, _ = m.form.description.Update(msg)
		}
	}
	return m, nil
}

func (m Model) handleDeleteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n":
		m.modal.Cancel()
		m.Status = StatusBar{Text: "delete cancelled"}
	case "y", "enter":
		op, err := m.modal.Confirm()
		if err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return m, nil
		}
		cmd := m.runOp(op)
		m.Status = StatusBar{Text: "deleting"}
		return m, cmd
	}
	return m, nil
}

// submitForm pushes the inputs into the dialog and prepares the request.
// Input errors keep the dialog open and nothing is sent.
func (m Model) submitForm() (Model, tea.Cmd) {
	kind := engine.KindCreate
	if m.modal.Mode() == modal.EditOpen {
		kind = engine.KindEdit
	}
	if err := m.pushForm(); err != nil {
		m.form.err = err
		m.Status = StatusBar{Text: describeFailure(&engine.Op{Kind: kind}, err), IsError: true}
		return m, nil
	}
	op, err := m.modal.Submit()
	if err != nil {
		m.form.err = err
		m.Status = StatusBar{Text: describeFailure(&engine.Op{Kind: kind}, err), IsError: true}
		return m, nil
	}
	m.form.err = nil
	cmd := m.runOp(op)
	m.Status = StatusBar{Text: "saving"}
	return m, cmd
}

func (m Model) pushForm() error {
	start := time.Time{}
	if raw := strings.TrimSpace(m.form.start.Value()); raw != "" {
		t, err := model.ParseTime(raw, m.loc)
		if err != nil {
			return &engine.ValidationError{Field: "start", Message: fmt.Sprintf("cannot read %q", raw)}
		}
		start = t
	}
	var end *time.Time
	if raw := strings.TrimSpace(m.form.end.Value()); raw != "" {
		t, err := model.ParseTime(raw, m.loc)
		if err != nil {
			return &engine.ValidationError{Field: "end", Message: fmt.Sprintf("cannot read %q", raw)}
		}
		end = &t
	}

	for _, set := range []func() error{
		func() error { return m.modal.SetContent(m.form.content.Value()) },
		func() error { return m.modal.SetDescription(m.form.description.Value()) },
		func() error { return m.modal.SetComplete(m.form.complete) },
		func() error { return m.modal.SetStart(start) },
		func() error { return m.modal.SetEnd(end) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}

// loadForm fills the inputs from the dialog that was just opened.
func (m *Model) loadForm() {
	p, ok := m.modal.Pending()
	if !ok {
		return
	}
	m.form.err = nil
	m.form.content.SetValue(p.Draft.Content)
	m.form.description.SetValue(p.Draft.Description)
	m.form.complete = p.Draft.Complete
	m.form.start.SetValue(formatFormTime(p.Draft.Start, m.loc))
	if p.Draft.End != nil {
		m.form.end.SetValue(formatFormTime(*p.Draft.End, m.loc))
	} else {
		m.form.end.SetValue("")
	}
	m.focusField(fieldContent)
}

func (m *Model) focusField(f formField) {
	m.form.content.Blur()
	m.form.start.Blur()
	m.form.end.Blur()
	m.form.description.Blur()
	m.form.focus = f
	switch f {
	case fieldContent:
		m.form.content.Focus()
	case fieldStart:
		m.form.start.Focus()
	case fieldEnd:
		m.form.end.Focus()
	case fieldDescription:
		m.form.description.Focus()
	}
}

func (m *Model) blurForm() {
	m.form.content.Blur()
	m.form.start.Blur()
	m.form.end.Blur()
	m.form.description.Blur()
	m.form.err = nil
}

func formatFormTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(formTimeLayout)
}
