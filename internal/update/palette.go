package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskcal/internal/commands"
	"github.com/sandeepkv93/taskcal/internal/export"
	"github.com/sandeepkv93/taskcal/internal/model"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed", IsError: false}
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		m.commandInput = typeInto(m.commandInput, msg)
		m.Palette.Input = m.commandInput.Value()
	}
	return m, nil
}

func (m *Model) openPalette() {
	m.Palette.Active = true
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.Status = StatusBar{Text: "command palette active", IsError: false}
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var next tea.Cmd
	res, err := commands.Execute(cmd, commands.Handlers{
		New: func(a commands.NewArgs) (commands.Result, error) {
			start := m.defaultSlot()
			if a.At != "" {
				t, err := model.ParseTime(a.At, m.loc)
				if err != nil {
					return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("cannot read time %q", a.At)}
				}
				start = t
			}
			var end *time.Time
			if a.For > 0 {
				v := start.Add(a.For)
				end = &v
			}
			m.modal.OpenCreate(start, end)
			if err := m.modal.SetContent(a.Content); err != nil {
				return commands.Result{}, err
			}
			op, err := m.modal.Submit()
			if err != nil {
				m.loadForm()
				return commands.Result{}, err
			}
			m.loadForm()
			next = m.runOp(op)
			return commands.Result{Message: fmt.Sprintf("creating %q", a.Content)}, nil
		},
		Goto: func(g commands.GotoArgs) (commands.Result, error) {
			if strings.EqualFold(g.When, "today") {
				m.FocusDate = startOfDay(m.now().In(m.loc))
			} else {
				t, err := model.ParseTime(g.When, m.loc)
				if err != nil {
					return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("cannot read date %q", g.When)}
				}
				m.FocusDate = startOfDay(t.In(m.loc))
			}
			m.Cursor = 0
			m.SelectedTaskID = ""
			m.syncSelection()
			return commands.Result{Message: "showing " + m.FocusDate.Format("2006-01-02")}, nil
		},
		Mode: func(a commands.ModeArgs) (commands.Result, error) {
			m.setMode(a.View)
			return commands.Result{Message: fmt.Sprintf("view: %s", a.View)}, nil
		},
		Refresh: func() (commands.Result, error) {
			m, next = m.reload()
			return commands.Result{Message: "syncing"}, nil
		},
		Export: func(a commands.ExportArgs) (commands.Result, error) {
			tasks := m.engine.Store().All()
			if err := export.WriteFile(a.Path, tasks, m.now()); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: fmt.Sprintf("exported %d task(s) to %s", len(tasks), a.Path)}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		m.notify("Command Failed", err.Error(), "error")
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message, IsError: false}
	return m, next
}

// typeInto appends typed runes directly and hands every other key to the
// input.
func typeInto(in textinput.Model, msg tea.KeyMsg) textinput.Model {
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		in.SetValue(in.Value() + string(msg.Runes))
		return in
	}
	in, _ = in.Update(msg)
	return in
}
