package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return m.renderHelpView()
}

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.contextBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Context:  m.helpContext(),
		Bindings: plain,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
	})
}

func (m Model) helpContext() string {
	if mode := m.modal.Mode(); mode != modal.Closed {
		return mode.String() + " dialog"
	}
	return string(m.Mode)
}

func (m Model) globalBindings() []KeyBinding {
	return []KeyBinding{
		{Key: "/", Action: "open command palette"},
		{Key: "r", Action: "sync with server"},
		{Key: "?", Action: "toggle help panel"},
		{Key: "q", Action: "quit app"},
	}
}

func (m Model) contextBindings() []KeyBinding {
	switch m.modal.Mode() {
	case modal.CreateOpen, modal.EditOpen:
		return []KeyBinding{
			{Key: "tab/shift+tab", Action: "next/previous field"},
			{Key: "space", Action: "cycle completion"},
			{Key: "enter/ctrl+s", Action: "save"},
			{Key: "esc", Action: "close dialog"},
		}
	case modal.DeleteConfirmOpen:
		return []KeyBinding{
			{Key: "y/enter", Action: "confirm delete"},
			{Key: "n/esc", Action: "keep task"},
		}
	}
	return []KeyBinding{
		{Key: "j/k", Action: "move selection"},
		{Key: "h/l", Action: "previous/next period"},
		{Key: "t", Action: "jump to today"},
		{Key: "d/w/a", Action: "day/week/agenda view"},
		{Key: "n", Action: "new task"},
		{Key: "enter", Action: "edit task"},
		{Key: "ctrl+d", Action: "duplicate task"},
		{Key: "H/L", Action: "move a day earlier/later"},
		{Key: "K/J", Action: "move an hour earlier/later"},
		{Key: "+/-", Action: "stretch/shrink by 30m"},
		{Key: "x", Action: "delete task"},
	}
}

func (m Model) helpBindings() []key.Binding {
	global := m.globalBindings()
	local := m.contextBindings()
	out := make([]key.Binding, 0, len(global)+len(local))
	for _, kb := range global {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	for _, kb := range local {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
