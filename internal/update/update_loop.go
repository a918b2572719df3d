package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/views"
)

// Init shows the cached snapshot, if any, while the first load runs.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadSnapshotCmd(),
		func() tea.Msg { return ReloadMsg{} },
		waitForWakeupCmd(m.timer),
		m.nextReloadCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			m.Quitting = true
			return m, tea.Quit
		}
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		if m.modal.Mode() != modal.Closed {
			return m.handleModalKey(typed)
		}
		switch typed.String() {
		case "/":
			m.openPalette()
			return m, nil
		case "?":
			m.HelpVisible = !m.HelpVisible
			if m.HelpVisible {
				m.Status = StatusBar{Text: "help shown", IsError: false}
			} else {
				m.Status = StatusBar{Text: "help hidden", IsError: false}
			}
			return m, nil
		case "q":
			m.Quitting = true
			return m, tea.Quit
		}
		return m.handleCalendarKey(typed)
	case opDoneMsg:
		return m.onOpDone(typed)
	case ReloadMsg:
		return m.reload()
	case reloadTickMsg:
		next, cmd := m.reload()
		return next, tea.Batch(cmd, next.nextReloadCmd())
	case wakeupMsg:
		return m.onWakeup(typed)
	case snapshotLoadedMsg:
		return m.onSnapshotLoaded(typed), nil
	case snapshotSavedMsg:
		if typed.Err != nil {
			appLog.Error("save snapshot", typed.Err)
		} else {
			appLog.Debug("snapshot saved", "count", typed.Count)
		}
		return m, nil
	case spinner.TickMsg:
		if m.InFlight > 0 {
			var cmd tea.Cmd
			m.syncSpinner, cmd = m.syncSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Error", typed.Err.Error(), "error")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	rightPane := m.renderDetailView()
	if m.modal.Mode() != modal.Closed {
		rightPane = m.renderModalView()
	}
	rightPane += m.renderCommandPalette() + m.renderHelpIfVisible()

	notificationView := ""
	if m.InFlight > 0 {
		notificationView = fmt.Sprintf("sync: %s %d request(s) in flight", m.syncSpinner.View(), m.InFlight)
	}
	notificationView = strings.TrimSpace(strings.Join([]string{
		notificationView,
		strings.TrimSpace(m.renderNotificationsView()),
	}, "\n"))

	return views.RenderApp(views.AppData{
		Header:        m.header(),
		LeftPane:      m.renderCalendarView(),
		RightPane:     rightPane,
		StatusLine:    status,
		StatusIsError: m.Status.IsError,
		Notification:  notificationView,
		Footer:        "keys: n new | enter edit | x delete | H/L J/K move | +/- resize | / cmd | ? help | q quit",
	})
}

func (m Model) header() string {
	sync := "never synced"
	if !m.LastSync.IsZero() {
		sync = "synced " + m.LastSync.In(m.loc).Format("15:04")
	}
	if m.Offline {
		sync += " (cached)"
	}
	return fmt.Sprintf("taskcal | view: %s | %s | %s", m.Mode, m.FocusDate.Format("2006-01-02"), sync)
}
