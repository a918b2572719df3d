package update

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/robfig/cron/v3"

	"github.com/sandeepkv93/taskcal/internal/commands"
	"github.com/sandeepkv93/taskcal/internal/engine"
	"github.com/sandeepkv93/taskcal/internal/eventstore"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/scheduler"
	"github.com/sandeepkv93/taskcal/internal/storage"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Notification struct {
	Title string
	Body  string
	Level string
	At    time.Time
}

type DesktopNotifier interface {
	Send(Notification) error
}

type NoopDesktopNotifier struct{}

func (NoopDesktopNotifier) Send(Notification) error { return nil }

type ExecDesktopNotifier struct{}

func (ExecDesktopNotifier) Send(n Notification) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("notify-send", n.Title, n.Body).Run()
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Body), escapeAppleScript(n.Title))
		return exec.Command("osascript", "-e", script).Run()
	default:
		return nil
	}
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Options wires the model to its collaborators. Only Client is required.
type Options struct {
	Client   taskapi.Client
	Store    *eventstore.Store
	Cache    storage.Repository
	Timer    *scheduler.Timer
	Refresh  cron.Schedule
	Location *time.Location
	Notifier DesktopNotifier
	Now      func() time.Time
}

type Model struct {
	Mode           commands.View
	FocusDate      time.Time
	Cursor         int
	SelectedTaskID string
	Palette        CommandPaletteState
	HelpVisible    bool
	Notifications  []Notification
	Status         StatusBar
	LastError      error
	LastSync       time.Time
	Offline        bool
	InFlight       int
	Quitting       bool

	engine   *engine.Engine
	modal    *modal.Controller
	surface  *Surface
	cache    storage.Repository
	timer    *scheduler.Timer
	refresh  cron.Schedule
	loc      *time.Location
	notifier DesktopNotifier
	now      func() time.Time

	form         formState
	commandInput textinput.Model
	syncSpinner  spinner.Model
	helpModel    help.Model
}

type formField int

const (
	fieldContent formField = iota
	fieldStart
	fieldEnd
	fieldComplete
	fieldDescription
	fieldCount
)

type formState struct {
	content     textinput.Model
	start       textinput.Model
	end         textinput.Model
	description textarea.Model
	complete    model.Completion
	focus       formField
	err         error
}

func NewModel(opts Options) Model {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	store := opts.Store
	if store == nil {
		store = eventstore.New()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NoopDesktopNotifier{}
	}

	surface := NewSurface(opts.Timer)
	eng := engine.New(store, opts.Client, engine.WithSurface(surface), engine.WithClock(now))

	m := Model{
		Mode:      commands.ViewWeek,
		FocusDate: startOfDay(now().In(loc)),
		engine:    eng,
		modal:     modal.New(eng),
		surface:   surface,
		cache:     opts.Cache,
		timer:     opts.Timer,
		refresh:   opts.Refresh,
		loc:       loc,
		notifier:  notifier,
		now:       now,
	}

	m.commandInput = textinput.New()
	m.commandInput.Placeholder = "/new Buy milk @2025-01-01T10:00 30m"
	m.commandInput.CharLimit = 256
	m.commandInput.Prompt = "> "

	m.form = newFormState()

	m.syncSpinner = spinner.New()
	m.syncSpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
	m.helpModel.ShowAll = true
	return m
}

func newFormState() formState {
	content := textinput.New()
	content.Placeholder = "what needs doing"
	content.CharLimit = 200
	content.Prompt = "content: "

	start := textinput.New()
	start.Placeholder = "2006-01-02 15:04"
	start.CharLimit = 40
	start.Prompt = "start:   "

	end := textinput.New()
	end.Placeholder = "empty for a point in time"
	end.CharLimit = 40
	end.Prompt = "end:     "

	desc := textarea.New()
	desc.Placeholder = "markdown description"
	desc.SetWidth(52)
	desc.SetHeight(4)

	return formState{content: content, start: start, end: end, description: desc}
}

// Engine exposes the sync engine, mainly for tests and the CLI.
func (m Model) Engine() *engine.Engine {
	return m.engine
}

func (m Model) Surface() *Surface {
	return m.surface
}

func (m Model) ModalMode() modal.Mode {
	return m.modal.Mode()
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// ReloadMsg asks for a full reconciliation with the remote.
type ReloadMsg struct{}

type opDoneMsg struct {
	Outcome engine.Outcome
}

type wakeupMsg struct {
	Wakeup scheduler.Wakeup
}

type reloadTickMsg struct {
	At time.Time
}

type snapshotLoadedMsg struct {
	Snapshot storage.Snapshot
	Err      error
}

type snapshotSavedMsg struct {
	Count int
	Err   error
}
