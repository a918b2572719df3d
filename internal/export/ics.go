// Package export writes the calendar out as an iCalendar feed.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
)

const productID = "-//taskcal//calendar export//EN"

// UID is the stable iCalendar identifier of a task.
func UID(taskID string) string {
	return "task-" + taskID + "@taskcal"
}

// Calendar builds a VCALENDAR with one VEVENT per task. Point tasks carry
// no DTEND.
func Calendar(tasks []model.Task, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, t := range tasks {
		ev := cal.AddEvent(UID(t.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(t.Start.UTC())
		if t.End != nil {
			ev.SetEndAt(t.End.UTC())
		}
		ev.SetSummary(t.DisplayTitle())
		if strings.TrimSpace(t.Description) != "" {
			ev.SetDescription(t.Description)
		}
		ev.SetProperty(ical.ComponentPropertyStatus, icalStatus(t.Complete))
		if t.Status == model.StatusOverdue || t.Status == model.StatusComplete {
			ev.SetProperty(ical.ComponentPropertyCategories, strings.ToLower(string(t.Status)))
		}
	}
	return cal
}

func icalStatus(c model.Completion) string {
	switch c {
	case model.CompletionDone:
		return "COMPLETED"
	case model.CompletionInProgress:
		return "IN-PROCESS"
	default:
		return "NEEDS-ACTION"
	}
}

func Write(w io.Writer, tasks []model.Task, stamp time.Time) error {
	_, err := io.WriteString(w, Calendar(tasks, stamp).Serialize())
	return err
}

// WriteFile writes the feed to path, creating parent directories.
func WriteFile(path string, tasks []model.Task, stamp time.Time) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("export: empty path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, tasks, stamp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("calendar exported", "path", path, "count", len(tasks))
	return nil
}
