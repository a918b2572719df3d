package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/sandeepkv93/taskcal/internal/model"
)

func sampleTasks() []model.Task {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	return []model.Task{
		{ID: "7", Title: "Buy milk", Content: "Buy milk", Description: "2%", Start: start, End: &end, Status: model.StatusOverdue},
		{ID: "8", Content: "Standup", Start: start.Add(24 * time.Hour), Complete: model.CompletionDone, Status: model.StatusComplete},
	}
}

func TestWriteProducesParseableCalendar(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := Write(&buf, sampleTasks(), stamp); err != nil {
		t.Fatalf("write: %v", err)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("parse exported calendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if p := first.GetProperty(ical.ComponentPropertyUniqueId); p == nil || p.Value != UID("7") {
		t.Fatalf("unexpected uid: %+v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Buy milk" {
		t.Fatalf("unexpected summary: %+v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyCategories); p == nil || p.Value != "overdue" {
		t.Fatalf("unexpected categories: %+v", p)
	}
	start, err := first.GetStartAt()
	if err != nil || !start.Equal(sampleTasks()[0].Start) {
		t.Fatalf("unexpected start %v: %v", start, err)
	}

	second := events[1]
	if p := second.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Standup" {
		t.Fatalf("summary should fall back to content: %+v", p)
	}
	if p := second.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		t.Fatalf("point task should have no DTEND, got %q", p.Value)
	}
	if p := second.GetProperty(ical.ComponentPropertyStatus); p == nil || p.Value != "COMPLETED" {
		t.Fatalf("unexpected status: %+v", p)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tasks.ics")
	if err := WriteFile(path, sampleTasks(), time.Now()); err != nil {
		t.Fatalf("write file: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected output: %s", raw)
	}
	if err := WriteFile("", nil, time.Now()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
