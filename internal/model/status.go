package model

import "time"

type Status string

const (
	StatusNormal   Status = "Normal"
	StatusOverdue  Status = "Overdue"
	StatusComplete Status = "Complete"
)

// Classify derives the visual status of t at now. It depends only on
// Complete, Start, End and now.
func Classify(t Task, now time.Time) Status {
	if t.Complete == CompletionDone {
		return StatusComplete
	}
	if t.Deadline().Before(now) {
		return StatusOverdue
	}
	return StatusNormal
}
