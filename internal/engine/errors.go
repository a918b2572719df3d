package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/taskcal/internal/model"
)

var (
	ErrUnknownTask   = errors.New("engine: task is not in the store")
	ErrMissingID     = errors.New("engine: response carried no id")
	ErrReusedID      = errors.New("engine: duplicate response reused the source id")
	ErrUnknownOpKind = errors.New("engine: unknown operation kind")
)

// ValidationError means required user input is missing. Nothing was sent and
// nothing was mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateDraft checks the inputs every create and edit needs.
func ValidateDraft(d model.Draft) error {
	if strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	if d.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "select a start time"}
	}
	if !d.Complete.IsValid() {
		return &ValidationError{Field: "complete", Message: fmt.Sprintf("invalid completion state %d", int(d.Complete))}
	}
	if d.End != nil && d.End.Before(d.Start) {
		return &ValidationError{Field: "end", Message: "end must not be before start"}
	}
	return nil
}

func validateBounds(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "start", Message: "start is required"}
	}
	if end != nil && end.Before(start) {
		return &ValidationError{Field: "end", Message: "end must not be before start"}
	}
	return nil
}
