package commands

import (
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeNew     Type = "new"
	TypeGoto    Type = "goto"
	TypeMode    Type = "mode"
	TypeRefresh Type = "refresh"
	TypeExport  Type = "export"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewArgs opens the create dialog. At is left raw so the caller can read it
// in the calendar's zone; an empty At means the cursor slot.
type NewArgs struct {
	Content string
	At      string
	For     time.Duration
}

type GotoArgs struct {
	When string
}

type View string

const (
	ViewDay    View = "day"
	ViewWeek   View = "week"
	ViewAgenda View = "agenda"
)

type ModeArgs struct {
	View View
}

type ExportArgs struct {
	Path string
}

type Command struct {
	Type   Type
	Raw    string
	New    *NewArgs
	Goto   *GotoArgs
	Mode   *ModeArgs
	Export *ExportArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeNew:
		return parseNew(input, args)
	case TypeGoto:
		return parseGoto(input, args)
	case TypeMode:
		return parseMode(input, args)
	case TypeRefresh:
		return Command{Type: TypeRefresh, Raw: input}, nil
	case TypeExport:
		return parseExport(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseNew reads "new <content> [@<time>] [<duration>]". Options may appear
// anywhere; everything else is content.
func parseNew(raw string, args []string) (Command, error) {
	out := NewArgs{}
	words := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(arg, "@") && len(arg) > 1 {
			out.At = strings.TrimPrefix(arg, "@")
			continue
		}
		if d, err := time.ParseDuration(arg); err == nil {
			if d <= 0 {
				return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "duration must be positive"}
			}
			out.For = d
			continue
		}
		words = append(words, arg)
	}
	out.Content = strings.TrimSpace(strings.Join(words, " "))
	if out.Content == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "new requires content"}
	}
	return Command{Type: TypeNew, Raw: raw, New: &out}, nil
}

func parseGoto(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "goto requires a date or today"}
	}
	return Command{Type: TypeGoto, Raw: raw, Goto: &GotoArgs{When: strings.ToLower(strings.Join(args, " "))}}, nil
}

func parseMode(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "mode requires one of day, week, agenda"}
	}
	v := View(strings.ToLower(args[0]))
	switch v {
	case ViewDay, ViewWeek, ViewAgenda:
		return Command{Type: TypeMode, Raw: raw, Mode: &ModeArgs{View: v}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown view: %s", args[0])}
	}
}

func parseExport(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "export requires a file path"}
	}
	return Command{Type: TypeExport, Raw: raw, Export: &ExportArgs{Path: strings.Join(args, " ")}}, nil
}
