package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	New     func(NewArgs) (Result, error)
	Goto    func(GotoArgs) (Result, error)
	Mode    func(ModeArgs) (Result, error)
	Refresh func() (Result, error)
	Export  func(ExportArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeNew:
		if handlers.New == nil {
			return Result{}, missing("new")
		}
		return handlers.New(*cmd.New)
	case TypeGoto:
		if handlers.Goto == nil {
			return Result{}, missing("goto")
		}
		return handlers.Goto(*cmd.Goto)
	case TypeMode:
		if handlers.Mode == nil {
			return Result{}, missing("mode")
		}
		return handlers.Mode(*cmd.Mode)
	case TypeRefresh:
		if handlers.Refresh == nil {
			return Result{}, missing("refresh")
		}
		return handlers.Refresh()
	case TypeExport:
		if handlers.Export == nil {
			return Result{}, missing("export")
		}
		return handlers.Export(*cmd.Export)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func missing(name string) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: name + " handler not configured"}
}
