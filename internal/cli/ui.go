package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/scheduler"
	"github.com/sandeepkv93/taskcal/internal/update"
)

func addUI(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "open the calendar (the default command)",
		Example: `
taskcal ui
taskcal ui --config ./taskcal.yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), opts)
		},
	}
	topLevel.AddCommand(cmd)
}

func runUI(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(opts, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	var refresh cron.Schedule
	if !rt.cfg.RefreshDisabled() {
		refresh, err = cron.ParseStandard(rt.cfg.RefreshCron)
		if err != nil {
			return fmt.Errorf("refresh schedule: %w", err)
		}
	}

	timer := scheduler.NewTimer(rt.cfg.TimerBuffer)
	timer.Start()
	defer timer.Stop()

	var notifier update.DesktopNotifier = update.NoopDesktopNotifier{}
	if rt.cfg.DesktopNotifications {
		notifier = update.ExecDesktopNotifier{}
	}

	model := update.NewModel(update.Options{
		Client:   rt.client,
		Cache:    rt.repository(),
		Timer:    timer,
		Refresh:  refresh,
		Location: rt.loc,
		Notifier: notifier,
	})
	appLog.Info("calendar started", "base_url", rt.cfg.BaseURL, "refresh", rt.cfg.RefreshCron)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("taskcal failed: %w", err)
	}
	if dropped := timer.Dropped(); dropped > 0 {
		appLog.Info("deadline wake-ups dropped", "count", dropped)
	}
	return nil
}
