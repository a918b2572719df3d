package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskcal/internal/engine"
	"github.com/sandeepkv93/taskcal/internal/eventstore"
	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/storage"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

type listOptions struct {
	from string
	days int
	all  bool
}

func addList(topLevel *cobra.Command, opts *rootOptions) {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "print tasks in a date range",
		Example: `
taskcal list
taskcal list --from 2025-01-06 --days 14
taskcal list --all
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			tasks, synced, err := fetchTasks(cmd.Context(), rt.client, rt.repository(), time.Now())
			if err != nil {
				return err
			}
			if !synced.IsZero() {
				yellow := color.New(color.FgYellow)
				yellow.Fprintf(color.Output, "server unreachable, showing cache from %s\n", synced.In(rt.loc).Format("2006-01-02 15:04"))
			}
			if !lo.all {
				from, err := lo.start(rt.loc, time.Now())
				if err != nil {
					return err
				}
				tasks = inRange(tasks, from, from.AddDate(0, 0, lo.days))
			}
			printTasks(color.Output, tasks, rt.loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&lo.from, "from", "", "first day to show (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVar(&lo.days, "days", 7, "number of days to show")
	cmd.Flags().BoolVar(&lo.all, "all", false, "show every task regardless of date")
	topLevel.AddCommand(cmd)
}

func (lo *listOptions) start(loc *time.Location, now time.Time) (time.Time, error) {
	if lo.days <= 0 {
		return time.Time{}, fmt.Errorf("--days must be positive, got %d", lo.days)
	}
	if lo.from == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", lo.from, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--from: %w", err)
	}
	return day, nil
}

// fetchTasks loads the list through the engine so statuses are classified
// the same way the calendar does. When the load fails and a snapshot is
// cached, the snapshot is returned with its sync time; a fresh load
// returns a zero time and refreshes the cache.
func fetchTasks(ctx context.Context, client taskapi.Client, cache storage.Repository, now time.Time) ([]model.Task, time.Time, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	eng := engine.New(eventstore.New(), client, engine.WithClock(func() time.Time { return now }))
	if _, err := eng.Do(ctx, eng.PrepareLoad()); err != nil {
		if cache == nil {
			return nil, time.Time{}, err
		}
		snap, cacheErr := cache.LoadSnapshot(ctx)
		if cacheErr != nil {
			if !errors.Is(cacheErr, storage.ErrNoSnapshot) {
				appLog.Error("read cache", cacheErr)
			}
			return nil, time.Time{}, err
		}
		appLog.Info("load failed, using cache", "error", err.Error(), "count", len(snap.Tasks))
		eng.Seed(snap.Tasks)
		eng.Refresh(now)
		return eng.Store().All(), snap.SyncedAt, nil
	}
	eng.Refresh(now)
	tasks := eng.Store().All()
	if cache != nil {
		if err := cache.SaveSnapshot(ctx, storage.Snapshot{Tasks: tasks, SyncedAt: now}); err != nil {
			appLog.Error("save cache", err)
		}
	}
	return tasks, time.Time{}, nil
}

// inRange keeps tasks whose span overlaps [from, to).
func inRange(tasks []model.Task, from, to time.Time) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		end := t.Deadline()
		if t.Start.Before(to) && !end.Before(from) {
			out = append(out, t)
		}
	}
	return out
}

func printTasks(w io.Writer, tasks []model.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	sorted := append([]model.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("WHEN"), bold.Sprint("STATUS"), bold.Sprint("TITLE"))
	for _, t := range sorted {
		status := t.Complete.String()
		switch t.Status {
		case model.StatusOverdue:
			status = red.Sprint("overdue")
		case model.StatusComplete:
			status = faint.Sprint("done")
		}
		tbl.AddRow(t.ID, when(t, loc), status, t.DisplayTitle())
	}
	fmt.Fprintln(w, tbl)
}

func when(t model.Task, loc *time.Location) string {
	start := t.Start.In(loc)
	if t.End == nil {
		return start.Format("Mon 01-02 15:04")
	}
	end := t.End.In(loc)
	if end.YearDay() == start.YearDay() && end.Year() == start.Year() {
		return start.Format("Mon 01-02 15:04") + "-" + end.Format("15:04")
	}
	return start.Format("Mon 01-02 15:04") + " - " + end.Format("Mon 01-02 15:04")
}
