package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskcal/internal/export"
)

func addExport(topLevel *cobra.Command, opts *rootOptions) {
	cmd := &cobra.Command{
		Use:   "export <file.ics|->",
		Short: "write every task to an iCalendar file",
		Example: `
taskcal export tasks.ics
taskcal export - > tasks.ics
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			now := time.Now()
			tasks, synced, err := fetchTasks(cmd.Context(), rt.client, rt.repository(), now)
			if err != nil {
				return err
			}
			if !synced.IsZero() {
				fmt.Fprintf(cmd.ErrOrStderr(), "server unreachable, exporting cache from %s\n", synced.In(rt.loc).Format("2006-01-02 15:04"))
			}
			if args[0] == "-" {
				return export.Write(cmd.OutOrStdout(), tasks, now)
			}
			if err := export.WriteFile(args[0], tasks, now); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d task(s) to %s\n", len(tasks), args[0])
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
