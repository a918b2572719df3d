// Package cli wires the taskcal commands together.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskcal/internal/config"
)

type rootOptions struct {
	configPath string
}

func New() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "taskcal",
		Short: "A terminal calendar for a remote task list.",
		Long: `taskcal shows tasks from a remote task service as a calendar.
Moves and resizes are drawn immediately and undone if the server refuses
them; everything else changes once the server agrees.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "path to the config file")

	AddCommands(cmd, opts)
	return cmd
}

func AddCommands(topLevel *cobra.Command, opts *rootOptions) {
	addUI(topLevel, opts)
	addList(topLevel, opts)
	addExport(topLevel, opts)
	addConfig(topLevel, opts)
}
