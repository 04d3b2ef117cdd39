package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/dropwatch"
	"github.com/ivyci/enginectl/pkg/logger"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream drop directory events",
		Long: `Watch the engine's drop directory and print every artifact, options file and
marker file as it appears or disappears. Use --app to follow one application.
Stops on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, c.settings)
			if err != nil {
				return err
			}
			appOnly := ""
			if cmd.Flags().Changed("app") {
				appOnly = settings.Deploy.App
			}

			rc := c.runtime(cmd, "watch")
			log := logger.WithContext(rc.Context, c.logger)

			w, err := dropwatch.New(settings.ResolveDeployDir(), log)
			if err != nil {
				return err
			}
			defer w.Close()

			return w.Run(rc.Context, func(ev dropwatch.Event) {
				if appOnly != "" && ev.Application != appOnly {
					return
				}
				fmt.Fprintf(c.output, "%s %s\n", ev.Time.Format("15:04:05"), ev)
			})
		},
	}

	flags.registerTarget(cmd)
	return cmd
}
