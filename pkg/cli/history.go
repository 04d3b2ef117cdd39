package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/history"
)

const historyTimeout = 30 * time.Second

func (c *CLI) newHistoryCmd() *cobra.Command {
	var limit int
	var id string
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployments",
		Long: `List the most recent deployments, newest first. Use --id to show one
deployment with the engine's deployment log, or --prune to drop old entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(historyPath(c.settings))
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := c.runtime(cmd, "history").WithTimeout(historyTimeout)
			defer cancel()

			switch {
			case prune > 0:
				n, err := store.Prune(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				c.printSuccess(fmt.Sprintf("Removed %d deployments older than %s", n, prune))
				return nil
			case id != "":
				return c.printDeployment(ctx, store, id)
			}
			return c.printHistory(ctx, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deployments to show")
	cmd.Flags().StringVar(&id, "id", "", "show a single deployment")
	cmd.Flags().DurationVar(&prune, "prune", 0, "remove deployments older than this")
	return cmd
}

func (c *CLI) printHistory(ctx context.Context, store *history.Store, limit int) error {
	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.printInfo("No deployments recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.RecordedAt.Format("2006-01-02 15:04:05"),
			e.ID,
			e.Application,
			filepath.Base(e.Artifact),
			string(e.Kind),
			e.Elapsed.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(c.output, renderTable([]string{"TIME", "ID", "APP", "ARTIFACT", "OUTCOME", "ELAPSED"}, rows, 4))

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Total: %s\n", summarize(stats))
	return nil
}

func (c *CLI) printDeployment(ctx context.Context, store *history.Store, id string) error {
	e, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"ID", e.ID},
		{"Recorded", e.RecordedAt.Format(time.RFC3339)},
		{"Artifact", e.Artifact},
		{"Target", e.Target},
		{"Deployer", e.Deployer},
		{"Outcome", string(e.Kind)},
		{"Elapsed", e.Elapsed.Round(time.Millisecond).String()},
	}
	if e.Error != "" {
		rows = append(rows, []string{"Error", e.Error})
	}
	if e.LogPath != "" {
		rows = append(rows, []string{"Log file", e.LogPath})
	}
	fmt.Fprintln(c.output, renderTable([]string{"FIELD", "VALUE"}, rows, -1))

	if e.EngineLog != "" {
		fmt.Fprintln(c.output, "Deployment log:")
		fmt.Fprintln(c.output, e.EngineLog)
	}
	return nil
}
