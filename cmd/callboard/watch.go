package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/triage"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the dashboard live, redrawing after every refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := triage.ParseCategory(category)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// The retry view is shown by load; watch keeps going either way.
			_ = c.load(cmd)

			runErr := make(chan error, 1)

			go func() { runErr <- c.app.Run(ctx) }()

			ticker := time.NewTicker(time.Duration(config.Conf.RefreshInterval) * time.Second)
			defer ticker.Stop()

			for {
				c.draw(cmd, parsed, limit)

				select {
				case <-ctx.Done():
					return nil
				case err := <-runErr:
					if errors.Is(err, context.Canceled) {
						return nil
					}

					return err
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "all", "category to show")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")

	return cmd
}

func (c *cli) draw(cmd *cobra.Command, category triage.Category, limit int) {
	out := cmd.OutOrStdout()

	view := c.app.Dashboard.View(triage.Criteria{Category: category})
	if limit > 0 && len(view) > limit {
		view = view[:limit]
	}

	_, _ = fmt.Fprintf(out, "\n=== %s ===\n", c.now().Local().Format("15:04:05"))

	renderCounts(out, c.app.Dashboard.Counts(), c.app.Dashboard.Online(), c.app.Queue.Len())

	if err := c.app.Dashboard.LoadError(); err != nil {
		_, _ = fmt.Fprintf(out, "Last refresh failed: %v\n", err)
	}

	_ = renderList(out, view, c.now())
}
