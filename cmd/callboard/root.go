package main

import (
	"fmt"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/callboard"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/notify"
	"github.com/spf13/cobra"
)

type cli struct {
	app *callboard.Callboard

	offline   bool
	staffName string
	jsonOut   bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "callboard",
		Short:         "Triage dashboard for AI-processed clinic voicemails",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&c.offline, "offline", false, "work from the local cache and queue changes")
	flags.StringVar(&c.staffName, "staff", "", "staff name recorded on callbacks and acknowledgments")
	flags.BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		c.markCmd(),
		c.callbackCmd(),
		c.ackCmd(),
		c.linkPMSCmd(),
		c.pmsSearchCmd(),
		c.remindCmd(),
		c.escalationsCmd(),
		c.duplicatesCmd(),
		c.callbacksCmd(),
		c.statsCmd(),
		c.syncCmd(),
		c.queueCmd(),
		c.watchCmd(),
	)

	return rootCmd
}

func (c *cli) open(cmd *cobra.Command) error {
	app, err := callboard.NewApp(cmd.Context(), callboard.Options{
		ForcedOffline: c.offline,
		StaffName:     c.staffName,
	})
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()

	app.Notifier.Subscribe(func(n notify.Notification) {
		_, _ = fmt.Fprintf(errOut, "[%s] %s\n", n.Kind, n.Message)
	})

	c.app = app

	return nil
}

func (c *cli) close() {
	if c.app == nil {
		return
	}

	c.app.Close()
}
