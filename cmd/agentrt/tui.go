package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrt/tui"
)

func newTUICommand(cli *CLI) *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a, err := cli.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(a.rt.Manager(), func(o *tui.Options) {
				o.Autoload = agent
				o.Capabilities = a.capability(cli.cfg)
				o.CancelTimeout = cli.cfg.Manager.CancelGrace * 3
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent to load on start")
	return cmd
}
