package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAgentsCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent modules found on the module paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := cli.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			scan := a.rt.Manager().Available()
			if len(scan.Descriptors) == 0 && len(scan.Errors) == 0 {
				fmt.Fprintf(out, "no modules found in %s\n", strings.Join(cli.cfg.Modules.Paths, ", "))
				return nil
			}
			for _, d := range scan.Descriptors {
				flags := []string{}
				if d.NeedsSandbox() {
					flags = append(flags, "sandbox")
				}
				if caps := d.Capabilities(); len(caps) > 0 {
					flags = append(flags, "accepts "+strings.Join(caps, ","))
				}
				fmt.Fprintf(out, "%s %s %s\n    %s\n", bold(d.Name()), gray(d.Version()), cyan(strings.Join(flags, "; ")), d.Description())
			}
			for _, err := range scan.Errors {
				fmt.Fprintf(out, "%s %v\n", red("invalid:"), err)
			}
			return nil
		},
	}
}
