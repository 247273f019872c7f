package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/logging"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// CLI holds state shared by all commands.
type CLI struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *logging.RuntimeLogger
}

func newRootCommand() *cobra.Command {
	cli := &CLI{}

	root := &cobra.Command{
		Use:           "agentrt",
		Short:         "Load, run and observe agent modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.initialize(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cli.cfgFile, "config", "", "config file (default agentrt.yaml in . or $HOME/.config/agentrt)")
	flags.StringSlice("modules", nil, "module directories to scan")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("provider", "", "model provider (mock, openai, anthropic)")
	flags.String("model", "", "model name")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newAgentsCommand(cli),
		newRunCommand(cli),
		newTUICommand(cli),
		newIndexCommand(cli),
	)
	return root
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"modules":      "modules.paths",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"provider":     "model.provider",
	"model":        "model.name",
	"metrics-addr": "metrics.addr",
}

func (cli *CLI) initialize(cmd *cobra.Command) error {
	cli.v = config.New(cli.cfgFile)
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := cli.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.FromViper(cli.v, cli.cfgFile != "")
	if err != nil {
		return err
	}
	cli.cfg = cfg
	cli.logger = cfg.Logger().WithComponent("cli")
	if used := cli.v.ConfigFileUsed(); used != "" {
		cli.logger.Debug("cli.config.loaded", "file", used)
	}
	return nil
}
