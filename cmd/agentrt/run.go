package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrt/core"
)

func newRunCommand(cli *CLI) *cobra.Command {
	var (
		attach []string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "run <agent> <input...>",
		Short: "Run an agent once and stream its output",
		Long: `Load the named agent, run it with the given input and stream the events
of the run to the terminal. Press ctrl-c to cancel the run.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := cli.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			inst, err := a.rt.Load(ctx, args[0])
			if err != nil {
				return err
			}
			lookup := a.capability(cli.cfg)
			for _, name := range attach {
				c, err := lookup(name)
				if err != nil {
					return err
				}
				if err := a.rt.Manager().AttachCapability(inst, c); err != nil {
					return err
				}
			}

			p := &printer{w: cmd.OutOrStdout(), quiet: quiet}
			res, err := a.rt.RunSync(ctx, inst, strings.Join(args[1:], " "), p.print)
			p.finish()
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("cancelled")
				}
				return err
			}
			if !p.streamed && res.Output != "" {
				fmt.Fprintln(p.w, res.Output)
			}
			if res.Usage != nil && !quiet {
				fmt.Fprintln(p.w, gray(fmt.Sprintf("tokens: prompt=%d completion=%d total=%d",
					res.Usage.PromptTokens, res.Usage.CompletionTokens, res.Usage.TotalTokens)))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&attach, "attach", "a", nil, "index to attach as a retriever capability (repeatable)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the agent output")
	return cmd
}

// printer renders run events as colored terminal output.
type printer struct {
	w        io.Writer
	quiet    bool
	streamed bool
	midLine  bool
}

func (p *printer) line(s string) {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
	fmt.Fprintln(p.w, s)
}

func (p *printer) print(e core.Event) {
	switch e.Kind {
	case core.EventTokenChunk:
		fmt.Fprint(p.w, e.Text)
		p.streamed, p.midLine = true, !strings.HasSuffix(e.Text, "\n")
	case core.EventError:
		p.line(red("✗ " + e.Err))
	}
	if p.quiet {
		return
	}
	switch e.Kind {
	case core.EventStateChanged:
		p.line(gray(fmt.Sprintf("[%s] %s -> %s", e.Agent, e.From, e.To)))
	case core.EventThoughtStep:
		if e.Activity == core.ActivityThinking && e.Text != "" {
			p.line(yellow("💭 " + e.Text))
		}
	case core.EventToolInvoked:
		switch e.Phase {
		case core.ToolStarted:
			p.line(cyan(fmt.Sprintf("🔧 %s(%s)", e.Tool, e.Input)))
		case core.ToolFinished:
			p.line(green("   ✓ ") + gray(oneLine(e.Output)))
		case core.ToolFailed:
			p.line(red(fmt.Sprintf("   ✗ %s: %s", e.Tool, e.Err)))
		}
	}
}

func (p *printer) finish() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		return s[:120] + "…"
	}
	return s
}
