package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newIndexCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector indexes agents can use as retrievers",
	}
	cmd.AddCommand(newIndexAddCommand(cli), newIndexQueryCommand(cli), newIndexListCommand(cli), newIndexRemoveCommand(cli))
	return cmd
}

func newIndexAddCommand(cli *CLI) *cobra.Command {
	var (
		description string
		texts       []string
	)
	cmd := &cobra.Command{
		Use:   "add <name> [file...]",
		Short: "Add files or texts to an index, creating it if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			idx, err := store.GetOrCreate(args[0], description)
			if err != nil {
				return err
			}
			total := 0
			for _, file := range args[1:] {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				chunks := Chunk(string(data), 1000)
				if err := idx.AddTexts(cmd.Context(), chunks, map[string]string{"source": file}); err != nil {
					return err
				}
				total += len(chunks)
			}
			if len(texts) > 0 {
				if err := idx.AddTexts(cmd.Context(), texts, map[string]string{"source": "cli"}); err != nil {
					return err
				}
				total += len(texts)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s added %d documents to %s (%d total)\n", green("✓"), total, idx.Name(), idx.Count())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the index content")
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "text to add (repeatable)")
	return cmd
}

func newIndexQueryCommand(cli *CLI) *cobra.Command {
	var results int
	cmd := &cobra.Command{
		Use:   "query <name> <text...>",
		Short: "Query an index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			idx, err := store.Get(args[0])
			if err != nil {
				return err
			}
			matches, err := idx.Query(cmd.Context(), strings.Join(args[1:], " "), results)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range matches {
				fmt.Fprintf(out, "%s %s\n%s\n\n", yellow(fmt.Sprintf("%.3f", m.Similarity)), gray(m.Metadata["source"]), m.Content)
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "no documents found")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&results, "results", "n", 4, "number of results")
	return cmd
}

func newIndexListCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			for _, name := range store.Names() {
				idx, err := store.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d documents) %s\n", bold(name), idx.Count(), idx.Description())
			}
			return nil
		},
	}
}

func newIndexRemoveCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", green("✓"), args[0])
			return nil
		},
	}
}

// Chunk splits text into paragraphs and packs them into chunks of at most
// size bytes. Paragraphs longer than size are split on word boundaries.
func Chunk(text string, size int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > size {
			flush()
		}
		if len(para) <= size {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		for _, word := range strings.Fields(para) {
			if cur.Len() > 0 && cur.Len()+len(word)+1 > size {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString(" ")
			}
			cur.WriteString(word)
		}
		flush()
	}
	flush()
	return chunks
}

