package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/service"
)

func newSplitCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "split <file|url>",
		Short: "Show how a document would be chunked for the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			log := root.logger(cmd.ErrOrStderr())

			tree, err := loadDocument(cmd.Context(), args[0], cfg, log)
			if err != nil {
				return err
			}
			text := tree.Text()
			sc := service.StreamConfig(cfg)

			chunks, err := chunker.NewSplitter(sc.Chunking).Split(text)
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), chunks)
			}

			out := cmd.OutOrStdout()
			tokens := chunker.EstimateTokens(text)
			mode := successStyle.Render("single request")
			if chunker.ExceedsLimit(text, sc.MaxTokens) {
				mode = warnStyle.Render("chunked")
			}
			fmt.Fprintf(out, "%s %s  %s %d chars, ~%d tokens (limit %d)  %s\n",
				dimStyle.Render("Document:"), titleStyle.Render(tree.Title),
				dimStyle.Render("Size:"), len(text), tokens, sc.MaxTokens, mode)
			for _, c := range chunks {
				fmt.Fprintf(out, "%s %7d-%-7d %6d chars  ~%d tokens\n",
					dimStyle.Render(fmt.Sprintf("#%d/%d", c.Index+1, c.TotalChunks)),
					c.StartChar, c.EndChar, len(c.Content), chunker.EstimateTokens(c.Content))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the chunks as JSON")
	return cmd
}
