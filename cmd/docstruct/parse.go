package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/llm"
	"github.com/dgallion1/docstruct/internal/service"
	"github.com/dgallion1/docstruct/internal/stream"
)

type parseOptions struct {
	replay   string
	fragment int
	title    string
	events   bool
	quiet    bool
}

func newParseCmd(root *rootOptions) *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse <file|url>",
		Short: "Structure a document and print its hierarchy as JSON",
		Long: `Structure a document with the configured model. Progress goes to stderr as
nodes arrive; the final document is printed to stdout.

Examples:
  docstruct parse act.pdf > act.json
  docstruct parse https://example.org/regulation.html
  docstruct parse act.txt --replay recorded.json   # no model calls
  docstruct parse act.txt --events | jq .type`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			errOut := cmd.ErrOrStderr()
			log := root.logger(errOut)

			var client llm.Client
			if opts.replay != "" {
				data, err := os.ReadFile(opts.replay)
				if err != nil {
					return err
				}
				client = llm.NewReplay(opts.fragment, string(data))
			} else {
				if err := cfg.ValidateModel(); err != nil {
					return err
				}
				if client, err = service.NewClient(cfg, log); err != nil {
					return err
				}
			}

			tree, err := loadDocument(cmd.Context(), args[0], cfg, log)
			if err != nil {
				return err
			}
			if opts.title != "" {
				tree.Title = opts.title
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			var doc *hierarchy.Document
			var failure string

			orch := stream.New(client, service.StreamConfig(cfg), log, nil)
			err = orch.ProcessDocument(cmd.Context(), tree.Title, tree.Text(), func(u stream.Update) {
				switch u.Kind {
				case stream.KindComplete:
					doc = u.Document
				case stream.KindError:
					failure = u.Message
				}
				if opts.events {
					if err := enc.Encode(u); err != nil {
						log.Warn("write event", "error", err)
					}
					return
				}
				if line := renderUpdate(u); line != "" && !opts.quiet {
					fmt.Fprintln(errOut, line)
				}
			})
			if err != nil {
				return err
			}
			if doc == nil {
				if failure == "" {
					failure = "structuring ended without a document"
				}
				return errors.New(failure)
			}
			if opts.events {
				return nil
			}
			if !opts.quiet {
				fmt.Fprintln(errOut, documentSummary(*doc))
			}
			return writeIndented(out, doc)
		},
	}
	cmd.Flags().StringVar(&opts.replay, "replay", "", "stream this recorded model response instead of calling the model")
	cmd.Flags().IntVar(&opts.fragment, "fragment", 64, "fragment size in bytes for --replay")
	cmd.Flags().StringVar(&opts.title, "title", "", "override the document title")
	cmd.Flags().BoolVar(&opts.events, "events", false, "print every update as a JSON line instead of the final document")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "no progress output")
	return cmd
}
