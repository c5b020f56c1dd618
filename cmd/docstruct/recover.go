package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/extract"
)

func newRecoverCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "recover <file|->",
		Short: "Repair a truncated or malformed model response into a document",
		Long: `Run the recovery parser over a saved model response and print the best
document it can rebuild. Reads stdin when the argument is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			rec := extract.Recover(string(data))
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), recoverySummary(rec))
			}
			return writeIndented(cmd.OutOrStdout(), rec.Document)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no summary on stderr")
	return cmd
}
