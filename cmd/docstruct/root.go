package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/parser"
)

type rootOptions struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "docstruct",
		Short: "Turn legal and regulatory documents into structured hierarchies",
		Long: `docstruct sends a document's text to a language model and streams back its
hierarchy (titles, chapters, articles, sections) as JSON, repairing the
model's output when a stream ends early.

Documents can be PDF, DOCX, Markdown, HTML, CSV or plain text, from a local
file or a URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml); the environment overrides it")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newParseCmd(opts),
		newSplitCmd(opts),
		newRecoverCmd(),
		newServeCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.LoadFile(o.cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// loadDocument reads a local file or fetches a URL into a document tree.
func loadDocument(ctx context.Context, arg string, cfg config.Config, log *slog.Logger) (*doctree.DocTree, error) {
	opts := parser.Options{PdftotextFallback: cfg.PDFFallbackPdftotext}
	if isURL(arg) {
		f := parser.NewFetcher(opts, parser.WithProxy(cfg.FetchProxyURL), parser.WithFetchLogger(log))
		return f.Fetch(ctx, arg)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	return parser.ParseBytes(data, filepath.Base(arg), opts)
}
