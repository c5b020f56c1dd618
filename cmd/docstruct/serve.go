package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/service"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the docstruct HTTP API",
		Long: `Run the HTTP API: parse jobs, live job events over SSE, stored documents and
model stats. Stops cleanly on Ctrl+C or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := service.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()
			svc.Pipeline.Start(ctx)

			httpServer := &http.Server{
				Addr:        ":" + cfg.Port,
				Handler:     svc.Server,
				ReadTimeout: 30 * time.Second,
				IdleTimeout: 60 * time.Second,
			}
			go func() {
				<-ctx.Done()
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting docstruct", "port", cfg.Port, "provider", cfg.LLMProvider)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default from PORT)")
	return cmd
}
