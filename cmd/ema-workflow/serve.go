package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koscakluka/ema-workflow/core/channels"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over websockets",
		Long: `Serves a websocket chat endpoint. Clients connect to the configured path,
optionally passing conversation_id and user_id query parameters, and
exchange JSON messages: {"text": "..."} in, {"conversation_id": "...",
"text": "..."} out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Serve.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides serve.addr")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(opts.cfg)
	if err != nil {
		return err
	}
	defer a.close()

	hub := channels.NewHub()
	controller := a.controller(hub)
	hub.OnUtterance(controller.HandleUtterance)

	mux := http.NewServeMux()
	mux.Handle(opts.cfg.Serve.Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              opts.cfg.Serve.Addr,
		Handler:           otelhttp.NewHandler(mux, "ema-workflow"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.runSweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		cmd.Printf("Serving chat on ws://%s%s\n", server.Addr, opts.cfg.Serve.Path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving chat: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "shutting down chat server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down chat server: %w", err)
	}
	return nil
}
