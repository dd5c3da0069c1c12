package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/escrow/internal/cli"
	"github.com/aretw0/escrow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/escrow/pkg/adapters/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Starts the transaction API and, unless disabled, a Prometheus metrics endpoint on its own address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := cli.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					logger.Warn("Failed to close resources", "err", err)
				}
			}()

			handlerOpts := []httpAdapter.Option{
				httpAdapter.WithLogger(logger),
				httpAdapter.WithStreams(rt.Streams),
			}
			if rt.Metrics != nil {
				handlerOpts = append(handlerOpts, httpAdapter.WithObserver(rt.Metrics))
			}

			quiet, _ := cmd.Flags().GetBool("quiet")
			if !quiet {
				tui.PrintBanner(cmd.ErrOrStderr())
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				srv := &http.Server{
					Addr:              cfg.HTTP.Addr,
					Handler:           httpAdapter.NewHandler(rt.Service, handlerOpts...),
					ReadHeaderTimeout: 10 * time.Second,
				}
				return runServer(gctx, srv, "api", logger)
			})
			if rt.Metrics != nil {
				g.Go(func() error {
					mux := http.NewServeMux()
					mux.Handle("/metrics", rt.Metrics.Handler())
					srv := &http.Server{
						Addr:              cfg.Metrics.Addr,
						Handler:           mux,
						ReadHeaderTimeout: 10 * time.Second,
					}
					return runServer(gctx, srv, "metrics", logger)
				})
			}

			err = g.Wait()
			logger.Info("Escrow server stopped")
			return err
		},
	}

	cmd.Flags().String("addr", ":8080", "API listen address")
	cmd.Flags().String("metrics-addr", ":9090", "Metrics listen address")
	cmd.Flags().Bool("metrics", true, "Expose Prometheus metrics")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
	return cmd
}

// runServer serves until ctx is done, then shuts down gracefully.
// In-flight event streams share ctx and end with it.
func runServer(ctx context.Context, srv *http.Server, name string, logger *slog.Logger) error {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "server", name, "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not complete", "server", name, "timeout", shutdownTimeout, "err", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("error killing %s server: %w", name, err)
		}
	}
	return nil
}
