package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/api"
	"github.com/JakeFAU/douyin-harvester/internal/clock/system"
	"github.com/JakeFAU/douyin-harvester/internal/dispatcher"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	queueMemory "github.com/JakeFAU/douyin-harvester/internal/queue/memory"
	storeMemory "github.com/JakeFAU/douyin-harvester/internal/store/memory"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accepts harvest runs over HTTP",
		Long: `Starts an HTTP API that queues search, comment, and auto-comment runs.
Runs execute one at a time in submission order; their state can be queried
under /v1/runs. Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = services.Config().Server.Addr
			}
			return serve(cmd.Context(), services, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default is server.addr)")
	return cmd
}

func serve(ctx context.Context, services Services, addr string) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cfg := services.Config()
	logger := services.Logger()
	metrics.Init()

	queue := queueMemory.NewQueue(cfg.Server.QueueDepth)
	runs := storeMemory.NewRunStore()
	dispatch := dispatcher.New(dispatcher.Config{
		Queue:  queue,
		Runner: services.Runner(),
		Runs:   runs,
		IDs:    services,
		Clock:  system.New(),
		Logger: logger.Named("dispatcher"),
	})
	apiServer := api.NewServer(dispatch, runs, api.Options{
		APIKey: cfg.Server.APIKey,
		Logger: logger.Named("api"),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	services.StartBackground(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("dispatcher started", zap.Int("queue_depth", cfg.Server.QueueDepth))
		dispatch.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-done
	logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
