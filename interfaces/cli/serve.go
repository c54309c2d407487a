package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/messaging/sqs"
	"todo-backend/interfaces/http/rest"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API. Without SHARING_QUEUE_URL invitations are delivered
by an in-process queue; with it, --with-worker also consumes the SQS queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "consume the SQS sharing queue in this process")
	return cmd
}

func runServe(ctx context.Context, withWorker bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	logger := container.Logger

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      rest.NewRouter(container).Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	switch {
	case container.LocalQueue != nil:
		g.Go(func() error {
			return container.LocalQueue.Run(ctx, container.Dispatcher, cfg.SharingQueueConcurrency)
		})
	case withWorker:
		consumer := sqs.NewConsumer(container.SQS, cfg.SharingQueueURL, container.Dispatcher, cfg.SharingQueueConcurrency, logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if container.CloudWatch != nil {
		g.Go(func() error {
			container.CloudWatch.Run(ctx)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("Server stopped")
	_ = logger.Sync()
	return err
}
