package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/messaging/sqs"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver collaboration invitations from the SQS sharing queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.SharingQueueURL == "" {
				return fmt.Errorf("SHARING_QUEUE_URL is required for the worker")
			}

			container, err := di.NewContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			container.Logger.Info("Starting sharing worker",
				zap.String("queue", cfg.SharingQueueURL),
				zap.Int("concurrency", cfg.SharingQueueConcurrency),
			)
			consumer := sqs.NewConsumer(container.SQS, cfg.SharingQueueURL, container.Dispatcher, cfg.SharingQueueConcurrency, container.Logger)
			return consumer.Run(cmd.Context())
		},
	}
}
