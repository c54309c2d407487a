// Command ws-send-message pushes todo events from EventBridge to the
// owner's open websocket connections.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/websocket"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}

	logger, cleanup, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tracer, shutdown, err := di.ProvideTracer(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	broadcaster := websocket.NewBroadcaster(
		websocket.NewManagementClient(awsCfg, cfg.WebSocketEndpoint),
		di.ProvideConnectionStore(cfg, awsCfg, logger),
		logger,
	)
	lambda.StartWithOptions(broadcaster.TracedHandler(tracer), lambda.WithEnableSIGTERM(shutdown, cleanup))
}
