// Command sharing-listener delivers collaboration invitations from the SQS
// sharing queue as a Lambda event source.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/messaging/sqs"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.NewContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// The environment is frozen once a batch returns, so pending
	// auto-confirmations and buffered breadcrumbs finish inside the invocation.
	handler := sqs.NewLambdaHandler(container.Dispatcher, container.Logger,
		sqs.WithTracer(container.Tracer),
		sqs.WithAfterBatch(container.Scheduler.Drain, container.Sink.Flush),
	)
	lambda.StartWithOptions(handler.Handle, lambda.WithEnableSIGTERM(container.Close))
}
