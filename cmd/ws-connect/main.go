// Command ws-connect handles the $connect and $disconnect routes of the
// websocket API.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/websocket"
)

var gateway *websocket.Gateway

func init() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, _, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	validator, err := di.ProvideJWTValidator(di.ProvideJWTConfig(cfg, logger))
	if err != nil {
		log.Fatalf("Failed to create token validator: %v", err)
	}

	gateway = websocket.NewGateway(validator, di.ProvideConnectionStore(cfg, awsCfg, logger), logger)
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.RequestContext.RouteKey == "$disconnect" {
		return gateway.Disconnect(ctx, req)
	}
	return gateway.Connect(ctx, req)
}

func main() {
	lambda.Start(handler)
}
