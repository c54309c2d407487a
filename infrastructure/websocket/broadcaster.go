// Package websocket pushes domain events to API Gateway websocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	"todo-backend/application/ports"
	"todo-backend/infrastructure/persistence/dynamodb"
)

// PostAPI is the subset of the API Gateway management client used here
type PostAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// ConnectionRepository is where open connections are looked up
type ConnectionRepository interface {
	Save(ctx context.Context, connectionID, userID string, now time.Time) error
	Delete(ctx context.Context, connectionID string) error
	ListByUser(ctx context.Context, userID string) ([]dynamodb.Connection, error)
}

// Message is what clients receive
type Message struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Broadcaster sends messages to every open connection of a user
type Broadcaster struct {
	client      PostAPI
	connections ConnectionRepository
	now         func() time.Time
	logger      *zap.Logger
}

func NewBroadcaster(client PostAPI, connections ConnectionRepository, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{client: client, connections: connections, now: time.Now, logger: logger}
}

// NewManagementClient points the management API at a websocket stage
// endpoint such as "abc.execute-api.eu-central-1.amazonaws.com/prod".
func NewManagementClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String("https://" + endpoint)
	})
}

// SendToUser posts a message to each connection of userID and returns how
// many were reached. Gone connections are removed.
func (b *Broadcaster) SendToUser(ctx context.Context, userID, msgType string, data json.RawMessage) (int, error) {
	payload, err := json.Marshal(Message{Type: msgType, Timestamp: b.now().Unix(), Data: data})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	conns, err := b.connections.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	sent, failed := 0, 0
	for _, c := range conns {
		_, err := b.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(c.ConnectionID),
			Data:         payload,
		})
		if err == nil {
			sent++
			continue
		}

		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			b.logger.Info("Removing stale websocket connection", zap.String("connectionID", c.ConnectionID))
			if err := b.connections.Delete(ctx, c.ConnectionID); err != nil {
				b.logger.Warn("Failed to remove stale connection", zap.String("connectionID", c.ConnectionID), zap.Error(err))
			}
			continue
		}

		failed++
		b.logger.Warn("Failed to post to connection", zap.String("connectionID", c.ConnectionID), zap.Error(err))
	}

	if failed > 0 && sent == 0 {
		return 0, fmt.Errorf("all %d websocket sends failed", failed)
	}
	return sent, nil
}

// HandleEvent routes an EventBridge event to the user named by the
// detail's user_id. Events without one are ignored.
func (b *Broadcaster) HandleEvent(ctx context.Context, event lambdaevents.CloudWatchEvent) error {
	var detail struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		return fmt.Errorf("failed to parse event detail: %w", err)
	}
	if detail.UserID == "" {
		b.logger.Debug("Event has no recipient", zap.String("detailType", event.DetailType))
		return nil
	}

	sent, err := b.SendToUser(ctx, detail.UserID, event.DetailType, event.Detail)
	if err != nil {
		return err
	}
	b.logger.Info("Pushed event to owner",
		zap.String("detailType", event.DetailType),
		zap.String("userID", detail.UserID),
		zap.Int("connections", sent),
	)
	return nil
}

// TracedHandler returns HandleEvent with each event wrapped in a span
func (b *Broadcaster) TracedHandler(tracer ports.FunctionTracer) func(context.Context, lambdaevents.CloudWatchEvent) error {
	return func(ctx context.Context, event lambdaevents.CloudWatchEvent) error {
		return tracer.TraceFunction(ctx, "websocket.broadcast", func(ctx context.Context) error {
			tracer.AddAnnotation(ctx, "detail_type", event.DetailType)
			return b.HandleEvent(ctx, event)
		})
	}
}
