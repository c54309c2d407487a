package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	pkgerrors "todo-backend/pkg/errors"
)

const (
	// DefaultUserIndex is the GSI that groups connections by user
	DefaultUserIndex = "GSI1"
	connectionTTL    = 24 * time.Hour
)

// Connection is an open API Gateway websocket connection
type Connection struct {
	ConnectionID string    `dynamodbav:"ConnectionID"`
	UserID       string    `dynamodbav:"UserID"`
	ConnectedAt  time.Time `dynamodbav:"ConnectedAt"`
}

type connectionItem struct {
	PK     string `dynamodbav:"PK"`     // CONN#<connection_id>
	SK     string `dynamodbav:"SK"`     // METADATA
	GSI1PK string `dynamodbav:"GSI1PK"` // USER#<user_id>
	GSI1SK string `dynamodbav:"GSI1SK"` // CONN#<connection_id>
	TTL    int64  `dynamodbav:"TTL"`
	Connection
}

// ConnectionStore keeps websocket connections so events can be pushed to a user
type ConnectionStore struct {
	client    API
	tableName string
	userIndex string
	logger    *zap.Logger
}

// NewConnectionStore creates a connection store on tableName
func NewConnectionStore(client API, tableName string, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{
		client:    client,
		tableName: tableName,
		userIndex: DefaultUserIndex,
		logger:    logger,
	}
}

func connectionKey(connectionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CONN#" + connectionID},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Save registers a connection for userID
func (s *ConnectionStore) Save(ctx context.Context, connectionID, userID string, now time.Time) error {
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:     "CONN#" + connectionID,
		SK:     "METADATA",
		GSI1PK: userKey(userID),
		GSI1SK: "CONN#" + connectionID,
		TTL:    now.Add(connectionTTL).Unix(),
		Connection: Connection{
			ConnectionID: connectionID,
			UserID:       userID,
			ConnectedAt:  now.UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return pkgerrors.NewExternalError("dynamodb", err)
	}

	s.logger.Debug("Websocket connection stored",
		zap.String("connectionID", connectionID),
		zap.String("userID", userID),
	)
	return nil
}

// Delete forgets a connection. Deleting an unknown connection succeeds.
func (s *ConnectionStore) Delete(ctx context.Context, connectionID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       connectionKey(connectionID),
	}); err != nil {
		return pkgerrors.NewExternalError("dynamodb", err)
	}
	return nil
}

// ListByUser returns the open connections of userID
func (s *ConnectionStore) ListByUser(ctx context.Context, userID string) ([]Connection, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(userKey(userID)))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.userIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var out []Connection
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewExternalError("dynamodb", err)
		}
		for _, raw := range page.Items {
			var item connectionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable connection", zap.Error(err))
				continue
			}
			out = append(out, item.Connection)
		}
	}
	return out, nil
}
