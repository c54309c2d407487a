package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"todo-backend/domain/tracing"
	pkgerrors "todo-backend/pkg/errors"
)

// API is the subset of the DynamoDB client used by the stores in this package
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// breadcrumbItem is how breadcrumbs are stored. Items for one user share a
// partition and sort by time.
type breadcrumbItem struct {
	PK string `dynamodbav:"PK"` // USER#<username>
	SK string `dynamodbav:"SK"` // <RFC3339 timestamp>#<id>
	tracing.Breadcrumb
}

// BreadcrumbStore is an append-only ports.BreadcrumbStore backed by DynamoDB
type BreadcrumbStore struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewBreadcrumbStore creates a breadcrumb store on tableName
func NewBreadcrumbStore(client API, tableName string, logger *zap.Logger) *BreadcrumbStore {
	return &BreadcrumbStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func userKey(username string) string { return "USER#" + username }

func sortKey(ts time.Time, id string) string {
	return ts.UTC().Format(time.RFC3339) + "#" + id
}

// afterKey sorts after every sort key of its second, so "SK > afterKey"
// selects items strictly later than ts at storage precision.
func afterKey(ts time.Time) string {
	return ts.UTC().Truncate(time.Second).Format(time.RFC3339) + "#~"
}

// Save appends b. Existing records are never overwritten.
func (s *BreadcrumbStore) Save(ctx context.Context, b tracing.Breadcrumb) error {
	item, err := attributevalue.MarshalMap(breadcrumbItem{
		PK:         userKey(b.Username),
		SK:         sortKey(b.Timestamp, b.ID),
		Breadcrumb: b,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal breadcrumb: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError("breadcrumb already recorded")
		}
		return pkgerrors.NewExternalError("dynamodb", err)
	}
	return nil
}

// FindByUsername returns every breadcrumb recorded for username
func (s *BreadcrumbStore) FindByUsername(ctx context.Context, username string) ([]tracing.Breadcrumb, error) {
	return s.query(ctx, expression.Key("PK").Equal(expression.Value(userKey(username))))
}

// FindByUsernameSince returns breadcrumbs recorded for username after since
func (s *BreadcrumbStore) FindByUsernameSince(ctx context.Context, username string, since time.Time) ([]tracing.Breadcrumb, error) {
	key := expression.Key("PK").Equal(expression.Value(userKey(username))).
		And(expression.Key("SK").GreaterThan(expression.Value(afterKey(since))))
	return s.query(ctx, key)
}

func (s *BreadcrumbStore) query(ctx context.Context, key expression.KeyConditionBuilder) ([]tracing.Breadcrumb, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(key).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	out := []tracing.Breadcrumb{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewExternalError("dynamodb", err)
		}
		for _, raw := range page.Items {
			var item breadcrumbItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable breadcrumb", zap.Error(err))
				continue
			}
			out = append(out, item.Breadcrumb)
		}
	}
	return out, nil
}
