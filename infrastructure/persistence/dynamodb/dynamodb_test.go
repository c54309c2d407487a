package dynamodb

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-backend/domain/tracing"
	pkgerrors "todo-backend/pkg/errors"
)

// fakeDynamo understands just enough of PutItem/DeleteItem/Query to back the
// stores in this package. Queries match on the USER# partition value and an
// optional lower bound on SK, strict unless the condition says ">=".
type fakeDynamo struct {
	mu       sync.Mutex
	items    []map[string]types.AttributeValue
	pageSize int
	queries  int
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) find(pk, sk string) int {
	for i, item := range f.items {
		if str(item["PK"]) == pk && str(item["SK"]) == sk {
			return i
		}
	}
	return -1
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(str(in.Item["PK"]), str(in.Item["SK"]))
	if idx >= 0 {
		if in.ConditionExpression != nil {
			return nil, &types.ConditionalCheckFailedException{}
		}
		f.items[idx] = in.Item
		return &dynamodb.PutItemOutput{}, nil
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if idx := f.find(str(in.Key["PK"]), str(in.Key["SK"])); idx >= 0 {
		f.items = append(f.items[:idx], f.items[idx+1:]...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	keyAttr := "PK"
	if in.IndexName != nil {
		keyAttr = "GSI1PK"
	}
	var partition, lower string
	inclusive := strings.Contains(aws.ToString(in.KeyConditionExpression), ">=")
	for _, v := range in.ExpressionAttributeValues {
		if s := str(v); strings.HasPrefix(s, "USER#") {
			partition = s
		} else {
			lower = s
		}
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item[keyAttr]) != partition {
			continue
		}
		if lower != "" {
			sk := str(item["SK"])
			if sk < lower || (sk == lower && !inclusive) {
				continue
			}
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		if a, b := str(matched[i]["SK"]), str(matched[j]["SK"]); a != b {
			return a < b
		}
		return str(matched[i]["PK"]) < str(matched[j]["PK"])
	})

	start := 0
	if in.ExclusiveStartKey != nil {
		start, _ = strconv.Atoi(str(in.ExclusiveStartKey["next"]))
	}
	end := len(matched)
	out := &dynamodb.QueryOutput{}
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"next": &types.AttributeValueMemberS{Value: strconv.Itoa(end)},
		}
	}
	out.Items = matched[start:end]
	return out, nil
}

func TestBreadcrumbStore_SaveAndFind(t *testing.T) {
	// Arrange
	fake := &fakeDynamo{pageSize: 2}
	store := NewBreadcrumbStore(fake, "test-todo-app-breadcrumb", zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, tracing.NewBreadcrumb("/api/dashboard", "alice", now.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, store.Save(ctx, tracing.NewBreadcrumb("/api/dashboard", "bob", now)))

	// Act
	all, err := store.FindByUsername(ctx, "alice")

	// Assert
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, 3, fake.queries, "results should be read across pages")
	for _, b := range all {
		assert.Equal(t, "alice", b.Username)
		assert.Equal(t, "/api/dashboard", b.URI)
		assert.NotEmpty(t, b.ID)
	}
}

func TestBreadcrumbStore_FindSince(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewBreadcrumbStore(fake, "crumbs", zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	old := tracing.NewBreadcrumb("/old", "alice", now.Add(-15*24*time.Hour))
	recent := tracing.NewBreadcrumb("/recent", "alice", now.Add(-time.Hour))
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, recent))

	found, err := store.FindByUsernameSince(ctx, "alice", now.Add(-tracing.TwoWeeks))

	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, recent, found[0])
}

func TestBreadcrumbStore_FindSinceExcludesBoundary(t *testing.T) {
	// Arrange
	fake := &fakeDynamo{}
	store := NewBreadcrumbStore(fake, "crumbs", zap.NewNop())
	ctx := context.Background()
	since := time.Date(2026, 10, 2, 12, 0, 0, 0, time.UTC)

	atBoundary := tracing.NewBreadcrumb("/boundary", "alice", since)
	justAfter := tracing.NewBreadcrumb("/after", "alice", since.Add(time.Second))
	require.NoError(t, store.Save(ctx, atBoundary))
	require.NoError(t, store.Save(ctx, justAfter))

	// Act
	found, err := store.FindByUsernameSince(ctx, "alice", since)
	withFraction, err2 := store.FindByUsernameSince(ctx, "alice", since.Add(500*time.Millisecond))

	// Assert
	require.NoError(t, err)
	require.NoError(t, err2)
	assert.Equal(t, []tracing.Breadcrumb{justAfter}, found)
	assert.Equal(t, []tracing.Breadcrumb{justAfter}, withFraction)
}

func TestBreadcrumbStore_IsAppendOnly(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewBreadcrumbStore(fake, "crumbs", zap.NewNop())
	b := tracing.NewBreadcrumb("/api/todos", "alice", time.Now())

	require.NoError(t, store.Save(context.Background(), b))
	err := store.Save(context.Background(), b)

	assert.True(t, pkgerrors.IsConflict(err))
}

func TestConnectionStore_Lifecycle(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewConnectionStore(fake, "connections", zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, "conn-1", "alice@example.com", now))
	require.NoError(t, store.Save(ctx, "conn-2", "alice@example.com", now))
	require.NoError(t, store.Save(ctx, "conn-3", "bob@example.com", now))

	conns, err := store.ListByUser(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "conn-1", conns[0].ConnectionID)

	require.NoError(t, store.Delete(ctx, "conn-1"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	conns, err = store.ListByUser(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "conn-2", conns[0].ConnectionID)
}
