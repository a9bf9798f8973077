package tokenstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB item API.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(key map[string]types.AttributeValue) string {
	if s, ok := key["PK"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[*in.TableName+"/"+pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.items[*in.TableName+"/"+pkOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, *in.TableName+"/"+pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDB_Contract(t *testing.T) {
	exerciseStore(t, newDynamoDB(newFakeDynamo(), "tokens", "", 0))
}

func TestDynamoDB_ItemLayout(t *testing.T) {
	fake := newFakeDynamo()
	s := newDynamoDB(fake, "tokens", "acct:token", 10*time.Minute)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Set(context.Background(), "abc"))

	item := fake.items["tokens/acct:token"]
	require.NotNil(t, item)
	assert.Equal(t, "abc", item["Token"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "1772367000", item["TTL"].(*types.AttributeValueMemberN).Value)
}

func TestDynamoDB_ExpiredItemMisses(t *testing.T) {
	s := newDynamoDB(newFakeDynamo(), "tokens", "", time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(context.Background(), "abc"))

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoDB_ErrorsWrapped(t *testing.T) {
	fake := newFakeDynamo()
	boom := errors.New("throttled")
	fake.err = boom
	s := newDynamoDB(fake, "tokens", "", 0)

	_, _, err := s.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Set(context.Background(), "x"), boom)
	assert.ErrorIs(t, s.Clear(context.Background()), boom)
}
