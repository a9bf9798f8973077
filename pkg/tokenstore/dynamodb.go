package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBOptions holds settings for the DynamoDB backend. The table needs a
// string partition key named PK; enabling DynamoDB TTL on the TTL attribute
// is recommended but not required.
type DynamoDBOptions struct {
	Table     string
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string
}

// dynamoAPI is the subset of *dynamodb.Client the store uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// tokenItem is the DynamoDB item layout.
type tokenItem struct {
	PK        string `dynamodbav:"PK"`
	Token     string `dynamodbav:"Token"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL"`
}

// DynamoDB caches the token as a single item keyed by PK.
type DynamoDB struct {
	db    dynamoAPI
	table string
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// NewDynamoDB wraps an existing DynamoDB client.
func NewDynamoDB(client *dynamodb.Client, table, key string, ttl time.Duration) *DynamoDB {
	return newDynamoDB(client, table, key, ttl)
}

func newDynamoDB(db dynamoAPI, table, key string, ttl time.Duration) *DynamoDB {
	return &DynamoDB{
		db:    db,
		table: table,
		key:   keyOrDefault(key),
		ttl:   ttlOrDefault(ttl),
		now:   time.Now,
	}
}

// OpenDynamoDB loads AWS configuration and returns a DynamoDB-backed store.
// Without a profile or static keys the default credential chain is used.
func OpenDynamoDB(ctx context.Context, opts DynamoDBOptions, key string, ttl time.Duration) (*DynamoDB, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("tokenstore: dynamodb table is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewDynamoDB(client, opts.Table, key, ttl), nil
}

func (d *DynamoDB) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: d.key},
	}
}

func (d *DynamoDB) Get(ctx context.Context) (string, bool, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.itemKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: dynamodb get %s: %w", d.key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}

	var item tokenItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", false, fmt.Errorf("tokenstore: unmarshaling item: %w", err)
	}
	// DynamoDB TTL deletion is lazy, so expired items can still be returned.
	if item.TTL > 0 && d.now().Unix() >= item.TTL {
		return "", false, nil
	}
	return item.Token, item.Token != "", nil
}

func (d *DynamoDB) Set(ctx context.Context, token string) error {
	now := d.now().UTC()
	item := tokenItem{
		PK:        d.key,
		Token:     token,
		Timestamp: now.Format(time.RFC3339),
		TTL:       now.Add(d.ttl).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("tokenstore: marshaling item: %w", err)
	}

	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("tokenstore: dynamodb put %s: %w", d.key, err)
	}
	return nil
}

func (d *DynamoDB) Clear(ctx context.Context) error {
	_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey(),
	})
	if err != nil {
		return fmt.Errorf("tokenstore: dynamodb delete %s: %w", d.key, err)
	}
	return nil
}
