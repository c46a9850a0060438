package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/id"
)

const keyID = "id"

// tableAPI is the subset of the DynamoDB client the gateway uses.
type tableAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// streamAPI is the subset of the DynamoDB Streams client the gateway uses.
type streamAPI interface {
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Gateway stores each collection in its own table and reads the change-feed
// from the tables' DynamoDB Streams.
type Gateway struct {
	db           tableAPI
	streams      streamAPI
	tables       map[string]string
	pollInterval time.Duration
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway maps the application's collections onto the configured tables.
func NewGateway(db tableAPI, streams streamAPI, tables config.DynamoTables, pollInterval time.Duration) *Gateway {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Gateway{
		db:      db,
		streams: streams,
		tables: map[string]string{
			domain.CollectionContactSubmissions: tables.ContactSubmissions,
			domain.CollectionHireMeClicks:       tables.HireMeClicks,
			domain.CollectionAnalytics:          tables.Analytics,
			domain.CollectionResumeDownloads:    tables.ResumeDownloads,
		},
		pollInterval: pollInterval,
	}
}

func (g *Gateway) Insert(ctx context.Context, collection string, row any) (gateway.Record, error) {
	table, ok := g.tables[collection]
	if !ok || table == "" {
		return nil, fmt.Errorf("insert into %q: %w", collection, gateway.ErrCollectionNotFound)
	}
	rec, err := gateway.ToRecord(row)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		rec[keyID] = id.New()
	}
	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal %s row: %w", collection, err)
	}
	_, err = g.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return nil, mapError(collection, err)
	}
	return rec, nil
}

// mapError turns a missing table into gateway.ErrCollectionNotFound.
func mapError(collection string, err error) error {
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("table for %q: %w", collection, gateway.ErrCollectionNotFound)
	}
	return fmt.Errorf("dynamo %s: %w", collection, err)
}
