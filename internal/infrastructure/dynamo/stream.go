package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/portfolio-api/internal/gateway"
)

// Subscribe polls the stream of every filtered table. The subscription ends
// with an error as soon as one table's stream fails.
func (g *Gateway) Subscribe(ctx context.Context, filters []gateway.ChangeFilter, handler func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	arns := make(map[string]string) // stream ARN -> collection
	for _, f := range filters {
		if f.Event != gateway.EventInsert {
			return nil, fmt.Errorf("dynamo streams: unsupported event %q", f.Event)
		}
		table, ok := g.tables[f.Collection]
		if !ok {
			return nil, fmt.Errorf("subscribe to %q: %w", f.Collection, gateway.ErrCollectionNotFound)
		}
		out, err := g.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err != nil {
			return nil, mapError(f.Collection, err)
		}
		if out.Table == nil || out.Table.LatestStreamArn == nil {
			return nil, fmt.Errorf("table %s has no stream enabled", table)
		}
		arns[*out.Table.LatestStreamArn] = f.Collection
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := gateway.NewStream(cancel)

	var (
		handlerMu sync.Mutex
		wg        sync.WaitGroup
		errOnce   sync.Once
		firstErr  error
	)
	emit := func(ev gateway.ChangeEvent) {
		if !ev.Matches(filters) {
			return
		}
		handlerMu.Lock()
		defer handlerMu.Unlock()
		handler(ev)
	}
	for arn, collection := range arns {
		wg.Add(1)
		go func(arn, collection string) {
			defer wg.Done()
			err := g.pollStream(subCtx, arn, collection, emit)
			if err != nil && subCtx.Err() == nil {
				errOnce.Do(func() { firstErr = err })
				cancel()
			}
		}(arn, collection)
	}
	go func() {
		wg.Wait()
		stream.Close(firstErr)
	}()
	return stream, nil
}

// pollStream starts every shard open at attach time at its tip. Shards that
// appear later are children of a split and are read from their start. An
// expired iterator resumes right after the last record read from its shard.
func (g *Gateway) pollStream(ctx context.Context, arn, collection string, emit func(gateway.ChangeEvent)) error {
	seen := make(map[string]bool)
	lastSeq := make(map[string]string)
	iterators, err := g.openShards(ctx, arn, seen, streamtypes.ShardIteratorTypeLatest)
	if err != nil {
		return err
	}
	slog.Info("dynamo stream attached", "collection", collection, "shards", len(iterators))

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		for shardID, it := range iterators {
			out, err := g.streams.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: aws.String(it)})
			if err != nil {
				var expired *streamtypes.ExpiredIteratorException
				if errors.As(err, &expired) {
					resumed, err := g.resumeShard(ctx, arn, shardID, lastSeq[shardID])
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						return err
					}
					if resumed == "" {
						delete(iterators, shardID)
					} else {
						iterators[shardID] = resumed
					}
					continue
				}
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("get records for %s: %w", collection, err)
			}
			for _, r := range out.Records {
				if r.Dynamodb == nil {
					continue
				}
				if r.Dynamodb.SequenceNumber != nil {
					lastSeq[shardID] = *r.Dynamodb.SequenceNumber
				}
				if r.EventName != streamtypes.OperationTypeInsert {
					continue
				}
				rec, err := fromStreamImage(r.Dynamodb.NewImage)
				if err != nil {
					slog.Warn("dynamo stream: undecodable image", "collection", collection, "err", err)
					continue
				}
				emit(gateway.ChangeEvent{Collection: collection, Event: gateway.EventInsert, New: rec})
			}
			if out.NextShardIterator == nil {
				delete(iterators, shardID)
				delete(lastSeq, shardID)
			} else {
				iterators[shardID] = *out.NextShardIterator
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		fresh, err := g.openShards(ctx, arn, seen, streamtypes.ShardIteratorTypeTrimHorizon)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for k, v := range fresh {
			iterators[k] = v
		}
	}
}

// resumeShard returns a new iterator just past after, or at the shard's tip
// when nothing was read from it yet. "" means the shard is gone.
func (g *Gateway) resumeShard(ctx context.Context, arn, shardID, after string) (string, error) {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(arn),
		ShardId:           aws.String(shardID),
		ShardIteratorType: streamtypes.ShardIteratorTypeLatest,
	}
	if after != "" {
		in.ShardIteratorType = streamtypes.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = aws.String(after)
	}
	out, err := g.streams.GetShardIterator(ctx, in)
	if err != nil {
		var trimmed *streamtypes.TrimmedDataAccessException
		if after != "" && errors.As(err, &trimmed) {
			slog.Warn("dynamo stream: records lost to trimming", "shard", shardID)
			return g.resumeShard(ctx, arn, shardID, "")
		}
		var gone *streamtypes.ResourceNotFoundException
		if errors.As(err, &gone) {
			slog.Warn("dynamo stream: shard trimmed", "shard", shardID)
			return "", nil
		}
		return "", fmt.Errorf("resume shard %s: %w", shardID, err)
	}
	if out.ShardIterator == nil {
		return "", nil
	}
	slog.Info("dynamo stream: shard iterator renewed", "shard", shardID, "type", string(in.ShardIteratorType))
	return *out.ShardIterator, nil
}

// openShards returns iterators for open shards not yet in seen and marks them seen.
func (g *Gateway) openShards(ctx context.Context, arn string, seen map[string]bool, kind streamtypes.ShardIteratorType) (map[string]string, error) {
	iterators := make(map[string]string)
	var start *string
	for {
		out, err := g.streams.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(arn),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return nil, fmt.Errorf("describe stream: %w", err)
		}
		if out.StreamDescription == nil {
			return iterators, nil
		}
		for _, sh := range out.StreamDescription.Shards {
			if sh.ShardId == nil || seen[*sh.ShardId] {
				continue
			}
			if sh.SequenceNumberRange != nil && sh.SequenceNumberRange.EndingSequenceNumber != nil {
				continue
			}
			it, err := g.streams.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         aws.String(arn),
				ShardId:           sh.ShardId,
				ShardIteratorType: kind,
			})
			if err != nil {
				return nil, fmt.Errorf("shard iterator %s: %w", *sh.ShardId, err)
			}
			if it.ShardIterator == nil {
				continue
			}
			seen[*sh.ShardId] = true
			iterators[*sh.ShardId] = *it.ShardIterator
		}
		start = out.StreamDescription.LastEvaluatedShardId
		if start == nil {
			return iterators, nil
		}
	}
}

// fromStreamImage converts a stream image into a gateway record. Numbers are
// kept as json.Number so they decode into any numeric field.
func fromStreamImage(image map[string]streamtypes.AttributeValue) (gateway.Record, error) {
	rec := make(gateway.Record, len(image))
	for k, av := range image {
		v, err := fromStreamValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		rec[k] = v
	}
	return rec, nil
}

func fromStreamValue(av streamtypes.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *streamtypes.AttributeValueMemberS:
		return v.Value, nil
	case *streamtypes.AttributeValueMemberN:
		return json.Number(v.Value), nil
	case *streamtypes.AttributeValueMemberBOOL:
		return v.Value, nil
	case *streamtypes.AttributeValueMemberNULL:
		return nil, nil
	case *streamtypes.AttributeValueMemberB:
		return v.Value, nil
	case *streamtypes.AttributeValueMemberSS:
		return v.Value, nil
	case *streamtypes.AttributeValueMemberNS:
		out := make([]json.Number, len(v.Value))
		for i, n := range v.Value {
			out[i] = json.Number(n)
		}
		return out, nil
	case *streamtypes.AttributeValueMemberBS:
		return v.Value, nil
	case *streamtypes.AttributeValueMemberM:
		return fromStreamImage(v.Value)
	case *streamtypes.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, item := range v.Value {
			conv, err := fromStreamValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported attribute type %T", av)
}
