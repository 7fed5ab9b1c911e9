package dynamodbstreams

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/huypham612/dynastream/pkg/connector"
)

const (
	optStreamARN    = "stream_arn"
	optRegion       = "region"
	optIteratorType = "iterator_type"
	optBatchSize    = "batch_size"

	// maxBatchSize is the GetRecords limit imposed by the service.
	maxBatchSize = 1000
)

// StreamsAPI is the slice of the DynamoDB Streams client the source uses.
// Tests substitute a fake.
type StreamsAPI interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Source reads raw change records from one DynamoDB stream. Shard leasing is
// out of scope; every listed shard is polled by this process.
type Source struct {
	spec         connector.Spec
	client       StreamsAPI
	streamARN    string
	iteratorType types.ShardIteratorType
	batchSize    int32
	table        *connector.TableInfo
}

// NewSource wires a source around an existing client. Pass nil to have Open
// build one from the default AWS config chain.
func NewSource(client StreamsAPI) *Source {
	return &Source{client: client}
}

func (s *Source) Open(ctx context.Context, spec connector.Spec) error {
	s.spec = spec

	s.streamARN = strings.TrimSpace(spec.Options[optStreamARN])
	if s.streamARN == "" {
		return errors.New("dynamodbstreams source requires stream_arn")
	}

	iterator := strings.ToUpper(strings.TrimSpace(spec.Options[optIteratorType]))
	switch iterator {
	case "", string(types.ShardIteratorTypeTrimHorizon):
		s.iteratorType = types.ShardIteratorTypeTrimHorizon
	case string(types.ShardIteratorTypeLatest):
		s.iteratorType = types.ShardIteratorTypeLatest
	default:
		return fmt.Errorf("unsupported iterator_type %q", iterator)
	}

	s.batchSize = maxBatchSize
	if raw := strings.TrimSpace(spec.Options[optBatchSize]); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid batch_size %q", raw)
		}
		if parsed > maxBatchSize {
			parsed = maxBatchSize
		}
		s.batchSize = int32(parsed)
	}

	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if region := strings.TrimSpace(spec.Options[optRegion]); region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		s.client = dynamodbstreams.NewFromConfig(awsCfg)
	}

	return s.describe(ctx)
}

func (s *Source) describe(ctx context.Context) error {
	out, err := s.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
		StreamArn: aws.String(s.streamARN),
	})
	if err != nil {
		return fmt.Errorf("describe stream: %w", err)
	}
	desc := out.StreamDescription
	if desc == nil {
		return errors.New("describe stream returned no description")
	}
	s.table = &connector.TableInfo{
		Name:      aws.ToString(desc.TableName),
		StreamARN: aws.ToString(desc.StreamArn),
	}
	return nil
}

// Table returns metadata for the table behind the stream. Valid after Open.
func (s *Source) Table() *connector.TableInfo {
	return s.table
}

// Shards lists all currently known shards, following service pagination.
func (s *Source) Shards(ctx context.Context) ([]types.Shard, error) {
	shards := make([]types.Shard, 0, 8)
	var startShardID *string
	for {
		out, err := s.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(s.streamARN),
			ExclusiveStartShardId: startShardID,
		})
		if err != nil {
			return nil, fmt.Errorf("describe stream: %w", err)
		}
		desc := out.StreamDescription
		if desc == nil {
			break
		}
		shards = append(shards, desc.Shards...)
		if desc.LastEvaluatedShardId == nil {
			break
		}
		startShardID = desc.LastEvaluatedShardId
	}
	return shards, nil
}

// Iterator returns a shard iterator. A non-empty afterSequence resumes just
// past the checkpointed record; otherwise the configured iterator type
// decides where the shard starts.
func (s *Source) Iterator(ctx context.Context, shardID, afterSequence string) (string, error) {
	input := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(s.streamARN),
		ShardId:           aws.String(shardID),
		ShardIteratorType: s.iteratorType,
	}
	if afterSequence != "" {
		input.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		input.SequenceNumber = aws.String(afterSequence)
	}
	out, err := s.client.GetShardIterator(ctx, input)
	if err != nil {
		return "", fmt.Errorf("get shard iterator: %w", err)
	}
	return aws.ToString(out.ShardIterator), nil
}

// Read fetches the next page of records. An empty next iterator means the
// shard is closed and fully drained.
func (s *Source) Read(ctx context.Context, iterator string) ([]types.Record, string, error) {
	out, err := s.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
		ShardIterator: aws.String(iterator),
		Limit:         aws.Int32(s.batchSize),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get records: %w", err)
	}
	return out.Records, aws.ToString(out.NextShardIterator), nil
}

// ShardKey builds the checkpoint key for one shard of this stream.
func (s *Source) ShardKey(shardID string) string {
	return s.streamARN + "/" + shardID
}
