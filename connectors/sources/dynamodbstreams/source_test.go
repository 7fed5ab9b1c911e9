package dynamodbstreams

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/huypham612/dynastream/pkg/connector"
)

const testARN = "arn:aws:dynamodb:us-east-1:1:table/orders/stream/2024-01-01T00:00:00.000"

type fakeStreams struct {
	describeCalls []dynamodbstreams.DescribeStreamInput
	describePages []*dynamodbstreams.DescribeStreamOutput
	iteratorCalls []dynamodbstreams.GetShardIteratorInput
	recordsCalls  []dynamodbstreams.GetRecordsInput
	records       *dynamodbstreams.GetRecordsOutput
}

func (f *fakeStreams) DescribeStream(_ context.Context, params *dynamodbstreams.DescribeStreamInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	f.describeCalls = append(f.describeCalls, *params)
	out := f.describePages[0]
	if len(f.describePages) > 1 {
		f.describePages = f.describePages[1:]
	}
	return out, nil
}

func (f *fakeStreams) GetShardIterator(_ context.Context, params *dynamodbstreams.GetShardIteratorInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	f.iteratorCalls = append(f.iteratorCalls, *params)
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String("iter-1")}, nil
}

func (f *fakeStreams) GetRecords(_ context.Context, params *dynamodbstreams.GetRecordsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	f.recordsCalls = append(f.recordsCalls, *params)
	return f.records, nil
}

func describePage(shardIDs []string, last *string) *dynamodbstreams.DescribeStreamOutput {
	shards := make([]types.Shard, 0, len(shardIDs))
	for _, id := range shardIDs {
		shards = append(shards, types.Shard{ShardId: aws.String(id)})
	}
	return &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &types.StreamDescription{
			TableName:            aws.String("orders"),
			StreamArn:            aws.String(testARN),
			Shards:               shards,
			LastEvaluatedShardId: last,
		},
	}
}

func openSource(t *testing.T, fake *fakeStreams, options map[string]string) *Source {
	t.Helper()
	if options == nil {
		options = map[string]string{}
	}
	if options[optStreamARN] == "" {
		options[optStreamARN] = testARN
	}
	src := NewSource(fake)
	err := src.Open(context.Background(), connector.Spec{
		Name:    "in",
		Type:    connector.EndpointDynamoDBStreams,
		Options: options,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return src
}

func TestOpenDescribesTable(t *testing.T) {
	fake := &fakeStreams{describePages: []*dynamodbstreams.DescribeStreamOutput{
		describePage([]string{"shard-1"}, nil),
	}}
	src := openSource(t, fake, nil)

	table := src.Table()
	if table == nil || table.Name != "orders" || table.StreamARN != testARN {
		t.Fatalf("unexpected table info %+v", table)
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	src := NewSource(&fakeStreams{})
	err := src.Open(context.Background(), connector.Spec{Options: map[string]string{}})
	if err == nil {
		t.Fatalf("expected error for missing stream_arn")
	}

	err = src.Open(context.Background(), connector.Spec{Options: map[string]string{
		optStreamARN:    testARN,
		optIteratorType: "AT_SEQUENCE_NUMBER",
	}})
	if err == nil {
		t.Fatalf("expected error for unsupported iterator type")
	}

	err = src.Open(context.Background(), connector.Spec{Options: map[string]string{
		optStreamARN: testARN,
		optBatchSize: "zero",
	}})
	if err == nil {
		t.Fatalf("expected error for bad batch size")
	}
}

func TestShardsFollowPagination(t *testing.T) {
	fake := &fakeStreams{describePages: []*dynamodbstreams.DescribeStreamOutput{
		describePage([]string{"shard-1"}, nil),
		describePage([]string{"shard-1", "shard-2"}, aws.String("shard-2")),
		describePage([]string{"shard-3"}, nil),
	}}
	src := openSource(t, fake, nil)

	shards, err := src.Shards(context.Background())
	if err != nil {
		t.Fatalf("shards: %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("expected 3 shards, got %d", len(shards))
	}
	// Second page request must continue from the last evaluated shard.
	lastCall := fake.describeCalls[len(fake.describeCalls)-1]
	if aws.ToString(lastCall.ExclusiveStartShardId) != "shard-2" {
		t.Fatalf("pagination did not continue from shard-2: %+v", lastCall)
	}
}

func TestIteratorResumesAfterCheckpoint(t *testing.T) {
	fake := &fakeStreams{describePages: []*dynamodbstreams.DescribeStreamOutput{
		describePage([]string{"shard-1"}, nil),
	}}
	src := openSource(t, fake, map[string]string{optIteratorType: "LATEST"})

	if _, err := src.Iterator(context.Background(), "shard-1", ""); err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if _, err := src.Iterator(context.Background(), "shard-1", "seq-42"); err != nil {
		t.Fatalf("iterator: %v", err)
	}

	fresh := fake.iteratorCalls[0]
	if fresh.ShardIteratorType != types.ShardIteratorTypeLatest {
		t.Fatalf("fresh shard should use the configured iterator type, got %v", fresh.ShardIteratorType)
	}
	resumed := fake.iteratorCalls[1]
	if resumed.ShardIteratorType != types.ShardIteratorTypeAfterSequenceNumber {
		t.Fatalf("checkpointed shard should resume after sequence, got %v", resumed.ShardIteratorType)
	}
	if aws.ToString(resumed.SequenceNumber) != "seq-42" {
		t.Fatalf("resume sequence lost: %+v", resumed)
	}
}

func TestReadCapsBatchSize(t *testing.T) {
	fake := &fakeStreams{
		describePages: []*dynamodbstreams.DescribeStreamOutput{
			describePage([]string{"shard-1"}, nil),
		},
		records: &dynamodbstreams.GetRecordsOutput{
			Records:           []types.Record{{EventID: aws.String("e1")}},
			NextShardIterator: aws.String("iter-2"),
		},
	}
	src := openSource(t, fake, map[string]string{optBatchSize: "5000"})

	records, next, err := src.Read(context.Background(), "iter-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 || next != "iter-2" {
		t.Fatalf("unexpected read result: %d records, next %q", len(records), next)
	}
	if got := aws.ToInt32(fake.recordsCalls[0].Limit); got != maxBatchSize {
		t.Fatalf("expected limit capped at %d, got %d", maxBatchSize, got)
	}
}
