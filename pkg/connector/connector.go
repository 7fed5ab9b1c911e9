package connector

import (
	"context"
	"time"
)

// EndpointType identifies the connector implementation.
type EndpointType string

const (
	EndpointDynamoDBStreams EndpointType = "dynamodbstreams"
	EndpointKafka           EndpointType = "kafka"
)

// Operation is the change type carried by a stream record. The values mirror
// the DynamoDB Streams operation names.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpModify Operation = "MODIFY"
	OpRemove Operation = "REMOVE"
)

// Spec defines a connector instance plus implementation-specific options.
type Spec struct {
	Name    string
	Type    EndpointType
	Options map[string]string
}

// Checkpoint identifies a durable offset within one shard.
type Checkpoint struct {
	SequenceNumber string
	Timestamp      time.Time
	Metadata       map[string]string
}

// ShardCheckpoint ties a checkpoint to a shard key.
type ShardCheckpoint struct {
	ShardKey   string
	Checkpoint Checkpoint
}

// Sink receives flushed batches of normalized events.
type Sink interface {
	Open(ctx context.Context, spec Spec) error
	Write(ctx context.Context, events []Event) error
	Close(ctx context.Context) error
}

// CheckpointStore persists shard checkpoints for recovery.
type CheckpointStore interface {
	Get(ctx context.Context, shardKey string) (Checkpoint, error)
	Put(ctx context.Context, shardKey string, checkpoint Checkpoint) error
	List(ctx context.Context) ([]ShardCheckpoint, error)
}
