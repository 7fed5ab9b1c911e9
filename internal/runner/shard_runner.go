package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/huypham612/dynastream/internal/checkpoint"
	"github.com/huypham612/dynastream/pkg/buffer"
	"github.com/huypham612/dynastream/pkg/connector"
	"github.com/huypham612/dynastream/pkg/converter"
)

// ShardSource is the slice of the stream source one shard worker needs.
type ShardSource interface {
	Iterator(ctx context.Context, shardID, afterSequence string) (string, error)
	Read(ctx context.Context, iterator string) ([]types.Record, string, error)
	ShardKey(shardID string) string
}

// ShardRunner drives one shard end to end: poll raw records, convert them,
// and advance the shard checkpoint once the batch is durably flushed. Each
// runner owns its converter and buffer; shards share only the checkpoint
// store and the metric series.
type ShardRunner struct {
	Source      ShardSource
	Converter   *converter.StreamConverter
	Checkpoints connector.CheckpointStore
	ShardID     string
	Tracer      trace.Tracer
	// PollInterval is the pause between empty reads. Defaults to one second.
	PollInterval time.Duration
	// MaxEmptyReads stops the runner after N consecutive empty reads.
	// Zero polls until the shard closes or the context ends.
	MaxEmptyReads int
}

// Run executes the shard loop until the shard drains, the context ends, or
// an unrecoverable error surfaces. A flush failure is unrecoverable here:
// the caller decides whether to restart from the last checkpoint.
func (r *ShardRunner) Run(ctx context.Context) error {
	if r.Source == nil {
		return errors.New("source is required")
	}
	if r.Converter == nil {
		return errors.New("converter is required")
	}
	if r.ShardID == "" {
		return errors.New("shard id is required")
	}

	tracer := r.Tracer
	if tracer == nil {
		tracer = otel.Tracer("dynastream/shard")
	}
	pollInterval := r.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	shardKey := r.Source.ShardKey(r.ShardID)

	afterSequence := ""
	if r.Checkpoints != nil {
		cp, err := r.Checkpoints.Get(ctx, shardKey)
		switch {
		case err == nil:
			afterSequence = cp.SequenceNumber
		case !errors.Is(err, checkpoint.ErrNotFound):
			return fmt.Errorf("load checkpoint for %s: %w", shardKey, err)
		}
	}

	iterator, err := r.Source.Iterator(ctx, r.ShardID, afterSequence)
	if err != nil {
		return fmt.Errorf("shard %s: %w", r.ShardID, err)
	}

	emptyReads := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if iterator == "" {
			log.Printf("shard %s closed and drained", r.ShardID)
			return nil
		}

		batchCtx, span := tracer.Start(ctx, "shard.batch")
		records, next, err := r.Source.Read(batchCtx, iterator)
		if err != nil {
			span.RecordError(err)
			span.End()
			return fmt.Errorf("shard %s: %w", r.ShardID, err)
		}

		if len(records) == 0 {
			span.End()
			iterator = next
			emptyReads++
			if r.MaxEmptyReads > 0 && emptyReads >= r.MaxEmptyReads {
				log.Printf("shard %s idle after %d empty reads", r.ShardID, emptyReads)
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}
		emptyReads = 0

		span.SetAttributes(
			attribute.String("shard", r.ShardID),
			attribute.Int("records", len(records)),
		)

		delivered := false
		ack := buffer.NewAckSet(func(ok bool) { delivered = ok })
		submitted, failed, err := r.Converter.ConvertBatch(batchCtx, ack, records)
		if err != nil {
			ack.Fail()
			span.RecordError(err)
			span.End()
			return fmt.Errorf("shard %s: %w", r.ShardID, err)
		}
		span.SetAttributes(
			attribute.Int("submitted", submitted),
			attribute.Int("failed", failed),
		)

		// The checkpoint moves only once every submitted event was written
		// and acknowledged. A batch of pure decode failures still advances;
		// re-reading poison records cannot help.
		if r.Checkpoints != nil && (submitted == 0 || delivered) {
			if last := lastSequence(records); last != "" {
				err := r.Checkpoints.Put(batchCtx, shardKey, connector.Checkpoint{
					SequenceNumber: last,
					Metadata:       map[string]string{"shard_id": r.ShardID},
				})
				if err != nil {
					span.RecordError(err)
					span.End()
					return fmt.Errorf("persist checkpoint for %s: %w", shardKey, err)
				}
			}
		}

		span.End()
		iterator = next
	}
}

func lastSequence(records []types.Record) string {
	for i := len(records) - 1; i >= 0; i-- {
		dynamo := records[i].Dynamodb
		if dynamo != nil && dynamo.SequenceNumber != nil {
			return *dynamo.SequenceNumber
		}
	}
	return ""
}
