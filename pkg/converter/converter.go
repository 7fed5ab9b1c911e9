package converter

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/huypham612/dynastream/pkg/buffer"
	"github.com/huypham612/dynastream/pkg/connector"
	"github.com/huypham612/dynastream/pkg/metrics"
)

const (
	changeEventsProcessedCount       = "changeEventsProcessed"
	changeEventsProcessingErrorCount = "changeEventsProcessingErrors"
	bytesReceivedSummaryName         = "bytesReceived"
	bytesProcessedSummaryName        = "bytesProcessed"
)

// Submitter is the buffer the converter hands normalized events to. Submit
// may block under backpressure; Flush blocks until the batch is durably
// accepted downstream.
type Submitter interface {
	Submit(ctx context.Context, event connector.Event, ack *buffer.AckSet) error
	Flush(ctx context.Context) error
}

// StreamConverter turns raw stream records into normalized events and
// isolates per-record failures so one malformed record never aborts a batch.
//
// One converter is bound to one shard and must only be driven by that
// shard's worker: the embedded version clock is not safe for concurrent use,
// and its ordering keys are only meaningful relative to other events from
// the same shard.
type StreamConverter struct {
	buffer       Submitter
	table        *connector.TableInfo
	viewOnRemove types.StreamViewType
	clock        versionClock

	successCounter metrics.Counter
	errorCounter   metrics.Counter
	bytesReceived  metrics.Summary
	bytesProcessed metrics.Summary
}

// NewStreamConverter builds a converter over the given buffer. The provider
// supplies the shared pipeline counters; viewOnRemove selects which row
// image REMOVE events decode from.
func NewStreamConverter(buf Submitter, table *connector.TableInfo, provider metrics.Provider, viewOnRemove types.StreamViewType) *StreamConverter {
	if provider == nil {
		provider = metrics.Nop{}
	}
	return &StreamConverter{
		buffer:         buf,
		table:          table,
		viewOnRemove:   viewOnRemove,
		successCounter: provider.Counter(changeEventsProcessedCount),
		errorCounter:   provider.Counter(changeEventsProcessingErrorCount),
		bytesReceived:  provider.Summary(bytesReceivedSummaryName),
		bytesProcessed: provider.Summary(bytesProcessedSummaryName),
	}
}

// ConvertBatch converts records in order, submits each successful event to
// the buffer, and flushes once for the whole batch. Per-record failures are
// counted and skipped, never propagated. Only a flush failure is returned;
// it retroactively counts every submitted record as failed, so the caller
// can re-fetch and reprocess the same raw records.
func (c *StreamConverter) ConvertBatch(ctx context.Context, ack *buffer.AckSet, records []types.Record) (submitted, failed int, err error) {
	for _, record := range records {
		if record.Dynamodb == nil {
			log.Printf("skipping stream record %s: no stream data", aws.ToString(record.EventID))
			c.errorCounter.Increment(1)
			failed++
			continue
		}

		image, fellBack := selectImage(record, c.viewOnRemove)
		if fellBack {
			log.Printf("old image requested for remove, but record %s carries none; using the new image", aws.ToString(record.EventID))
		}

		data, decodeErr := DecodeImage(image)
		var keys map[string]any
		if decodeErr == nil {
			// Keys always come from the record itself, whichever image was
			// decoded.
			keys, decodeErr = DecodeKeys(record.Dynamodb.Keys)
		}
		if decodeErr != nil {
			log.Printf("failed to convert stream record %s: %v", aws.ToString(record.EventID), decodeErr)
			c.errorCounter.Increment(1)
			failed++
			continue
		}

		sizeBytes := float64(aws.ToInt64(record.Dynamodb.SizeBytes))
		c.bytesReceived.Record(sizeBytes)

		eventTime := aws.ToTime(record.Dynamodb.ApproximateCreationDateTime)
		event := connector.Event{
			Table:     c.table,
			Operation: connector.Operation(record.EventName),
			Keys:      keys,
			Data:      data,
			EventTime: eventTime,
			Version:   c.clock.next(eventTime),
			Identity:  identityFrom(record.UserIdentity),
		}

		if submitErr := c.buffer.Submit(ctx, event, ack); submitErr != nil {
			log.Printf("failed to buffer event for record %s: %v", aws.ToString(record.EventID), submitErr)
			c.errorCounter.Increment(1)
			failed++
			continue
		}

		c.bytesProcessed.Record(sizeBytes)
		submitted++
	}

	if flushErr := c.buffer.Flush(ctx); flushErr != nil {
		log.Printf("failed to flush %d events: %v", submitted, flushErr)
		c.errorCounter.Increment(float64(submitted))
		return 0, failed + submitted, flushErr
	}

	c.successCounter.Increment(float64(submitted))
	return submitted, failed, nil
}

func identityFrom(identity *types.Identity) *connector.Identity {
	if identity == nil {
		return nil
	}
	return &connector.Identity{
		PrincipalID: aws.ToString(identity.PrincipalId),
		Type:        aws.ToString(identity.Type),
	}
}
