package buffer

import (
	"context"
	"fmt"

	"github.com/huypham612/dynastream/pkg/connector"
)

// DefaultCapacity is the pending-event bound used when a spec does not set
// one.
const DefaultCapacity = 500

type pendingEvent struct {
	event connector.Event
	ack   *AckSet
}

// Accumulator buffers normalized events in front of a sink. Capacity bounds
// how many events may be pending before a submit forces a flush, which is
// where sink backpressure surfaces to the submitter.
//
// Like the converter that feeds it, an accumulator belongs to one shard
// worker and is not safe for concurrent use.
type Accumulator struct {
	sink     connector.Sink
	capacity int
	pending  []pendingEvent
}

// New builds an accumulator over the sink. A non-positive capacity falls
// back to DefaultCapacity.
func New(sink connector.Sink, capacity int) *Accumulator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Accumulator{
		sink:     sink,
		capacity: capacity,
		pending:  make([]pendingEvent, 0, capacity),
	}
}

// Submit queues one event and registers it with the ack set. When the
// accumulator is full it flushes to the sink first, so a slow sink blocks
// submission instead of growing memory without bound.
func (a *Accumulator) Submit(ctx context.Context, event connector.Event, ack *AckSet) error {
	if len(a.pending) >= a.capacity {
		if err := a.Flush(ctx); err != nil {
			return fmt.Errorf("buffer full: %w", err)
		}
	}
	ack.Add(1)
	a.pending = append(a.pending, pendingEvent{event: event, ack: ack})
	return nil
}

// Flush writes every pending event to the sink in submission order and
// acknowledges them on success. Pending events are kept on failure so a
// retried flush sees the same batch.
func (a *Accumulator) Flush(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}

	events := make([]connector.Event, len(a.pending))
	for i, p := range a.pending {
		events[i] = p.event
	}
	if err := a.sink.Write(ctx, events); err != nil {
		return fmt.Errorf("write %d events to sink: %w", len(events), err)
	}

	for _, p := range a.pending {
		p.ack.Acknowledge(1)
	}
	a.pending = a.pending[:0]
	return nil
}

// Pending reports how many events are buffered but not yet flushed.
func (a *Accumulator) Pending() int {
	return len(a.pending)
}
