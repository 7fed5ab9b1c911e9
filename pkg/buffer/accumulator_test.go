package buffer

import (
	"context"
	"errors"
	"testing"

	"github.com/huypham612/dynastream/pkg/connector"
)

type fakeSink struct {
	writes   [][]connector.Event
	writeErr error
}

func (s *fakeSink) Open(context.Context, connector.Spec) error { return nil }
func (s *fakeSink) Close(context.Context) error                { return nil }

func (s *fakeSink) Write(_ context.Context, events []connector.Event) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	batch := make([]connector.Event, len(events))
	copy(batch, events)
	s.writes = append(s.writes, batch)
	return nil
}

func event(version uint64) connector.Event {
	return connector.Event{Operation: connector.OpInsert, Version: version}
}

func TestAccumulatorFlushWritesInOrder(t *testing.T) {
	sink := &fakeSink{}
	acc := New(sink, 10)
	ctx := context.Background()

	var done bool
	ack := NewAckSet(func(ok bool) { done = ok })

	for v := uint64(1); v <= 3; v++ {
		if err := acc.Submit(ctx, event(v), ack); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if len(sink.writes) != 0 {
		t.Fatalf("nothing should reach the sink before flush")
	}
	if acc.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", acc.Pending())
	}

	if err := acc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(sink.writes) != 1 || len(sink.writes[0]) != 3 {
		t.Fatalf("expected one write of 3 events, got %v", sink.writes)
	}
	for i, ev := range sink.writes[0] {
		if ev.Version != uint64(i+1) {
			t.Fatalf("submission order lost: %v", sink.writes[0])
		}
	}
	if !done {
		t.Fatalf("ack set should complete after flush")
	}
	if acc.Pending() != 0 {
		t.Fatalf("pending should reset after flush")
	}
}

func TestAccumulatorCapacityForcesFlush(t *testing.T) {
	sink := &fakeSink{}
	acc := New(sink, 2)
	ctx := context.Background()

	for v := uint64(1); v <= 3; v++ {
		if err := acc.Submit(ctx, event(v), nil); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if len(sink.writes) != 1 || len(sink.writes[0]) != 2 {
		t.Fatalf("expected capacity to force a flush of 2, got %v", sink.writes)
	}
	if acc.Pending() != 1 {
		t.Fatalf("expected 1 pending after forced flush, got %d", acc.Pending())
	}
}

func TestAccumulatorFlushFailureKeepsBatch(t *testing.T) {
	sink := &fakeSink{writeErr: errors.New("broker down")}
	acc := New(sink, 10)
	ctx := context.Background()

	if err := acc.Submit(ctx, event(1), nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := acc.Flush(ctx); err == nil {
		t.Fatalf("expected flush error")
	}
	if acc.Pending() != 1 {
		t.Fatalf("failed flush must keep the batch, pending %d", acc.Pending())
	}

	// Retry succeeds once the sink recovers and resubmits the same events.
	sink.writeErr = nil
	if err := acc.Flush(ctx); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if len(sink.writes) != 1 || sink.writes[0][0].Version != 1 {
		t.Fatalf("expected the original event on retry, got %v", sink.writes)
	}
	if acc.Pending() != 0 {
		t.Fatalf("pending should clear after a successful retry")
	}
}

func TestAckSetFailFiresOnce(t *testing.T) {
	calls := 0
	var last bool
	ack := NewAckSet(func(ok bool) {
		calls++
		last = ok
	})
	ack.Add(2)
	ack.Fail()
	ack.Fail()
	ack.Acknowledge(2)

	if calls != 1 || last {
		t.Fatalf("expected a single failed completion, calls=%d ok=%v", calls, last)
	}
}

func TestAckSetNilIsSafe(t *testing.T) {
	var ack *AckSet
	ack.Add(1)
	ack.Acknowledge(1)
	ack.Fail()
	if ack.ID() != "" {
		t.Fatalf("nil set has no id")
	}
}
