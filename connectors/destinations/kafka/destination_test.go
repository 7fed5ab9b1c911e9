package kafka

import (
	"bytes"
	"context"
	"testing"

	"github.com/huypham612/dynastream/pkg/connector"
)

func TestOpenRejectsMissingBrokersAndTopic(t *testing.T) {
	ctx := context.Background()

	d := &Destination{}
	err := d.Open(ctx, connector.Spec{
		Name: "out",
		Type: connector.EndpointKafka,
		Options: map[string]string{
			optTopic: "orders.cdc",
		},
	})
	if err == nil {
		t.Fatalf("expected error for missing brokers")
	}

	d = &Destination{}
	err = d.Open(ctx, connector.Spec{
		Name: "out",
		Type: connector.EndpointKafka,
		Options: map[string]string{
			optBrokers: "localhost:9092",
		},
	})
	if err == nil {
		t.Fatalf("expected error for missing topic")
	}
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	d := &Destination{}
	err := d.Open(context.Background(), connector.Spec{
		Name: "out",
		Type: connector.EndpointKafka,
		Options: map[string]string{
			optBrokers: "localhost:9092",
			optTopic:   "orders.cdc",
			optFormat:  "xml",
		},
	})
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestWriteRequiresOpen(t *testing.T) {
	d := &Destination{}
	if err := d.Write(context.Background(), []connector.Event{{}}); err == nil {
		t.Fatalf("expected error writing before open")
	}
}

func TestRecordKeyIgnoresMapIterationOrder(t *testing.T) {
	table := &connector.TableInfo{Name: "orders"}

	a := recordKey(connector.Event{
		Table: table,
		Keys:  map[string]any{"pk": "user#1", "sk": "order#9"},
	})
	b := recordKey(connector.Event{
		Table: table,
		Keys:  map[string]any{"sk": "order#9", "pk": "user#1"},
	})
	if !bytes.Equal(a, b) {
		t.Fatalf("same key material hashed differently: %s vs %s", a, b)
	}

	c := recordKey(connector.Event{
		Table: table,
		Keys:  map[string]any{"pk": "user#2", "sk": "order#9"},
	})
	if bytes.Equal(a, c) {
		t.Fatalf("different keys produced the same record key")
	}
}

func TestRecordKeySeparatesTables(t *testing.T) {
	keys := map[string]any{"pk": "user#1"}
	a := recordKey(connector.Event{Table: &connector.TableInfo{Name: "orders"}, Keys: keys})
	b := recordKey(connector.Event{Table: &connector.TableInfo{Name: "payments"}, Keys: keys})
	if bytes.Equal(a, b) {
		t.Fatalf("events from different tables share a record key")
	}
}
