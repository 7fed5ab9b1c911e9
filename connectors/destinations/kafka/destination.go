package kafka

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/huypham612/dynastream/pkg/connector"
	"github.com/huypham612/dynastream/pkg/wire"
)

const (
	optBrokers     = "brokers"
	optTopic       = "topic"
	optFormat      = "format"
	optAcks        = "acks"
	optCompression = "compression"
	optClientID    = "client_id"
)

// Destination produces normalized change events to a Kafka topic. All events
// for the same table primary key share a record key, so they land on one
// partition and keep the ordering their source shard gave them.
type Destination struct {
	spec   connector.Spec
	client *kgo.Client
	topic  string
	codec  wire.Codec
}

func (d *Destination) Open(ctx context.Context, spec connector.Spec) error {
	d.spec = spec

	brokers := splitCSV(spec.Options[optBrokers])
	if len(brokers) == 0 {
		return errors.New("kafka destination requires brokers")
	}
	d.topic = strings.TrimSpace(spec.Options[optTopic])
	if d.topic == "" {
		return errors.New("kafka destination requires a topic")
	}

	codec, err := wire.NewCodec(spec.Options[optFormat])
	if err != nil {
		return err
	}
	d.codec = codec

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(d.topic),
		kgo.RequiredAcks(parseAcks(spec.Options[optAcks])),
	}
	// Idempotent production needs acks from all ISRs; weaker ack settings
	// must opt out explicitly or the client refuses to start.
	if acks := normalizeOption(spec.Options[optAcks]); acks == "none" || acks == "0" || acks == "leader" || acks == "1" {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if compression := normalizeOption(spec.Options[optCompression]); compression != "" {
		opts = append(opts, kgo.ProducerBatchCompression(parseCompression(compression)))
	}
	if clientID := strings.TrimSpace(spec.Options[optClientID]); clientID != "" {
		opts = append(opts, kgo.ClientID(clientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	d.client = client
	return nil
}

func (d *Destination) Write(ctx context.Context, events []connector.Event) error {
	if d.client == nil {
		return errors.New("kafka destination is not open")
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for i := range events {
		payload, err := d.codec.Encode(events[i])
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: d.topic,
			Key:   recordKey(events[i]),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "content-type", Value: []byte(d.codec.ContentType())},
				{Key: "operation", Value: []byte(events[i].Operation)},
			},
		})
	}

	if err := d.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records: %w", len(records), err)
	}
	return nil
}

func (d *Destination) Close(ctx context.Context) error {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	return nil
}

// recordKey hashes the table name and the simplified key attributes. Key
// attribute order in the map must not change the hash.
func recordKey(event connector.Event) []byte {
	names := make([]string, 0, len(event.Keys))
	for name := range event.Keys {
		names = append(names, name)
	}
	sort.Strings(names)

	var material strings.Builder
	if event.Table != nil {
		material.WriteString(event.Table.Name)
	}
	for _, name := range names {
		fmt.Fprintf(&material, "|%s=%v", name, event.Keys[name])
	}
	return []byte(hashString(material.String()))
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func parseAcks(value string) kgo.Acks {
	switch normalizeOption(value) {
	case "none", "0":
		return kgo.NoAck()
	case "leader", "1":
		return kgo.LeaderAck()
	default:
		return kgo.AllISRAcks()
	}
}

func parseCompression(value string) kgo.CompressionCodec {
	switch normalizeOption(value) {
	case "gzip":
		return kgo.GzipCompression()
	case "snappy":
		return kgo.SnappyCompression()
	case "lz4":
		return kgo.Lz4Compression()
	case "zstd":
		return kgo.ZstdCompression()
	default:
		return kgo.NoCompression()
	}
}

func normalizeOption(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
