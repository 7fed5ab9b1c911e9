package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.ViewOnRemove != "new_image" {
		t.Fatalf("expected new_image default, got %s", cfg.Stream.ViewOnRemove)
	}
	if cfg.Stream.IteratorType != "TRIM_HORIZON" {
		t.Fatalf("expected TRIM_HORIZON default, got %s", cfg.Stream.IteratorType)
	}
	if cfg.Stream.BatchSize != 1000 || cfg.Buffer.Capacity != 500 {
		t.Fatalf("unexpected size defaults: batch %d, buffer %d", cfg.Stream.BatchSize, cfg.Buffer.Capacity)
	}
	if cfg.Stream.PollInterval != time.Second {
		t.Fatalf("expected 1s poll default, got %v", cfg.Stream.PollInterval)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DYNASTREAM_STREAM_ARN", "arn:aws:dynamodb:us-east-1:1:table/orders/stream/2024")
	t.Setenv("DYNASTREAM_VIEW_ON_REMOVE", "old_image")
	t.Setenv("DYNASTREAM_POLL_INTERVAL", "250ms")
	t.Setenv("DYNASTREAM_KAFKA_BROKERS", "b1:9092, b2:9092,")
	t.Setenv("DYNASTREAM_BATCH_SIZE", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stream.StreamARN == "" {
		t.Fatalf("stream arn not read from env")
	}
	if cfg.Stream.ViewOnRemove != "old_image" {
		t.Fatalf("view override lost: %s", cfg.Stream.ViewOnRemove)
	}
	if cfg.Stream.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval not parsed: %v", cfg.Stream.PollInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b2:9092" {
		t.Fatalf("broker list not split cleanly: %v", cfg.Kafka.Brokers)
	}
	// Unparseable values fall back to defaults rather than failing startup.
	if cfg.Stream.BatchSize != 1000 {
		t.Fatalf("bad batch size should fall back to default, got %d", cfg.Stream.BatchSize)
	}
}
