package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the dynastream worker.
type Config struct {
	Environment string
	Stream      StreamConfig
	Buffer      BufferConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
	Checkpoints CheckpointConfig
}

type StreamConfig struct {
	// StreamARN is the DynamoDB stream to consume.
	StreamARN string
	Region    string
	// ViewOnRemove selects which row image REMOVE events decode from:
	// new_image (default) or old_image.
	ViewOnRemove string
	// IteratorType is where a shard with no checkpoint starts:
	// TRIM_HORIZON (default) or LATEST.
	IteratorType string
	BatchSize    int
	PollInterval time.Duration
	// MaxEmptyReads stops a shard worker after N consecutive empty reads
	// (0 = poll forever).
	MaxEmptyReads int
}

type BufferConfig struct {
	Capacity int
}

type KafkaConfig struct {
	Brokers     []string
	Topic       string
	ClientID    string
	Compression string
	Format      string
}

type TelemetryConfig struct {
	ServiceName string
}

type CheckpointConfig struct {
	Backend string
	DSN     string
}

// Load loads config from environment for now. File parsing happens at the
// command layer via viper.
func Load(_ string) (*Config, error) {
	cfg := &Config{
		Environment: getenv("DYNASTREAM_ENV", "dev"),
		Stream: StreamConfig{
			StreamARN:     getenv("DYNASTREAM_STREAM_ARN", ""),
			Region:        getenv("DYNASTREAM_AWS_REGION", getenv("AWS_REGION", "")),
			ViewOnRemove:  getenv("DYNASTREAM_VIEW_ON_REMOVE", "new_image"),
			IteratorType:  getenv("DYNASTREAM_ITERATOR_TYPE", "TRIM_HORIZON"),
			BatchSize:     getenvInt("DYNASTREAM_BATCH_SIZE", 1000),
			PollInterval:  getenvDuration("DYNASTREAM_POLL_INTERVAL", time.Second),
			MaxEmptyReads: getenvInt("DYNASTREAM_MAX_EMPTY_READS", 0),
		},
		Buffer: BufferConfig{
			Capacity: getenvInt("DYNASTREAM_BUFFER_CAPACITY", 500),
		},
		Kafka: KafkaConfig{
			Brokers:     getenvCSV("DYNASTREAM_KAFKA_BROKERS", ""),
			Topic:       getenv("DYNASTREAM_KAFKA_TOPIC", ""),
			ClientID:    getenv("DYNASTREAM_KAFKA_CLIENT_ID", "dynastream"),
			Compression: getenv("DYNASTREAM_KAFKA_COMPRESSION", ""),
			Format:      getenv("DYNASTREAM_KAFKA_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{
			ServiceName: getenv("DYNASTREAM_OTEL_SERVICE", "dynastream"),
		},
		Checkpoints: CheckpointConfig{
			Backend: getenv("DYNASTREAM_CHECKPOINT_BACKEND", "sqlite"),
			DSN:     getenv("DYNASTREAM_CHECKPOINT_DSN", ""),
		},
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvCSV(key, fallback string) []string {
	value := getenv(key, fallback)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trim := strings.TrimSpace(part)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}

func getenvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
