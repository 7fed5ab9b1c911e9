package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	kafkadest "github.com/huypham612/dynastream/connectors/destinations/kafka"
	streamsource "github.com/huypham612/dynastream/connectors/sources/dynamodbstreams"
	"github.com/huypham612/dynastream/internal/checkpoint"
	"github.com/huypham612/dynastream/internal/cli"
	"github.com/huypham612/dynastream/internal/config"
	"github.com/huypham612/dynastream/internal/runner"
	"github.com/huypham612/dynastream/internal/telemetry"
	"github.com/huypham612/dynastream/pkg/buffer"
	"github.com/huypham612/dynastream/pkg/connector"
	"github.com/huypham612/dynastream/pkg/converter"
)

const defaultCheckpointDSN = "dynastream-checkpoints.db"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	command := newWorkerCommand()
	return command.Execute()
}

func newWorkerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:          "dynastream-worker",
		Short:        "Stream DynamoDB table changes into Kafka",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd)
		},
	}
	command.PersistentFlags().String("config", "", "path to config file")
	command.Flags().String("stream-arn", "", "DynamoDB stream ARN to consume")
	command.Flags().String("shard-id", "", "restrict the worker to one shard")
	command.Flags().Int("max-empty-reads", 0, "stop a shard after N empty reads (0 = continuous)")
	command.Flags().Duration("poll-interval", 0, "pause between empty reads")
	command.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.InitViperFromCommand(cmd, cli.ViperConfig{
			EnvPrefix:    "DYNASTREAM",
			ConfigEnvVar: "DYNASTREAM_CONFIG",
			ConfigName:   "dynastream-worker",
		})
	}
	command.InitDefaultCompletionCmd()
	return command
}

func runWorker(cmd *cobra.Command) error {
	cfg, err := config.Load(cli.ResolveStringFlag(cmd, "config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if arn := cli.ResolveStringFlag(cmd, "stream-arn"); arn != "" {
		cfg.Stream.StreamARN = arn
	}
	if maxEmpty := cli.ResolveIntFlag(cmd, "max-empty-reads"); maxEmpty > 0 {
		cfg.Stream.MaxEmptyReads = maxEmpty
	}
	if poll := cli.ResolveDurationFlag(cmd, "poll-interval"); poll > 0 {
		cfg.Stream.PollInterval = poll
	}
	onlyShard := cli.ResolveStringFlag(cmd, "shard-id")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meters := telemetry.NewMeterProvider(cfg.Telemetry.ServiceName)
	tracer := telemetry.Tracer(cfg.Telemetry.ServiceName)

	var store connector.CheckpointStore
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Checkpoints.Backend)); backend {
	case "none":
		log.Printf("checkpointing disabled; every start replays from %s", cfg.Stream.IteratorType)
	case "", "sqlite":
		dsn := cfg.Checkpoints.DSN
		if dsn == "" {
			dsn = defaultCheckpointDSN
		}
		sqlite, err := checkpoint.NewSQLiteStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer sqlite.Close()
		store = sqlite
	default:
		return fmt.Errorf("unsupported checkpoint backend %q", backend)
	}

	sink := &kafkadest.Destination{}
	if err := sink.Open(ctx, kafkaSpec(cfg)); err != nil {
		return fmt.Errorf("open kafka destination: %w", err)
	}
	defer sink.Close(context.Background())

	source := streamsource.NewSource(nil)
	if err := source.Open(ctx, sourceSpec(cfg)); err != nil {
		return fmt.Errorf("open stream source: %w", err)
	}
	table := source.Table()
	log.Printf("streaming table %s into topic %s", table.Name, cfg.Kafka.Topic)

	shards, err := source.Shards(ctx)
	if err != nil {
		return fmt.Errorf("list shards: %w", err)
	}

	viewOnRemove := parseViewOnRemove(cfg.Stream.ViewOnRemove)

	group, groupCtx := errgroup.WithContext(ctx)
	started := 0
	for _, shard := range shards {
		shardID := aws.ToString(shard.ShardId)
		if shardID == "" || (onlyShard != "" && shardID != onlyShard) {
			continue
		}
		started++

		worker := &runner.ShardRunner{
			Source: source,
			Converter: converter.NewStreamConverter(
				buffer.New(sink, cfg.Buffer.Capacity),
				table,
				meters,
				viewOnRemove,
			),
			Checkpoints:   store,
			ShardID:       shardID,
			Tracer:        tracer,
			PollInterval:  cfg.Stream.PollInterval,
			MaxEmptyReads: cfg.Stream.MaxEmptyReads,
		}
		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}
	if started == 0 {
		return fmt.Errorf("no shards matched (stream reported %d)", len(shards))
	}
	log.Printf("running %d shard workers", started)

	return group.Wait()
}

func sourceSpec(cfg *config.Config) connector.Spec {
	return connector.Spec{
		Name: "dynamodb-stream",
		Type: connector.EndpointDynamoDBStreams,
		Options: map[string]string{
			"stream_arn":    cfg.Stream.StreamARN,
			"region":        cfg.Stream.Region,
			"iterator_type": cfg.Stream.IteratorType,
			"batch_size":    strconv.Itoa(cfg.Stream.BatchSize),
		},
	}
}

func kafkaSpec(cfg *config.Config) connector.Spec {
	return connector.Spec{
		Name: "kafka-out",
		Type: connector.EndpointKafka,
		Options: map[string]string{
			"brokers":     strings.Join(cfg.Kafka.Brokers, ","),
			"topic":       cfg.Kafka.Topic,
			"client_id":   cfg.Kafka.ClientID,
			"compression": cfg.Kafka.Compression,
			"format":      cfg.Kafka.Format,
		},
	}
}

func parseViewOnRemove(value string) types.StreamViewType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "old_image", "old":
		return types.StreamViewTypeOldImage
	default:
		return types.StreamViewTypeNewImage
	}
}
