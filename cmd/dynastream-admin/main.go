package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/huypham612/dynastream/internal/checkpoint"
	"github.com/huypham612/dynastream/internal/cli"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	command := newAdminCommand()
	parsedArgs := []string{}
	if len(args) > 1 {
		parsedArgs = args[1:]
	}
	command.SetArgs(parsedArgs)
	return command.Execute()
}

func newAdminCommand() *cobra.Command {
	command := &cobra.Command{
		Use:          "dynastream-admin",
		Short:        "Inspect dynastream worker state",
		SilenceUsage: true,
	}
	command.PersistentFlags().String("config", "", "path to config file")
	command.PersistentFlags().String("checkpoint-dsn", "dynastream-checkpoints.db", "checkpoint database path")
	command.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.InitViperFromCommand(cmd, cli.ViperConfig{
			EnvPrefix:    "DYNASTREAM",
			ConfigEnvVar: "DYNASTREAM_CONFIG",
		})
	}
	command.AddCommand(newCheckpointsCommand())
	return command
}

func newCheckpointsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "checkpoints",
		Short: "List shard checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listCheckpoints(cmd)
		},
	}
	return command
}

func listCheckpoints(cmd *cobra.Command) error {
	dsn := cli.ResolveStringFlag(cmd, "checkpoint-dsn")
	if dsn == "" {
		return fmt.Errorf("checkpoint-dsn is required")
	}

	store, err := checkpoint.NewSQLiteStore(cmd.Context(), dsn)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	checkpoints, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	writer := table.NewWriter()
	writer.SetOutputMirror(cmd.OutOrStdout())
	writer.AppendHeader(table.Row{"Shard", "Sequence Number", "Updated"})
	for _, cp := range checkpoints {
		updated := ""
		if !cp.Checkpoint.Timestamp.IsZero() {
			updated = cp.Checkpoint.Timestamp.Format(time.RFC3339)
		}
		writer.AppendRow(table.Row{cp.ShardKey, cp.Checkpoint.SequenceNumber, updated})
	}
	writer.Render()
	return nil
}
