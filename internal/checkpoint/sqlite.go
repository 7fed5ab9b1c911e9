package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/huypham612/dynastream/pkg/connector"
)

const (
	sqliteInitTable = `CREATE TABLE IF NOT EXISTS shard_checkpoints (
  shard_key TEXT PRIMARY KEY,
  sequence_number TEXT NOT NULL,
  metadata TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`
	sqliteInitIndex = `CREATE INDEX IF NOT EXISTS shard_checkpoints_updated_at_idx ON shard_checkpoints (updated_at);`
)

// SQLiteStore persists shard checkpoints in a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	if err := ensureSQLitePath(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteInitTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create shard_checkpoints table: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteInitIndex); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create shard_checkpoints index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, shardKey string) (connector.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT sequence_number, metadata, updated_at FROM shard_checkpoints WHERE shard_key = ?", shardKey)

	var sequence string
	var metadataJSON string
	var updatedAt string
	if err := row.Scan(&sequence, &metadataJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return connector.Checkpoint{}, ErrNotFound
		}
		return connector.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}

	return buildCheckpoint(sequence, metadataJSON, updatedAt)
}

func (s *SQLiteStore) Put(ctx context.Context, shardKey string, checkpoint connector.Checkpoint) error {
	if checkpoint.Timestamp.IsZero() {
		checkpoint.Timestamp = time.Now().UTC()
	}
	if checkpoint.Metadata == nil {
		checkpoint.Metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(checkpoint.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	updatedAt := checkpoint.Timestamp.Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shard_checkpoints (shard_key, sequence_number, metadata, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(shard_key) DO UPDATE SET
		 sequence_number = excluded.sequence_number,
		 metadata = excluded.metadata,
		 updated_at = excluded.updated_at`,
		shardKey, checkpoint.SequenceNumber, string(metadataJSON), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]connector.ShardCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT shard_key, sequence_number, metadata, updated_at FROM shard_checkpoints ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	out := []connector.ShardCheckpoint{}
	for rows.Next() {
		var shardKey string
		var sequence string
		var metadataJSON string
		var updatedAt string
		if err := rows.Scan(&shardKey, &sequence, &metadataJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp, err := buildCheckpoint(sequence, metadataJSON, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, connector.ShardCheckpoint{ShardKey: shardKey, Checkpoint: cp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	return out, nil
}

func buildCheckpoint(sequence, metadataJSON, updatedAt string) (connector.Checkpoint, error) {
	metadata := map[string]string{}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return connector.Checkpoint{}, fmt.Errorf("decode metadata: %w", err)
		}
	}

	checkpoint := connector.Checkpoint{SequenceNumber: sequence, Metadata: metadata}
	if updatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			checkpoint.Timestamp = parsed
		}
	}
	return checkpoint, nil
}

func ensureSQLitePath(dsn string) error {
	path := strings.TrimSpace(dsn)
	if path == "" || path == ":memory:" {
		return nil
	}
	if strings.HasPrefix(path, "file:") {
		path = strings.TrimPrefix(path, "file:")
		path = strings.TrimPrefix(path, "//")
	}
	if idx := strings.IndexAny(path, "?;"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}
