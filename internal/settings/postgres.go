package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists user settings and command history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			selected_cli TEXT NOT NULL DEFAULT '',
			selected_backend TEXT NOT NULL DEFAULT '',
			silence_threshold_ms BIGINT NOT NULL DEFAULT 0,
			custom_triggers JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS command_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_command_history_user_created ON command_history (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, us UserSettings) error {
	if us.UpdatedAt.IsZero() {
		us.UpdatedAt = time.Now().UTC()
	}
	triggers, err := json.Marshal(us.CustomTriggers)
	if err != nil {
		return fmt.Errorf("encode custom triggers: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, selected_cli, selected_backend, silence_threshold_ms, custom_triggers, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
			selected_cli = EXCLUDED.selected_cli,
			selected_backend = EXCLUDED.selected_backend,
			silence_threshold_ms = EXCLUDED.silence_threshold_ms,
			custom_triggers = EXCLUDED.custom_triggers,
			updated_at = EXCLUDED.updated_at`,
		us.UserID,
		us.SelectedCLI,
		us.SelectedBackend,
		us.SilenceThresholdMS,
		triggers,
		us.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSettings(ctx context.Context, userID string) (UserSettings, error) {
	var us UserSettings
	var triggers []byte
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, selected_cli, selected_backend, silence_threshold_ms, custom_triggers, updated_at
		 FROM user_settings WHERE user_id=$1`,
		userID,
	).Scan(&us.UserID, &us.SelectedCLI, &us.SelectedBackend, &us.SilenceThresholdMS, &triggers, &us.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserSettings{}, ErrNotFound
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if len(triggers) > 0 {
		if err := json.Unmarshal(triggers, &us.CustomTriggers); err != nil {
			return UserSettings{}, fmt.Errorf("decode custom triggers: %w", err)
		}
	}
	return us, nil
}

func (s *PostgresStore) AppendCommand(ctx context.Context, entry HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO command_history (id, user_id, session_id, kind, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.UserID,
		entry.SessionID,
		entry.Kind,
		entry.Content,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentCommands(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, kind, content, created_at
		 FROM command_history WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent commands: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Kind, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
