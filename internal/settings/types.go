package settings

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("settings not found")

// UserSettings captures per-user preferences that must survive restarts.
type UserSettings struct {
	UserID             string            `json:"user_id"`
	SelectedCLI        string            `json:"selected_cli"`
	SelectedBackend    string            `json:"selected_backend"`
	SilenceThresholdMS int64             `json:"silence_threshold_ms"`
	CustomTriggers     map[string]string `json:"custom_triggers"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HistoryEntry records one executed command for later review.
type HistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists user settings and executed-command history.
type Store interface {
	SaveSettings(ctx context.Context, s UserSettings) error
	LoadSettings(ctx context.Context, userID string) (UserSettings, error)
	AppendCommand(ctx context.Context, entry HistoryEntry) error
	RecentCommands(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
	Close() error
}
