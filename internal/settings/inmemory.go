package settings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[string]UserSettings
	history  map[string][]HistoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		settings: make(map[string]UserSettings),
		history:  make(map[string][]HistoryEntry),
	}
}

func (s *InMemoryStore) SaveSettings(_ context.Context, us UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if us.UpdatedAt.IsZero() {
		us.UpdatedAt = time.Now().UTC()
	}
	if us.CustomTriggers != nil {
		copied := make(map[string]string, len(us.CustomTriggers))
		for k, v := range us.CustomTriggers {
			copied[k] = v
		}
		us.CustomTriggers = copied
	}
	s.settings[us.UserID] = us
	return nil
}

func (s *InMemoryStore) LoadSettings(_ context.Context, userID string) (UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	us, ok := s.settings[userID]
	if !ok {
		return UserSettings{}, ErrNotFound
	}
	if us.CustomTriggers != nil {
		copied := make(map[string]string, len(us.CustomTriggers))
		for k, v := range us.CustomTriggers {
			copied[k] = v
		}
		us.CustomTriggers = copied
	}
	return us, nil
}

func (s *InMemoryStore) AppendCommand(_ context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.history[entry.UserID] = append(s.history[entry.UserID], entry)
	return nil
}

func (s *InMemoryStore) RecentCommands(_ context.Context, userID string, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.history[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]HistoryEntry, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
