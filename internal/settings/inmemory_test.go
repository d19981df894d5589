package settings

import (
	"context"
	"errors"
	"testing"
)

func TestInMemorySettingsRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.LoadSettings(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadSettings() error = %v, want ErrNotFound", err)
	}

	in := UserSettings{
		UserID:             "u1",
		SelectedCLI:        "claude",
		SelectedBackend:    "bash",
		SilenceThresholdMS: 1500,
		CustomTriggers:     map[string]string{"submit it": "Enter"},
	}
	if err := s.SaveSettings(ctx, in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := s.LoadSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got.SelectedCLI != "claude" || got.SilenceThresholdMS != 1500 {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if got.CustomTriggers["submit it"] != "Enter" {
		t.Fatalf("custom triggers = %+v, want submit it -> Enter", got.CustomTriggers)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt should be set on save")
	}

	// Mutating the returned map must not leak back into the store.
	got.CustomTriggers["submit it"] = "Tab"
	again, err := s.LoadSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if again.CustomTriggers["submit it"] != "Enter" {
		t.Fatalf("stored triggers mutated through returned map")
	}
}

func TestInMemoryCommandHistory(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.AppendCommand(ctx, HistoryEntry{
			UserID:    "u1",
			SessionID: "s1",
			Kind:      "text",
			Content:   "ls",
		})
		if err != nil {
			t.Fatalf("AppendCommand() error = %v", err)
		}
	}

	entries, err := s.RecentCommands(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("RecentCommands() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Fatalf("entry missing id or timestamp: %+v", e)
		}
	}

	none, err := s.RecentCommands(ctx, "nobody", 10)
	if err != nil {
		t.Fatalf("RecentCommands() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("got %d entries for unknown user, want 0", len(none))
	}
}
