package voicecmd

import "time"

// Kind classifies what a recognized command does.
type Kind string

const (
	KindText    Kind = "text"    // literal text typed into the terminal
	KindKey     Kind = "key"     // a named special key
	KindControl Kind = "control" // recording/terminal control token
	KindSystem  Kind = "system"  // reserved for caller-defined commands
)

// Command is one discrete action recognized from the transcript stream.
// Immutable once constructed.
type Command struct {
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
