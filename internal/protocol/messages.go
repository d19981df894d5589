package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTranscriptFragment MessageType = "transcript_fragment"
	TypeClientControl      MessageType = "client_control"
	TypeTerminalInput      MessageType = "terminal_input"
	TypeResize             MessageType = "resize"
	TypeTerminalOutput     MessageType = "terminal_output"
	TypeCommandEvent       MessageType = "command_event"
	TypeTranscription      MessageType = "transcription"
	TypeSystemEvent        MessageType = "system_event"
	TypeErrorEvent         MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// TranscriptFragment carries one chunk of recognized speech from the client.
type TranscriptFragment struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Text       string      `json:"text"`
	IsFinal    bool        `json:"is_final"`
	Confidence float64     `json:"confidence"`
	TSMs       int64       `json:"ts_ms"`
}

// ClientControl requests an engine state change: pause, resume, flush, clear.
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// TerminalInput writes raw bytes to the child, bypassing segmentation.
type TerminalInput struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Data      string      `json:"data"`
}

// Resize reports a new client terminal geometry.
type Resize struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Rows      uint16      `json:"rows"`
	Cols      uint16      `json:"cols"`
}

type TerminalOutput struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Data      string      `json:"data"`
}

type CommandEvent struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Kind       string      `json:"kind"`
	Content    string      `json:"content"`
	Confidence float64     `json:"confidence"`
	TSMs       int64       `json:"ts_ms"`
}

type Transcription struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTranscriptFragment:
		var msg TranscriptFragment
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid transcript_fragment")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	case TypeTerminalInput:
		var msg TerminalInput
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Data == "" {
			return nil, errors.New("invalid terminal_input")
		}
		return msg, nil
	case TypeResize:
		var msg Resize
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Rows == 0 || msg.Cols == 0 {
			return nil, errors.New("invalid resize")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
