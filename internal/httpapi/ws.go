package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxterm/voxterm/internal/observability"
	"github.com/voxterm/voxterm/internal/protocol"
	"github.com/voxterm/voxterm/internal/session"
	"github.com/voxterm/voxterm/internal/settings"
	"github.com/voxterm/voxterm/internal/term"
	"github.com/voxterm/voxterm/internal/voicecmd"
)

// bridge fans session runtime callbacks out to whichever websocket is
// currently attached. The controller and engine callbacks are assigned once
// per session; connections come and go by swapping the outbound channel.
type bridge struct {
	sessionID string
	userID    string
	rt        *session.Runtime
	store     settings.Store
	metrics   *observability.Metrics

	mu       sync.Mutex
	out      chan any
	lastFrag time.Time
}

func (b *bridge) noteFragment() {
	b.mu.Lock()
	b.lastFrag = time.Now()
	b.mu.Unlock()
}

func (b *bridge) attach(out chan any) {
	b.mu.Lock()
	b.out = out
	b.mu.Unlock()
}

func (b *bridge) detach(out chan any) {
	b.mu.Lock()
	if b.out == out {
		b.out = nil
	}
	b.mu.Unlock()
}

// send drops on the floor when no client is attached or the queue is full,
// keeping the terminal reader unblocked.
func (b *bridge) send(msg any) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- msg:
	default:
	}
}

func (b *bridge) onOutput(text string) {
	b.send(protocol.TerminalOutput{
		Type:      protocol.TypeTerminalOutput,
		SessionID: b.sessionID,
		Data:      text,
	})
}

func (b *bridge) onError(message string) {
	b.metrics.TerminalErrors.WithLabelValues("io").Inc()
	b.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: b.sessionID,
		Code:      "terminal_error",
		Retryable: true,
		Detail:    message,
	})
}

func (b *bridge) onExit(code int) {
	b.metrics.SessionEvents.WithLabelValues("terminal_exited").Inc()
	b.send(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: b.sessionID,
		Code:      "terminal_exited",
		Detail:    strconv.Itoa(code),
	})
}

func (b *bridge) onTranscription(text string) {
	b.send(protocol.Transcription{
		Type:      protocol.TypeTranscription,
		SessionID: b.sessionID,
		Text:      text,
	})
}

func (b *bridge) onCommand(cmd voicecmd.Command) {
	session.Dispatch(b.rt.Controller, cmd)
	b.metrics.Commands.WithLabelValues(string(cmd.Kind)).Inc()

	b.mu.Lock()
	lastFrag := b.lastFrag
	b.mu.Unlock()
	if !lastFrag.IsZero() {
		b.metrics.ObserveFlushLatency(time.Since(lastFrag))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = b.store.AppendCommand(ctx, settings.HistoryEntry{
		UserID:    b.userID,
		SessionID: b.sessionID,
		Kind:      string(cmd.Kind),
		Content:   cmd.Content,
		CreatedAt: cmd.Timestamp,
	})

	b.send(protocol.CommandEvent{
		Type:       protocol.TypeCommandEvent,
		SessionID:  b.sessionID,
		Kind:       string(cmd.Kind),
		Content:    cmd.Content,
		Confidence: cmd.Confidence,
		TSMs:       cmd.Timestamp.UnixMilli(),
	})
}

// bridgeFor returns the session's bridge, wiring runtime callbacks and
// spawning the child process on first use.
func (s *Server) bridgeFor(sess *session.Session, rt *session.Runtime) *bridge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bridges[sess.ID]; ok {
		return b
	}

	b := &bridge{
		sessionID: sess.ID,
		userID:    sess.UserID,
		rt:        rt,
		store:     s.store,
		metrics:   s.metrics,
	}
	rt.Controller.OnOutput = b.onOutput
	rt.Controller.OnError = b.onError
	rt.Controller.OnExit = b.onExit
	rt.Engine.OnTranscription = b.onTranscription
	rt.Engine.OnCommand = b.onCommand
	rt.Engine.OnError = b.onError

	rt.Controller.Start(s.launchCommandFor(sess), backendFor(sess.Backend))

	s.bridges[sess.ID] = b
	return b
}

func (s *Server) dropBridge(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bridges, sessionID)
}

// OnSessionExpired releases connection state for sessions the janitor ended.
func (s *Server) OnSessionExpired(sess *session.Session) {
	s.dropBridge(sess.ID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("expired").Inc()
}

// launchCommandFor resolves the session's CLI key into an executable
// command. An unknown or missing CLI degrades to an interactive shell.
func (s *Server) launchCommandFor(sess *session.Session) string {
	key := strings.TrimSpace(sess.CLI)
	if key == "" || key == "shell" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if info, ok := s.detector.Check(ctx, key); ok {
		return info.Command
	}
	return ""
}

func backendFor(name string) term.BackendID {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || name == "auto" {
		return ""
	}
	return term.BackendID(name)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	rt, err := s.sessions.Runtime(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	b := s.bridgeFor(sess, rt)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	b.attach(outbound)
	defer b.detach(outbound)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			b.send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		_ = s.sessions.Touch(sessionID)
		s.dispatchClientMessage(sessionID, rt, b, parsed)
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) dispatchClientMessage(sessionID string, rt *session.Runtime, b *bridge, parsed any) {
	switch msg := parsed.(type) {
	case protocol.TranscriptFragment:
		b.noteFragment()
		rt.Engine.OnTranscriptFragment(msg.Text, msg.IsFinal)
	case protocol.ClientControl:
		switch strings.ToLower(strings.TrimSpace(msg.Action)) {
		case "pause":
			rt.Engine.Pause()
		case "resume":
			rt.Engine.Resume()
		case "flush":
			rt.Engine.Flush()
		case "clear_history":
			rt.Engine.ClearHistory()
		default:
			b.send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "unknown_control_action",
				Retryable: false,
				Detail:    msg.Action,
			})
		}
	case protocol.TerminalInput:
		rt.Controller.Send(msg.Data, false)
	case protocol.Resize:
		rt.Controller.Resize(int(msg.Rows), int(msg.Cols))
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.TranscriptFragment:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.TerminalInput:
		return m.Type, true
	case protocol.Resize:
		return m.Type, true
	case protocol.TerminalOutput:
		return m.Type, true
	case protocol.CommandEvent:
		return m.Type, true
	case protocol.Transcription:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
