package voicecmd

import (
	"strings"
	"sync"
	"time"
)

// EngineState tracks recording state, independent of any terminal session.
type EngineState string

const (
	StateIdle   EngineState = "idle"
	StateActive EngineState = "active"
	StatePaused EngineState = "paused"
)

// DefaultSilenceThreshold is the idle duration after the last fragment
// before the accumulation buffer is force-flushed.
const DefaultSilenceThreshold = 2 * time.Second

// Engine turns an open-ended transcript stream into discrete commands. It
// keeps a rolling buffer, matches trigger phrases, substitutes spoken
// punctuation, and maintains a bounded command history.
//
// Ingestion is single-producer: OnTranscriptFragment must not be called
// concurrently with itself. The internal mutex exists so Pause/Stop and the
// silence timer may run on other goroutines.
type Engine struct {
	// Callbacks must be assigned before the first fragment arrives.
	OnTranscription func(text string)
	OnCommand       func(cmd Command)
	OnError         func(message string)

	mu           sync.Mutex
	state        EngineState
	triggers     *TriggerTable
	buffer       string
	lastUpdate   time.Time
	silence      time.Duration
	longestMatch bool
	hist         *history
	silenceTimer *time.Timer

	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		state:    StateIdle,
		triggers: NewTriggerTable(),
		silence:  DefaultSilenceThreshold,
		hist:     newHistory(),
		now:      time.Now,
	}
}

// Start moves the engine to Active. Fragments are discarded until then.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateActive
}

// Stop returns to Idle and discards the current buffer.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.buffer = ""
	e.disarmTimerLocked()
}

// Pause suspends ingestion without discarding the buffer.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateActive {
		e.state = StatePaused
	}
}

// Resume re-enables ingestion after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateActive
	}
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetSilenceThreshold overrides the idle flush duration.
func (e *Engine) SetSilenceThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.silence = d
}

func (e *Engine) SilenceThreshold() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.silence
}

// SetLongestMatch switches overlapping-trigger resolution from the default
// first-registered policy to longest-phrase-wins among equally-early matches.
// Changes observable segmentation output; off by default for compatibility.
func (e *Engine) SetLongestMatch(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.longestMatch = enabled
}

// AddTrigger registers a custom phrase at runtime.
func (e *Engine) AddTrigger(phrase, action string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers.Add(phrase, action)
}

// RemoveTrigger drops a custom phrase, restoring any shadowed built-in.
func (e *Engine) RemoveTrigger(phrase string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers.Remove(phrase)
}

// CustomTriggers returns the custom overlay for persistence.
func (e *Engine) CustomTriggers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggers.Customs()
}

// History returns up to limit recent commands, oldest first.
func (e *Engine) History(limit int) []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.recent(limit)
}

func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.clear()
}

// OnTranscriptFragment ingests one transcript event.
//
// Paused engines discard everything except a bare resume trigger, so a
// "start recording" utterance can re-enable recording by voice alone.
func (e *Engine) OnTranscriptFragment(text string, isFinal bool) {
	e.mu.Lock()

	if e.state != StateActive {
		if e.state == StatePaused {
			if action, ok := e.triggers.Lookup(text); ok &&
				(action == ActionStartRecording || action == ActionResumeRecording) {
				cmds := []Command{e.commandFor(action)}
				e.applyControlsLocked(cmds)
				e.recordLocked(cmds)
				e.mu.Unlock()
				e.notify(strings.TrimSpace(text), cmds)
				return
			}
		}
		e.mu.Unlock()
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		e.mu.Unlock()
		return
	}

	if e.buffer == "" {
		e.buffer = trimmed
	} else {
		e.buffer += " " + trimmed
	}
	e.lastUpdate = e.now()
	e.armTimerLocked(e.silence)

	var cmds []Command
	if action, ok := e.triggers.Lookup(trimmed); ok && e.buffer == trimmed {
		// Low-latency path: the trigger arrived with nothing buffered ahead
		// of it. With prior text pending, the buffer must flush through
		// segmentation instead so the text is emitted before the trigger.
		cmds = []Command{e.commandFor(action)}
		e.buffer = ""
		e.disarmTimerLocked()
		e.applyControlsLocked(cmds)
		e.recordLocked(cmds)
	} else if isFinal || e.shouldFlushLocked() {
		cmds = e.flushLocked()
	}

	e.mu.Unlock()
	e.notify(trimmed, cmds)
}

// Flush forces segmentation of the current buffer.
func (e *Engine) Flush() {
	e.mu.Lock()
	cmds := e.flushLocked()
	e.mu.Unlock()
	e.notify("", cmds)
}

func (e *Engine) shouldFlushLocked() bool {
	if e.now().Sub(e.lastUpdate) > e.silence {
		return true
	}
	lower := normalizePhrase(e.buffer)
	suffixed := false
	e.triggers.each(func(phrase, _ string) bool {
		if strings.HasSuffix(lower, phrase) {
			suffixed = true
			return false
		}
		return true
	})
	return suffixed
}

// flushLocked clears the buffer atomically with segmentation so no fragment
// can observe a half-consumed buffer.
func (e *Engine) flushLocked() []Command {
	buffer := strings.TrimSpace(e.buffer)
	e.buffer = ""
	e.disarmTimerLocked()
	if buffer == "" {
		return nil
	}
	cmds := e.segment(buffer)
	e.applyControlsLocked(cmds)
	e.recordLocked(cmds)
	return cmds
}

// segment splits a buffer into ordered commands: the earliest-starting
// trigger occurrence wins each round, equally-early matches resolved in
// table-registration order (or by phrase length when longest-match is on).
func (e *Engine) segment(buffer string) []Command {
	if action, ok := e.triggers.Lookup(buffer); ok {
		return []Command{e.commandFor(action)}
	}

	var out []Command
	remaining := strings.TrimSpace(buffer)
	for remaining != "" {
		lower := strings.ToLower(remaining)
		bestPos := -1
		bestPhrase := ""
		bestAction := ""
		e.triggers.each(func(phrase, action string) bool {
			idx := strings.Index(lower, phrase)
			if idx < 0 {
				return true
			}
			better := bestPos == -1 || idx < bestPos
			if e.longestMatch && bestPos == idx && len(phrase) > len(bestPhrase) {
				better = true
			}
			if better {
				bestPos, bestPhrase, bestAction = idx, phrase, action
			}
			return true
		})

		if bestPos < 0 {
			if cmd, ok := e.textCommand(remaining); ok {
				out = append(out, cmd)
			}
			break
		}

		if before := strings.TrimSpace(remaining[:bestPos]); before != "" {
			if cmd, ok := e.textCommand(before); ok {
				out = append(out, cmd)
			}
		}
		out = append(out, e.commandFor(bestAction))
		remaining = strings.TrimSpace(remaining[bestPos+len(bestPhrase):])
	}
	return out
}

func (e *Engine) textCommand(segment string) (Command, bool) {
	processed := strings.TrimSpace(substitutePunctuation(segment))
	if processed == "" {
		return Command{}, false
	}
	return Command{Kind: KindText, Content: processed, Confidence: 1, Timestamp: e.now()}, true
}

func (e *Engine) commandFor(action string) Command {
	kind := KindKey
	if IsControlAction(action) {
		kind = KindControl
	}
	return Command{Kind: kind, Content: action, Confidence: 1, Timestamp: e.now()}
}

// applyControlsLocked interprets the recording-state tokens locally. CLEAR
// and custom tokens are left for the dispatcher.
func (e *Engine) applyControlsLocked(cmds []Command) {
	for _, cmd := range cmds {
		if cmd.Kind != KindControl {
			continue
		}
		switch cmd.Content {
		case ActionStartRecording, ActionResumeRecording:
			if e.state == StatePaused {
				e.state = StateActive
			}
		case ActionStopRecording, ActionPauseRecording:
			if e.state == StateActive {
				e.state = StatePaused
			}
		}
	}
}

func (e *Engine) recordLocked(cmds []Command) {
	for _, cmd := range cmds {
		e.hist.append(cmd)
	}
}

func (e *Engine) notify(heard string, cmds []Command) {
	if heard != "" {
		if cb := e.OnTranscription; cb != nil {
			cb(heard)
		}
	}
	if cb := e.OnCommand; cb != nil {
		for _, cmd := range cmds {
			cb(cmd)
		}
	}
}

func (e *Engine) armTimerLocked(d time.Duration) {
	e.disarmTimerLocked()
	// Small slack so the deadline has strictly passed when the timer fires.
	e.silenceTimer = time.AfterFunc(d+10*time.Millisecond, e.onSilence)
}

func (e *Engine) disarmTimerLocked() {
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
		e.silenceTimer = nil
	}
}

func (e *Engine) onSilence() {
	e.mu.Lock()
	if e.state != StateActive || e.buffer == "" {
		e.mu.Unlock()
		return
	}
	idle := e.now().Sub(e.lastUpdate)
	if idle <= e.silence {
		e.armTimerLocked(e.silence - idle)
		e.mu.Unlock()
		return
	}
	cmds := e.flushLocked()
	e.mu.Unlock()
	e.notify("", cmds)
}
