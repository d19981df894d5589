package voicecmd

import (
	"sync"
	"testing"
	"time"
)

type commandSink struct {
	mu   sync.Mutex
	cmds []Command
}

func (c *commandSink) add(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, cmd)
}

func (c *commandSink) all() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Command, len(c.cmds))
	copy(out, c.cmds)
	return out
}

func newActiveEngine(sink *commandSink) *Engine {
	e := NewEngine()
	e.OnCommand = sink.add
	e.Start()
	return e
}

func TestEngineFragmentMatchingTriggerEmitsImmediately(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("enter", false)

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Kind != KindKey || cmds[0].Content != "Enter" {
		t.Fatalf("command = %+v, want Key Enter", cmds[0])
	}
}

func TestEngineFinalFragmentFlushesText(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("list all files", true)

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "list all files" {
		t.Fatalf("command = %+v, want Text %q", cmds[0], "list all files")
	}
}

func TestEngineSegmentsTextThenTrigger(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("open file dot txt enter", true)

	cmds := sink.all()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(cmds), cmds)
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "open file.txt" {
		t.Fatalf("cmds[0] = %+v, want Text %q", cmds[0], "open file.txt")
	}
	if cmds[1].Kind != KindKey || cmds[1].Content != "Enter" {
		t.Fatalf("cmds[1] = %+v, want Key Enter", cmds[1])
	}
}

func TestEngineSegmentsFragmentwiseTextThenTrigger(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	for _, frag := range []string{"open", "file", "dot", "txt"} {
		e.OnTranscriptFragment(frag, false)
	}
	e.OnTranscriptFragment("enter", true)

	cmds := sink.all()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(cmds), cmds)
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "open file.txt" {
		t.Fatalf("cmds[0] = %+v, want Text %q", cmds[0], "open file.txt")
	}
	if cmds[1].Kind != KindKey || cmds[1].Content != "Enter" {
		t.Fatalf("cmds[1] = %+v, want Key Enter", cmds[1])
	}
}

func TestEngineTrailingTriggerFlushesBufferedText(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("echo hello", false)
	e.OnTranscriptFragment("enter", false)

	cmds := sink.all()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2: %+v", len(cmds), cmds)
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "echo hello" {
		t.Fatalf("cmds[0] = %+v, want Text %q", cmds[0], "echo hello")
	}
	if cmds[1].Kind != KindKey || cmds[1].Content != "Enter" {
		t.Fatalf("cmds[1] = %+v, want Key Enter", cmds[1])
	}
}

func TestEngineEmptyFragmentIsNoOp(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("   ", true)

	if got := sink.all(); len(got) != 0 {
		t.Fatalf("got %d commands, want 0", len(got))
	}
	if got := e.History(0); len(got) != 0 {
		t.Fatalf("history length = %d, want 0", len(got))
	}
}

func TestEngineIdleDiscardsFragments(t *testing.T) {
	sink := &commandSink{}
	e := NewEngine()
	e.OnCommand = sink.add

	e.OnTranscriptFragment("enter", true)

	if got := sink.all(); len(got) != 0 {
		t.Fatalf("idle engine emitted %d commands, want 0", len(got))
	}
}

func TestEngineSilenceFlushWithoutNewFragments(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)
	e.SetSilenceThreshold(30 * time.Millisecond)

	e.OnTranscriptFragment("echo hello", false)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.all()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands after silence, want 1", len(cmds))
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "echo hello" {
		t.Fatalf("command = %+v, want Text %q", cmds[0], "echo hello")
	}
}

func TestEnginePauseSuppressesUntilVoiceResume(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("pause recording", false)
	if e.State() != StatePaused {
		t.Fatalf("state = %q, want %q", e.State(), StatePaused)
	}

	e.OnTranscriptFragment("echo ignored", true)
	if got := sink.all(); len(got) != 1 {
		t.Fatalf("paused engine emitted %d commands, want 1 (the pause itself)", len(got))
	}

	e.OnTranscriptFragment("resume recording", false)
	if e.State() != StateActive {
		t.Fatalf("state = %q, want %q", e.State(), StateActive)
	}

	e.OnTranscriptFragment("echo heard", true)
	cmds := sink.all()
	last := cmds[len(cmds)-1]
	if last.Kind != KindText || last.Content != "echo heard" {
		t.Fatalf("last command = %+v, want Text %q", last, "echo heard")
	}
}

func TestEngineClearTriggerEmitsControl(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("clear terminal", false)

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Kind != KindControl || cmds[0].Content != ActionClear {
		t.Fatalf("command = %+v, want Control CLEAR", cmds[0])
	}
}

func TestEngineCustomTriggerRoundTrip(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.AddTrigger("submit it", "Enter")
	e.OnTranscriptFragment("submit it", false)

	cmds := sink.all()
	if len(cmds) != 1 || cmds[0].Content != "Enter" {
		t.Fatalf("custom trigger did not fire: %+v", cmds)
	}

	e.RemoveTrigger("submit it")
	e.OnTranscriptFragment("submit it", true)

	cmds = sink.all()
	last := cmds[len(cmds)-1]
	if last.Kind != KindText || last.Content != "submit it" {
		t.Fatalf("removed trigger still firing: %+v", last)
	}
}

func TestEngineHistoryBounded(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	for i := 0; i < 150; i++ {
		e.OnTranscriptFragment("enter", false)
	}

	hist := e.History(0)
	if len(hist) != historyCapacity {
		t.Fatalf("history length = %d, want %d", len(hist), historyCapacity)
	}
}

func TestEngineFlushSegmentsBuffer(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("git", false)
	e.OnTranscriptFragment("status", false)
	e.Flush()

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Kind != KindText || cmds[0].Content != "git status" {
		t.Fatalf("command = %+v, want Text %q", cmds[0], "git status")
	}
}

func TestEngineStopDiscardsBuffer(t *testing.T) {
	sink := &commandSink{}
	e := newActiveEngine(sink)

	e.OnTranscriptFragment("half a command", false)
	e.Stop()
	e.Start()
	e.Flush()

	if got := sink.all(); len(got) != 0 {
		t.Fatalf("buffer survived Stop: %+v", got)
	}
}
