package session

import (
	"testing"

	"github.com/voxterm/voxterm/internal/voicecmd"
)

type fakeTerminal struct {
	sends []string
	keys  []string
}

func (f *fakeTerminal) Send(data string, appendNewline bool) {
	if appendNewline {
		data += "\n"
	}
	f.sends = append(f.sends, data)
}

func (f *fakeTerminal) SendKey(name string) {
	f.keys = append(f.keys, name)
}

func TestDispatchText(t *testing.T) {
	ft := &fakeTerminal{}
	Dispatch(ft, voicecmd.Command{Kind: voicecmd.KindText, Content: "ls -la"})

	if len(ft.sends) != 1 || ft.sends[0] != "ls -la" {
		t.Fatalf("sends = %+v, want [ls -la] without newline", ft.sends)
	}
}

func TestDispatchKey(t *testing.T) {
	ft := &fakeTerminal{}
	Dispatch(ft, voicecmd.Command{Kind: voicecmd.KindKey, Content: "Enter"})

	if len(ft.keys) != 1 || ft.keys[0] != "Enter" {
		t.Fatalf("keys = %+v, want [Enter]", ft.keys)
	}
}

func TestDispatchClearControl(t *testing.T) {
	ft := &fakeTerminal{}
	Dispatch(ft, voicecmd.Command{Kind: voicecmd.KindControl, Content: voicecmd.ActionClear})

	want := clearCommand() + "\n"
	if len(ft.sends) != 1 || ft.sends[0] != want {
		t.Fatalf("sends = %+v, want [%q]", ft.sends, want)
	}
}

func TestDispatchIgnoresRecordingControls(t *testing.T) {
	ft := &fakeTerminal{}
	Dispatch(ft, voicecmd.Command{Kind: voicecmd.KindControl, Content: voicecmd.ActionPauseRecording})

	if len(ft.sends) != 0 || len(ft.keys) != 0 {
		t.Fatalf("recording control reached the terminal: %+v %+v", ft.sends, ft.keys)
	}
}
