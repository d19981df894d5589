package session

import (
	"runtime"

	"github.com/voxterm/voxterm/internal/voicecmd"
)

// Terminal is the slice of the controller the dispatcher needs.
type Terminal interface {
	Send(data string, appendNewline bool)
	SendKey(name string)
}

// Dispatch forwards one segmented command to the terminal. Text is written
// verbatim without a trailing newline, so a spoken "enter" stays an explicit
// step. Recording-state controls are handled inside the engine and ignored
// here; CLEAR becomes the shell's clear command.
func Dispatch(t Terminal, cmd voicecmd.Command) {
	switch cmd.Kind {
	case voicecmd.KindText:
		t.Send(cmd.Content, false)
	case voicecmd.KindKey:
		t.SendKey(cmd.Content)
	case voicecmd.KindControl:
		if cmd.Content == voicecmd.ActionClear {
			t.Send(clearCommand(), true)
		}
	}
}

func clearCommand() string {
	if runtime.GOOS == "windows" {
		return "cls"
	}
	return "clear"
}
