package term

// keySequences maps a key name to the raw bytes written to the child process.
// The escape sequences follow what common terminal emulators send, so the
// child sees the same input it would from a real keyboard.
var keySequences = map[string]string{
	"Enter":     "\n",
	"Tab":       "\t",
	"Backspace": "\b",
	"Escape":    "\x1b",
	"Ctrl+C":    "\x03",
	"Ctrl+D":    "\x04",
	"Ctrl+Z":    "\x1a",
	"Up":        "\x1b[A",
	"Down":      "\x1b[B",
	"Right":     "\x1b[C",
	"Left":      "\x1b[D",
	"Home":      "\x1b[H",
	"End":       "\x1b[F",
	"PageUp":    "\x1b[5~",
	"PageDown":  "\x1b[6~",
	"Delete":    "\x1b[3~",
	"Insert":    "\x1b[2~",
}

// KeySequence returns the byte sequence for a named key. Unknown names
// report ok=false; callers treat that as a no-op, not an error.
func KeySequence(name string) (string, bool) {
	seq, ok := keySequences[name]
	return seq, ok
}
