package term

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// BackendID names a terminal launch strategy.
type BackendID string

const (
	BackendBash BackendID = "bash"
	BackendZsh  BackendID = "zsh"
	BackendSh   BackendID = "sh"
	// BackendPipe runs the child over plain pipes. It is the fallback on
	// platforms without pseudo-terminal support and is always available.
	BackendPipe BackendID = "pipe"
)

var ErrNoBackend = errors.New("no terminal backend available")

// ChildSession is the controller-side handle to one live child process.
// The owning Controller is the only reader/writer of these endpoints.
type ChildSession interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// SetReadDeadline bounds the next Read so worker loops never block
	// indefinitely. Backends that cannot support deadlines return an error
	// once and the caller falls back to close-to-unblock semantics.
	SetReadDeadline(t time.Time) error
	// Resize propagates a window-size change; pipe sessions treat it as a no-op.
	Resize(rows, cols uint16) error
	// Terminate signals the whole process group where the platform supports
	// it, falling back to killing the direct child.
	Terminate() error
	Kill() error
	// Wait blocks until the child exits or the timeout elapses. It reports
	// the exit code and whether the child has exited.
	Wait(timeout time.Duration) (int, bool)
	Exited() bool
	Close() error
}

type launchSpec struct {
	id   BackendID
	argv []string // shell wrapper, e.g. ["bash", "-c"]
	pty  bool
}

// launchTable lists strategies in preference order. The first available
// entry is the default when Start is called without an explicit backend.
var launchTable = []launchSpec{
	{id: BackendBash, argv: []string{"bash", "-c"}, pty: true},
	{id: BackendZsh, argv: []string{"zsh", "-c"}, pty: true},
	{id: BackendSh, argv: []string{"sh", "-c"}, pty: true},
	{id: BackendPipe, pty: false},
}

// ListAvailableBackends reports the launch strategies usable on this
// platform by probing for the underlying executable. Pure query; it never
// touches session state.
func ListAvailableBackends() []BackendID {
	out := make([]BackendID, 0, len(launchTable))
	for _, spec := range launchTable {
		if spec.pty {
			if !ptySupported {
				continue
			}
			if _, err := exec.LookPath(spec.argv[0]); err != nil {
				continue
			}
		}
		out = append(out, spec.id)
	}
	return out
}

func resolveBackend(id BackendID) (launchSpec, bool) {
	if id == "" {
		avail := ListAvailableBackends()
		if len(avail) == 0 {
			return launchSpec{}, false
		}
		id = avail[0]
	}
	for _, spec := range launchTable {
		if spec.id != id {
			continue
		}
		if spec.pty {
			if !ptySupported {
				return launchSpec{}, false
			}
			if _, err := exec.LookPath(spec.argv[0]); err != nil {
				return launchSpec{}, false
			}
		}
		return spec, true
	}
	return launchSpec{}, false
}

// startChild spawns the launch command under the given strategy with the
// child's standard streams bound to the session side of the endpoint pair.
func startChild(spec launchSpec, launchCommand string, rows, cols uint16) (ChildSession, error) {
	if spec.pty {
		argv := append(append([]string{}, spec.argv...), launchCommand)
		if strings.TrimSpace(launchCommand) == "" {
			// Interactive shell when no command was given.
			argv = spec.argv[:1]
		}
		return startPTYSession(argv, rows, cols)
	}

	argv := strings.Fields(launchCommand)
	if len(argv) == 0 {
		return nil, errors.New("pipe backend requires a launch command")
	}
	return startPipeSession(argv)
}

func childEnv() []string {
	return append(os.Environ(), "TERM=xterm-256color")
}
