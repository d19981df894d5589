//go:build !windows

package term

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const ptySupported = true

// ptySession owns a pseudo-terminal pair with the child attached to the
// slave side as its session leader.
type ptySession struct {
	cmd  *exec.Cmd
	ptmx *os.File
	tty  *os.File

	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	code int
}

func startPTYSession(argv []string, rows, cols uint16) (ChildSession, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("set pty size: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = childEnv()
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("spawn %q: %w", argv[0], err)
	}

	s := &ptySession{cmd: cmd, ptmx: ptmx, tty: tty, done: make(chan struct{})}
	go s.reap()
	return s, nil
}

func (s *ptySession) reap() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.code = exitCodeFrom(err, s.cmd)
	s.mu.Unlock()
	close(s.done)
}

func (s *ptySession) Read(p []byte) (int, error)  { return s.ptmx.Read(p) }
func (s *ptySession) Write(p []byte) (int, error) { return s.ptmx.Write(p) }

func (s *ptySession) SetReadDeadline(t time.Time) error { return s.ptmx.SetReadDeadline(t) }

func (s *ptySession) Resize(rows, cols uint16) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (s *ptySession) Terminate() error {
	// Setsid makes the child its own group leader, so the negative pid
	// reaches the whole group.
	if err := syscall.Kill(-s.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return s.cmd.Process.Signal(syscall.SIGTERM)
	}
	return nil
}

func (s *ptySession) Kill() error {
	if err := syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return s.cmd.Process.Kill()
	}
	return nil
}

func (s *ptySession) Wait(timeout time.Duration) (int, bool) {
	select {
	case <-s.done:
	case <-time.After(timeout):
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, true
}

func (s *ptySession) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func signalTerm(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

func (s *ptySession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ptmx.Close()
		if cerr := s.tty.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
