package term

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// pipeSession drives the child over plain pipes where pseudo-terminals are
// unavailable. Output and error streams are merged, matching what a pty
// would deliver.
type pipeSession struct {
	cmd *exec.Cmd

	outR *os.File // controller reads child output here
	inW  *os.File // controller writes child input here

	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	code int
}

func startPipeSession(argv []string) (ChildSession, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("output pipe: %w", err)
	}
	inR, inW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("input pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = childEnv()
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		inR.Close()
		inW.Close()
		return nil, fmt.Errorf("spawn %q: %w", argv[0], err)
	}

	// The child holds its own copies now.
	outW.Close()
	inR.Close()

	s := &pipeSession{cmd: cmd, outR: outR, inW: inW, done: make(chan struct{})}
	go s.reap()
	return s, nil
}

func (s *pipeSession) reap() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.code = exitCodeFrom(err, s.cmd)
	s.mu.Unlock()
	close(s.done)
}

func (s *pipeSession) Read(p []byte) (int, error)  { return s.outR.Read(p) }
func (s *pipeSession) Write(p []byte) (int, error) { return s.inW.Write(p) }

func (s *pipeSession) SetReadDeadline(t time.Time) error { return s.outR.SetReadDeadline(t) }

func (s *pipeSession) Resize(rows, cols uint16) error { return nil }

func (s *pipeSession) Terminate() error { return signalTerm(s.cmd.Process) }
func (s *pipeSession) Kill() error      { return s.cmd.Process.Kill() }

func (s *pipeSession) Wait(timeout time.Duration) (int, bool) {
	select {
	case <-s.done:
	case <-time.After(timeout):
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, true
}

func (s *pipeSession) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *pipeSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.outR.Close()
		if cerr := s.inW.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func exitCodeFrom(waitErr error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		if ee, ok := waitErr.(*exec.ExitError); ok {
			return ee.ExitCode()
		}
	}
	return -1
}
