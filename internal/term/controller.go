package term

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// State tracks the controller lifecycle.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	defaultRows = 24
	defaultCols = 80

	defaultPollInterval = 100 * time.Millisecond
	defaultReadBackoff  = 100 * time.Millisecond
	// stopGrace bounds how long Stop waits after SIGTERM before killing, and
	// also the hard ceiling on joining the worker loops.
	defaultStopGrace = 5 * time.Second

	outputQueueSize = 1024
	inputQueueSize  = 256
)

// Controller owns one child-process terminal session. It spawns the child
// behind a pseudo-terminal (or pipes), runs a reader loop draining output
// into a queue plus the OnOutput callback, and a writer loop feeding queued
// input to the child. Failures surface through callbacks, never panics.
type Controller struct {
	// Callbacks must be assigned before Start and not mutated afterwards.
	OnOutput func(text string)
	OnError  func(message string)
	OnExit   func(code int)

	mu      sync.Mutex
	state   State
	child   ChildSession
	backend BackendID
	rows    uint16
	cols    uint16

	outQ    chan string
	inQ     chan []byte
	stopCh  chan struct{}
	workers *sync.WaitGroup

	pollInterval time.Duration
	readBackoff  time.Duration
	stopGrace    time.Duration

	spawn func(spec launchSpec, launchCommand string, rows, cols uint16) (ChildSession, error)
}

func NewController() *Controller {
	return &Controller{
		rows:         defaultRows,
		cols:         defaultCols,
		pollInterval: defaultPollInterval,
		readBackoff:  defaultReadBackoff,
		stopGrace:    defaultStopGrace,
		spawn:        startChild,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Backend reports which launch strategy the live session uses.
func (c *Controller) Backend() BackendID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Size reports the terminal geometry the next (or current) session uses.
func (c *Controller) Size() (rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.rows), int(c.cols)
}

// SetStopGrace overrides the bounded wait Stop applies after SIGTERM and
// when joining the worker loops.
func (c *Controller) SetStopGrace(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopGrace = d
}

// StopGrace returns the current Stop wait bound.
func (c *Controller) StopGrace() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopGrace
}

// Start spawns launchCommand under the given backend (or the first available
// one when backend is empty). It returns false, without raising, when a
// session is already live or no backend resolves.
func (c *Controller) Start(launchCommand string, backend BackendID) bool {
	c.mu.Lock()
	if c.state != Stopped {
		c.mu.Unlock()
		return false
	}
	c.state = Starting
	rows, cols := c.rows, c.cols
	c.mu.Unlock()

	spec, ok := resolveBackend(backend)
	if !ok {
		c.reportError(fmt.Sprintf("no terminal backend resolves for %q", backend))
		c.setState(Stopped)
		return false
	}

	child, err := c.spawn(spec, launchCommand, rows, cols)
	if err != nil {
		c.reportError("spawn failed: " + err.Error())
		c.setState(Stopped)
		return false
	}

	c.mu.Lock()
	if c.state != Starting {
		// A concurrent Stop ran while the spawn was in flight; the session
		// must not come up behind the caller's back.
		grace := c.stopGrace
		c.mu.Unlock()
		_ = child.Terminate()
		if _, ok := child.Wait(grace); !ok {
			_ = child.Kill()
			child.Wait(time.Second)
		}
		_ = child.Close()
		return false
	}
	c.child = child
	c.backend = spec.id
	c.outQ = make(chan string, outputQueueSize)
	c.inQ = make(chan []byte, inputQueueSize)
	c.stopCh = make(chan struct{})
	c.workers = &sync.WaitGroup{}
	c.workers.Add(2)
	go c.readLoop(child, c.stopCh, c.outQ, c.workers)
	go c.writeLoop(child, c.stopCh, c.inQ, c.workers)
	c.state = Running
	c.mu.Unlock()
	return true
}

// Send queues raw bytes for the child. When appendNewline is set and the
// payload does not already end in one, a newline is appended. No-op unless
// running; safe to call concurrently with the worker loops.
func (c *Controller) Send(data string, appendNewline bool) {
	if appendNewline && !strings.HasSuffix(data, "\n") {
		data += "\n"
	}

	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	inQ, stopCh := c.inQ, c.stopCh
	c.mu.Unlock()

	select {
	case inQ <- []byte(data):
	case <-stopCh:
	}
}

// SendKey forwards a named key's byte sequence. Unknown names are ignored.
func (c *Controller) SendKey(name string) {
	seq, ok := KeySequence(name)
	if !ok {
		return
	}
	c.Send(seq, false)
}

// Resize propagates a window-size change to the pseudo-terminal; a no-op for
// pipe sessions and stopped controllers.
func (c *Controller) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	c.mu.Lock()
	c.rows, c.cols = uint16(rows), uint16(cols)
	child := c.child
	running := c.state == Running
	c.mu.Unlock()

	if !running || child == nil {
		return
	}
	if err := child.Resize(uint16(rows), uint16(cols)); err != nil {
		c.reportError("resize: " + err.Error())
	}
}

// Poll returns the next buffered output chunk, waiting up to timeout.
func (c *Controller) Poll(timeout time.Duration) (string, bool) {
	c.mu.Lock()
	outQ := c.outQ
	c.mu.Unlock()
	if outQ == nil {
		return "", false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk := <-outQ:
		return chunk, true
	case <-timer.C:
		return "", false
	}
}

// ClearOutput discards all buffered output chunks.
func (c *Controller) ClearOutput() {
	c.mu.Lock()
	outQ := c.outQ
	c.mu.Unlock()
	if outQ == nil {
		return
	}
	for {
		select {
		case <-outQ:
		default:
			return
		}
	}
}

// WaitForPrompt polls output until pattern appears or timeout elapses.
func (c *Controller) WaitForPrompt(pattern string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	var buf strings.Builder
	for time.Now().Before(deadline) {
		if chunk, ok := c.Poll(c.pollInterval); ok {
			buf.WriteString(chunk)
			if strings.Contains(buf.String(), pattern) {
				return true
			}
		}
	}
	return false
}

// ExecuteAndWait sends a command and collects output until the child goes
// quiet or the timeout elapses.
func (c *Controller) ExecuteAndWait(command string, timeout time.Duration) string {
	c.ClearOutput()
	c.Send(command, true)

	var out strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		chunk, ok := c.Poll(c.pollInterval)
		if ok {
			out.WriteString(chunk)
			continue
		}
		if out.Len() > 0 {
			break
		}
	}
	return out.String()
}

// Stop terminates the session: TERM to the process group, a bounded wait,
// KILL if still alive, then descriptor release. Every sub-step is
// best-effort; the controller always ends up Stopped. Idempotent, and safe
// to call from any goroutine.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Stopped || c.state == Stopping {
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	child := c.child
	stopCh := c.stopCh
	workers := c.workers
	grace := c.stopGrace
	c.mu.Unlock()

	if child != nil && !child.Exited() {
		_ = child.Terminate()
		if _, ok := child.Wait(grace); !ok {
			_ = child.Kill()
			child.Wait(time.Second)
		}
	}

	if stopCh != nil {
		close(stopCh)
	}
	if child != nil {
		// Closing the endpoints also unblocks any read that outlived its
		// deadline support.
		_ = child.Close()
	}

	if workers != nil {
		done := make(chan struct{})
		go func() {
			workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(grace):
			// A loop ignoring the stop signal must not block Stop forever.
		}
	}

	c.mu.Lock()
	c.state = Stopped
	c.child = nil
	c.mu.Unlock()
}

// IsRunning is true only while the state machine is Running and the child
// has not already exited.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Running && c.child != nil && !c.child.Exited()
}

func (c *Controller) readLoop(child ChildSession, stopCh chan struct{}, outQ chan string, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	deadlines := true

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if deadlines {
			if err := child.SetReadDeadline(time.Now().Add(c.pollInterval)); err != nil {
				deadlines = false
			}
		}

		n, err := child.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			enqueueOutput(outQ, chunk)
			if cb := c.OnOutput; cb != nil {
				cb(chunk)
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		if c.State() == Stopping {
			return
		}
		// A pty master reports EIO once the child side is gone; pipes report
		// EOF. Both mean the process has (or is about to have) exited.
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || child.Exited() {
			c.observeExit(child)
			return
		}
		if _, exited := child.Wait(c.readBackoff); exited {
			c.observeExit(child)
			return
		}
		c.reportError("terminal read: " + err.Error())
		select {
		case <-stopCh:
			return
		case <-time.After(c.readBackoff):
		}
	}
}

func (c *Controller) writeLoop(child ChildSession, stopCh chan struct{}, inQ chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case data := <-inQ:
			if _, err := child.Write(data); err != nil {
				if c.State() == Running {
					c.reportError("terminal write: " + err.Error())
				}
			}
		}
	}
}

// observeExit reports the child's exit and tears the session down. Runs on
// the reader goroutine, so the teardown happens on a fresh one.
func (c *Controller) observeExit(child ChildSession) {
	code, ok := child.Wait(2 * time.Second)
	if !ok {
		code = -1
	}
	if cb := c.OnExit; cb != nil {
		cb(code)
	}
	go c.Stop()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) reportError(msg string) {
	if cb := c.OnError; cb != nil {
		cb(msg)
	}
}

// enqueueOutput never blocks the reader: when the queue is full the oldest
// chunk is evicted, matching the byte-stream (not message) delivery model.
func enqueueOutput(outQ chan string, chunk string) {
	for {
		select {
		case outQ <- chunk:
			return
		default:
			select {
			case <-outQ:
			default:
			}
		}
	}
}
