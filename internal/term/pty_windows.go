//go:build windows

package term

import (
	"errors"
	"os"
)

const ptySupported = false

func signalTerm(p *os.Process) error {
	return p.Kill()
}

func startPTYSession(argv []string, rows, cols uint16) (ChildSession, error) {
	return nil, errors.New("pseudo-terminals are not supported on this platform")
}
