//go:build unix

package library

import (
	"os"
	"syscall"
)

// signalPause stops or continues the player process
func signalPause(p *os.Process, pause bool) error {
	if pause {
		return p.Signal(syscall.SIGSTOP)
	}
	return p.Signal(syscall.SIGCONT)
}
