//go:build !unix

package library

import "os"

func signalPause(*os.Process, bool) error {
	return ErrPauseUnsupported
}
