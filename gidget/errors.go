package gidget

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	sigHUP = syscall.SIGHUP
	sigINT = syscall.SIGINT
)

// errZeroRead is the fatal condition of spec.md §4.5 step 3: the watch
// instance returned end-of-stream, which should never happen for a live
// inotify descriptor and means the daemon can no longer trust its event
// source.
var errZeroRead = errors.New("daemon dead: zero-length inotify read")

// isInterrupted reports whether err is the EINTR a blocking read returns
// when a signal was delivered mid-syscall.
func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
