package gidget

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Signals installs the daemon's signal discipline: terminate, interrupt,
// and hangup are recorded in a word-sized flag and wake up anyone blocked
// on Woken. Child-terminated (SIGCHLD) deliberately has no entry here — see
// the note on Install.
//
// The caught flag is written-once-per-signal and is cleared by the reader
// (the event loop), matching spec.md §3's "signal-caught flag" contract.
type Signals struct {
	caught atomic.Int32
	woken  chan struct{}
	ch     chan os.Signal
}

// Install starts trapping SIGTERM, SIGINT, and SIGHUP.
//
// Go's runtime already reaps every child process started through os/exec
// or os.StartProcess by waiting on it internally and delivering the result
// through (*os.Process).Wait; that mechanism itself depends on receiving
// SIGCHLD. Setting SIGCHLD's disposition to auto-reap (the C original's
// SA_NOCLDWAIT, so the daemon "never accumulates zombies") would starve the
// runtime of the notifications it needs and break every Wait call in this
// program, so unlike the original, gidget does not touch SIGCHLD at all:
// the runtime's own reaping already satisfies the "no zombie accumulation"
// requirement, because every child this program starts is always Wait()'d.
func Install() *Signals {
	s := &Signals{
		woken: make(chan struct{}, 8),
		ch:    make(chan os.Signal, 8),
	}

	signal.Notify(s.ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	go s.relay(s.ch)
	return s
}

// Stop stops trapping signals and releases the relay goroutine.
func (s *Signals) Stop() {
	signal.Stop(s.ch)
	close(s.ch)
}

// Caught returns the last-caught signal, or 0 if none is pending.
func (s *Signals) Caught() syscall.Signal {
	return syscall.Signal(s.caught.Load())
}

// Clear resets the caught flag. The event loop calls this once it has
// acted on a signal.
func (s *Signals) Clear() {
	s.caught.Store(0)
}

// Woken is signaled once per caught signal, so the event loop can react
// promptly instead of waiting for the next inotify event.
func (s *Signals) Woken() <-chan struct{} {
	return s.woken
}

func (s *Signals) relay(ch chan os.Signal) {
	for sig := range ch {
		if unixSig, ok := sig.(syscall.Signal); ok {
			s.caught.Store(int32(unixSig))
		}
		select {
		case s.woken <- struct{}{}:
		default:
		}
	}
}
