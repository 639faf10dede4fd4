package gidget

import (
	"golang.org/x/sys/unix"
)

// readResult is what the background reader goroutine reports back to the
// event loop for each blocking read attempt.
type readResult struct {
	buf []byte
	n   int
	err error
}

// Loop runs the daemon's single-threaded event-wait loop: block reading the
// watch instance, decode, and dispatch to a Worker — one process-boundary
// subprocess per event, per spec.md §4.5.
//
// The blocking read happens on a dedicated goroutine so a caught signal can
// wake the loop immediately via Signals.Woken rather than waiting for the
// next kernel event; reads are still strictly sequential (the reader
// goroutine blocks on a "proceed" signal between reads), so at most one
// read is ever in flight, preserving the single-threaded read discipline
// spec.md §5 calls for.
type Loop struct {
	registry   *Registry
	signals    *Signals
	bufSize    int
	reopenLogs func() error
	log        func(status int, text string)
	dispatch   func(Event)
	journal    Journaler

	readCh    chan readResult
	proceedCh chan struct{}
}

// NewLoop creates a Loop. dispatch is called once per decoded event, on the
// loop's own goroutine, and is expected to hand off to a Worker without
// blocking the loop for long (spec.md §4.5 step 4: "the parent returns to
// step 1 immediately").
func NewLoop(registry *Registry, signals *Signals, bufSize int, reopenLogs func() error, log func(int, string), dispatch func(Event), journal Journaler) *Loop {
	l := &Loop{
		registry:   registry,
		signals:    signals,
		bufSize:    bufSize,
		reopenLogs: reopenLogs,
		log:        log,
		dispatch:   dispatch,
		journal:    journal,
		readCh:     make(chan readResult),
		proceedCh:  make(chan struct{}, 1),
	}
	l.proceedCh <- struct{}{}
	go l.readLoop()
	return l
}

func (l *Loop) readLoop() {
	buf := make([]byte, l.bufSize)
	for range l.proceedCh {
		n, err := unix.Read(l.registry.Fd(), buf)
		out := make([]byte, n)
		if n > 0 {
			copy(out, buf[:n])
		}
		l.readCh <- readResult{buf: out, n: n, err: err}
	}
}

// Run executes the loop until a terminal signal or a fatal read condition
// ends it. The returned error is nil only when the loop exits because of a
// normal signal-driven shutdown (SIGINT/SIGTERM/other); a non-nil error
// means a fatal read condition (spec.md §4.5 step 3) and the caller should
// exit non-zero.
func (l *Loop) Run() error {
	for {
		select {
		case <-l.signals.Woken():
			if done, err := l.handleSignal(); done {
				return err
			}

		case res := <-l.readCh:
			if err := l.handleRead(res); err != nil {
				return err
			}
			// Allow the reader goroutine to issue its next blocking read.
			l.proceedCh <- struct{}{}
		}
	}
}

// handleSignal consults the caught-flag exactly as spec.md §4.4/§4.5
// describes: hangup reopens logs and continues; interrupt and any other
// caught signal end the loop normally.
func (l *Loop) handleSignal() (done bool, err error) {
	sig := l.signals.Caught()
	l.signals.Clear()

	switch sig {
	case sigHUP:
		l.log(0, "Caught signal SIGHUP, reopening logs")
		if err := l.reopenLogs(); err != nil {
			l.log(0, "failed to reopen logs: "+err.Error())
		}
		return false, nil

	case sigINT:
		l.log(0, "Caught signal SIGINT, probably Control-C")
		l.log(0, "gidget event wait terminated by signal, shutting down.")
		return true, nil

	default:
		l.log(0, "gidget event wait terminated by signal, shutting down.")
		return true, nil
	}
}

// handleRead processes one completed read. A zero or negative length is
// the fatal "daemon dead" condition of spec.md §4.5 step 3; an EINTR-style
// error from the background reader is treated like a caught signal would
// be (handleSignal already ran, or will shortly, via Woken) and is simply
// ignored here so the reader can retry.
func (l *Loop) handleRead(res readResult) error {
	if res.err != nil {
		if isInterrupted(res.err) {
			return nil
		}
		l.journal.Write(&EventFatal{Status: 7, Text: "inotify read failed: " + res.err.Error()})
		l.log(7, "inotify read failed, daemon dead: "+res.err.Error())
		return res.err
	}

	if res.n == 0 {
		l.journal.Write(&EventFatal{Status: 7, Text: "zero length string returned from inotify"})
		l.log(7, "zero length string returned from inotify, daemon dead")
		return errZeroRead
	}

	event, err := DecodeEvent(res.buf)
	if err != nil {
		l.log(0, "failed to decode inotify event: "+err.Error())
		return nil
	}

	l.dispatch(event)
	return nil
}
