package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"gidget/gidget"
	"gidget/gidget/exec"
	"gidget/gidget/journal"
)

const version = "1.01"

func main() {
	opt, err := gidget.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, gidget.Usage(os.Args[0]))
		os.Exit(1)
	}

	if opt.ShowHelp {
		fmt.Fprint(os.Stdout, gidget.Usage(os.Args[0]))
		return
	}
	if opt.ShowVersion {
		fmt.Printf("gidget version %s\n", version)
		return
	}

	// -t N (undocumented, SPEC_FULL.md C10): print the last N audit
	// records and exit, without starting the daemon at all.
	if opt.TailCount > 0 {
		if err := tailJournal(journalPath(opt.PidFile), opt.TailCount, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := gidget.NewLogger(opt.Verbose, opt.Syslog, opt.SyslogLvl)
	defer func() {
		if r := recover(); r != nil {
			logger.Unreachable()
		}
	}()

	if opt.Daemon {
		if err := gidget.Daemonize(opt.PidFile); err != nil {
			logger.Fatalf(2, "daemonization failed: %v", err)
		}
	}

	if opt.LogFile != "" && opt.LogFile != "-" {
		f, err := os.OpenFile(opt.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			logger.Fatalf(1, "unable to open log file %s: %v", opt.LogFile, err)
		}
		logger.SetOutput(f)
	}

	logger.Log(0, "daemon initialization")

	jnl, closeJournal, err := openJournal(opt.PidFile)
	if err != nil {
		logger.Fatalf(1, "%v", err)
	}
	defer closeJournal()

	// -v startup diagnostics (SPEC_FULL.md C10): a quick look at the last
	// few audit records from any previous run, read through a second,
	// lock-free handle so it never contends with the journal we just
	// opened for writing.
	if opt.Verbose {
		if err := tailJournal(journalPath(opt.PidFile), 5, os.Stderr); err != nil {
			logger.Log(0, "startup diagnostics: "+err.Error())
		}
	}

	registry, err := gidget.Open()
	if err != nil {
		logger.Fatalf(4, "unable to initialize inotify: %v", err)
	}
	defer registry.Close()

	loadResult, err := gidget.Load(opt.Config,
		func(text string) { logger.Log(0, text) },
		func(line int, reason string) { jnl.Write(&gidget.EventTrickDiscarded{Line: line, Reason: reason}) })
	if err != nil {
		logger.Fatalf(5, "unable to read configuration %s: %v", opt.Config, err)
	}

	for _, trick := range loadResult.Tricks {
		registered, err := registry.Register(trick)
		if err != nil {
			if errors.Is(err, gidget.ErrNonSequentialWatch) {
				jnl.Write(&gidget.EventFatal{Status: 3, Text: err.Error()})
				logger.Fatalf(3, "%v", err)
			}
			jnl.Write(&gidget.EventWatchFailed{Path: trick.Path, Error: err.Error()})
			logger.Log(0, fmt.Sprintf("unable to watch %s: %v", trick.Path, err))
			continue
		}
		jnl.Write(&gidget.EventTrickRegistered{
			Path:    registered.Path,
			Mask:    registered.Mask,
			WatchID: registered.WatchID,
		})
	}

	if registry.Len() == 0 {
		logger.Log(0, "no valid tricks configured, nothing to watch")
	}

	bufSize := gidget.InotifyEventBufferSize(loadResult.MaxNameLen)
	signals := gidget.Install()
	defer signals.Stop()

	dispatch := func(ev gidget.Event) {
		// IN_Q_OVERFLOW arrives with wd == -1 (the kernel has no single
		// watch to blame for dropped events), so it can never resolve to
		// a trick; test for it before the lookup, per spec.md §4.5/§4.6
		// and §8 scenario 4 — non-fatal, no worker spawned, no mail.
		if ev.Mask.Has(gidget.MaskQueueOverflow) {
			jnl.Write(&gidget.EventWarning{Component: "inotify", Error: "event queue overflow"})
			logger.Log(0, "GRIEVOUS ERROR: inotify event queue overflow!")
			return
		}

		jnl.Write(&gidget.EventDispatched{WatchID: ev.WatchID, Mask: ev.Mask, Name: ev.Name})

		trick, ok := registry.Lookup(ev.WatchID)
		if !ok {
			logger.Log(0, fmt.Sprintf("event for unknown watch %d, ignoring", ev.WatchID))
			return
		}

		// IN_UNMOUNT and IN_IGNORED are flagged against the matched
		// trick's path, exactly where the original's worker tests them
		// right after resolving the trick by watch descriptor. Both are
		// non-fatal: the condition is logged and this event's worker is
		// suppressed, but the daemon and its other watches continue.
		if ev.Mask.Has(gidget.MaskUnmount) {
			jnl.Write(&gidget.EventWarning{Component: "inotify", Error: fmt.Sprintf("filesystem backing %s unmounted", trick.Path)})
			logger.Log(0, fmt.Sprintf("GRIEVOUS ERROR: filesystem backing %s unmounted!", trick.Path))
			return
		}
		if ev.Mask.Has(gidget.MaskIgnored) {
			jnl.Write(&gidget.EventWarning{Component: "inotify", Error: fmt.Sprintf("watch on %s deleted", trick.Path)})
			logger.Log(0, fmt.Sprintf("WARNING: gidget watch on %s deleted!", trick.Path))
			return
		}

		go runDispatchedEvent(trick, ev, loadResult.MaxNameLen, jnl, logger)
	}

	reopenLogs := func() error {
		if opt.LogFile == "" || opt.LogFile == "-" {
			return nil
		}
		f, err := os.OpenFile(opt.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		logger.SetOutput(f)
		return nil
	}

	loop := gidget.NewLoop(registry, signals, bufSize, reopenLogs,
		func(status int, text string) { logger.Log(status, text) }, dispatch, jnl)

	if err := loop.Run(); err != nil {
		jnl.Write(&gidget.EventFatal{Status: 7, Text: err.Error()})
		logger.Fatalf(7, "daemon dead: %v", err)
	}
}

// runDispatchedEvent is the worker stage of spec.md §4.5/§4.6, run as a
// recovered goroutine so a panic while running one event's worker can
// never take the daemon down — the isolation property a real forked
// worker process gives for free in the original.
func runDispatchedEvent(trick gidget.Trick, ev gidget.Event, maxNameLen int, jnl gidget.Journaler, logger *gidget.Logger) {
	defer func() {
		if r := recover(); r != nil {
			jnl.Write(&gidget.EventWarning{Component: "worker", Error: fmt.Sprintf("panic: %v", r)})
			logger.Log(0, fmt.Sprintf("worker panic recovered: %v", r))
		}
	}()

	result, err := gidget.RunWorker(trick, ev, maxNameLen, exec.Launch)
	if err != nil {
		jnl.Write(&gidget.EventWarning{Component: "worker", Error: err.Error()})
		logger.Log(0, fmt.Sprintf("unable to run script for watch %d: %v", trick.WatchID, err))
		return
	}

	jnl.Write(&gidget.EventWorkerSpawned{
		WatchID: trick.WatchID,
		PID:     result.Process.PID(),
		Account: result.Account.Name,
		Command: result.Command,
	})

	jnl.Write(&gidget.EventWorkerExited{
		WatchID:  trick.WatchID,
		PID:      result.Status.PID,
		ExitCode: result.Status.Code,
	})

	logger.Log(0, gidget.ClassifyExit(result.Command, result.Status.Code))

	mailResult, err := gidget.SendIfAnyOutput(result, time.Now())
	if err != nil {
		jnl.Write(&gidget.EventWarning{Component: "mail", Error: err.Error()})
		logger.Log(0, fmt.Sprintf("unable to mail script output: %v", err))
		return
	}

	if mailResult.Sent {
		jnl.Write(&gidget.EventMailSent{WatchID: trick.WatchID, To: trick.MailTo, Bytes: mailResult.Bytes})
		logger.Log(0, fmt.Sprintf("mailed %d bytes of output to %s", mailResult.Bytes, trick.MailTo))
	} else {
		jnl.Write(&gidget.EventMailSuppressed{WatchID: trick.WatchID, ExitCode: result.Status.Code})
	}
}

// journalPath derives the audit journal's path from the pidfile path, the
// same convention openJournal uses, so -t N and -v diagnostics read the
// same file the running (or most recently run) daemon writes to.
func journalPath(pidfile string) string {
	return pidfile + ".journal"
}

// tailJournal prints up to n of the most recent audit records at path,
// newest first, to out. It opens the journal read-only and takes no lock,
// so it works whether or not a daemon currently holds the writer's flock
// on the same path.
func tailJournal(path string, n int, out io.Writer) error {
	tail, closer, err := journal.OpenTailReader(path)
	if err != nil {
		return errors.Wrap(err, "unable to open journal for tailing")
	}
	defer closer.Close()

	for i := 0; i < n; i++ {
		ev, t, err := tail.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrap(err, "failed to read journal record")
		}
		fmt.Fprintln(out, journal.FormatRecord(t, ev))
	}

	return nil
}

// openJournal opens the audit journal next to the pid file, falling back
// to a no-op journaler if the journal file can't be opened, matching
// spec.md's tolerance for syslog being unavailable: the journal is an
// ambient convenience, not something the daemon's core loop depends on.
// A lock already held by another process is returned as an error instead,
// since that lock is the single-instance guard.
func openJournal(pidfile string) (gidget.Journaler, func() error, error) {
	path := journalPath(pidfile)

	j, err := journal.Open(path)
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			return nil, nil, errors.New("another gidget instance already holds the journal lock")
		}
		return gidget.NopJournaler{}, func() error { return nil }, nil
	}

	return journal.MultiWriter(j, journal.NewHumanWriter("stderr", os.Stderr)), j.Close, nil
}
