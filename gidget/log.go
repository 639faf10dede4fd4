package gidget

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"time"
)

// fallbackNoText and fallbackFatal are the two literal strings the original
// emits when a caller passes an empty or nil message through to the log
// routine — conditions that should never happen but that the log routine
// itself must never panic on.
const (
	fallbackNoText = "Missing log string. This should not happen."
	fallbackFatal  = "The sky is falling!  The sky is falling!"
)

// Logger mirrors spec.md §4.1's logx: every status/text pair is rendered
// as "gidget[pid]: YYYY-MM-DD HH:MM:SS text" — these literals must be
// preserved for existing log-scanner compatibility — to stdout (status
// zero) or stderr (non-zero), and, when -s was given, to syslog at the
// configured priority, and a non-zero status terminates the process
// immediately after logging, with that status as the exit code.
type Logger struct {
	verbose bool
	out     io.Writer      // status-zero destination; freopen'd to the log file by SetOutput
	errOut  io.Writer      // non-zero-status destination; freopen'd alongside out
	sys     *syslog.Writer // nil unless -s was given and syslog is reachable
	sysLvl  int            // configured -s priority, 0-7; every line goes out at this fixed level
	exit    func(int)
}

// NewLogger returns a ready Logger. When syslogEnabled is set (spec.md
// §4.1's -s), it opens a syslog connection tagged "gidget" and every
// subsequent Log call is also submitted to it at syslogLvl, exactly
// gidget.c:1213-1214's "if (opt.syslog == 1) syslog(opt.sloglev, ...)" —
// the configured level is fixed per run, not derived from each message's
// status. A failure to reach syslog is not fatal — gidget's own
// stdout/stderr mirror always works — so sys is left nil and Log silently
// skips it. When syslogEnabled is false, sys is never opened at all.
func NewLogger(verbose, syslogEnabled bool, syslogLvl int) *Logger {
	var sys *syslog.Writer
	if syslogEnabled {
		sys, _ = syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, "gidget")
	}
	return &Logger{
		verbose: verbose,
		out:     os.Stdout,
		errOut:  os.Stderr,
		sys:     sys,
		sysLvl:  syslogLvl,
		exit:    os.Exit,
	}
}

// SetOutput redirects both the status-zero and non-zero console mirrors to
// w, used at startup once the configured log file is opened and again by
// SIGHUP log-reopening — matching the original's
// reopenLogs, which freopens both stdout and stderr onto the same log
// file.
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
	l.errOut = w
}

// Log writes a "gidget[pid]: timestamp text" line to the console mirror
// and to syslog, then — if status is non-zero — terminates the process
// with that status as its exit code, exactly like spec.md §4.1's logx.
// Status 0 never exits and is mirrored to out; any other status is
// mirrored to errOut.
func (l *Logger) Log(status int, text string) {
	stream := l.out
	fallback := fallbackNoText
	if status != 0 {
		stream = l.errOut
		fallback = fallbackFatal
	}
	if text == "" {
		text = fallback
	}

	line := fmt.Sprintf("gidget[%d]: %s %s", os.Getpid(), time.Now().Format("2006-01-02 15:04:05"), text)
	fmt.Fprintln(stream, line)

	if l.sys != nil {
		writeAtSyslogLevel(l.sys, l.sysLvl, line)
	}

	if status != 0 {
		l.exit(status)
	}
}

// writeAtSyslogLevel submits line to sys at the RFC 5424 severity numbered
// level (0 Emerg .. 7 Debug), matching syslog(3)'s priority argument. The
// *syslog.Writer methods each carry a fixed severity that overrides the
// one passed to syslog.New, which is how a single configured -s level is
// honored for every line regardless of that line's own exit status.
func writeAtSyslogLevel(sys *syslog.Writer, level int, line string) {
	switch level {
	case 0:
		sys.Emerg(line)
	case 1:
		sys.Alert(line)
	case 2:
		sys.Crit(line)
	case 3:
		sys.Err(line)
	case 4:
		sys.Warning(line)
	case 5:
		sys.Notice(line)
	case 6:
		sys.Info(line)
	default:
		sys.Debug(line)
	}
}

// Fatalf is a convenience wrapper for the common "format a message, then
// Log it at a non-zero status" pattern.
func (l *Logger) Fatalf(status int, format string, args ...interface{}) {
	l.Log(status, fmt.Sprintf(format, args...))
}

// Verbose reports whether -v was given, for call sites that choose between
// a terse and a detailed message the way spec.md §4.1 does throughout.
func (l *Logger) Verbose() bool { return l.verbose }

// Unreachable logs the original's "should never happen" fallback and exits
// 255. It exists for the same reason the original keeps that line after
// its grandchild's execl call: as a last-resort marker that some branch
// the author believed impossible was in fact reached.
func (l *Logger) Unreachable() {
	l.Log(255, fallbackFatal)
}
