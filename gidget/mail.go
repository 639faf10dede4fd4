package gidget

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	gidgetexec "gidget/gidget/exec"
)

// mailTransport and mailArgs are the sendmail-compatible command gidget
// pipes outgoing mail into, matching gidgetmail.h's MAIL_OPTIONS verbatim:
// -Fgidget names the sender, -odi delivers inline rather than queuing,
// -oem reports delivery errors to the message sender, and -oi is load-
// bearing rather than cosmetic — without it sendmail's -t stdin reader
// treats a line that is exactly "." as end-of-message, silently
// truncating any script output that happens to contain one. Fixed at
// compile time, not read from the environment, per spec.md §9.
var (
	mailTransport = "/usr/lib/sendmail"
	mailArgs      = []string{"-Fgidget", "-odi", "-oem", "-oi", "-t"}
)

// MailResult reports what the mail emitter actually did, for logging and
// audit purposes.
type MailResult struct {
	Sent  bool
	Bytes int
}

// SendIfAnyOutput inspects a finished worker's captured output and, only
// if the script produced at least one byte, pipes an RFC-5322-ish message
// to the system mail transport. A script that ran clean and silent never
// triggers mail at all, per spec.md §4.7 — this is the "quiet by default"
// property the whole design leans on to avoid mailbox spam from a healthy
// system.
func SendIfAnyOutput(result WorkResult, now time.Time) (MailResult, error) {
	r := bufio.NewReader(gidgetexec.OutputReader(result.Process))

	first, err := r.ReadByte()
	if err == io.EOF {
		return MailResult{}, nil
	}
	if err != nil {
		return MailResult{}, errors.Wrap(err, "failed to read script output")
	}

	cmd := exec.Command(mailTransport, mailArgs...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return MailResult{}, errors.Wrap(err, "failed to open mail transport pipe")
	}

	if err := cmd.Start(); err != nil {
		return MailResult{}, errors.Wrap(err, "failed to start mail transport")
	}

	n, werr := writeMessage(stdin, result, first, r, now)
	stdin.Close()

	waitErr := cmd.Wait()

	if werr != nil {
		return MailResult{}, errors.Wrap(werr, "failed to write mail message")
	}
	if waitErr != nil {
		return MailResult{}, errors.Wrap(waitErr, "mail transport exited with error")
	}

	// n is the full body length, including the first byte consumed above
	// to detect that the script produced any output at all. Per spec.md
	// §4.7 the logged/audited count excludes that first byte.
	return MailResult{Sent: true, Bytes: n - 1}, nil
}

// writeMessage renders the mail headers and body to w, returning the
// full number of body bytes written, including first. first is the byte
// already pulled off the output stream to detect "any output at all"; it
// must be re-emitted before the rest of body. The caller, not writeMessage,
// is responsible for excluding it from the count spec.md §4.7 wants logged.
func writeMessage(w io.Writer, result WorkResult, first byte, body io.Reader, now time.Time) (int, error) {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "From: %s (gidget)\n", result.Account.Name)
	fmt.Fprintf(bw, "To: %s\n", result.Trick.MailTo)
	fmt.Fprintf(bw, "Subject: gidget event: %s\n", objectFromCommand(result.Command))
	fmt.Fprintf(bw, "Date: %s\n", now.Format(time.ANSIC))
	fmt.Fprintf(bw, "Auto-Submitted: auto-generated\n")
	fmt.Fprintf(bw, "X-gidget-object: %s\n", objectFromCommand(result.Command))
	fmt.Fprintf(bw, "X-gidget-watch: %d\n", result.Trick.WatchID)
	fmt.Fprintf(bw, "X-gidget-mask: %d\n\n", uint32(result.EventMask))
	fmt.Fprintf(bw, "%s -c %s:\n\n", result.Account.Shell, result.Command)

	n := 0

	if err := bw.WriteByte(first); err != nil {
		return n, err
	}
	n++

	written, err := io.Copy(bw, body)
	n += int(written)
	if err != nil {
		return n, err
	}

	return n, bw.Flush()
}

// objectFromCommand recovers the single-quoted object path out of an
// assembled command line, for the mail headers that want to name the
// triggering object without the worker needing to thread it through
// separately.
func objectFromCommand(command string) string {
	start := -1
	for i := 0; i < len(command); i++ {
		if command[i] == '\'' {
			if start == -1 {
				start = i + 1
			} else {
				return command[start:i]
			}
		}
	}
	return command
}
