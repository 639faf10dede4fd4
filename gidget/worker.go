package gidget

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"gidget/gidget/exec"
)

// maxCommandLen bounds the assembled shell command, mirroring maxLineLen in
// spec.md's config line budget: the script, the quoted object name, and
// the hex mask must all fit on one shell command line.
const maxCommandLen = 4096

// mungedApostrophe is what a single quote in an object name becomes before
// it is wrapped in the command's own single quotes, per spec.md §4.6 rule
// 3: an unescaped apostrophe would otherwise close the quote early and let
// the rest of the file name be interpreted as shell syntax.
const mungedApostrophe = "%27"

// Account is the resolved identity a trick's script runs as.
type Account struct {
	Name  string
	UID   uint32
	GID   uint32
	Shell string
	Home  string
}

// ResolveAccount looks up name through the system's name service (NSS),
// the Go equivalent of getpwnam_r. It is deliberately called once per
// event, after the event loop has already moved on, so a slow or broken
// NSS lookup (network-backed LDAP/SSSD, say) never blocks the daemon's
// single-threaded read loop — only the worker handling this one event.
func ResolveAccount(name string) (Account, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return Account{}, errors.Wrapf(err, "unable to resolve account %q", name)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return Account{}, errors.Wrapf(err, "account %q has non-numeric uid %q", name, u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return Account{}, errors.Wrapf(err, "account %q has non-numeric gid %q", name, u.Gid)
	}

	shell := loginShell(u)
	if shell == "" {
		return Account{}, errors.Errorf("unable to determine shell for account %q", name)
	}

	return Account{
		Name:  name,
		UID:   uint32(uid),
		GID:   uint32(gid),
		Shell: shell,
		Home:  u.HomeDir,
	}, nil
}

// loginShell finds u's login shell. package os/user deliberately exposes
// only the fields POSIX getpwnam(3) guarantees portably (name, uid, gid,
// home) and leaves pw_shell out, and none of the corpus's dependencies
// fill that gap, so this reads /etc/passwd directly — the same database
// the NSS "files" module and getpwnam_r itself consult on a typical box.
// It returns "" if the account has no matching line or no shell field.
func loginShell(u *user.User) string {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 7 {
			continue
		}
		if fields[0] == u.Username && fields[2] == u.Uid {
			return fields[6]
		}
	}

	return ""
}

// mungeObjectName quotes name for safe inclusion inside single quotes on a
// shell command line, replacing any embedded apostrophe with its munged
// form rather than attempting to backslash-escape it, per spec.md §4.6.
func mungeObjectName(dir, name string) string {
	full := strings.Builder{}
	full.Grow(len(dir) + len(name) + 1)
	full.WriteString(dir)
	full.WriteByte('/')

	for i := 0; i < len(name); i++ {
		if name[i] == '\'' {
			full.WriteString(mungedApostrophe)
		} else {
			full.WriteByte(name[i])
		}
	}

	return full.String()
}

// BuildCommand assembles the shell command line a trick's script is
// invoked with: the configured script (which may already carry its own
// arguments), the single-quoted, apostrophe-munged object path, and the
// triggering event's mask (not the trick's configured mask, which may
// cover more classes than actually fired) rendered as an 8-digit hex
// literal, per spec.md §4.6.
//
// maxNameLen bounds the assembled object path exactly as spec.md §4.6
// rule 4 requires: a path longer than the filesystem's own reported
// maximum name length is fatal for this event, the same way the
// original's fixed-size fileOrFolder[maxNameLen] buffer would overflow.
// A maxNameLen of zero or less disables the check (used by tests that
// don't care about it).
func BuildCommand(trick Trick, objectDir, objectName string, mask Mask, maxNameLen int) (string, error) {
	quoted := mungeObjectName(objectDir, objectName)
	if maxNameLen > 0 && len(quoted) > maxNameLen {
		return "", errors.Errorf("filesystem object name overflow: %q exceeds %d bytes", quoted, maxNameLen)
	}

	cmd := fmt.Sprintf("%s '%s' %s", trick.Script, quoted, mask.Hex())
	if len(cmd) > maxCommandLen {
		return "", errors.New("assembled command too long for shell")
	}

	return cmd, nil
}

// Launcher starts a trick's script under its resolved account. It is the
// one seam worker tests replace with a fake so they can exercise dispatch
// and mail logic without actually dropping privileges.
type Launcher func(shell, command string, cred exec.Credential) (exec.Process, error)

// WorkResult is everything the mail emitter and audit journal need once a
// dispatched script has finished.
type WorkResult struct {
	Trick     Trick
	Account   Account
	Command   string
	EventMask Mask // the triggering event's mask, not trick.Mask
	Process   exec.Process
	Status    exec.ExitStatus
}

// RunWorker resolves the trick's configured account, composes the command
// for the firing event, and launches the script under that account,
// waiting for it to finish. It is safe to call concurrently for distinct
// events: it touches no shared mutable state besides what Launcher and
// ResolveAccount themselves synchronize (the NSS client library and the
// kernel's process table).
//
// Per spec.md §4.5's isolation requirement, the caller is expected to run
// this inside a recovered goroutine; RunWorker itself does not recover
// panics, so a bug here surfaces immediately in tests instead of being
// silently swallowed.
//
// maxNameLen is the per-filesystem bound discovered at config load time
// (LoadResult.MaxNameLen); it is threaded through to BuildCommand rather
// than stored on Trick because spec.md §4.2/§4.6 treat it as a daemon-wide
// bound, not a per-trick one.
func RunWorker(trick Trick, ev Event, maxNameLen int, launch Launcher) (WorkResult, error) {
	account, err := ResolveAccount(trick.Account)
	if err != nil {
		return WorkResult{}, err
	}

	command, err := BuildCommand(trick, trick.Path, ev.Name, ev.Mask, maxNameLen)
	if err != nil {
		return WorkResult{}, err
	}

	proc, err := launch(account.Shell, command, exec.Credential{
		UID: account.UID,
		GID: account.GID,
		Dir: account.Home,
	})
	if err != nil {
		return WorkResult{}, errors.Wrap(err, "unable to launch script")
	}

	status := proc.Wait()

	return WorkResult{
		Trick:     trick,
		Account:   account,
		Command:   command,
		EventMask: ev.Mask,
		Process:   proc,
		Status:    status,
	}, nil
}

// ClassifyExit renders a finished script's exit code into the same three
// buckets spec.md §4.6 logs: ambiguous (127, the shell's own "command not
// found" convention, which a gidget script should never legitimately
// return), clean (0), and failed (anything else).
func ClassifyExit(command string, code int) string {
	switch code {
	case 127:
		return fmt.Sprintf("script %s returned ambiguous result (status 127); "+
			"scripts run by gidget should never return that status", command)
	case 0:
		return "script executor grandchild process successful completion"
	default:
		return fmt.Sprintf("script fail, %s returned status %d", command, code)
	}
}
