package gidget

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// gidgetReexecEnv flags a re-executed process as the detached daemon, so
// Daemonize's second invocation of itself knows to skip straight to
// finishing the daemonization instead of forking again.
const gidgetReexecEnv = "GIDGET_DAEMON_CHILD=1"

// Daemonize detaches the current process the way spec.md §4.1 calls for:
// fork, have the parent write the child's pid to pidfile and exit, and
// have the child start a new session and lose its controlling terminal.
//
// Go's runtime starts a fixed pool of OS threads at process start and
// various packages (net, os/signal) assume that pool survives for the
// life of the process; calling the raw fork(2) syscall directly would
// duplicate only the calling thread's state and leave every other
// goroutine-owning thread absent from the child, corrupting the runtime.
// The portable substitute — and the one every Go daemonizer in practice
// uses, syncthing's self-restart included — is to re-exec the same binary
// as a fresh process with a fresh runtime, marking the new process so it
// knows not to fork again, and exiting the original.
//
// Daemonize must be called before any other goroutine is started that
// holds state the child would need (none exist yet at this point in
// gidget's startup, by construction).
func Daemonize(pidfile string) error {
	if os.Getenv("GIDGET_DAEMON_CHILD") == "1" {
		return finishDaemonize(pidfile)
	}

	self, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "unable to determine own executable path")
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), gidgetReexecEnv)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "unable to start daemon process")
	}

	if err := writePidFile(pidfile, cmd.Process.Pid); err != nil {
		cmd.Process.Signal(syscall.SIGTERM)
		return errors.Wrap(err, "could not create pid file, killing daemon")
	}

	os.Exit(0)
	return nil // unreachable
}

// finishDaemonize runs inside the re-executed, already-detached process:
// it has no controlling terminal to lose (Setsid already took care of
// that on the parent's side) but still needs to stop reading stdin and
// move to the root directory, per spec.md §4.1.
func finishDaemonize(pidfile string) error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		return errors.Wrap(err, "unable to open /dev/null")
	}
	os.Stdin.Close()
	os.Stdin = devNull

	if err := os.Chdir("/"); err != nil {
		return errors.Wrap(err, "unable to change working directory to root")
	}

	syscall.Umask(027)

	_ = pidfile // the detached child does not own the pidfile; its parent already wrote it
	return nil
}

func writePidFile(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, strconv.Itoa(pid))
	return err
}
