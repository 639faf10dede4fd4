// Package exec provides an abstraction around package os/exec's Cmd for
// launching the privilege-dropped grandchild that runs a trick's script,
// with a mockable Process interface so worker logic can be tested without
// actually forking and dropping privileges.
package exec

import (
	"bytes"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

// Process describes a launched grandchild: the real thing, or a fake used
// in tests.
type Process interface {
	PID() int
	Wait() ExitStatus
}

// ExitStatus is a grandchild's outcome.
type ExitStatus struct {
	PID      int
	Code     int // low-order 8 bits of the exit status; -1 if indeterminate
	Error    error
	Output   []byte // combined stdout+stderr captured through the pipe
}

// Credential identifies the account the grandchild's process image runs
// as, resolved by the caller via os/user before Launch. Group is set
// before UID in the underlying syscall.Credential, mirroring spec.md
// §4.6's explicit "group first, uid last" ordering (uid is set last
// because it may revoke the privilege needed to set the group).
type Credential struct {
	UID uint32
	GID uint32
	Dir string // home directory; grandchild's working directory
}

type process struct {
	cmd *exec.Cmd
	out *bytes.Buffer

	once   sync.Once
	status ExitStatus
}

var _ Process = (*process)(nil)

// Launch starts shell with -c command as a new process running under
// cred, with its combined stdout and stderr captured in memory and
// available once Wait returns.
func Launch(shell, command string, cred Credential) (Process, error) {
	cmd := exec.Command(shell, "-c", command)
	cmd.Dir = cred.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Gid: cred.GID,
			Uid: cred.UID,
		},
	}

	out := &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start grandchild")
	}

	return &process{cmd: cmd, out: out}, nil
}

func (p *process) PID() int { return p.cmd.Process.Pid }

func (p *process) Wait() ExitStatus {
	p.once.Do(func() {
		err := p.cmd.Wait()

		status := ExitStatus{
			PID:    p.cmd.Process.Pid,
			Code:   -1,
			Output: p.out.Bytes(),
		}

		if err == nil {
			status.Code = 0
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Exited() {
				status.Code = ws.ExitStatus() & 0xff
			} else {
				status.Error = err
			}
		} else {
			status.Error = err
		}

		p.status = status
	})

	return p.status
}

// OutputReader streams captured output incrementally, byte at a time, the
// way the mail emitter (spec.md §4.7) needs to in order to detect
// "produced any output at all" without buffering the whole thing first.
// Launch already buffers the whole command's output in memory (scripts run
// under gidget are expected to be short-lived and modest in output, per
// spec.md's non-goals), so this simply wraps that buffer in a reader.
func OutputReader(p Process) io.Reader {
	if real, ok := p.(*process); ok {
		return bytes.NewReader(real.out.Bytes())
	}
	if fake, ok := p.(*FakeProcess); ok {
		return bytes.NewReader(fake.OutputBytes)
	}
	return bytes.NewReader(nil)
}
