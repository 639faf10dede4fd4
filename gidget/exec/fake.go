package exec

// FakeProcess is a test double for Process, letting worker tests exercise
// mail and journal behavior for a chosen exit code and output without
// actually forking a process or dropping privileges.
type FakeProcess struct {
	FakePID     int
	ExitCode    int
	ExitErr     error
	OutputBytes []byte

	waited bool
}

var _ Process = (*FakeProcess)(nil)

func (f *FakeProcess) PID() int { return f.FakePID }

func (f *FakeProcess) Wait() ExitStatus {
	f.waited = true
	return ExitStatus{
		PID:    f.FakePID,
		Code:   f.ExitCode,
		Error:  f.ExitErr,
		Output: f.OutputBytes,
	}
}

// Waited reports whether Wait was ever called, so tests can assert a
// worker always collects its grandchild.
func (f *FakeProcess) Waited() bool { return f.waited }
