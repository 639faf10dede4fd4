package gidget

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gidget/gidget/exec"
)

func resultWithOutput(output []byte, code int) WorkResult {
	return WorkResult{
		Trick:     Trick{WatchID: 1, MailTo: "admin@example.com", Mask: MaskCreate | MaskModify},
		Account:   Account{Name: "nobody", Shell: "/bin/sh"},
		Command:   "/usr/local/bin/notify.sh '/watched/new-file.txt' " + MaskCreate.Hex(),
		EventMask: MaskCreate,
		Process:   &exec.FakeProcess{FakePID: 1, ExitCode: code, OutputBytes: output},
		Status:    exec.ExitStatus{Code: code},
	}
}

func TestSendIfAnyOutputSuppressedWhenEmpty(t *testing.T) {
	result := resultWithOutput(nil, 0)

	mr, err := SendIfAnyOutput(result, time.Now())
	if err != nil {
		t.Fatalf("SendIfAnyOutput returned error: %v", err)
	}
	if mr.Sent {
		t.Error("expected no mail to be sent for empty output")
	}
}

func TestWriteMessageRendersHeadersAndBody(t *testing.T) {
	result := resultWithOutput([]byte("ELLO world"), 1)

	var buf strings.Builder
	n, err := writeMessage(&buf, result, 'H', strings.NewReader("ELLO world"), time.Now())
	if err != nil {
		t.Fatalf("writeMessage returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"From: nobody (gidget)\n",
		"To: admin@example.com\n",
		"X-gidget-watch: 1\n",
		fmt.Sprintf("X-gidget-mask: %d\n\n", uint32(MaskCreate)),
		"/bin/sh -c " + result.Command + ":\n\n",
		"HELLO world",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("message does not contain %q; got:\n%s", want, out)
		}
	}

	if n != len("HELLO world") {
		t.Errorf("writeMessage returned n=%d, want %d", n, len("HELLO world"))
	}
}

func TestSendIfAnyOutputLoggedByteCountExcludesFirstByte(t *testing.T) {
	oldTransport, oldArgs := mailTransport, mailArgs
	mailTransport, mailArgs = "cat", nil
	defer func() { mailTransport, mailArgs = oldTransport, oldArgs }()

	result := resultWithOutput([]byte("HELLO world"), 0)

	mr, err := SendIfAnyOutput(result, time.Now())
	if err != nil {
		t.Fatalf("SendIfAnyOutput returned error: %v", err)
	}
	if !mr.Sent {
		t.Fatal("expected mail to be sent for non-empty output")
	}
	if want := len("HELLO world") - 1; mr.Bytes != want {
		t.Errorf("Bytes = %d, want %d (full body minus the first byte)", mr.Bytes, want)
	}
}

func TestMailArgsHasLoadBearingFlags(t *testing.T) {
	for _, want := range []string{"-oi", "-t"} {
		found := false
		for _, a := range mailArgs {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("mailArgs %v missing %q", mailArgs, want)
		}
	}
}

func TestObjectFromCommand(t *testing.T) {
	got := objectFromCommand("/bin/notify.sh '/watched/new file.txt' 0x00000100")
	if got != "/watched/new file.txt" {
		t.Errorf("objectFromCommand() = %q", got)
	}
}
