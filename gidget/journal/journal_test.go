package journal

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gidget/gidget"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, "test")

	events := []gidget.AuditEvent{
		&gidget.EventTrickRegistered{Path: "/watched", Mask: gidget.MaskCreate, WatchID: 1},
		&gidget.EventMailSuppressed{WatchID: 1, ExitCode: 0},
	}

	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))

	for i, want := range events {
		got, _, err := r.Read()
		if err != nil {
			t.Fatalf("Read(%d) returned error: %v", i, err)
		}
		if got.Type() != want.Type() {
			t.Errorf("Read(%d).Type() = %q, want %q", i, got.Type(), want.Type())
		}
	}

	if _, _, err := r.Read(); err != io.EOF {
		t.Errorf("expected io.EOF after the last record, got %v", err)
	}
}

func TestFileJournalerSingleInstanceLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gidget.journal")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	defer first.Close()

	if _, err := Open(path); err != ErrLockedElsewhere {
		t.Errorf("second Open error = %v, want ErrLockedElsewhere", err)
	}
}

func TestFileJournalerTailReadsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gidget.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	if err := j.Write(&gidget.EventTrickRegistered{WatchID: 1}); err != nil {
		t.Fatalf("Write(1) failed: %v", err)
	}
	if err := j.Write(&gidget.EventTrickRegistered{WatchID: 2}); err != nil {
		t.Fatalf("Write(2) failed: %v", err)
	}

	tail, err := j.NewTailReader()
	if err != nil {
		t.Fatalf("NewTailReader failed: %v", err)
	}

	ev, _, err := tail.Read()
	if err != nil {
		t.Fatalf("tail Read() failed: %v", err)
	}
	reg, ok := ev.(*gidget.EventTrickRegistered)
	if !ok {
		t.Fatalf("tail Read() returned %T, want *EventTrickRegistered", ev)
	}
	if reg.WatchID != 2 {
		t.Errorf("most recent tailed record has WatchID %d, want 2 (newest first)", reg.WatchID)
	}
}

func TestOpenTailReaderWorksWithoutTheWriterLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gidget.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	if err := j.Write(&gidget.EventTrickRegistered{WatchID: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// OpenTailReader must succeed even while j still holds the writer's
	// flock, since -t and -v diagnostics need to work against a journal
	// belonging to a currently-running daemon.
	tail, closer, err := OpenTailReader(path)
	if err != nil {
		t.Fatalf("OpenTailReader failed while the writer held the lock: %v", err)
	}
	defer closer.Close()

	ev, _, err := tail.Read()
	if err != nil {
		t.Fatalf("tail Read() failed: %v", err)
	}
	if ev.Type() != (&gidget.EventTrickRegistered{}).Type() {
		t.Errorf("tail Read() returned %T", ev)
	}
}

func TestFormatRecordIncludesTypeAndFields(t *testing.T) {
	line := FormatRecord(time.Now(), &gidget.EventWarning{Component: "worker", Error: "boom"})
	if !strings.Contains(line, "warning") || !strings.Contains(line, "boom") {
		t.Errorf("FormatRecord() = %q, want it to mention the event type and fields", line)
	}
}

func TestMultiWriterFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	mw := MultiWriter(NewWriter(a, "a"), NewWriter(b, "b"))

	if err := mw.Write(&gidget.EventWarning{Component: "x", Error: "y"}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected MultiWriter to write to every wrapped writer")
	}
	if mw.ID() != "a+b" {
		t.Errorf("ID() = %q, want %q", mw.ID(), "a+b")
	}
}
