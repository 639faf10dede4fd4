package gidget

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gidget.conf")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeConfig(t, "# a comment\n\n   \n# another\n")

	result, err := Load(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected no tricks from an all-comment file, got %d", len(result.Tricks))
	}
}

func TestLoadAcceptsValidLine(t *testing.T) {
	watchDir := t.TempDir()
	path := writeConfig(t, watchDir+":256:/usr/local/bin/notify.sh:nobody:admin@example.com\n")

	var logged []string
	result, err := Load(path, func(s string) { logged = append(logged, s) }, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 1 {
		t.Fatalf("expected 1 trick, got %d (log: %v)", len(result.Tricks), logged)
	}

	trick := result.Tricks[0]
	if trick.Path != watchDir {
		t.Errorf("trick.Path = %q, want %q", trick.Path, watchDir)
	}
	if trick.Mask != 256 {
		t.Errorf("trick.Mask = %d, want 256", trick.Mask)
	}
	if trick.Account != "nobody" {
		t.Errorf("trick.Account = %q, want nobody", trick.Account)
	}
	if result.MaxNameLen <= 0 {
		t.Errorf("MaxNameLen = %d, want a positive filesystem name limit", result.MaxNameLen)
	}
}

func TestLoadDiscardsApostrophe(t *testing.T) {
	watchDir := t.TempDir()
	path := writeConfig(t, watchDir+":8:/bin/echo 'oops':nobody:a@b.com\n")

	var logged []string
	result, err := Load(path, func(s string) { logged = append(logged, s) }, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected the apostrophe-bearing line to be discarded")
	}

	found := false
	for _, l := range logged {
		if strings.Contains(l, apostropheMsg) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a log line mentioning %q, got %v", apostropheMsg, logged)
	}
}

func TestLoadDiscardsWrongFieldCount(t *testing.T) {
	path := writeConfig(t, "/tmp:8:/bin/echo\n")

	result, err := Load(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected a 3-field line to be discarded, got %d tricks", len(result.Tricks))
	}
}

func TestLoadRejectsNonNumericMask(t *testing.T) {
	watchDir := t.TempDir()
	path := writeConfig(t, watchDir+":abc:/bin/echo:nobody:a@b.com\n")

	result, err := Load(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected non-numeric mask to be discarded")
	}
}

func TestLoadFieldLengthBoundaries(t *testing.T) {
	watchDir := t.TempDir()

	longScript := strings.Repeat("a", MaxScriptLen+1)
	path := writeConfig(t, watchDir+":8:"+longScript+":nobody:a@b.com\n")

	result, err := Load(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected an over-length script field to be discarded")
	}

	okScript := strings.Repeat("a", MaxScriptLen)
	path = writeConfig(t, watchDir+":8:"+okScript+":nobody:a@b.com\n")
	result, err = Load(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 1 {
		t.Fatalf("expected an exactly-at-limit script field to be accepted")
	}
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"), func(string) {}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadReportsDiscardsToCallback(t *testing.T) {
	watchDir := t.TempDir()
	path := writeConfig(t, "# comment\n\n"+watchDir+":8:/bin/echo 'oops':nobody:a@b.com\n/tmp:8:/bin/echo\n")

	type discard struct {
		line   int
		reason string
	}
	var discards []discard
	result, err := Load(path, func(string) {}, func(line int, reason string) {
		discards = append(discards, discard{line, reason})
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(result.Tricks) != 0 {
		t.Fatalf("expected both real lines to be discarded, got %d tricks", len(result.Tricks))
	}

	// Blank and comment-only lines are not discards and must not be reported.
	if len(discards) != 2 {
		t.Fatalf("expected 2 reported discards, got %d: %+v", len(discards), discards)
	}
	if discards[0].line != 3 || discards[0].reason == "" {
		t.Errorf("discards[0] = %+v, want line 3 with a non-empty reason", discards[0])
	}
	if discards[1].line != 4 || discards[1].reason == "" {
		t.Errorf("discards[1] = %+v, want line 4 with a non-empty reason", discards[1])
	}
}
