package gidget

import (
	"errors"
	"testing"
)

func TestRegistrySequentialWatchIDs(t *testing.T) {
	r, err := Open()
	if err != nil {
		t.Skipf("inotify unavailable in this environment: %v", err)
	}
	defer r.Close()

	dirs := []string{t.TempDir(), t.TempDir(), t.TempDir()}

	for i, dir := range dirs {
		trick, err := r.Register(Trick{Path: dir, Mask: MaskCreate})
		if err != nil {
			t.Fatalf("Register(%d) failed: %v", i, err)
		}
		if trick.WatchID != int32(i+1) {
			t.Errorf("trick %d got WatchID %d, want %d", i, trick.WatchID, i+1)
		}
	}

	if r.Len() != len(dirs) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(dirs))
	}

	got, ok := r.Lookup(2)
	if !ok {
		t.Fatal("Lookup(2) found nothing")
	}
	if got.Path != dirs[1] {
		t.Errorf("Lookup(2).Path = %q, want %q", got.Path, dirs[1])
	}

	if _, ok := r.Lookup(99); ok {
		t.Error("Lookup(99) should have found nothing")
	}
}

func TestRegistryBadPathIsNonFatal(t *testing.T) {
	r, err := Open()
	if err != nil {
		t.Skipf("inotify unavailable in this environment: %v", err)
	}
	defer r.Close()

	_, err = r.Register(Trick{Path: "/does/not/exist/at/all", Mask: MaskCreate})
	if err == nil {
		t.Fatal("expected Register to fail for a nonexistent path")
	}
	if errors.Is(err, ErrNonSequentialWatch) {
		t.Error("a missing path should not be classified as the non-sequential fatal condition")
	}
	if r.Len() != 0 {
		t.Errorf("a failed Register should not grow the table, got Len() = %d", r.Len())
	}
}
