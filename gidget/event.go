package gidget

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event is a decoded kernel notification: which watch fired, which classes
// triggered it, the rename-pairing cookie, and — when the watched path is a
// directory and an entry within it changed — the name of that entry.
type Event struct {
	WatchID int32
	Mask    Mask
	Cookie  uint32
	Name    string // empty unless the watch covers a directory
}

// inotifyEventHeaderSize is the fixed portion of a raw inotify_event record
// (wd, mask, cookie, len), before any variable-length name.
const inotifyEventHeaderSize = int(unsafe.Sizeof(unix.InotifyEvent{}))

// DecodeEvent decodes exactly one inotify_event record from the front of
// buf. Per spec.md §4.5/§9, only the first record in a read buffer is ever
// decoded, even if the kernel packed several records into one read: this
// is a deliberately preserved limitation of the source design, not an
// oversight here.
func DecodeEvent(buf []byte) (Event, error) {
	if len(buf) < inotifyEventHeaderSize {
		return Event{}, errors.New("short inotify read: buffer smaller than one event header")
	}

	raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[0]))

	ev := Event{
		WatchID: raw.Wd,
		Mask:    Mask(raw.Mask),
		Cookie:  raw.Cookie,
	}

	nameLen := int(raw.Len)
	if nameLen == 0 {
		return ev, nil
	}

	start := inotifyEventHeaderSize
	end := start + nameLen
	if end > len(buf) {
		return Event{}, errors.New("short inotify read: declared name length exceeds buffer")
	}

	// The name field is null-padded so records stay aligned; readers must
	// stop at the first null rather than trusting the declared length.
	name := buf[start:end]
	if i := indexByte(string(name), 0); i >= 0 {
		name = name[:i]
	}
	ev.Name = string(name)

	return ev, nil
}

// InotifyEventBufferSize returns the size of the buffer the event loop
// should read into: one event header plus the largest file name any
// watched filesystem might report, plus one byte for a trailing null.
func InotifyEventBufferSize(maxNameLen int) int {
	return inotifyEventHeaderSize + maxNameLen + 1
}
