package gidget

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Registry owns the single inotify watch instance and the table mapping a
// kernel-issued watch descriptor to the trick that registered it. The table
// is indexed by watchDescriptor-1, per spec.md §4.3: the kernel is expected
// to hand out descriptors sequentially starting at 1.
type Registry struct {
	fd     int
	tricks []Trick
}

// Open creates a new inotify instance.
func Open() (*Registry, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "inotify_init1")
	}
	return &Registry{fd: fd}, nil
}

// Fd returns the underlying inotify instance descriptor.
func (r *Registry) Fd() int { return r.fd }

// Close closes the watch instance. All watches registered against it are
// implicitly destroyed by the kernel.
func (r *Registry) Close() error {
	return unix.Close(r.fd)
}

// Register adds a watch for trick.Path with trick.Mask and appends trick,
// with its WatchID filled in, to the table. Registration failure is
// reported to the caller and is not fatal to the registry as a whole —
// only this one trick is discarded, per spec.md §4.3.
//
// ErrNonSequentialWatch is returned if the kernel hands back a descriptor
// that does not match the table's next expected index; per spec.md §3 and
// §4.3, that is a fatal condition for the whole daemon, because it means
// this registry's wd-1 indexing invariant can no longer be trusted.
func (r *Registry) Register(trick Trick) (Trick, error) {
	wd, err := unix.InotifyAddWatch(r.fd, trick.Path, uint32(trick.Mask))
	if err != nil {
		return Trick{}, errors.Wrapf(err, "unable to add watch for %s", trick.Path)
	}

	expected := int32(len(r.tricks) + 1)
	if int32(wd) != expected {
		return Trick{}, errors.Wrapf(ErrNonSequentialWatch,
			"got watch descriptor %d, expected %d", wd, expected)
	}

	trick.WatchID = int32(wd)
	r.tricks = append(r.tricks, trick)
	return trick, nil
}

// ErrNonSequentialWatch is the fatal "heap corrupt" condition of spec.md
// §3/§4.3/§7: the kernel returned a watch descriptor that does not extend
// the table sequentially.
var ErrNonSequentialWatch = errors.New("heap corrupt: non-sequential watch descriptor returned from inotify")

// Lookup returns the trick registered under watch descriptor wd, and
// whether one exists. wd is the raw kernel descriptor, one-indexed.
func (r *Registry) Lookup(wd int32) (Trick, bool) {
	i := wd - 1
	if i < 0 || int(i) >= len(r.tricks) {
		return Trick{}, false
	}
	return r.tricks[i], true
}

// Tricks returns a copy of the registered trick table, in registration
// order.
func (r *Registry) Tricks() []Trick {
	out := make([]Trick, len(r.tricks))
	copy(out, r.tricks)
	return out
}

// Len reports how many tricks are currently registered.
func (r *Registry) Len() int { return len(r.tricks) }
