package gidget

// Trick binds one watched filesystem path to one action: a script to run,
// as a given account, mailing output to a given address. Tricks are created
// during configuration load, never mutated, and live for the lifetime of
// the daemon.
type Trick struct {
	Path    string // watched path, verified to exist at load time
	Mask    Mask   // non-zero bitmap of event classes that trigger this trick
	Script  string // path to the executable to run
	Account string // local login name the script runs as; resolved per event
	MailTo  string // recipient address, passed verbatim into mail headers

	// WatchID is assigned by the kernel on registration and becomes this
	// trick's primary key: the trick table is indexed by WatchID-1. Zero
	// means the trick has not yet been registered.
	WatchID int32
}

// Field-length limits from spec.md §4.2. LoadResult.MaxNameLen is not a
// limit on any single trick field; it is the per-filesystem maximum name length gidget
// discovers while loading the configuration, used to size the event-read
// buffer.
const (
	MaxScriptLen  = 256
	MaxMailToLen  = 36
	apostropheMsg = "illegal character"
	invisibleMsg  = "invisible character"
)
