// Package journal implements gidget.Journaler on top of a line-delimited
// JSON file, guarded by an flock so at most one daemon instance writes to a
// given journal path at a time.
package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"gidget/gidget"
)

// record is the on-disk JSON envelope around one AuditEvent.
type record struct {
	Time time.Time        `json:"time"`
	Type string           `json:"type"`
	Data gidget.AuditEvent `json:"data"`
}

// Writer appends line-delimited JSON records to an io.Writer.
type Writer struct {
	w  io.Writer
	id string
}

var _ gidget.Journaler = Writer{}

// NewWriter wraps w as a Journaler identified by id (used in log messages
// and by MultiWriter to name its combined identity).
func NewWriter(w io.Writer, id string) Writer {
	return Writer{w: w, id: id}
}

func (j Writer) ID() string { return j.id }

// Write appends one record. A single Write call issues a single io.Writer
// call with the fully rendered line, so concurrent writers sharing a file
// opened O_APPEND stay atomic with respect to each other at the kernel
// level.
func (j Writer) Write(ev gidget.AuditEvent) error {
	rec := record{Time: time.Now(), Type: ev.Type(), Data: ev}

	buf := bytes.Buffer{}
	buf.Grow(512)

	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return errors.Wrap(err, "failed to marshal audit event")
	}

	if _, err := j.w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write audit event")
	}

	return nil
}

// multiWriter fans a single Write out to every wrapped Journaler, the way
// the daemon wants every event to reach both syslog-adjacent console
// logging and the durable audit file.
type multiWriter struct {
	id string
	ws []gidget.Journaler
}

// MultiWriter combines several Journalers into one that writes to all of
// them, returning the first error encountered (if any) after attempting
// every write.
func MultiWriter(ws ...gidget.Journaler) gidget.Journaler {
	ids := make([]string, len(ws))
	for i, w := range ws {
		ids[i] = w.ID()
	}
	return &multiWriter{id: joinIDs(ids), ws: ws}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "+"
		}
		out += id
	}
	return out
}

func (w *multiWriter) ID() string { return w.id }

func (w *multiWriter) Write(ev gidget.AuditEvent) error {
	var firstErr error
	for _, writer := range w.ws {
		if err := writer.Write(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
