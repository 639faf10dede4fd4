package journal

import (
	"fmt"
	"io"
	"time"

	"gidget/gidget"
)

// humanWriter renders audit events as a single terse line rather than
// JSON, for a console-attached journaler that an operator can tail with
// their own eyes alongside the durable file-backed one.
type humanWriter struct {
	id string
	w  io.Writer
}

var _ gidget.Journaler = humanWriter{}

// NewHumanWriter wraps w as a human-readable Journaler identified by id.
func NewHumanWriter(id string, w io.Writer) gidget.Journaler {
	return humanWriter{id: id, w: w}
}

func (h humanWriter) ID() string { return h.id }

func (h humanWriter) Write(ev gidget.AuditEvent) error {
	_, err := fmt.Fprintln(h.w, FormatRecord(time.Now(), ev))
	return err
}

// FormatRecord renders a single audit record as the terse one-line form
// humanWriter uses, shared with the standalone tail-reading paths
// (-t N and -v startup diagnostics) that read records back out of the
// journal file rather than writing them.
func FormatRecord(t time.Time, ev gidget.AuditEvent) string {
	return fmt.Sprintf("%s [%s] %+v", t.Format(time.RFC3339), ev.Type(), ev)
}
