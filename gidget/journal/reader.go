package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"gidget/gidget"
	"gidget/gidget/journal/backwardio"
)

// Reader decodes line-delimited JSON audit records from the top of a
// stream.
type Reader struct {
	dec *json.Decoder
}

// NewReader creates a reader over r, starting from r's current offset.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Read decodes the next record. It returns io.EOF once the stream is
// exhausted.
func (r *Reader) Read() (gidget.AuditEvent, time.Time, error) {
	var raw struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := r.dec.Decode(&raw); err != nil {
		return nil, time.Time{}, err
	}

	ev := gidget.NewAuditEvent(raw.Type)
	if ev == nil {
		return nil, time.Time{}, fmt.Errorf("unknown audit event type %q", raw.Type)
	}

	if err := json.Unmarshal(raw.Data, ev); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode audit event data")
	}

	return ev, raw.Time, nil
}

// TailReader decodes records walking backwards from the end of a seekable
// stream, newest first. It is how `gidget -t`-style tailing (SPEC_FULL.md
// C10) answers "what are the last N audit events" without reading the
// whole journal forward.
type TailReader struct {
	b *backwardio.Scanner
}

// NewTailReader creates a reader that walks r backwards from its end.
func NewTailReader(r io.ReadSeeker) *TailReader {
	return &TailReader{b: backwardio.NewScanner(r)}
}

// Read returns the next-most-recent record. It returns io.EOF once the
// beginning of the stream has been reached.
func (t *TailReader) Read() (gidget.AuditEvent, time.Time, error) {
	var line []byte
	var err error

	for {
		line, err = t.b.ReadUntil('\n')
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(line) > 0 {
			break
		}
	}

	var raw struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode JSON")
	}

	ev := gidget.NewAuditEvent(raw.Type)
	if ev == nil {
		return nil, time.Time{}, fmt.Errorf("unknown audit event type %q", raw.Type)
	}

	if err := json.Unmarshal(raw.Data, ev); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode audit event data")
	}

	return ev, raw.Time, nil
}
