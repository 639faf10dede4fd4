// Package backwardio implements a buffered scanner that scans a seekable
// reader backwards, line by line, without loading the whole file into
// memory. gidget's journal tail reader (SPEC_FULL.md C10) uses it to
// answer "what happened most recently" by reading from the end of a
// potentially large audit journal without a forward scan of the whole
// file.
package backwardio

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

var maxTok = bufio.MaxScanTokenSize

// Scanner reads a seekable stream backwards, one delimited token at a
// time, starting from the end of the stream.
type Scanner struct {
	r   io.ReadSeeker
	buf []byte
	end int64 // last seeked offset; bounds how much of the stream remains
}

// NewScanner wraps r for backwards reading starting at its current end.
func NewScanner(r io.ReadSeeker) *Scanner {
	return &Scanner{r: r}
}

// ReadUntil returns the next token walking backwards from the current
// position, delimited by delim but with the delimiter itself stripped. It
// returns io.EOF once the beginning of the stream has been consumed.
func (r *Scanner) ReadUntil(delim byte) ([]byte, error) {
	for {
		if r.buf == nil {
			goto fill
		}

		for i := len(r.buf) - 1; i >= 0; i-- {
			isBOF := i == 0 && r.end == 0

			if r.buf[i] != delim && !isBOF {
				continue
			}

			tok := r.buf[i:]
			r.buf = r.buf[:i]

			if len(tok) > 0 && tok[0] == delim {
				tok = tok[1:]

				if isBOF && len(tok) > 0 {
					r.buf = r.buf[:1]
				}
			}

			return tok, nil
		}

		if len(r.buf) == cap(r.buf) {
			return nil, bufio.ErrTooLong
		}

	fill:
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func (r *Scanner) fill() error {
	if r.buf == nil {
		o, err := r.r.Seek(0, io.SeekEnd)
		if err != nil {
			return errors.Wrap(err, "failed to find end of stream")
		}

		r.end = o
		r.buf = make([]byte, 0, maxTok)
	}

	if r.end == 0 {
		return io.EOF
	}

	max := int64(cap(r.buf))

	if len(r.buf) > 0 {
		max -= int64(len(r.buf))
		r.buf = r.buf[:cap(r.buf)]
		copy(r.buf[max:], r.buf)
	}

	seekTo := r.end - max
	min := int64(0)

	if seekTo < 0 {
		seekTo = 0
		min = max - r.end
	}

	if _, err := r.r.Seek(seekTo, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek backwards")
	}

	r.end = seekTo

	if _, err := r.r.Read(r.buf[min:max]); err != nil {
		return errors.Wrap(err, "failed to read seeked chunk")
	}

	r.buf = r.buf[min:cap(r.buf)]

	return nil
}
