// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"io"

	"github.com/hemant/beanq/internal/errors"
)

// Reader frames a byte stream into command lines and put-bodies.
//
// The reference protocol's framing is a non-blocking codec: on a line
// longer than 224 bytes with no CRLF yet found, it switches into a
// discard-to-newline state and keeps returning "no event yet" until the
// next CRLF arrives, however many reads that takes. Since a Reader here
// blocks one goroutine per connection rather than driving a fused
// read/parse state machine, that two-phase behavior collapses into a
// single blocking read: bufio.Reader.ReadString keeps buffering until it
// sees '\n' no matter how far away that is, which is exactly the discard
// target, so ReadCommandLine only has to check the resulting length
// against the 224-byte cap after the fact.
type Reader struct {
	br *bufio.Reader
}

// NewReader returns a Reader buffering reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadCommandLine reads one CRLF-terminated command line, stripped of its
// trailing CRLF. A line (including the CRLF) longer than MaxCommandLineLen
// is a BadFormat error; the offending line has already been fully
// consumed, so the caller only needs to send BAD_FORMAT and keep reading.
func (r *Reader) ReadCommandLine() (string, error) {
	raw, err := r.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(raw) > MaxCommandLineLen {
		return "", errors.E(errors.BadFormat, "command line too long")
	}
	if len(raw) < 2 || raw[len(raw)-2] != '\r' {
		return "", errors.E(errors.BadFormat, "line not terminated by CRLF")
	}
	return raw[:len(raw)-2], nil
}

// ReadBody reads exactly n bytes of job data followed by a CRLF terminator.
// If the two bytes after the body are not CRLF, it still returns the body,
// reports crlfOK == false and resyncs past the next newline; the caller
// (conn's put handling) then replies EXPECTED_CRLF and creates no job.
func (r *Reader) ReadBody(n int) (body []byte, crlfOK bool, err error) {
	body = make([]byte, n)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, false, err
	}
	tail := make([]byte, 2)
	if _, err := io.ReadFull(r.br, tail); err != nil {
		return nil, false, err
	}
	if tail[0] == '\r' && tail[1] == '\n' {
		return body, true, nil
	}
	// Framing is now out of sync with the client; resynchronize by
	// discarding through the next newline before returning to command
	// parsing, same recovery the reference server performs.
	if err := r.discardToNewline(tail[1]); err != nil {
		return body, false, err
	}
	return body, false, nil
}

// DrainBody discards n bytes of job data plus its CRLF terminator without
// holding the whole body in memory at once, for a put whose declared size
// already exceeds max-job-size: the bytes must still be consumed off the
// wire to keep framing in sync, but they're never copied into an
// allocation sized by the client-supplied n.
func (r *Reader) DrainBody(n int) error {
	var buf [4096]byte
	remaining := n + 2
	for remaining > 0 {
		chunk := len(buf)
		if remaining < chunk {
			chunk = remaining
		}
		if _, err := io.ReadFull(r.br, buf[:chunk]); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

// discardToNewline consumes bytes up to and including the next '\n'. last
// is the most recently read byte, skipping the scan entirely if it was
// already the newline.
func (r *Reader) discardToNewline(last byte) error {
	if last == '\n' {
		return nil
	}
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return nil
		}
	}
}
