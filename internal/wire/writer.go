// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"fmt"
	"io"
)

// Writer encodes protocol responses onto a connection.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a Writer buffering writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Flush pushes any buffered bytes to the underlying connection. The
// connection layer calls this once per command, not after every partial
// write, so a multi-line response (e.g. FOUND plus its data) goes out as
// one write when possible.
func (w *Writer) Flush() error { return w.bw.Flush() }

func (w *Writer) line(s string) error {
	_, err := w.bw.WriteString(s + "\r\n")
	return err
}

func (w *Writer) linef(format string, args ...interface{}) error {
	return w.line(fmt.Sprintf(format, args...))
}

// Simple status lines with no associated data.

func (w *Writer) OutOfMemory() error    { return w.line("OUT_OF_MEMORY") }
func (w *Writer) InternalError() error  { return w.line("INTERNAL_ERROR") }
func (w *Writer) BadFormat() error      { return w.line("BAD_FORMAT") }
func (w *Writer) UnknownCommand() error { return w.line("UNKNOWN_COMMAND") }
func (w *Writer) ExpectedCRLF() error   { return w.line("EXPECTED_CRLF") }
func (w *Writer) JobTooBig() error      { return w.line("JOB_TOO_BIG") }
func (w *Writer) Draining() error       { return w.line("DRAINING") }
func (w *Writer) DeadlineSoon() error   { return w.line("DEADLINE_SOON") }
func (w *Writer) TimedOut() error       { return w.line("TIMED_OUT") }
func (w *Writer) NotFound() error       { return w.line("NOT_FOUND") }
func (w *Writer) Deleted() error        { return w.line("DELETED") }
func (w *Writer) Released() error       { return w.line("RELEASED") }
func (w *Writer) Buried() error         { return w.line("BURIED") }
func (w *Writer) Touched() error        { return w.line("TOUCHED") }
func (w *Writer) NotIgnored() error     { return w.line("NOT_IGNORED") }
func (w *Writer) Kicked() error         { return w.line("KICKED") }
func (w *Writer) Paused() error         { return w.line("PAUSED") }

// Responses carrying a job id.

func (w *Writer) Inserted(id uint64) error { return w.linef("INSERTED %d", id) }
func (w *Writer) BuriedID(id uint64) error { return w.linef("BURIED %d", id) }

func (w *Writer) Using(tube string) error   { return w.linef("USING %s", tube) }
func (w *Writer) Watching(count int) error  { return w.linef("WATCHING %d", count) }
func (w *Writer) KickedCount(n int) error   { return w.linef("KICKED %d", n) }

// Reserved/Found write the header line followed by the job body and its
// trailing CRLF, matching RESERVED/FOUND <id> <bytes>\r\n<data>\r\n.
func (w *Writer) Reserved(id uint64, body []byte) error {
	return w.dataResponse("RESERVED", id, body)
}

func (w *Writer) Found(id uint64, body []byte) error {
	return w.dataResponse("FOUND", id, body)
}

func (w *Writer) dataResponse(verb string, id uint64, body []byte) error {
	if err := w.linef("%s %d %d", verb, id, len(body)); err != nil {
		return err
	}
	if _, err := w.bw.Write(body); err != nil {
		return err
	}
	return w.line("")
}

// OK writes the OK <bytes> header followed by a YAML payload and its
// trailing CRLF, used by stats, stats-job, stats-tube, and the list-tubes
// family.
func (w *Writer) OK(payload []byte) error {
	if err := w.linef("OK %d", len(payload)); err != nil {
		return err
	}
	if _, err := w.bw.Write(payload); err != nil {
		return err
	}
	return w.line("")
}
