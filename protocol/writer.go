package protocol

import (
	"bufio"
	"io"
	"time"
)

// Writer buffers binary requests
type Writer struct {
	bw      *bufio.Writer
	scratch []byte
}

// NewWriter creates a new binary request writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw:      bufio.NewWriter(w),
		scratch: make([]byte, 0, 512),
	}
}

// WritePut writes a PUT request. A ttl <= 0 means no expiry.
func (w *Writer) WritePut(key, value []byte, ttl time.Duration) error {
	return w.write(AppendPut(w.scratch[:0], key, value, ttl))
}

// WriteGet writes a GET request
func (w *Writer) WriteGet(key []byte) error {
	return w.write(AppendGet(w.scratch[:0], key))
}

// WriteDel writes a DEL request
func (w *Writer) WriteDel(key []byte) error {
	return w.write(AppendDel(w.scratch[:0], key))
}

// WritePing writes a PING request
func (w *Writer) WritePing() error {
	return w.bw.WriteByte(byte(OpPing))
}

// WriteStats writes a STATS request
func (w *Writer) WriteStats() error {
	return w.bw.WriteByte(byte(OpStats))
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Buffered returns the number of bytes waiting to be flushed
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

// Reset resets the writer to write to a new underlying writer
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

func (w *Writer) write(frame []byte) error {
	// Keep a grown scratch buffer for the next request
	if cap(frame) > cap(w.scratch) {
		w.scratch = frame[:0]
	}
	_, err := w.bw.Write(frame)
	return err
}
