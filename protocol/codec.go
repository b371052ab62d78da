package protocol

import (
	"errors"
	"sync"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Encoder appends responses in one framing
type Encoder interface {
	AppendOK(dst []byte) []byte
	AppendPong(dst []byte) []byte
	AppendNull(dst []byte) []byte
	AppendValue(dst, value []byte) []byte
	AppendDeleted(dst []byte, deleted bool) []byte
	AppendStats(dst []byte, r *StatsReport) []byte
	AppendError(dst []byte, kind ErrorKind, msg string) []byte
}

var (
	_ Encoder = binaryEncoder{}
	_ Encoder = textEncoder{}
)

var builderPool = sync.Pool{
	New: func() any { return flatbuffers.NewBuilder(512) },
}

// EncoderFor returns the response encoder for a framing. Connections whose
// framing is not yet known are answered in text.
func EncoderFor(m Mode) Encoder {
	if m == ModeBinary {
		return binaryEncoder{}
	}
	return textEncoder{}
}

// Decoder turns a connection's byte stream into commands. The framing is
// detected from the first message and then pinned for the life of the
// connection. A Decoder is not safe for concurrent use.
type Decoder struct {
	limits Limits
	mode   Mode
}

// NewDecoder creates a decoder that detects the framing from the first
// message
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// NewDecoderMode creates a decoder pinned to one framing
func NewDecoderMode(limits Limits, mode Mode) *Decoder {
	return &Decoder{limits: limits, mode: mode}
}

// Mode returns the pinned framing, or ModeUnknown before the first frame
func (d *Decoder) Mode() Mode { return d.mode }

// Encoder returns the response encoder matching the current framing
func (d *Decoder) Encoder() Encoder { return EncoderFor(d.mode) }

// Decode parses the first command in buf and returns it along with the
// number of bytes consumed.
//
// ErrIncomplete means buf holds a partial frame. n is then the length of
// any blank lines ahead of it, which the caller may discard.
// A non-fatal *ProtocolError reports a rejected command whose n bytes must
// be skipped; any other error leaves the stream unusable.
func (d *Decoder) Decode(buf []byte) (Command, int, error) {
	switch d.mode {
	case ModeBinary:
		return decodeBinary(buf, d.limits)
	case ModeText:
		return decodeText(buf, d.limits)
	}
	return d.detect(buf)
}

func (d *Decoder) detect(buf []byte) (Command, int, error) {
	if len(buf) == 0 {
		return Command{}, 0, ErrIncomplete
	}

	if isOpcode(buf[0]) {
		cmd, n, err := decodeBinary(buf, d.limits)
		switch {
		case err == nil, isRecoverable(err):
			d.mode = ModeBinary
			return cmd, n, err
		case errors.Is(err, ErrIncomplete):
			return cmd, n, err
		}
		// Malformed as binary: a text command whose first byte collides
		// with the opcode range
	}

	cmd, n, err := decodeText(buf, d.limits)
	if err == nil || isRecoverable(err) {
		d.mode = ModeText
	}
	return cmd, n, err
}

func isRecoverable(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && !pe.Fatal
}
