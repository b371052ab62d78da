package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Op identifies a decoded command. Binary opcodes use the same values on
// the wire.
type Op byte

const (
	// OpInvalid stands for a frame rejected before its command was known
	OpInvalid Op = 0x00

	OpPut   Op = 0x01
	OpGet   Op = 0x02
	OpDel   Op = 0x03
	OpPing  Op = 0x04
	OpStats Op = 0x05

	// OpQuit is only reachable from the text framing
	OpQuit Op = 0x7f
)

// String returns the command verb
func (op Op) String() string {
	switch op {
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	case OpDel:
		return "DEL"
	case OpPing:
		return "PING"
	case OpStats:
		return "STATS"
	case OpQuit:
		return "QUIT"
	case OpInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("OP(0x%02x)", byte(op))
	}
}

// isOpcode reports whether b is a binary request opcode
func isOpcode(b byte) bool {
	return b >= byte(OpPut) && b <= byte(OpStats)
}

// Mode is the framing a connection speaks
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeBinary
	ModeText
)

// String returns the framing name
func (m Mode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeText:
		return "text"
	default:
		return "unknown"
	}
}

// Binary response codes
const (
	CodeOK    byte = 0x10
	CodePong  byte = 0x11
	CodeNull  byte = 0x12
	CodeValue byte = 0x20
	CodeStats byte = 0x21
)

// ErrorKind classifies a failed command. Its value is the binary error
// response code.
type ErrorKind byte

const (
	KindProtocol       ErrorKind = 0x13
	KindKeyTooLarge    ErrorKind = 0x14
	KindValueTooLarge  ErrorKind = 0x15
	KindStoreFull      ErrorKind = 0x16
	KindUnknownCommand ErrorKind = 0x17
	KindInternal       ErrorKind = 0x1f
)

// String returns a short description of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol error"
	case KindKeyTooLarge:
		return "key too large"
	case KindValueTooLarge:
		return "value too large"
	case KindStoreFull:
		return "store full"
	case KindUnknownCommand:
		return "unknown command"
	case KindInternal:
		return "internal error"
	default:
		return fmt.Sprintf("error 0x%02x", byte(k))
	}
}

// IsErrorCode reports whether a binary response code is an error
func IsErrorCode(code byte) bool {
	return code >= byte(KindProtocol) && code <= byte(KindInternal)
}

// ErrIncomplete reports that the buffer does not yet hold a complete frame
var ErrIncomplete = errors.New("incomplete frame")

// ProtocolError is a decode failure. A non-fatal error aborts only the
// offending command: the decoder reports how many bytes to skip and the
// connection keeps serving. A fatal error means the frame boundary is lost
// and the connection must be closed.
type ProtocolError struct {
	Kind    ErrorKind
	Message string
	Fatal   bool
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func protocolErr(kind ErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func fatalErr(format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: KindProtocol, Message: fmt.Sprintf(format, args...), Fatal: true}
}

// IsFatal reports whether err requires closing the connection
func IsFatal(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Fatal
	}
	return err != nil && !errors.Is(err, ErrIncomplete)
}

// Command is one decoded request. Key and Value alias the receive buffer
// and are only valid until the buffer is reused.
type Command struct {
	Op    Op
	Key   []byte
	Value []byte
	TTL   time.Duration
}

// String returns a printable form of the command
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Op.String())
	if len(c.Key) > 0 {
		sb.WriteByte(' ')
		sb.Write(c.Key)
	}
	if c.Op == OpPut {
		fmt.Fprintf(&sb, " (%d bytes)", len(c.Value))
		if c.TTL > 0 {
			fmt.Fprintf(&sb, " ttl=%s", c.TTL)
		}
	}
	return sb.String()
}

// Limits bounds what the decoder accepts
type Limits struct {
	MaxKeySize   int
	MaxValueSize int
}

// frameOverhead covers opcodes, length prefixes and the text framing's
// verb, TTL suffix and CRLFs
const frameOverhead = 128

// MaxFrame is the largest frame a connection needs to buffer. Frames
// declaring more than this can never complete and are fatal.
func (l Limits) MaxFrame() int {
	return l.MaxKeySize + l.MaxValueSize + frameOverhead
}

func (l Limits) check(key, value []byte) *ProtocolError {
	if len(key) == 0 {
		return protocolErr(KindProtocol, "empty key")
	}
	if len(key) > l.MaxKeySize {
		return protocolErr(KindKeyTooLarge, "key is %d bytes, limit %d", len(key), l.MaxKeySize)
	}
	if len(value) > l.MaxValueSize {
		return protocolErr(KindValueTooLarge, "value is %d bytes, limit %d", len(value), l.MaxValueSize)
	}
	return nil
}
