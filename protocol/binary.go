package protocol

import (
	"encoding/binary"
	"math"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Pre-built single byte responses
var (
	respOK   = []byte{CodeOK}
	respPong = []byte{CodePong}
	respNull = []byte{CodeNull}
)

const maxTTLMillis = math.MaxInt64 / int64(time.Millisecond)

// decodeBinary parses one binary frame from the front of buf.
//
//	PUT   0x01 | uvarint klen | key | uvarint vlen | value | uvarint ttl_ms
//	GET   0x02 | uvarint klen | key
//	DEL   0x03 | uvarint klen | key
//	PING  0x04
//	STATS 0x05
//
// Key and Value are sub-slices of buf.
func decodeBinary(buf []byte, lim Limits) (Command, int, error) {
	if len(buf) == 0 {
		return Command{}, 0, ErrIncomplete
	}

	op := Op(buf[0])
	switch op {
	case OpPing, OpStats:
		return Command{Op: op}, 1, nil
	case OpPut, OpGet, OpDel:
	default:
		// One byte is the only boundary we can be sure of
		return Command{}, 1, protocolErr(KindUnknownCommand, "opcode 0x%02x", buf[0])
	}

	maxFrame := uint64(lim.MaxFrame())
	pos := 1

	klen, err := readLength(buf, &pos, maxFrame)
	if err != nil {
		return Command{}, 0, err
	}
	if uint64(len(buf)-pos) < klen {
		return Command{}, 0, ErrIncomplete
	}
	cmd := Command{Op: op, Key: buf[pos : pos+int(klen)]}
	pos += int(klen)

	if op == OpPut {
		var remaining uint64
		if uint64(pos) < maxFrame {
			remaining = maxFrame - uint64(pos)
		}
		vlen, err := readLength(buf, &pos, remaining)
		if err != nil {
			return Command{}, 0, err
		}
		if uint64(len(buf)-pos) < vlen {
			return Command{}, 0, ErrIncomplete
		}
		cmd.Value = buf[pos : pos+int(vlen)]
		pos += int(vlen)

		ttl, n := binary.Uvarint(buf[pos:])
		if n == 0 {
			return Command{}, 0, ErrIncomplete
		}
		if n < 0 {
			return Command{}, 0, fatalErr("ttl varint overflows 64 bits")
		}
		pos += n
		if ttl > uint64(maxTTLMillis) {
			return Command{}, pos, protocolErr(KindProtocol, "ttl %dms out of range", ttl)
		}
		cmd.TTL = time.Duration(ttl) * time.Millisecond
	}

	if perr := lim.check(cmd.Key, cmd.Value); perr != nil {
		return Command{}, pos, perr
	}
	return cmd, pos, nil
}

// readLength reads a uvarint length at *pos and advances it. A length that
// can never fit in a frame is fatal: the bytes it covers cannot be skipped.
func readLength(buf []byte, pos *int, limit uint64) (uint64, error) {
	v, n := binary.Uvarint(buf[*pos:])
	if n == 0 {
		return 0, ErrIncomplete
	}
	if n < 0 {
		return 0, fatalErr("length varint overflows 64 bits")
	}
	*pos += n
	if v > limit {
		return 0, fatalErr("declared length %d exceeds maximum frame size", v)
	}
	return v, nil
}

// AppendPut appends a binary PUT request to dst
func AppendPut(dst, key, value []byte, ttl time.Duration) []byte {
	dst = append(dst, byte(OpPut))
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = append(dst, key...)
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	dst = append(dst, value...)
	var ms uint64
	if ttl > 0 {
		ms = uint64(ttl / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	return binary.AppendUvarint(dst, ms)
}

// AppendGet appends a binary GET request to dst
func AppendGet(dst, key []byte) []byte {
	return appendKeyed(dst, OpGet, key)
}

// AppendDel appends a binary DEL request to dst
func AppendDel(dst, key []byte) []byte {
	return appendKeyed(dst, OpDel, key)
}

// AppendPing appends a binary PING request to dst
func AppendPing(dst []byte) []byte {
	return append(dst, byte(OpPing))
}

// AppendStats appends a binary STATS request to dst
func AppendStats(dst []byte) []byte {
	return append(dst, byte(OpStats))
}

func appendKeyed(dst []byte, op Op, key []byte) []byte {
	dst = append(dst, byte(op))
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	return append(dst, key...)
}

type binaryEncoder struct{}

func (binaryEncoder) AppendOK(dst []byte) []byte   { return append(dst, respOK...) }
func (binaryEncoder) AppendPong(dst []byte) []byte { return append(dst, respPong...) }
func (binaryEncoder) AppendNull(dst []byte) []byte { return append(dst, respNull...) }

func (binaryEncoder) AppendValue(dst, value []byte) []byte {
	dst = append(dst, CodeValue)
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	return append(dst, value...)
}

func (binaryEncoder) AppendDeleted(dst []byte, deleted bool) []byte {
	if deleted {
		return append(dst, respOK...)
	}
	return append(dst, respNull...)
}

func (binaryEncoder) AppendStats(dst []byte, r *StatsReport) []byte {
	b := builderPool.Get().(*flatbuffers.Builder)
	b.Reset()

	payload := r.buildFlatBuffer(b)
	dst = append(dst, CodeStats)
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	dst = append(dst, payload...)
	builderPool.Put(b)
	return dst
}

func (binaryEncoder) AppendError(dst []byte, kind ErrorKind, _ string) []byte {
	return append(dst, byte(kind))
}
