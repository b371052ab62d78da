package protocol

import (
	"bytes"
	"errors"
	"strconv"
	"time"
)

const (
	// CRLF is the text framing line terminator
	CRLF = "\r\n"

	// maxArgs is the longest command the text framing accepts:
	// PUT key value PX millis
	maxArgs = 5

	// maxHeaderLine bounds a multibulk header line such as "$1048576"
	maxHeaderLine = 32
)

var (
	verbPut   = []byte("PUT")
	verbSet   = []byte("SET")
	verbGet   = []byte("GET")
	verbDel   = []byte("DEL")
	verbPing  = []byte("PING")
	verbStats = []byte("STATS")
	verbInfo  = []byte("INFO")
	verbQuit  = []byte("QUIT")
	optEX     = []byte("EX")
	optPX     = []byte("PX")
)

// decodeText parses one text command from the front of buf. Two forms are
// accepted: inline commands ("PUT key value\r\n") and RESP multibulk arrays
// ("*3\r\n$3\r\nPUT\r\n..."), the latter for binary-safe values. Blank
// lines and empty arrays are consumed silently.
func decodeText(buf []byte, lim Limits) (Command, int, error) {
	var argv [maxArgs][]byte
	consumed := 0

	for {
		rest := buf[consumed:]
		if len(rest) == 0 {
			return Command{}, consumed, ErrIncomplete
		}

		var (
			n    int
			argc int
			err  error
		)
		if rest[0] == '*' {
			argc, n, err = splitMultibulk(rest, lim, argv[:])
		} else {
			argc, n, err = splitInline(rest, lim, argv[:])
		}
		if err != nil {
			if pe, ok := err.(*ProtocolError); ok && !pe.Fatal {
				return Command{}, consumed + n, err
			}
			if errors.Is(err, ErrIncomplete) {
				// Blank lines before the partial frame are spent
				return Command{}, consumed, err
			}
			return Command{}, 0, err
		}

		consumed += n
		if argc == 0 {
			continue
		}

		cmd, perr := commandFromArgs(argv[:argc], lim)
		if perr != nil {
			return Command{}, consumed, perr
		}
		return cmd, consumed, nil
	}
}

// splitInline splits a space separated line into argv. The value may not
// contain spaces; clients needing arbitrary bytes use multibulk.
func splitInline(buf []byte, lim Limits, argv [][]byte) (int, int, error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		if len(buf) > lim.MaxFrame() {
			return 0, 0, fatalErr("inline command exceeds maximum frame size")
		}
		return 0, 0, ErrIncomplete
	}
	n := idx + 1
	line := buf[:idx]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	argc := 0
	for len(line) > 0 {
		i := 0
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		line = line[i:]
		if len(line) == 0 {
			break
		}
		j := 0
		for j < len(line) && line[j] != ' ' && line[j] != '\t' {
			j++
		}
		if argc == len(argv) {
			return 0, n, protocolErr(KindProtocol, "too many arguments")
		}
		argv[argc] = line[:j]
		argc++
		line = line[j:]
	}
	return argc, n, nil
}

// splitMultibulk splits a RESP array of bulk strings into argv. Arguments
// are sub-slices of buf.
func splitMultibulk(buf []byte, lim Limits, argv [][]byte) (int, int, error) {
	maxFrame := lim.MaxFrame()

	line, pos, err := readHeaderLine(buf, 0)
	if err != nil {
		return 0, 0, err
	}
	count, err := parseInt64(line[1:])
	if err != nil {
		return 0, 0, fatalErr("invalid multibulk length %q", line[1:])
	}
	if count <= 0 {
		return 0, pos, nil
	}
	if count > int64(maxFrame) {
		return 0, 0, fatalErr("multibulk length %d exceeds maximum frame size", count)
	}

	argc := 0
	for i := int64(0); i < count; i++ {
		line, next, err := readHeaderLine(buf, pos)
		if err != nil {
			return 0, 0, err
		}
		if line[0] != '$' {
			return 0, 0, fatalErr("expected '$', got %q", line[0])
		}
		size, err := parseInt64(line[1:])
		if err != nil || size < 0 {
			return 0, 0, fatalErr("invalid bulk length %q", line[1:])
		}
		end := int64(next) + size + 2
		if end > int64(maxFrame) {
			return 0, 0, fatalErr("bulk length %d exceeds maximum frame size", size)
		}
		if int64(len(buf)) < end {
			return 0, 0, ErrIncomplete
		}
		if buf[end-2] != '\r' || buf[end-1] != '\n' {
			return 0, 0, fatalErr("bulk string not terminated by CRLF")
		}
		if argc < len(argv) {
			argv[argc] = buf[next : int64(next)+size]
		}
		argc++
		pos = int(end)
	}

	if argc > len(argv) {
		return 0, pos, protocolErr(KindProtocol, "too many arguments")
	}
	return argc, pos, nil
}

// readHeaderLine returns the CRLF terminated line starting at pos, without
// the terminator, and the offset following it
func readHeaderLine(buf []byte, pos int) ([]byte, int, error) {
	rest := buf[pos:]
	idx := bytes.IndexByte(rest, '\n')
	if idx < 0 {
		if len(rest) > maxHeaderLine {
			return nil, 0, fatalErr("multibulk header line too long")
		}
		return nil, 0, ErrIncomplete
	}
	if idx < 2 || rest[idx-1] != '\r' {
		return nil, 0, fatalErr("malformed multibulk header")
	}
	return rest[:idx-1], pos + idx + 1, nil
}

func commandFromArgs(args [][]byte, lim Limits) (Command, *ProtocolError) {
	verb := args[0]
	switch {
	case bytes.EqualFold(verb, verbPut), bytes.EqualFold(verb, verbSet):
		if len(args) != 3 && len(args) != 5 {
			return Command{}, wrongArity(verb)
		}
		cmd := Command{Op: OpPut, Key: args[1], Value: args[2]}
		if len(args) == 5 {
			ttl, perr := parseTTL(args[3], args[4])
			if perr != nil {
				return Command{}, perr
			}
			cmd.TTL = ttl
		}
		return cmd, lim.check(cmd.Key, cmd.Value)

	case bytes.EqualFold(verb, verbGet):
		if len(args) != 2 {
			return Command{}, wrongArity(verb)
		}
		return Command{Op: OpGet, Key: args[1]}, lim.check(args[1], nil)

	case bytes.EqualFold(verb, verbDel):
		if len(args) != 2 {
			return Command{}, wrongArity(verb)
		}
		return Command{Op: OpDel, Key: args[1]}, lim.check(args[1], nil)

	case bytes.EqualFold(verb, verbPing):
		if len(args) > 2 {
			return Command{}, wrongArity(verb)
		}
		return Command{Op: OpPing}, nil

	case bytes.EqualFold(verb, verbStats), bytes.EqualFold(verb, verbInfo):
		return Command{Op: OpStats}, nil

	case bytes.EqualFold(verb, verbQuit):
		return Command{Op: OpQuit}, nil
	}
	return Command{}, protocolErr(KindUnknownCommand, "'%s'", truncate(verb, 32))
}

func parseTTL(unit, amount []byte) (time.Duration, *ProtocolError) {
	n, err := parseInt64(amount)
	if err != nil || n <= 0 {
		return 0, protocolErr(KindProtocol, "invalid expire time %q", truncate(amount, 32))
	}
	switch {
	case bytes.EqualFold(unit, optEX):
		if n > maxTTLMillis/1000 {
			return 0, protocolErr(KindProtocol, "expire time %d out of range", n)
		}
		return time.Duration(n) * time.Second, nil
	case bytes.EqualFold(unit, optPX):
		if n > maxTTLMillis {
			return 0, protocolErr(KindProtocol, "expire time %d out of range", n)
		}
		return time.Duration(n) * time.Millisecond, nil
	}
	return 0, protocolErr(KindProtocol, "syntax error near %q", truncate(unit, 32))
}

func wrongArity(verb []byte) *ProtocolError {
	return protocolErr(KindProtocol, "wrong number of arguments for '%s' command", truncate(verb, 32))
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}

		// Check for overflow
		if n > (1<<63-1)/10 {
			return 0, strconv.ErrRange
		}

		n = n*10 + int64(b[i]-'0')
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

// Text responses use RESP2 so standard Redis clients can talk to the
// server.
var (
	textOK     = []byte("+OK\r\n")
	textPong   = []byte("+PONG\r\n")
	textNull   = []byte("$-1\r\n")
	textOne    = []byte(":1\r\n")
	textZero   = []byte(":0\r\n")
	textErrPfx = []byte("-ERR ")
	textOOMPfx = []byte("-OOM ")
)

type textEncoder struct{}

func (textEncoder) AppendOK(dst []byte) []byte   { return append(dst, textOK...) }
func (textEncoder) AppendPong(dst []byte) []byte { return append(dst, textPong...) }
func (textEncoder) AppendNull(dst []byte) []byte { return append(dst, textNull...) }

func (textEncoder) AppendValue(dst, value []byte) []byte {
	return AppendBulkString(dst, value)
}

func (textEncoder) AppendDeleted(dst []byte, deleted bool) []byte {
	if deleted {
		return append(dst, textOne...)
	}
	return append(dst, textZero...)
}

func (textEncoder) AppendStats(dst []byte, r *StatsReport) []byte {
	// Length prefix first, so render into the tail of dst and shift
	start := len(dst)
	dst = r.AppendText(dst)
	body := len(dst) - start

	var hdr [24]byte
	h := append(hdr[:0], '$')
	h = strconv.AppendInt(h, int64(body), 10)
	h = append(h, CRLF...)

	dst = append(dst, h...)
	copy(dst[start+len(h):], dst[start:start+body])
	copy(dst[start:], h)
	return append(dst, CRLF...)
}

func (textEncoder) AppendError(dst []byte, kind ErrorKind, msg string) []byte {
	if kind == KindStoreFull {
		dst = append(dst, textOOMPfx...)
	} else {
		dst = append(dst, textErrPfx...)
	}
	if msg == "" {
		msg = kind.String()
	}
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c == '\r' || c == '\n' {
			c = ' '
		}
		dst = append(dst, c)
	}
	return append(dst, CRLF...)
}

// AppendBulkString appends data as a RESP bulk string
func AppendBulkString(dst, data []byte) []byte {
	dst = append(dst, '$')
	dst = strconv.AppendInt(dst, int64(len(data)), 10)
	dst = append(dst, CRLF...)
	dst = append(dst, data...)
	return append(dst, CRLF...)
}

// AppendCommand appends a RESP array of bulk strings to dst
func AppendCommand(dst []byte, args ...[]byte) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(args)), 10)
	dst = append(dst, CRLF...)
	for _, arg := range args {
		dst = AppendBulkString(dst, arg)
	}
	return dst
}
