package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxBulkSize bounds a VALUE or STATS payload a Reader accepts (1GB)
const maxBulkSize = 1024 * 1024 * 1024

// Response is one decoded binary response
type Response struct {
	Code byte
	Data []byte
}

// IsError returns true for error responses
func (r Response) IsError() bool {
	return IsErrorCode(r.Code)
}

// Kind returns the error kind of an error response
func (r Response) Kind() ErrorKind {
	return ErrorKind(r.Code)
}

// String returns a printable form of the response
func (r Response) String() string {
	switch r.Code {
	case CodeOK:
		return "OK"
	case CodePong:
		return "PONG"
	case CodeNull:
		return "(nil)"
	case CodeValue:
		return string(r.Data)
	case CodeStats:
		return fmt.Sprintf("(stats %d bytes)", len(r.Data))
	}
	if r.IsError() {
		return "ERR " + r.Kind().String()
	}
	return fmt.Sprintf("unknown response 0x%02x", r.Code)
}

// Reader is a streaming reader of binary responses
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new binary response reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// ReadResponse reads the next response from the stream. Data is freshly
// allocated and owned by the caller.
func (r *Reader) ReadResponse() (Response, error) {
	code, err := r.br.ReadByte()
	if err != nil {
		return Response{}, err
	}

	switch {
	case code == CodeOK, code == CodePong, code == CodeNull, IsErrorCode(code):
		return Response{Code: code}, nil
	case code == CodeValue, code == CodeStats:
		data, err := r.readPayload()
		if err != nil {
			return Response{}, err
		}
		return Response{Code: code, Data: data}, nil
	default:
		return Response{}, fmt.Errorf("unknown response code: 0x%02x", code)
	}
}

// Skip discards the next response without keeping its payload
func (r *Reader) Skip() error {
	code, err := r.br.ReadByte()
	if err != nil {
		return err
	}
	if code != CodeValue && code != CodeStats {
		return nil
	}

	length, err := binary.ReadUvarint(r.br)
	if err != nil {
		return fmt.Errorf("invalid payload length: %w", err)
	}
	if length > maxBulkSize {
		return fmt.Errorf("invalid payload length: %d", length)
	}
	_, err = r.br.Discard(int(length))
	return err
}

func (r *Reader) readPayload() ([]byte, error) {
	length, err := binary.ReadUvarint(r.br)
	if err != nil {
		return nil, fmt.Errorf("invalid payload length: %w", err)
	}
	if length > maxBulkSize {
		return nil, fmt.Errorf("invalid payload length: %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Reset resets the reader to read from a new underlying reader
func (r *Reader) Reset(rd io.Reader) {
	r.br.Reset(rd)
}
