// Package client is a Go client for the arenacache binary framing.
//
// A Client owns one connection and is safe for concurrent use; calls are
// serialized. Pipeline batches several commands into one round trip.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/storage"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

// ErrClosed indicates the client has been closed
var ErrClosed = errors.New("client is closed")

// ServerError is an error response returned by the server
type ServerError struct {
	Kind protocol.ErrorKind
}

// Error implements the error interface
func (e *ServerError) Error() string {
	return "server error: " + e.Kind.String()
}

// Unwrap maps the response kind onto the storage error it reports, so
// callers can use errors.Is(err, storage.ErrStoreFull)
func (e *ServerError) Unwrap() error {
	switch e.Kind {
	case protocol.KindKeyTooLarge:
		return storage.ErrKeyTooLarge
	case protocol.KindValueTooLarge:
		return storage.ErrValueTooLarge
	case protocol.KindStoreFull:
		return storage.ErrStoreFull
	}
	return nil
}

// Option configures a Client
type Option func(*Client)

// WithConnectTimeout bounds the dial
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithReadTimeout bounds waiting for each response batch
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithWriteTimeout bounds flushing each request batch
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// Client is a connection to an arenacache server
type Client struct {
	addr string

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	closed bool
}

// Dial connects to addr
func Dial(addr string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), addr, opts...)
}

// DialContext connects to addr, giving up when ctx is done
func DialContext(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		addr:           addr,
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	dialer := &net.Dialer{
		Timeout: c.connectTimeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn
	c.reader = protocol.NewReader(conn)
	c.writer = protocol.NewWriter(conn)
	return c, nil
}

// Addr returns the server address
func (c *Client) Addr() string {
	return c.addr
}

// Put stores value under key. A ttl <= 0 means no expiry.
func (c *Client) Put(key, value []byte, ttl time.Duration) error {
	resp, err := c.do(func(w *protocol.Writer) error { return w.WritePut(key, value, ttl) })
	if err != nil {
		return err
	}
	return expect(resp, protocol.CodeOK)
}

// Get returns the value stored under key. A missing key is not an error.
func (c *Client) Get(key []byte) ([]byte, bool, error) {
	resp, err := c.do(func(w *protocol.Writer) error { return w.WriteGet(key) })
	if err != nil {
		return nil, false, err
	}
	return valueOf(resp)
}

// Del removes key and reports whether it was present
func (c *Client) Del(key []byte) (bool, error) {
	resp, err := c.do(func(w *protocol.Writer) error { return w.WriteDel(key) })
	if err != nil {
		return false, err
	}
	return deletedOf(resp)
}

// Ping checks the connection
func (c *Client) Ping() error {
	resp, err := c.do(func(w *protocol.Writer) error { return w.WritePing() })
	if err != nil {
		return err
	}
	return expect(resp, protocol.CodePong)
}

// Stats fetches the server's statistics snapshot
func (c *Client) Stats() (*protocol.StatsReport, error) {
	resp, err := c.do(func(w *protocol.Writer) error { return w.WriteStats() })
	if err != nil {
		return nil, err
	}
	if err := expect(resp, protocol.CodeStats); err != nil {
		return nil, err
	}
	return protocol.DecodeStats(resp.Data)
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) do(write func(w *protocol.Writer) error) (protocol.Response, error) {
	var resp protocol.Response
	err := c.roundTrip(1, write, func(_ int, r protocol.Response) { resp = r })
	return resp, err
}

// roundTrip writes a batch, flushes it once and reads n responses in order
func (c *Client) roundTrip(n int, write func(w *protocol.Writer) error, read func(i int, r protocol.Response)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := write(c.writer); err != nil {
		return c.fail(err)
	}
	if err := c.writer.Flush(); err != nil {
		return c.fail(err)
	}

	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	for i := 0; i < n; i++ {
		resp, err := c.reader.ReadResponse()
		if err != nil {
			return c.fail(err)
		}
		read(i, resp)
	}
	return nil
}

// fail closes a connection whose stream position is no longer known
func (c *Client) fail(err error) error {
	c.closed = true
	_ = c.conn.Close()
	return err
}

func expect(resp protocol.Response, code byte) error {
	if resp.IsError() {
		return &ServerError{Kind: resp.Kind()}
	}
	if resp.Code != code {
		return fmt.Errorf("unexpected response: %s", resp)
	}
	return nil
}

func valueOf(resp protocol.Response) ([]byte, bool, error) {
	switch {
	case resp.Code == protocol.CodeValue:
		return resp.Data, true, nil
	case resp.Code == protocol.CodeNull:
		return nil, false, nil
	case resp.IsError():
		return nil, false, &ServerError{Kind: resp.Kind()}
	default:
		return nil, false, fmt.Errorf("unexpected response: %s", resp)
	}
}

func deletedOf(resp protocol.Response) (bool, error) {
	switch {
	case resp.Code == protocol.CodeOK:
		return true, nil
	case resp.Code == protocol.CodeNull:
		return false, nil
	case resp.IsError():
		return false, &ServerError{Kind: resp.Kind()}
	default:
		return false, fmt.Errorf("unexpected response: %s", resp)
	}
}
