package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/protocol"
)

// ConnState is a connection's position in its lifecycle
type ConnState int32

const (
	StateAccepted ConnState = iota
	StateReading
	StateDispatching
	StateWriting
	StateClosed
)

// String returns the state name
func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one connected session. Its buffers and decoder are owned by the
// connection goroutine.
type Client struct {
	conn   net.Conn
	server *Server
	dec    *protocol.Decoder
	enc    protocol.Encoder

	rbuf []byte
	wbuf []byte

	// viewValue copies a borrowed value into wbuf under the shard lock
	viewValue func(value []byte)

	state     atomic.Int32
	closeOnce sync.Once
}

func newClient(s *Server, conn net.Conn) *Client {
	c := &Client{
		conn:   conn,
		server: s,
		dec:    protocol.NewDecoder(s.cfg.Limits),
	}
	c.enc = c.dec.Encoder()
	c.viewValue = func(value []byte) {
		c.wbuf = c.enc.AppendValue(c.wbuf, value)
	}
	c.state.Store(int32(StateAccepted))
	return c
}

// State returns the connection's current state
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}

// Close closes the client connection. It is safe to call from any
// goroutine and more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		_ = c.conn.Close()
		c.server.release(c)
	})
}

// handle runs the read, dispatch, write loop until the peer leaves, the
// idle deadline passes or the stream becomes unrecoverable
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	pool := c.server.pool
	c.rbuf = pool.Get()
	c.wbuf = pool.Get()
	defer func() {
		pool.Put(c.rbuf)
		pool.Put(c.wbuf)
	}()

	log := c.server.logger
	remote := c.conn.RemoteAddr().String()
	log.Debug("client connected", logging.F("remote", remote))

	c.touch()
	for {
		c.setState(StateReading)
		if !c.ensureReadSpace() {
			log.Error("frame exceeds read buffer", logging.F("remote", remote))
			return
		}

		n, err := c.conn.Read(c.rbuf[len(c.rbuf):cap(c.rbuf)])
		if n > 0 {
			c.rbuf = c.rbuf[:len(c.rbuf)+n]
			closeConn, perr := c.process()
			if perr != nil {
				c.server.errorCount.Add(1)
				log.Info("closing connection on protocol error",
					logging.F("remote", remote),
					logging.F("mode", c.dec.Mode().String()),
					logging.F("error", perr))
				return
			}
			if closeConn {
				return
			}
		}

		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				log.Debug("client disconnected", logging.F("remote", remote))
			case errors.As(err, &ne) && ne.Timeout():
				log.Debug("idle timeout", logging.F("remote", remote),
					logging.F("timeout", c.server.cfg.IdleTimeout))
			default:
				log.Debug("read failed", logging.F("remote", remote), logging.F("error", err))
			}
			return
		}
	}
}

// touch pushes the idle deadline out. Only completed commands count as
// activity, so a peer trickling bytes of one frame still times out.
func (c *Client) touch() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.IdleTimeout))
}

// ensureReadSpace makes room for the next read. A buffer full of one
// incomplete frame moves to a larger heap buffer, up to the largest frame
// the decoder accepts.
func (c *Client) ensureReadSpace() bool {
	if len(c.rbuf) < cap(c.rbuf) {
		return true
	}

	limit := c.server.cfg.Limits.MaxFrame() + binaryVarintSlack
	if cap(c.rbuf) >= limit {
		return false
	}
	grown := make([]byte, len(c.rbuf), min(cap(c.rbuf)*2, limit))
	copy(grown, c.rbuf)
	c.server.pool.Put(c.rbuf)
	c.rbuf = grown
	return true
}

// binaryVarintSlack covers the varint headers of a maximum sized binary
// frame on top of Limits.MaxFrame
const binaryVarintSlack = 32

// process decodes and dispatches every complete frame in rbuf, in order,
// then writes all responses at once. It returns a non-nil error when the
// stream cannot be resynchronized.
func (c *Client) process() (closeConn bool, err error) {
	c.setState(StateDispatching)

	buf := c.rbuf
	off := 0
	completed := 0

	for off < len(buf) {
		cmd, n, derr := c.dec.Decode(buf[off:])
		if derr != nil {
			if errors.Is(derr, protocol.ErrIncomplete) {
				off += n
				break
			}
			var pe *protocol.ProtocolError
			if !errors.As(derr, &pe) || pe.Fatal {
				if pe != nil {
					c.enc = c.dec.Encoder()
					c.wbuf = c.enc.AppendError(c.wbuf, pe.Kind, pe.Error())
				}
				_ = c.flush()
				return true, derr
			}

			// Rejected command: one error response, the stream goes on
			c.enc = c.dec.Encoder()
			c.wbuf = c.enc.AppendError(c.wbuf, pe.Kind, pe.Error())
			c.server.errorCount.Add(1)
			c.server.observer.ObserveCommand(protocol.OpInvalid, OutcomeError, 0)
			off += n
			completed++
			continue
		}

		off += n
		completed++
		c.enc = c.dec.Encoder()
		if quit := c.dispatch(cmd); quit {
			_ = c.flush()
			return true, nil
		}

		if len(c.wbuf) >= c.server.pool.Size()*writeHighWater {
			if err := c.flush(); err != nil {
				return true, nil
			}
			c.setState(StateDispatching)
		}
	}

	// Keys and values alias rbuf; only now may the consumed bytes go
	remaining := copy(buf, buf[off:])
	c.rbuf = buf[:remaining]
	if remaining == 0 && cap(c.rbuf) != c.server.pool.Size() {
		// The oversized frame is done; return to a pooled buffer
		c.rbuf = c.server.pool.Get()
	}

	if completed > 0 {
		c.touch()
	}
	if len(c.wbuf) > 0 {
		if err := c.flush(); err != nil {
			return true, nil
		}
	}
	return false, nil
}

// writeHighWater is how many pool-sized buffers of responses may pile up
// before a batch is flushed early
const writeHighWater = 4

// flush writes the pending responses under the write deadline
func (c *Client) flush() error {
	if len(c.wbuf) == 0 {
		return nil
	}
	c.setState(StateWriting)
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
	_, err := c.conn.Write(c.wbuf)

	pool := c.server.pool
	if cap(c.wbuf) > pool.Size()*writeHighWater {
		// A huge value grew the buffer; go back to a pooled one
		c.wbuf = pool.Get()
	} else {
		c.wbuf = c.wbuf[:0]
	}

	if err != nil {
		c.server.logger.Debug("write failed",
			logging.F("remote", c.conn.RemoteAddr().String()),
			logging.F("error", err))
	}
	return err
}
