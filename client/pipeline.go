package client

import (
	"time"

	"github.com/raniellyferreira/arenacache/protocol"
)

// Result is the outcome of one pipelined command
type Result struct {
	Op    protocol.Op
	Value []byte
	// Found is true for a GET hit and for a DEL that removed the key
	Found bool
	Err   error
}

type queued struct {
	op    protocol.Op
	key   []byte
	value []byte
	ttl   time.Duration
}

// Pipeline queues commands and sends them in one write. Responses come
// back in the order the commands were queued.
type Pipeline struct {
	c     *Client
	queue []queued
}

// Pipeline starts a new batch on c
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{c: c}
}

// Put queues a PUT
func (p *Pipeline) Put(key, value []byte, ttl time.Duration) *Pipeline {
	p.queue = append(p.queue, queued{op: protocol.OpPut, key: key, value: value, ttl: ttl})
	return p
}

// Get queues a GET
func (p *Pipeline) Get(key []byte) *Pipeline {
	p.queue = append(p.queue, queued{op: protocol.OpGet, key: key})
	return p
}

// Del queues a DEL
func (p *Pipeline) Del(key []byte) *Pipeline {
	p.queue = append(p.queue, queued{op: protocol.OpDel, key: key})
	return p
}

// Ping queues a PING
func (p *Pipeline) Ping() *Pipeline {
	p.queue = append(p.queue, queued{op: protocol.OpPing})
	return p
}

// Len returns the number of queued commands
func (p *Pipeline) Len() int {
	return len(p.queue)
}

// Exec sends the batch and collects one Result per command. The returned
// error is set only when the connection failed; per-command failures are in
// Result.Err. The pipeline is empty afterwards.
func (p *Pipeline) Exec() ([]Result, error) {
	queue := p.queue
	p.queue = nil
	if len(queue) == 0 {
		return nil, nil
	}

	results := make([]Result, len(queue))
	write := func(w *protocol.Writer) error {
		for _, q := range queue {
			var err error
			switch q.op {
			case protocol.OpPut:
				err = w.WritePut(q.key, q.value, q.ttl)
			case protocol.OpGet:
				err = w.WriteGet(q.key)
			case protocol.OpDel:
				err = w.WriteDel(q.key)
			case protocol.OpPing:
				err = w.WritePing()
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	read := func(i int, resp protocol.Response) {
		r := Result{Op: queue[i].op}
		switch r.Op {
		case protocol.OpPut:
			r.Err = expect(resp, protocol.CodeOK)
		case protocol.OpGet:
			r.Value, r.Found, r.Err = valueOf(resp)
		case protocol.OpDel:
			r.Found, r.Err = deletedOf(resp)
		case protocol.OpPing:
			r.Err = expect(resp, protocol.CodePong)
		}
		results[i] = r
	}

	if err := p.c.roundTrip(len(queue), write, read); err != nil {
		return nil, err
	}
	return results, nil
}
