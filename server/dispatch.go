package server

import (
	"errors"
	"time"

	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/storage"
)

// dispatch executes one command against the store and appends exactly one
// response to wbuf. Storage errors stop here as error responses.
func (c *Client) dispatch(cmd protocol.Command) (quit bool) {
	start := time.Now()
	outcome := OutcomeOK
	s := c.server
	s.commandCount.Add(1)

	switch cmd.Op {
	case protocol.OpPing:
		c.wbuf = c.enc.AppendPong(c.wbuf)

	case protocol.OpGet:
		found, err := s.store.View(cmd.Key, c.viewValue)
		switch {
		case err != nil:
			outcome = c.storeError(cmd, err)
		case !found:
			c.wbuf = c.enc.AppendNull(c.wbuf)
			outcome = OutcomeMiss
		}

	case protocol.OpPut:
		if err := s.store.Put(cmd.Key, cmd.Value, cmd.TTL); err != nil {
			outcome = c.storeError(cmd, err)
		} else {
			c.wbuf = c.enc.AppendOK(c.wbuf)
		}

	case protocol.OpDel:
		deleted, err := s.store.Delete(cmd.Key)
		if err != nil {
			outcome = c.storeError(cmd, err)
		} else {
			c.wbuf = c.enc.AppendDeleted(c.wbuf, deleted)
			if !deleted {
				outcome = OutcomeMiss
			}
		}

	case protocol.OpStats:
		c.wbuf = c.enc.AppendStats(c.wbuf, s.Report())

	case protocol.OpQuit:
		c.wbuf = c.enc.AppendOK(c.wbuf)
		quit = true

	default:
		c.wbuf = c.enc.AppendError(c.wbuf, protocol.KindUnknownCommand, cmd.Op.String())
		outcome = OutcomeError
	}

	s.observer.ObserveCommand(cmd.Op, outcome, time.Since(start))
	return quit
}

// storeError appends the wire form of a storage error
func (c *Client) storeError(cmd protocol.Command, err error) Outcome {
	kind := errorKind(err)
	if kind == protocol.KindInternal {
		c.server.logger.Error("command failed",
			logging.F("op", cmd.Op.String()),
			logging.F("error", err))
	}
	c.server.errorCount.Add(1)
	c.wbuf = c.enc.AppendError(c.wbuf, kind, err.Error())
	return OutcomeError
}

func errorKind(err error) protocol.ErrorKind {
	switch {
	case errors.Is(err, storage.ErrEmptyKey):
		return protocol.KindProtocol
	case errors.Is(err, storage.ErrKeyTooLarge):
		return protocol.KindKeyTooLarge
	case errors.Is(err, storage.ErrValueTooLarge):
		return protocol.KindValueTooLarge
	case errors.Is(err, storage.ErrStoreFull), errors.Is(err, storage.ErrOutOfArenaMemory):
		return protocol.KindStoreFull
	default:
		return protocol.KindInternal
	}
}
