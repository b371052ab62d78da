package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/arenacache/bufpool"
	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/storage"
)

const (
	DefaultIdleTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultMaxConns     = 10000
)

// Config holds the server settings. Values are expected to be validated by
// the caller; zero values fall back to defaults.
type Config struct {
	Addr         string
	Limits       protocol.Limits
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MaxConns     int

	// Pool supplies read and write buffers. A pool with
	// bufpool.DefaultBufferSize buffers is created when nil.
	Pool *bufpool.Pool

	Logger   logging.Logger
	Observer Observer
}

// Observer receives the outcome of every dispatched command. It is called
// on the connection goroutine and must not block.
type Observer interface {
	ObserveCommand(op protocol.Op, outcome Outcome, elapsed time.Duration)
}

// Outcome classifies a dispatched command
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeMiss  Outcome = "miss"
	OutcomeError Outcome = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveCommand(protocol.Op, Outcome, time.Duration) {}

// Server accepts client connections and serves cache commands from a Store
type Server struct {
	store    storage.Store
	pool     *bufpool.Pool
	cfg      Config
	logger   logging.Logger
	observer Observer

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client
	slots    chan struct{}

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	started      time.Time
	connected    atomic.Int64
	connCount    atomic.Uint64
	commandCount atomic.Uint64
	errorCount   atomic.Uint64
}

// Stats is a snapshot of server activity
type Stats struct {
	ConnectedClients int64
	TotalConnections uint64
	TotalCommands    uint64
	TotalErrors      uint64
	Uptime           time.Duration
	Pool             bufpool.Stats
}

// New creates a server for store
func New(store storage.Store, cfg Config) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.Limits.MaxKeySize <= 0 {
		cfg.Limits.MaxKeySize = storage.DefaultMaxKeySize
	}
	if cfg.Limits.MaxValueSize <= 0 {
		cfg.Limits.MaxValueSize = storage.DefaultMaxValueSize
	}
	if cfg.Pool == nil {
		cfg.Pool = bufpool.New(bufpool.DefaultBufferSize, cfg.MaxConns*2)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:    store,
		pool:     cfg.Pool,
		cfg:      cfg,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		slots:    make(chan struct{}, cfg.MaxConns),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start listens on the configured address and accepts connections in the
// background
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.Serve(l)
	return nil
}

// Serve accepts connections from l in the background. The server owns l
// from then on.
func (s *Server) Serve(l net.Listener) {
	s.listener = l
	s.started = time.Now()
	s.logger.Info("server listening", logging.F("addr", l.Addr().String()))

	s.wg.Add(1)
	go s.acceptConnections()
}

// Stop closes the listener and every client connection, then waits for the
// connection goroutines to exit. In-flight commands run to completion.
func (s *Server) Stop() error {
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	// Close all client connections
	s.clients.Range(func(key, value any) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Stats returns server statistics
func (s *Server) Stats() Stats {
	var uptime time.Duration
	if !s.started.IsZero() {
		uptime = time.Since(s.started)
	}
	return Stats{
		ConnectedClients: s.connected.Load(),
		TotalConnections: s.connCount.Load(),
		TotalCommands:    s.commandCount.Load(),
		TotalErrors:      s.errorCount.Load(),
		Uptime:           uptime,
		Pool:             s.pool.Stats(),
	}
}

// Report assembles the STATS reply from independently read shard counters
// and the server's own counters
func (s *Server) Report() *protocol.StatsReport {
	st := s.store.Stats()
	ss := s.Stats()

	r := &protocol.StatsReport{
		Hasher:           st.Hasher,
		Policy:           st.Policy,
		UptimeSeconds:    int64(ss.Uptime / time.Second),
		ConnectedClients: ss.ConnectedClients,
		TotalConnections: ss.TotalConnections,
		TotalCommands:    ss.TotalCommands,
		PoolHits:         ss.Pool.Hits,
		PoolMisses:       ss.Pool.Misses,
		Aggregate:        shardReport(-1, st.Capacity, st.Total),
		Shards:           make([]protocol.ShardReport, len(st.Shards)),
	}
	for i, sh := range st.Shards {
		r.Shards[i] = shardReport(sh.ID, sh.Capacity, sh.Counters)
	}
	return r
}

func shardReport(id int, capacity int64, c storage.Counters) protocol.ShardReport {
	return protocol.ShardReport{
		ID:          id,
		Keys:        c.Keys,
		Bytes:       c.Bytes,
		Capacity:    capacity,
		Hits:        c.Hits,
		Misses:      c.Misses,
		Puts:        c.Puts,
		Deletes:     c.Deletes,
		Evictions:   c.Evictions,
		Expired:     c.Expired,
		Rejected:    c.Rejected,
		Compactions: c.Compactions,
	}
}

// acceptConnections accepts new client connections. A connection slot is
// taken before Accept, so at MaxConns the backlog waits in the kernel.
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			<-s.slots
			if s.ctx.Err() != nil {
				return // Server is shutting down
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff < time.Second {
				backoff *= 2
			}
			s.logger.Error("accept failed", logging.F("error", err), logging.F("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		s.handleNewClient(conn)
	}
}

// handleNewClient registers conn and starts its goroutine
func (s *Server) handleNewClient(conn net.Conn) {
	s.connCount.Add(1)
	s.connected.Add(1)

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	client := newClient(s, conn)
	s.clients.Store(conn, client)

	s.wg.Add(1)
	go client.handle()

	// Stop may have walked the client map before the Store above
	if s.ctx.Err() != nil {
		client.Close()
	}
}

// release is called once per client when it closes
func (s *Server) release(c *Client) {
	s.clients.Delete(c.conn)
	s.connected.Add(-1)
	<-s.slots
}
