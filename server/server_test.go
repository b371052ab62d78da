package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/raniellyferreira/arenacache/bufpool"
	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/storage"
)

func newTestServer(t *testing.T, cfg Config, opts ...storage.ManagerOption) (*Server, *storage.Manager) {
	t.Helper()

	opts = append([]storage.ManagerOption{
		storage.WithShardCount(4),
		storage.WithShardCapacity(1 << 20),
		storage.WithCleanup(storage.CleanupConfigDefault, 0),
	}, opts...)
	m, err := storage.NewManager(opts...)
	if err != nil {
		t.Fatal(err)
	}
	maxKey, maxValue := m.Limits()
	cfg.Addr = "127.0.0.1:0"
	cfg.Limits = protocol.Limits{MaxKeySize: maxKey, MaxValueSize: maxValue}

	srv := New(m, cfg)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = srv.Stop()
		_ = m.Close()
	})
	return srv, m
}

// Simple RESP client for testing
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	return &testClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (c *testClient) send(t *testing.T, raw string) {
	t.Helper()
	if _, err := c.conn.Write([]byte(raw)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func (c *testClient) sendCommand(cmd string, args ...string) (string, error) {
	parts := make([][]byte, 0, len(args)+1)
	parts = append(parts, []byte(cmd))
	for _, a := range args {
		parts = append(parts, []byte(a))
	}
	if _, err := c.conn.Write(protocol.AppendCommand(nil, parts...)); err != nil {
		return "", err
	}
	return c.readResponse()
}

func (c *testClient) readResponse() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	line = strings.TrimSuffix(line, "\r\n")
	if len(line) == 0 {
		return "", nil
	}

	switch line[0] {
	case '+': // Simple string
		return line[1:], nil
	case '-': // Error
		return line, nil
	case ':': // Integer
		return line[1:], nil
	case '$': // Bulk string
		size, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", err
		}
		if size == -1 {
			return "(nil)", nil
		}
		data := make([]byte, size+2) // +2 for CRLF
		if _, err := io.ReadFull(c.reader, data); err != nil {
			return "", err
		}
		return string(data[:size]), nil
	default:
		return line, nil
	}
}

func (c *testClient) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		got, err := c.readResponse()
		if err != nil {
			t.Fatalf("readResponse() error = %v (want %q)", err, w)
		}
		if got != w {
			t.Fatalf("response = %q, want %q", got, w)
		}
	}
}

// Binary client for testing
type binClient struct {
	conn net.Conn
	w    *protocol.Writer
	r    *protocol.Reader
}

func newBinClient(t *testing.T, addr string) *binClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	return &binClient{conn: conn, w: protocol.NewWriter(conn), r: protocol.NewReader(conn)}
}

func (c *binClient) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		resp, err := c.r.ReadResponse()
		if err != nil {
			t.Fatalf("ReadResponse() error = %v (want %q)", err, w)
		}
		if resp.String() != w {
			t.Fatalf("response = %q, want %q", resp.String(), w)
		}
	}
}

func TestServer_BasicCommands(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	client := newTestClient(t, srv.Addr())

	tests := []struct {
		cmd  []string
		want string
	}{
		{[]string{"PING"}, "PONG"},
		{[]string{"SET", "testkey", "testvalue"}, "OK"},
		{[]string{"GET", "testkey"}, "testvalue"},
		{[]string{"PUT", "testkey", "other value"}, "OK"},
		{[]string{"GET", "testkey"}, "other value"},
		{[]string{"DEL", "testkey"}, "1"},
		{[]string{"DEL", "testkey"}, "0"},
		{[]string{"GET", "testkey"}, "(nil)"},
	}

	for _, tt := range tests {
		resp, err := client.sendCommand(tt.cmd[0], tt.cmd[1:]...)
		if err != nil {
			t.Fatal(err)
		}
		if resp != tt.want {
			t.Errorf("%v = %q, want %q", tt.cmd, resp, tt.want)
		}
	}
}

func TestServer_ConcreteScenario(t *testing.T) {
	srv, m := newTestServer(t, Config{})
	if m.ShardCount() != 4 {
		t.Fatalf("ShardCount() = %d, want 4", m.ShardCount())
	}

	client := newTestClient(t, srv.Addr())
	client.send(t, "PUT k1 hello\r\n")
	client.expect(t, "OK")
	client.send(t, "GET k1\r\n")
	client.expect(t, "hello")
	client.send(t, "DEL k1\r\n")
	client.expect(t, "1")
	client.send(t, "GET k1\r\n")
	client.expect(t, "(nil)")

	client.send(t, "STATS\r\n")
	stats, err := client.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	aggregate := stats[strings.Index(stats, "# Aggregate"):]
	aggregate = aggregate[:strings.Index(aggregate, "# Shard 0")]
	for _, want := range []string{"puts:1\r\n", "deletes:1\r\n", "hits:1\r\n", "misses:1\r\n"} {
		if !strings.Contains(aggregate, want) {
			t.Errorf("aggregate section missing %q:\n%s", want, aggregate)
		}
	}
}

func TestServer_AutoDetect(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	bin := newBinClient(t, srv.Addr())
	if _, err := bin.conn.Write([]byte{byte(protocol.OpPing)}); err != nil {
		t.Fatal(err)
	}
	bin.expect(t, "PONG")

	text := newTestClient(t, srv.Addr())
	text.send(t, "PING\r\n")
	text.expect(t, "PONG")
}

func TestServer_PipeliningOrder(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	t.Run("binary", func(t *testing.T) {
		c := newBinClient(t, srv.Addr())
		var frames []byte
		for i := 0; i < 20; i++ {
			key := []byte("key" + strconv.Itoa(i))
			frames = protocol.AppendPut(frames, key, []byte("v"+strconv.Itoa(i)), 0)
		}
		for i := 0; i < 20; i++ {
			frames = protocol.AppendGet(frames, []byte("key"+strconv.Itoa(i)))
		}
		frames = protocol.AppendGet(frames, []byte("missing"))
		frames = protocol.AppendDel(frames, []byte("key0"))
		frames = protocol.AppendPing(frames)

		if _, err := c.conn.Write(frames); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			c.expect(t, "OK")
		}
		for i := 0; i < 20; i++ {
			c.expect(t, "v"+strconv.Itoa(i))
		}
		c.expect(t, "(nil)", "OK", "PONG")
	})

	t.Run("text", func(t *testing.T) {
		c := newTestClient(t, srv.Addr())
		c.send(t, "PUT a 1\r\nPUT b 2\r\nGET a\r\nGET b\r\nGET missing\r\nDEL a\r\nPING\r\n")
		c.expect(t, "OK", "OK", "1", "2", "(nil)", "1", "PONG")
	})
}

func TestServer_ProtocolErrorKeepsConnection(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	text := newTestClient(t, srv.Addr())
	text.send(t, "FOO bar\r\nGET\r\nPING\r\n")
	resp, _ := text.readResponse()
	if !strings.HasPrefix(resp, "-ERR unknown command") {
		t.Errorf("expected error for unknown command, got %s", resp)
	}
	resp, _ = text.readResponse()
	if !strings.HasPrefix(resp, "-ERR protocol error: wrong number of arguments") {
		t.Errorf("expected arity error, got %s", resp)
	}
	text.expect(t, "PONG")

	bin := newBinClient(t, srv.Addr())
	var frames []byte
	frames = protocol.AppendGet(frames, bytes.Repeat([]byte("k"), 300))
	frames = protocol.AppendPing(frames)
	if _, err := bin.conn.Write(frames); err != nil {
		t.Fatal(err)
	}
	bin.expect(t, "ERR key too large", "PONG")

	if got := srv.Stats().TotalErrors; got != 3 {
		t.Errorf("TotalErrors = %d, want 3", got)
	}
}

func TestServer_FatalProtocolErrorCloses(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	bin := newBinClient(t, srv.Addr())
	frame := []byte{byte(protocol.OpPing), byte(protocol.OpPut), 0x01, 'k'}
	frame = append(frame, 0xff, 0xff, 0xff, 0xff, 0x0f) // value length far beyond any frame
	if _, err := bin.conn.Write(frame); err != nil {
		t.Fatal(err)
	}
	bin.expect(t, "PONG", "ERR protocol error")

	if _, err := bin.r.ReadResponse(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after fatal error, got %v", err)
	}
}

func TestServer_IdleTimeout(t *testing.T) {
	srv, _ := newTestServer(t, Config{IdleTimeout: 100 * time.Millisecond})

	t.Run("silent client", func(t *testing.T) {
		c := newTestClient(t, srv.Addr())
		start := time.Now()
		if _, err := c.reader.ReadByte(); !errors.Is(err, io.EOF) {
			t.Fatalf("expected EOF, got %v", err)
		}
		if time.Since(start) > 3*time.Second {
			t.Errorf("connection closed after %v", time.Since(start))
		}
	})

	t.Run("partial frame does not count as activity", func(t *testing.T) {
		c := newBinClient(t, srv.Addr())
		frame := protocol.AppendPut(nil, []byte("k"), []byte("value"), 0)
		for _, b := range frame[:len(frame)-1] {
			if _, err := c.conn.Write([]byte{b}); err != nil {
				break
			}
			time.Sleep(30 * time.Millisecond)
		}
		// EOF or a reset, depending on whether the server saw our last bytes
		if resp, err := c.r.ReadResponse(); err == nil {
			t.Errorf("expected the connection to be closed, got %v", resp)
		}
	})

	t.Run("active client stays connected", func(t *testing.T) {
		c := newTestClient(t, srv.Addr())
		for i := 0; i < 5; i++ {
			time.Sleep(50 * time.Millisecond)
			c.send(t, "PING\r\n")
			c.expect(t, "PONG")
		}
	})
}

func TestServer_StoreFull(t *testing.T) {
	srv, _ := newTestServer(t, Config{},
		storage.WithShardCount(1),
		storage.WithShardCapacity(64),
		storage.WithLimits(16, 32))

	c := newTestClient(t, srv.Addr())
	c.send(t, "PUT a " + strings.Repeat("x", 32) + "\r\n")
	c.expect(t, "OK")
	c.send(t, "PUT b " + strings.Repeat("y", 32) + "\r\n")
	c.expect(t, "OK")
	c.send(t, "PUT c z\r\n")
	resp, _ := c.readResponse()
	if !strings.HasPrefix(resp, "-OOM") {
		t.Errorf("expected OOM error, got %q", resp)
	}

	// Neither existing entry was touched
	c.send(t, "GET a\r\nGET b\r\n")
	c.expect(t, strings.Repeat("x", 32), strings.Repeat("y", 32))

	bin := newBinClient(t, srv.Addr())
	_ = bin.w.WritePut([]byte("c"), []byte("z"), 0)
	_ = bin.w.Flush()
	bin.expect(t, "ERR store full")
}

func TestServer_LargeValues(t *testing.T) {
	srv, _ := newTestServer(t, Config{Pool: bufpool.New(1024, 8)},
		storage.WithShardCapacity(1<<20),
		storage.WithLimits(64, 256*1024))

	value := bytes.Repeat([]byte("0123456789abcdef"), 12*1024) // 192KB
	c := newBinClient(t, srv.Addr())
	_ = c.w.WritePut([]byte("big"), value, 0)
	_ = c.w.WriteGet([]byte("big"))
	_ = c.w.WritePing()
	if err := c.w.Flush(); err != nil {
		t.Fatal(err)
	}

	c.expect(t, "OK")
	resp, err := c.r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != protocol.CodeValue || !bytes.Equal(resp.Data, value) {
		t.Fatalf("GET big returned code 0x%02x with %d bytes", resp.Code, len(resp.Data))
	}
	c.expect(t, "PONG")
}

func TestServer_BinaryTTL(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	c := newBinClient(t, srv.Addr())
	_ = c.w.WritePut([]byte("short"), []byte("v"), 50*time.Millisecond)
	_ = c.w.WriteGet([]byte("short"))
	_ = c.w.Flush()
	c.expect(t, "OK", "v")

	time.Sleep(100 * time.Millisecond)
	_ = c.w.WriteGet([]byte("short"))
	_ = c.w.Flush()
	c.expect(t, "(nil)")
}

func TestServer_BinaryStats(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	c := newBinClient(t, srv.Addr())
	_ = c.w.WritePut([]byte("k1"), []byte("hello"), 0)
	_ = c.w.WriteGet([]byte("k1"))
	_ = c.w.WriteStats()
	_ = c.w.Flush()
	c.expect(t, "OK", "hello")

	resp, err := c.r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	report, err := protocol.DecodeStats(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if report.Aggregate.Puts != 1 || report.Aggregate.Hits != 1 {
		t.Errorf("aggregate = %+v, want puts=1 hits=1", report.Aggregate)
	}
	if len(report.Shards) != 4 {
		t.Errorf("len(Shards) = %d, want 4", len(report.Shards))
	}
	if report.ConnectedClients != 1 {
		t.Errorf("ConnectedClients = %d, want 1", report.ConnectedClients)
	}
}

func TestServer_Quit(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	c := newTestClient(t, srv.Addr())
	c.send(t, "QUIT\r\nPING\r\n")
	c.expect(t, "OK")
	if _, err := c.reader.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after QUIT, got %v", err)
	}
}

func TestServer_MaxConns(t *testing.T) {
	srv, _ := newTestServer(t, Config{MaxConns: 1})

	first := newTestClient(t, srv.Addr())
	first.send(t, "PING\r\n")
	first.expect(t, "PONG")

	second := newTestClient(t, srv.Addr())
	second.send(t, "PING\r\n")
	_ = second.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := second.reader.ReadByte(); err == nil {
		t.Fatal("second connection served while the first holds the only slot")
	}

	_ = first.conn.Close()
	_ = second.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	second.reader.Reset(second.conn)
	second.expect(t, "PONG")
}

func TestServer_Stats(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	client := newTestClient(t, srv.Addr())
	_, _ = client.sendCommand("PING")
	_, _ = client.sendCommand("SET", "key", "value")
	_, _ = client.sendCommand("GET", "key")

	stats := srv.Stats()
	if stats.ConnectedClients != 1 {
		t.Errorf("expected 1 connected client, got %v", stats.ConnectedClients)
	}
	if stats.TotalCommands < 3 {
		t.Errorf("expected at least 3 commands, got %v", stats.TotalCommands)
	}
	if stats.TotalConnections < 1 {
		t.Errorf("expected at least 1 connection, got %v", stats.TotalConnections)
	}
	if stats.Pool.Hits+stats.Pool.Misses < 2 {
		t.Errorf("expected read and write buffers from the pool, got %+v", stats.Pool)
	}
}

type recordingObserver struct {
	ops []protocol.Op
	out []Outcome
}

func (r *recordingObserver) ObserveCommand(op protocol.Op, outcome Outcome, _ time.Duration) {
	r.ops = append(r.ops, op)
	r.out = append(r.out, outcome)
}

func TestServer_Observer(t *testing.T) {
	obs := &recordingObserver{}
	srv, _ := newTestServer(t, Config{Observer: obs})

	c := newTestClient(t, srv.Addr())
	c.send(t, "PUT a 1\r\nGET a\r\nGET b\r\nNOPE\r\n")
	c.expect(t, "OK", "1", "(nil)")
	_, _ = c.readResponse()
	_ = c.conn.Close()

	// The connection goroutine has finished observing once Stop returns
	_ = srv.Stop()

	wantOps := []protocol.Op{protocol.OpPut, protocol.OpGet, protocol.OpGet, protocol.OpInvalid}
	wantOut := []Outcome{OutcomeOK, OutcomeOK, OutcomeMiss, OutcomeError}
	if len(obs.ops) != len(wantOps) {
		t.Fatalf("observed %v, want %v", obs.ops, wantOps)
	}
	for i := range wantOps {
		if obs.ops[i] != wantOps[i] || obs.out[i] != wantOut[i] {
			t.Errorf("observation %d = %v/%v, want %v/%v", i, obs.ops[i], obs.out[i], wantOps[i], wantOut[i])
		}
	}
}

func TestServer_BlankLinesAreDiscarded(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	c := newTestClient(t, srv.Addr())
	blank := bytes.Repeat([]byte("\r\n"), srv.cfg.Limits.MaxFrame())
	if _, err := c.conn.Write(blank); err != nil {
		t.Fatal(err)
	}
	c.send(t, "PING\r\n")
	c.expect(t, "PONG")
}
