// Package server accepts client connections and serves cache commands from
// a storage.Store.
//
// Each connection runs on its own goroutine and loops through reading,
// dispatching and writing. All complete frames in a read are dispatched in
// arrival order and their responses written back in one batch, so
// pipelined requests are answered in request order. Read and write buffers
// come from a shared bufpool.Pool.
//
// The framing (binary or text) is detected from a connection's first
// message and then pinned. Text connections speak RESP2, so clients such as
// github.com/redis/go-redis can issue SET, GET, DEL, PING and INFO.
package server
