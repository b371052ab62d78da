// Package protocol implements the cache wire protocol: a compact binary
// framing and a text framing compatible with Redis clients.
//
// Binary requests start with a one byte opcode followed by LEB128 varint
// lengths and the raw key and value bytes. Text requests are inline
// commands ("PUT key value\r\n") or RESP multibulk arrays, and are answered
// in RESP2.
//
// A server decodes with a Decoder, which detects the framing from the first
// message of a connection and pins it:
//
//	dec := protocol.NewDecoder(protocol.Limits{MaxKeySize: 250, MaxValueSize: 1 << 20})
//	for {
//		cmd, n, err := dec.Decode(buf)
//		if errors.Is(err, protocol.ErrIncomplete) {
//			buf = buf[n:]
//			break // read more
//		}
//		// dispatch cmd, then buf = buf[n:]
//	}
//
// Clients write requests with a Writer and read responses with a Reader:
//
//	w := protocol.NewWriter(conn)
//	w.WritePut([]byte("key"), []byte("value"), time.Minute)
//	w.WriteGet([]byte("key"))
//	w.Flush()
//
//	r := protocol.NewReader(conn)
//	resp, err := r.ReadResponse()
package protocol
